package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"duoboard/board"
	"duoboard/domain"
)

func lanesCmd(open Opener) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "lanes",
		Short: "Print the three lanes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd, open, func(_ context.Context, b *board.Board) error {
				v := b.View()
				if asJSON {
					out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
					return err
				}
				printLanes(cmd.OutOrStdout(), v)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the board view as JSON")
	return cmd
}

func laneTitle(p domain.Profiles, a domain.Assignee) string {
	if a == domain.AssigneeShared {
		return "Shared"
	}
	return p.Name(domain.UserID(a))
}

func printLanes(w io.Writer, v board.View) {
	for i, a := range domain.Lanes {
		if i > 0 {
			fmt.Fprintln(w)
		}
		lane := v.Lanes.Lane(a)
		fmt.Fprintf(w, "%s (%d open)\n", laneTitle(v.Profiles, a), lane.Open)
		for _, t := range lane.Tasks {
			fmt.Fprintf(w, "  %s  %-11s %s", t.ID, t.Status, t.Title)
			if t.DueDate != "" {
				fmt.Fprintf(w, "  due %s", t.DueDate)
			}
			if t.IsDeleted {
				fmt.Fprint(w, "  [deleted]")
			}
			fmt.Fprintln(w)
		}
	}
}

func parseLane(s string) (domain.Assignee, error) {
	a := domain.Assignee(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidAssignee, s)
	}
	return a, nil
}

func addCmd(open Opener) *cobra.Command {
	var lane string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Quick-add a task to the top of a lane",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseLane(lane)
			if err != nil {
				return err
			}
			return withBoard(cmd, open, func(ctx context.Context, b *board.Board) error {
				t, err := b.QuickAdd(ctx, strings.Join(args, " "), a)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Added", t.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&lane, "lane", string(domain.AssigneeShared), "lane to add to (userA, userB, shared)")
	return cmd
}

func magicCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "magic <text>",
		Short: "Create a task from a free-text description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd, open, func(ctx context.Context, b *board.Board) error {
				t, err := b.MagicAdd(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s: %s\n", t.ID, t.Assignee, t.Title)
				return nil
			})
		},
	}
}

func moveCmd(open Opener) *cobra.Command {
	var before, lane string
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a task before another card or to the end of a lane",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (before == "") == (lane == "") {
				return fmt.Errorf("exactly one of --before or --lane is required")
			}
			var target domain.Assignee
			if lane != "" {
				a, err := parseLane(lane)
				if err != nil {
					return err
				}
				target = a
			}
			id := strings.TrimSpace(args[0])
			return withBoard(cmd, open, func(ctx context.Context, b *board.Board) error {
				if _, err := b.Move(ctx, id, board.DropTarget{CardID: before, Lane: target}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Moved", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&before, "before", "", "id of the card to drop onto")
	cmd.Flags().StringVar(&lane, "lane", "", "lane to append to")
	return cmd
}

// idCmd builds a command that applies one intent to a single task id.
func idCmd(open Opener, use, short, verb string, intent func(*board.Board, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return withBoard(cmd, open, func(ctx context.Context, b *board.Board) error {
				if _, ok := domain.Find(b.View().Tasks, id); !ok {
					return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
				}
				if err := intent(b, ctx, id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), verb, id)
				return nil
			})
		},
	}
}

func toggleCmd(open Opener) *cobra.Command {
	return idCmd(open, "toggle", "Mark a task done, or reopen a done task", "Toggled", (*board.Board).ToggleStatus)
}

func deleteCmd(open Opener) *cobra.Command {
	return idCmd(open, "delete", "Soft-delete a task (reversible)", "Deleted", (*board.Board).SoftDelete)
}

func restoreCmd(open Opener) *cobra.Command {
	return idCmd(open, "restore", "Restore a soft-deleted task", "Restored", (*board.Board).Restore)
}

func purgeCmd(open Opener) *cobra.Command {
	return idCmd(open, "purge", "Permanently delete a task", "Purged", (*board.Board).PermanentDelete)
}

func renameCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <userA|userB> <name>",
		Short: "Change a member's display name",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.UserID(args[0])
			name := strings.TrimSpace(strings.Join(args[1:], " "))
			if name == "" {
				return fmt.Errorf("name must not be empty")
			}
			return withBoard(cmd, open, func(ctx context.Context, b *board.Board) error {
				if err := b.RenameUser(ctx, id, name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", id, name)
				return nil
			})
		},
	}
}
