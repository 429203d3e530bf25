package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"duoboard/board"
)

// Opener starts a synced board. The returned function stops it after all
// queued store writes have finished.
type Opener func(ctx context.Context) (*board.Board, func(), error)

func NewRoot(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:          "boardctl",
		Short:        "Inspect and edit a shared task board",
		SilenceUsage: true,
	}
	root.AddCommand(
		lanesCmd(open),
		addCmd(open),
		magicCmd(open),
		moveCmd(open),
		toggleCmd(open),
		deleteCmd(open),
		restoreCmd(open),
		purgeCmd(open),
		renameCmd(open),
	)
	return root
}

// withBoard runs fn against a freshly opened board and reports store writes
// that failed while it shut down.
func withBoard(cmd *cobra.Command, open Opener, fn func(ctx context.Context, b *board.Board) error) error {
	ctx := cmd.Context()
	b, shutdown, err := open(ctx)
	if err != nil {
		return err
	}
	err = fn(ctx, b)
	shutdown()
	if err != nil {
		return err
	}
	if failed := b.PersistStats().Failed; failed > 0 {
		return fmt.Errorf("%d store write(s) failed", failed)
	}
	return nil
}
