// Package api exposes the board over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"duoboard/board"
	"duoboard/domain"
)

const maxBodySize = 64 << 10

// Board is the set of intents the HTTP surface drives.
type Board interface {
	View() board.View
	Watch() (<-chan struct{}, func())
	Add(ctx context.Context, draft domain.Task) (domain.Task, error)
	QuickAdd(ctx context.Context, title string, assignee domain.Assignee) (domain.Task, error)
	MagicAdd(ctx context.Context, text string) (domain.Task, error)
	Update(ctx context.Context, task domain.Task) error
	ToggleStatus(ctx context.Context, id string) error
	Reassign(ctx context.Context, id string, assignee domain.Assignee) error
	SoftDelete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
	PermanentDelete(ctx context.Context, id string) error
	BatchReorder(ctx context.Context, tasks []domain.Task) error
	Move(ctx context.Context, id string, target board.DropTarget) (bool, error)
	RenameUser(ctx context.Context, id domain.UserID, name string) error
}

// Register wires up all routes on the provided Echo instance.
func Register(e *echo.Echo, b Board, logger *log.Logger) {
	e.GET("/healthz", healthz)
	e.GET("/stream", streamBoard(b, logger))

	g := e.Group("/api", RequestMetrics(logger))
	g.GET("/board", getBoard(b))
	g.GET("/tasks", getTasks(b))
	g.POST("/tasks", addTask(b))
	g.POST("/tasks/quick", quickAdd(b))
	g.POST("/tasks/magic", magicAdd(b))
	g.POST("/tasks/reorder", reorderTasks(b))
	g.PUT("/tasks/:id", updateTask(b))
	g.POST("/tasks/:id/toggle", byID(b.ToggleStatus))
	g.POST("/tasks/:id/assignee", reassignTask(b))
	g.POST("/tasks/:id/delete", byID(b.SoftDelete))
	g.POST("/tasks/:id/restore", byID(b.Restore))
	g.DELETE("/tasks/:id", byID(b.PermanentDelete))
	g.POST("/drop", drop(b))
	g.GET("/users", getUsers(b))
	g.PUT("/users/:id", renameUser(b))
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// decodeBody reads a size-limited JSON body, rejecting unknown fields.
func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	return nil
}

// intentError maps an intent failure to an HTTP error.
func intentError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrUnknownUser):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrEmptyTitle),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidAssignee),
		errors.Is(err, domain.ErrInvalidDueDate),
		errors.Is(err, domain.ErrBatchTooLarge):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, board.ErrNotDraggable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, board.ErrClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}

func getBoard(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, b.View())
	}
}

func getTasks(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, b.View().Tasks)
	}
}

type taskDraft struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	DueDate     string          `json:"dueDate"`
	Status      domain.Status   `json:"status"`
	Assignee    domain.Assignee `json:"assignee"`
	Color       string          `json:"color"`
}

func addTask(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		var d taskDraft
		if err := decodeBody(c, &d); err != nil {
			return err
		}
		task, err := b.Add(c.Request().Context(), domain.Task{
			Title:       strings.TrimSpace(d.Title),
			Description: d.Description,
			DueDate:     d.DueDate,
			Status:      d.Status,
			Assignee:    d.Assignee,
			Color:       d.Color,
		})
		if err != nil {
			return intentError(err)
		}
		return c.JSON(http.StatusAccepted, task)
	}
}

func quickAdd(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			Title    string          `json:"title"`
			Assignee domain.Assignee `json:"assignee"`
		}
		if err := decodeBody(c, &req); err != nil {
			return err
		}
		task, err := b.QuickAdd(c.Request().Context(), req.Title, req.Assignee)
		if err != nil {
			return intentError(err)
		}
		return c.JSON(http.StatusAccepted, task)
	}
}

func magicAdd(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			Text string `json:"text"`
		}
		if err := decodeBody(c, &req); err != nil {
			return err
		}
		task, err := b.MagicAdd(c.Request().Context(), req.Text)
		if err != nil {
			return intentError(err)
		}
		return c.JSON(http.StatusAccepted, task)
	}
}

func updateTask(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		var task domain.Task
		if err := decodeBody(c, &task); err != nil {
			return err
		}
		id := c.Param("id")
		if task.ID != "" && task.ID != id {
			return echo.NewHTTPError(http.StatusBadRequest, "task id does not match path")
		}
		task.ID = id
		if err := b.Update(c.Request().Context(), task); err != nil {
			return intentError(err)
		}
		return c.NoContent(http.StatusAccepted)
	}
}

func byID(intent func(ctx context.Context, id string) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := intent(c.Request().Context(), c.Param("id")); err != nil {
			return intentError(err)
		}
		return c.NoContent(http.StatusAccepted)
	}
}

func reassignTask(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			Assignee domain.Assignee `json:"assignee"`
		}
		if err := decodeBody(c, &req); err != nil {
			return err
		}
		if err := b.Reassign(c.Request().Context(), c.Param("id"), req.Assignee); err != nil {
			return intentError(err)
		}
		return c.NoContent(http.StatusAccepted)
	}
}

func reorderTasks(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		tasks := make([]domain.Task, 0, 8)
		if err := decodeBody(c, &tasks); err != nil {
			return err
		}
		if err := b.BatchReorder(c.Request().Context(), tasks); err != nil {
			return intentError(err)
		}
		return c.NoContent(http.StatusAccepted)
	}
}

// drop moves one task in a single request. A lane the board does not know
// makes the move a no-op, like any other drop that lands nowhere.
func drop(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			TaskID   string          `json:"taskId"`
			TargetID string          `json:"targetId"`
			Lane     domain.Assignee `json:"lane"`
		}
		if err := decodeBody(c, &req); err != nil {
			return err
		}
		if req.TaskID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "taskId is required")
		}
		if (req.TargetID == "") == (req.Lane == "") {
			return echo.NewHTTPError(http.StatusBadRequest, "exactly one of targetId or lane is required")
		}
		moved, err := b.Move(c.Request().Context(), req.TaskID, board.DropTarget{CardID: req.TargetID, Lane: req.Lane})
		if err != nil {
			return intentError(err)
		}
		return c.JSON(http.StatusAccepted, map[string]bool{"moved": moved})
	}
}

func getUsers(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, b.View().Profiles)
	}
}

func renameUser(b Board) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			Name string `json:"name"`
		}
		if err := decodeBody(c, &req); err != nil {
			return err
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "name is required")
		}
		if err := b.RenameUser(c.Request().Context(), domain.UserID(c.Param("id")), name); err != nil {
			return intentError(err)
		}
		return c.NoContent(http.StatusAccepted)
	}
}
