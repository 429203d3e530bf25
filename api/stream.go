package api

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// streamBoard sends the whole board view as a server-sent event on connect
// and after every change.
func streamBoard(b Board, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		ctx := c.Request().Context()
		ch, stop := b.Watch()
		defer stop()
		c.Response().WriteHeader(http.StatusOK)

		var sent uint64
		for {
			v := b.View()
			if sent == 0 || v.Version != sent {
				data, err := sonic.Marshal(v)
				if err != nil {
					logger.WithError(err).Error("encode board view")
					return err
				}
				if err := writeEvent(c.Response(), data); err != nil {
					logger.WithError(err).Debug("stream client gone")
					return nil
				}
				flusher.Flush()
				sent = v.Version
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ch:
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, data []byte) error {
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n\n"))
	return err
}
