package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"docdb/enginerr"
)

// Events handles GET /events?key=<key>: a long-lived server-sent event
// stream of update notifications for one key, terminated when the client
// disconnects.
func (h *Handlers) Events(c echo.Context) error {
	key := c.QueryParam("key")
	if key == "" {
		return enginerr.Malformed("missing required query parameter %q", "key")
	}

	sub := h.Engine.Watch(key)
	defer sub.Stop()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	flusher, canFlush := resp.Writer.(http.Flusher)

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-sub.Changes:
			if !ok {
				return nil
			}
			if _, err := fmt.Fprintf(resp, "event: update\ndata: {\"key\":%q}\n\n", change.Key); err != nil {
				return nil
			}
			if canFlush {
				flusher.Flush()
			}
		}
	}
}
