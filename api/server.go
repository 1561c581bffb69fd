// Package api wires the engine to the outside world: one Echo handler per
// route in the HTTP/JSON protocol, an API-key gate matching
// http.APIKeyMiddleware's X-API-Key convention, and a live SSE feed off the
// engine's change hub.
package api

import (
	"github.com/labstack/echo/v4"

	"docdb/engine"
	httpserver "docdb/http"
)

// Handlers holds the dependencies every route handler needs: just the
// engine, since it already owns the store, indexes and hub.
type Handlers struct {
	Engine *engine.Engine
}

// NewServer builds a fully-routed Echo instance atop eng. An empty apiKey
// disables authentication entirely; otherwise every route but GET / must
// carry a matching X-API-Key header.
func NewServer(eng *engine.Engine, apiKey string, serverConfig httpserver.ServerConfig) *echo.Echo {
	e := httpserver.NewEchoServer(serverConfig)
	e.Use(httpserver.APIKeyMiddleware(apiKey, func(c echo.Context) bool {
		return c.Path() == "/"
	}))

	h := &Handlers{Engine: eng}

	e.GET("/", h.Health)
	e.POST("/set", h.Set)
	e.POST("/get", h.Get)
	e.POST("/get_partial", h.GetPartial)
	e.POST("/delete", h.Delete)
	e.POST("/batch_set", h.BatchSet)
	e.POST("/transaction", h.Transaction)
	e.POST("/clear_prefix", h.ClearPrefix)
	e.POST("/drop_database", h.DropDatabase)
	e.POST("/query/ast", h.QueryAST)
	e.POST("/query/radius", h.QueryRadius)
	e.POST("/query/box", h.QueryBox)
	e.GET("/export", h.Export)
	e.POST("/import", h.Import)
	e.GET("/events", h.Events)

	return e
}
