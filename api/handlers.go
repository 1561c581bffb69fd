package api

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"docdb/document"
	"docdb/engine"
	"docdb/enginerr"
	"docdb/query"
)

// decode reads and decodes the request body into v, wrapping any failure as
// a malformed-request engine error so it maps to 400 at the boundary.
func decode(c echo.Context, v interface{}) error {
	if err := json.NewDecoder(c.Request().Body).Decode(v); err != nil {
		return enginerr.Wrap(enginerr.KindMalformed, "decode request body", err)
	}
	return nil
}

// Health answers GET /, the one route that never requires an API key.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type setRequest struct {
	Key   string         `json:"key"`
	Value document.Value `json:"value"`
}

// Set handles POST /set.
func (h *Handlers) Set(c echo.Context) error {
	var req setRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	if err := h.Engine.Set(c.Request().Context(), req.Key, req.Value); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

type keyRequest struct {
	Key string `json:"key"`
}

// Get handles POST /get.
func (h *Handlers) Get(c echo.Context) error {
	var req keyRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	v, err := h.Engine.Get(c.Request().Context(), req.Key)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

type getPartialRequest struct {
	Key    string   `json:"key"`
	Fields []string `json:"fields"`
}

// GetPartial handles POST /get_partial.
func (h *Handlers) GetPartial(c echo.Context) error {
	var req getPartialRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	v, err := h.Engine.GetPartial(c.Request().Context(), req.Key, req.Fields)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

// Delete handles POST /delete.
func (h *Handlers) Delete(c echo.Context) error {
	var req keyRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	if err := h.Engine.Delete(c.Request().Context(), req.Key); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

// BatchSet handles POST /batch_set.
func (h *Handlers) BatchSet(c echo.Context) error {
	var items []engine.KV
	if err := decode(c, &items); err != nil {
		return err
	}
	if err := h.Engine.BatchSet(c.Request().Context(), items); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

// Transaction handles POST /transaction.
func (h *Handlers) Transaction(c echo.Context) error {
	var ops []engine.TxOp
	if err := decode(c, &ops); err != nil {
		return err
	}
	if err := h.Engine.Transaction(c.Request().Context(), ops); err != nil {
		return err
	}
	return c.NoContent(http.StatusOK)
}

type prefixRequest struct {
	Prefix string `json:"prefix"`
}

type countResponse struct {
	Count int `json:"count"`
}

// ClearPrefix handles POST /clear_prefix.
func (h *Handlers) ClearPrefix(c echo.Context) error {
	var req prefixRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	n, err := h.Engine.ClearPrefix(c.Request().Context(), req.Prefix)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, countResponse{Count: n})
}

// DropDatabase handles POST /drop_database.
func (h *Handlers) DropDatabase(c echo.Context) error {
	n, err := h.Engine.DropDatabase(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, countResponse{Count: n})
}

type queryASTRequest struct {
	AST        *query.Node `json:"ast"`
	Projection []string    `json:"projection"`
	Limit      *int        `json:"limit"`
	Offset     int         `json:"offset"`
}

// QueryAST handles POST /query/ast.
func (h *Handlers) QueryAST(c echo.Context) error {
	var req queryASTRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	if req.AST == nil {
		return enginerr.Malformed("missing ast")
	}
	results, err := h.Engine.Query(c.Request().Context(), req.AST, req.Projection, req.Offset, req.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}

type queryRadiusRequest struct {
	Field  string  `json:"field"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Radius float64 `json:"radius"`
}

// QueryRadius handles POST /query/radius.
func (h *Handlers) QueryRadius(c echo.Context) error {
	var req queryRadiusRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	results, err := h.Engine.QueryRadius(c.Request().Context(), req.Field, req.Lat, req.Lon, req.Radius)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}

type queryBoxRequest struct {
	Field  string  `json:"field"`
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// QueryBox handles POST /query/box.
func (h *Handlers) QueryBox(c echo.Context) error {
	var req queryBoxRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	results, err := h.Engine.QueryBox(c.Request().Context(), req.Field, req.MinLat, req.MinLon, req.MaxLat, req.MaxLon)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}

// Export handles GET /export: the snapshot is encoded to JSON once, then
// that JSON text is itself sent as a JSON string. /import expects the array
// form, so a client decodes the string once before posting it back.
func (h *Handlers) Export(c echo.Context) error {
	kvs, err := h.Engine.Export(c.Request().Context())
	if err != nil {
		return err
	}
	raw, err := json.Marshal(kvs)
	if err != nil {
		return enginerr.Wrap(enginerr.KindFatal, "encode export snapshot", err)
	}
	return c.JSON(http.StatusOK, string(raw))
}

// Import handles POST /import.
func (h *Handlers) Import(c echo.Context) error {
	var items []engine.KV
	if err := decode(c, &items); err != nil {
		return err
	}
	if err := h.Engine.Import(c.Request().Context(), items); err != nil {
		return err
	}
	return c.NoContent(http.StatusCreated)
}
