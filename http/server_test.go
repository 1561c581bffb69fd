package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docdb/enginerr"
)

func TestCustomHTTPErrorHandlerMapsEngineKinds(t *testing.T) {
	tests := []struct {
		kind enginerr.Kind
		want int
	}{
		{enginerr.KindNotFound, http.StatusNotFound},
		{enginerr.KindMalformed, http.StatusBadRequest},
		{enginerr.KindUnauthorized, http.StatusUnauthorized},
		{enginerr.KindTransient, http.StatusServiceUnavailable},
		{enginerr.KindFatal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := echo.New().NewContext(req, rec)

		CustomHTTPErrorHandler(enginerr.New(tt.kind, "boom"), c)
		assert.Equal(t, tt.want, rec.Code)
	}
}

func TestCustomHTTPErrorHandlerCancelledWritesNothing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	CustomHTTPErrorHandler(enginerr.Cancelled(), c)
	assert.Equal(t, 200, rec.Code) // recorder default; handler wrote nothing
	assert.Empty(t, rec.Body.String())
}

func TestAPIKeyMiddlewareRejectsMissingOrWrongKey(t *testing.T) {
	mw := APIKeyMiddleware("secret", nil)
	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	err := handler(c)
	require.Error(t, err)
	assert.Equal(t, enginerr.KindUnauthorized, enginerr.KindOf(err))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "wrong")
	c = echo.New().NewContext(req, httptest.NewRecorder())

	err = handler(c)
	require.Error(t, err)
	assert.Equal(t, enginerr.KindUnauthorized, enginerr.KindOf(err))
}

func TestAPIKeyMiddlewareAcceptsMatchingKey(t *testing.T) {
	mw := APIKeyMiddleware("secret", nil)
	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyMiddlewareSkipBypasses(t *testing.T) {
	mw := APIKeyMiddleware("secret", func(c echo.Context) bool { return c.Path() == "/" })
	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.SetPath("/")

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyMiddlewareDisabledWhenEmpty(t *testing.T) {
	mw := APIKeyMiddleware("", nil)
	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
