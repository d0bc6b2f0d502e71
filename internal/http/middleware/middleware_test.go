package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneonone97/Ecom-sub000/internal/shared/apperr"
)

func testEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := gin.New()
	r.Use(RequestID())
	r.Use(ErrorHandler(logger))
	r.Use(Recovery(logger))
	return r
}

func TestRequestIDPropagation(t *testing.T) {
	r := testEngine()
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rid": GetRequestID(c)})
	})

	// generated when absent
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	// echoed when supplied
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "rid-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "rid-123", w.Header().Get(HeaderRequestID))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "rid-123", body["rid"])

	// an oversized inbound id is replaced, never truncated
	long := strings.Repeat("x", 65)
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, long)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	got := w.Header().Get(HeaderRequestID)
	assert.NotEqual(t, long, got)
	assert.NotEmpty(t, got)
}

func TestErrorHandlerEnvelope(t *testing.T) {
	r := testEngine()
	r.GET("/boom", func(c *gin.Context) {
		Fail(c, apperr.InvalidErr("Invalid cart items.", map[string]string{"items[0].quantity": "quantity must be positive"}))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Error     string            `json:"error"`
		RequestID string            `json:"request_id"`
		Fields    map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Invalid cart items.", body.Error)
	assert.NotEmpty(t, body.RequestID)
	assert.Contains(t, body.Fields, "items[0].quantity")
}

func TestErrorHandlerStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{apperr.StockErr("Some items are out of stock.", nil, nil), http.StatusConflict},
		{apperr.NotFoundErr("Order not found."), http.StatusNotFound},
		{apperr.GatewayErr("Payment could not be started.", nil), http.StatusBadGateway},
		{apperr.SignatureErr(), http.StatusBadRequest},
		{apperr.ConflictErr("Order can no longer be cancelled."), http.StatusConflict},
	}

	for _, tc := range cases {
		r := testEngine()
		r.GET("/x", func(c *gin.Context) { Fail(c, tc.err) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, tc.code, w.Code, "for %v", tc.err)
	}
}

func TestRecoveryTurnsPanicInto500(t *testing.T) {
	r := testEngine()
	r.GET("/panic", func(c *gin.Context) { panic("kaput") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Something went wrong.", body["error"])
}

func TestRequireAuth(t *testing.T) {
	r := testEngine()
	r.GET("/me", RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": CurrentUserID(c)})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderUserID, "u1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "u1")
}
