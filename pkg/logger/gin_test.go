package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMiddlewarePropagatesRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(New("test")))

	var fromCtx, fromGin any
	r.GET("/ping", func(c *gin.Context) {
		fromCtx = From(c.Request.Context())
		fromGin = FromGin(c)
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "rid-1")
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != "rid-1" {
		t.Fatalf("request id must round-trip, got %q", got)
	}
	if fromCtx == nil || fromCtx != fromGin {
		t.Fatalf("request logger must be reachable from both context and gin")
	}
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(New("test")))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("middleware must assign a request id when the client sends none")
	}
}
