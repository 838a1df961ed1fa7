package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func perform(t *testing.T, inboundID string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var seen string
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	if inboundID != "" {
		req.Header.Set(Header, inboundID)
	}
	r.ServeHTTP(w, req)
	return w, seen
}

func TestRequestIDGenerated(t *testing.T) {
	w, seen := perform(t, "")

	id := w.Header().Get(Header)
	require.NotEmpty(t, id)
	assert.Equal(t, id, seen, "context and response header carry the same ID")
}

func TestRequestIDEchoesInbound(t *testing.T) {
	w, seen := perform(t, "gateway-42")

	assert.Equal(t, "gateway-42", w.Header().Get(Header))
	assert.Equal(t, "gateway-42", seen)
}

func TestRequestIDReplacesOversizedInbound(t *testing.T) {
	oversized := strings.Repeat("x", 200)
	w, _ := perform(t, oversized)

	id := w.Header().Get(Header)
	require.NotEmpty(t, id)
	assert.NotEqual(t, oversized, id)
}
