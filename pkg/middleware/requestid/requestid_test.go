package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, inbound string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	_, router := gin.CreateTestContext(recorder)
	var seen string
	router.Use(Middleware())
	router.GET("/ping", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if inbound != "" {
		req.Header.Set("X-Request-ID", inbound)
	}
	router.ServeHTTP(recorder, req)
	return recorder, seen
}

func TestGeneratesIDWhenMissing(t *testing.T) {
	rec, seen := serve(t, "")
	id := rec.Header().Get("X-Request-ID")
	require.NotEmpty(t, id)
	require.Equal(t, id, seen)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
}

func TestHonorsInboundID(t *testing.T) {
	rec, seen := serve(t, "trace-42")
	require.Equal(t, "trace-42", rec.Header().Get("X-Request-ID"))
	require.Equal(t, "trace-42", seen)
}

func TestReplacesOversizedInboundID(t *testing.T) {
	rec, _ := serve(t, strings.Repeat("a", 65))
	id := rec.Header().Get("X-Request-ID")
	_, err := uuid.Parse(id)
	require.NoError(t, err)
}
