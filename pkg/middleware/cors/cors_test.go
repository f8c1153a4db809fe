package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func perform(t *testing.T, allowed []string, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	_, router := gin.CreateTestContext(recorder)
	router.Use(New(allowed))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(method, "/ping", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestAllowedOriginEchoedWithCredentials(t *testing.T) {
	rec := perform(t, []string{"https://portal.example.com"}, http.MethodGet, "https://portal.example.com")
	require.Equal(t, "https://portal.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestUnknownOriginGetsNoAllowHeader(t *testing.T) {
	rec := perform(t, []string{"https://portal.example.com"}, http.MethodGet, "https://evil.example.com")
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestWildcardNeverCarriesCredentials(t *testing.T) {
	rec := perform(t, nil, http.MethodGet, "")
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestDownloadHeadersExposed(t *testing.T) {
	rec := perform(t, nil, http.MethodGet, "")
	require.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestPreflightShortCircuits(t *testing.T) {
	rec := perform(t, nil, http.MethodOptions, "https://portal.example.com")
	require.Equal(t, http.StatusNoContent, rec.Code)
}
