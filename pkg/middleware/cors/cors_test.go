package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func do(origins []string, method, origin string, preflight bool) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/access/check", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.OPTIONS("/access/check", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(method, "/access/check", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSAllowListedOrigin(t *testing.T) {
	w := do([]string{"https://app.example/"}, http.MethodGet, "https://app.example", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "X-Request-ID", w.Header().Get("Access-Control-Expose-Headers"))
}

func TestCORSWildcardHasNoCredentials(t *testing.T) {
	w := do(nil, http.MethodGet, "https://anywhere.example", false)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSUnknownOrigin(t *testing.T) {
	w := do([]string{"https://app.example"}, http.MethodGet, "https://evil.example", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = do([]string{"https://app.example"}, http.MethodOptions, "https://evil.example", true)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	w := do([]string{"https://app.example"}, http.MethodOptions, "https://app.example", true)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, allowedMethods, w.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}
