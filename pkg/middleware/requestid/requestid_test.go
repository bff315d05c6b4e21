package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, header string) (string, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(HeaderKey, header)
	}
	r.ServeHTTP(w, req)
	return seen, w
}

func TestMiddlewareGeneratesID(t *testing.T) {
	seen, w := serve(t, "")
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, w.Header().Get(HeaderKey))
}

func TestMiddlewareReusesCallerID(t *testing.T) {
	seen, w := serve(t, "edge-7f3a")
	assert.Equal(t, "edge-7f3a", seen)
	assert.Equal(t, "edge-7f3a", w.Header().Get(HeaderKey))
}

func TestMiddlewareReplacesUnusableID(t *testing.T) {
	for _, header := range []string{strings.Repeat("a", maxLength+1), "has space"} {
		seen, _ := serve(t, header)
		assert.NotEqual(t, header, seen)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
	}
}

func TestValueWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, Value(c))
}
