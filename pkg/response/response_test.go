package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qbank-access-api/internal/models"
	appErrors "github.com/noah-isme/qbank-access-api/pkg/errors"
	"github.com/noah-isme/qbank-access-api/pkg/middleware/requestid"
)

func TestErrorHidesCauseAndEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/", func(c *gin.Context) {
		Abort(c, appErrors.Wrap(errors.New("pq: duplicate key value"), appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "access already exists for this user and bundle"))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestid.HeaderKey, "trace-1")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var body struct {
		Error *appErrors.Error       `json:"error"`
		Meta  map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "CONFLICT", body.Error.Code)
	assert.Equal(t, "trace-1", body.Meta["requestId"])
}

func TestListSendsEmptyArrayAndCamelCasePagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var items []models.AccessGrant
	List(c, items, models.NewPagination(1, 20, 0))

	assert.JSONEq(t, `{"data":[],"pagination":{"page":1,"pageSize":20,"totalCount":0,"totalPages":0}}`, w.Body.String())
}
