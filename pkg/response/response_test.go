package response

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func run(h gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	h(c)
	return w
}

func TestEnvelope(t *testing.T) {
	w := run(func(c *gin.Context) { Success(c, gin.H{"n": 1}) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"code":0,"message":"success","data":{"n":1}}`, w.Body.String())

	w = run(func(c *gin.Context) { Conflict(c, "item already owned") })
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"code":40900,"message":"item already owned"}`, w.Body.String())

	w = run(func(c *gin.Context) { InternalError(c, errors.New("db exploded")) })
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "exploded")
}

func TestSnapshot(t *testing.T) {
	w := run(func(c *gin.Context) { Snapshot(c, gin.H{"total": 3}) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store, max-age=0", w.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"total":3}`, w.Body.String())

	w = run(func(c *gin.Context) { SnapshotError(c, errors.New("aggregation unavailable")) })
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "no-store, max-age=0", w.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"error":"aggregation unavailable"}`, w.Body.String())
}
