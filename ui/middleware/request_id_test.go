package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), LogServerErrors())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})
	r.GET("/fail", func(c *gin.Context) {
		c.AbortWithStatus(http.StatusInternalServerError)
	})
	return r
}

func TestRequestIDGenerated(t *testing.T) {
	rec := httptest.NewRecorder()
	newEngine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	id := rec.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.Body.String())
}

func TestRequestIDKeepsCallerUUID(t *testing.T) {
	sent := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, sent)
	rec := httptest.NewRecorder()
	newEngine().ServeHTTP(rec, req)

	assert.Equal(t, sent, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDReplacesGarbage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	rec := httptest.NewRecorder()
	newEngine().ServeHTTP(rec, req)

	assert.NotEqual(t, "<script>", rec.Header().Get(RequestIDHeader))
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestServerErrorsKeepRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	newEngine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}
