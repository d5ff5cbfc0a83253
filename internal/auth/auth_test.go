package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken("s3cret", "zapier", time.Minute)
	require.NoError(t, err)

	subject, err := ParseToken("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, "zapier", subject)

	_, err = ParseToken("other", token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	expired, err := IssueToken("s3cret", "zapier", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("s3cret", expired)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func newRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/hook", RequireBearer(secret, zap.NewNop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": c.GetString(SubjectKey)})
	})
	return r
}

func TestRequireBearer(t *testing.T) {
	r := newRouter("s3cret")
	token, err := IssueToken("s3cret", "zapier", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/hook", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRequireBearerDisabledWithoutSecret(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter("").ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/hook", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
