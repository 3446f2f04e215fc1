package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"teps_backend/internal/config"
	"teps_backend/internal/model"
	"teps_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := &config.JWTConfig{Secret: secret}
	r.GET("/me", AuthMiddleware(cfg), func(c *gin.Context) {
		util.Success(c, util.GetUserFromContext(c).UserID)
	})
	r.GET("/teacher", AuthMiddleware(cfg), RoleMiddleware(model.Teacher), func(c *gin.Context) {
		util.Success(c, "ok")
	})
	return r
}

func token(t *testing.T, role model.UserRole, key string) string {
	t.Helper()
	tok, err := util.GenerateJWT(7, role, key, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing token", "", "", http.StatusUnauthorized},
		{"bearer header", "Bearer " + token(t, model.Student, secret), "", http.StatusOK},
		{"query token", "", token(t, model.Student, secret), http.StatusOK},
		{"wrong secret", "Bearer " + token(t, model.Student, "other"), "", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "/me"
			if tt.query != "" {
				url += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRoleMiddleware(t *testing.T) {
	r := newRouter()

	tests := []struct {
		role model.UserRole
		want int
	}{
		{model.Student, http.StatusForbidden},
		{model.Teacher, http.StatusOK},
		{model.Admin, http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/teacher", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, tt.role, secret))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tt.want, w.Code, "role %s", tt.role)
	}
}
