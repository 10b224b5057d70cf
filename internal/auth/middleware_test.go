package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quadrant/backend/internal/config"
	"quadrant/backend/internal/models"
	"quadrant/backend/internal/store/storetest"
	"quadrant/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupConfig(t *testing.T) {
	t.Helper()
	prev := config.AppConfig
	config.AppConfig = &config.Config{JWTSecret: "middleware-secret", JWTTTL: time.Hour}
	t.Cleanup(func() { config.AppConfig = prev })
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.GET("/", append(mw, func(c *gin.Context) {
		id, ok := UserID(c)
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, id.String())
	})...)
	return r
}

func TestAuthMiddleware(t *testing.T) {
	setupConfig(t)
	id := uuid.New()
	token, err := jwt.GenerateToken(id)
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		query    string
		wantCode int
	}{
		{name: "bearer header", header: "Bearer " + token, wantCode: http.StatusOK},
		{name: "query token", query: "?token=" + token, wantCode: http.StatusOK},
		{name: "missing", wantCode: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, wantCode: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(AuthMiddleware())
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, id.String(), w.Body.String())
			}
		})
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	setupConfig(t)
	r := newRouter(OptionalAuthMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer broken")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())
}

func TestAccountMiddleware(t *testing.T) {
	setupConfig(t)
	s := storetest.NewSQLite(t)
	user := storetest.CreateUser(t, s, "dora", models.AccountTypeUser)

	r := gin.New()
	r.GET("/", AuthMiddleware(), AccountMiddleware(s), func(c *gin.Context) {
		c.String(http.StatusOK, Account(c).Nickname)
	})

	call := func(id uuid.UUID) *httptest.ResponseRecorder {
		token, err := jwt.GenerateToken(id)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := call(user.ID)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dora", w.Body.String())

	w = call(uuid.New())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
