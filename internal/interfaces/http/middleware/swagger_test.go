package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func swaggerRouter(cfg SwaggerConfig, jwt gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.GET("/swagger/*any", SwaggerProtection(cfg, jwt), func(c *gin.Context) {
		c.String(http.StatusOK, "docs")
	})
	return router
}

func TestSwaggerProtection(t *testing.T) {
	tests := []struct {
		name       string
		cfg        SwaggerConfig
		remoteAddr string
		expected   int
	}{
		{"disabled", SwaggerConfig{Enabled: false}, "10.0.0.1:1234", http.StatusNotFound},
		{"open", SwaggerConfig{Enabled: true}, "10.0.0.1:1234", http.StatusOK},
		{"exact ip allowed", SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.0.0.1"}}, "10.0.0.1:1234", http.StatusOK},
		{"cidr allowed", SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.0.0.0/8"}}, "10.2.3.4:1234", http.StatusOK},
		{"outside allow list", SwaggerConfig{Enabled: true, AllowedIPs: []string{"192.168.0.0/16"}}, "10.0.0.1:1234", http.StatusForbidden},
		{"bad entries ignored", SwaggerConfig{Enabled: true, AllowedIPs: []string{"nonsense", "10.0.0.0/99"}}, "10.0.0.1:1234", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
			req.RemoteAddr = tt.remoteAddr
			w := httptest.NewRecorder()
			swaggerRouter(tt.cfg, nil).ServeHTTP(w, req)
			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestSwaggerProtection_RequireAuth(t *testing.T) {
	jwtService := newTestJWTService()
	pair, _ := newTestTokenPair(t, jwtService, "citizen")
	router := swaggerRouter(SwaggerConfig{Enabled: true, RequireAuth: true}, JWTAuthMiddleware(jwtService))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+pair.AccessToken)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
