package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/grievancenet/backend/internal/interfaces/http/handler"
	"github.com/grievancenet/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
)

// fakeAuthenticate accepts "citizen" and "admin" as bearer tokens
func fakeAuthenticate(c *gin.Context) {
	switch c.GetHeader("Authorization") {
	case "Bearer citizen":
		c.Set(middleware.JWTUserIDKey, "7d8f1c2e-9a4b-4c1d-8e2f-3a5b6c7d8e9f")
	case "Bearer admin":
		c.Set(middleware.JWTUserIDKey, "1b2c3d4e-5f60-4718-8293-a4b5c6d7e8f9")
		c.Set(middleware.JWTAdminKey, true)
	default:
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	c.Next()
}

func newTestAPI(t *testing.T, guards Guards) *gin.Engine {
	t.Helper()
	limits := handler.UploadLimits{MaxFiles: 3, MaxFileBytes: 1 << 20}
	h := Handlers{
		Legacy:    handler.NewLegacyHandler(nil, nil, limits),
		Auth:      handler.NewAuthHandler(nil),
		Draft:     handler.NewDraftHandler(nil),
		Grievance: handler.NewGrievanceHandler(nil, nil, limits),
		Stream:    handler.NewStreamHandler(nil, nil, nil, handler.StreamConfig{}),
		System:    handler.NewSystemHandler(nil, "test", handler.Features{}, func() int { return 2 }),
	}

	engine := gin.New()
	RegisterLegacyRoutes(engine, h.Legacy)
	NewAPI(NewRouter(engine), h, guards).Setup()
	return engine
}

func serve(engine *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRegisterLegacyRoutes(t *testing.T) {
	engine := newTestAPI(t, Guards{Authenticate: fakeAuthenticate})

	w := serve(engine, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Backend running", w.Body.String())
}

func TestNewAPI_SecuredRoutesRequireToken(t *testing.T) {
	engine := newTestAPI(t, Guards{Authenticate: fakeAuthenticate})

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodPost, "/api/v1/auth/logout"},
		{http.MethodPost, "/api/v1/drafts"},
		{http.MethodPost, "/api/v1/grievances"},
		{http.MethodGet, "/api/v1/grievances/mine"},
		{http.MethodGet, "/api/v1/grievances/mine/stream"},
		{http.MethodGet, "/api/v1/grievances/mine/ws"},
		{http.MethodGet, "/api/v1/grievances/1b2c3d4e-5f60-4718-8293-a4b5c6d7e8f9"},
		{http.MethodGet, "/api/v1/grievances/1b2c3d4e-5f60-4718-8293-a4b5c6d7e8f9/attachment"},
		{http.MethodGet, "/api/v1/admin/grievances"},
		{http.MethodGet, "/api/v1/admin/grievances/stream"},
		{http.MethodGet, "/api/v1/admin/grievances/ws"},
		{http.MethodPut, "/api/v1/admin/grievances/1b2c3d4e-5f60-4718-8293-a4b5c6d7e8f9/status"},
		{http.MethodGet, "/api/v1/system/info"},
	}
	for _, tt := range routes {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(engine, tt.method, tt.path, "")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestNewAPI_AdminRoutesRequireAdmin(t *testing.T) {
	engine := newTestAPI(t, Guards{Authenticate: fakeAuthenticate})

	for _, path := range []string{
		"/api/v1/admin/grievances",
		"/api/v1/admin/grievances/stream",
		"/api/v1/admin/grievances/ws",
	} {
		w := serve(engine, http.MethodGet, path, "citizen")
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}
}

func TestNewAPI_SystemInfo(t *testing.T) {
	engine := newTestAPI(t, Guards{Authenticate: fakeAuthenticate})

	w := serve(engine, http.MethodGet, "/api/v1/system/info", "citizen")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"live_streams":2`)
}

func TestNewAPI_AuthRateLimitCoversPublicAuthOnly(t *testing.T) {
	limited := func(c *gin.Context) { c.AbortWithStatus(http.StatusTooManyRequests) }
	engine := newTestAPI(t, Guards{Authenticate: fakeAuthenticate, AuthRateLimit: limited})

	for _, path := range []string{"/api/v1/auth/register", "/api/v1/auth/login", "/api/v1/auth/refresh"} {
		w := serve(engine, http.MethodPost, path, "")
		assert.Equal(t, http.StatusTooManyRequests, w.Code, path)
	}

	w := serve(engine, http.MethodGet, "/api/v1/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewAPI_TracedRunsAfterAuthenticate(t *testing.T) {
	var sawUser string
	traced := func(c *gin.Context) {
		sawUser = middleware.GetJWTUserID(c)
		c.Next()
	}
	engine := newTestAPI(t, Guards{Authenticate: fakeAuthenticate, Traced: traced})

	w := serve(engine, http.MethodGet, "/api/v1/system/info", "admin")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1b2c3d4e-5f60-4718-8293-a4b5c6d7e8f9", sawUser)
}

func TestNewAPI_RouteTable(t *testing.T) {
	limits := handler.UploadLimits{MaxFiles: 1, MaxFileBytes: 1 << 10}
	h := Handlers{
		Auth:      handler.NewAuthHandler(nil),
		Draft:     handler.NewDraftHandler(nil),
		Grievance: handler.NewGrievanceHandler(nil, nil, limits),
		Stream:    handler.NewStreamHandler(nil, nil, nil, handler.StreamConfig{}),
		System:    handler.NewSystemHandler(nil, "test", handler.Features{}, nil),
	}
	routes := NewAPI(NewRouter(gin.New()), h, Guards{Authenticate: fakeAuthenticate}).Setup()

	assert.Len(t, routes, 17)
	assert.Contains(t, routes, RouteInfo{Group: "auth-public", Method: http.MethodPost, Path: "/api/v1/auth/login"})
	assert.Contains(t, routes, RouteInfo{Group: "grievances", Method: http.MethodPost, Path: "/api/v1/grievances"})
	assert.Contains(t, routes, RouteInfo{Group: "admin-grievances", Method: http.MethodPut, Path: "/api/v1/admin/grievances/:id/status"})
}
