package router

import (
	"github.com/gin-gonic/gin"
	"github.com/grievancenet/backend/internal/interfaces/http/handler"
	"github.com/grievancenet/backend/internal/interfaces/http/middleware"
)

// Handlers are the controllers the API routes dispatch to
type Handlers struct {
	Legacy    *handler.LegacyHandler
	Auth      *handler.AuthHandler
	Draft     *handler.DraftHandler
	Grievance *handler.GrievanceHandler
	Stream    *handler.StreamHandler
	System    *handler.SystemHandler
}

// Guards are the middleware placed in front of route groups
type Guards struct {
	// Authenticate validates the bearer token. Required.
	Authenticate gin.HandlerFunc
	// AuthRateLimit throttles register, login and refresh. Optional.
	AuthRateLimit gin.HandlerFunc
	// Traced runs after Authenticate to tag spans with the caller. Optional.
	Traced gin.HandlerFunc
}

// RegisterLegacyRoutes mounts the unversioned routes the first web client
// used. They answer bare JSON instead of the envelope.
func RegisterLegacyRoutes(engine *gin.Engine, h *handler.LegacyHandler) {
	engine.GET("/", h.Root)
	engine.POST("/chat", h.Chat)
	engine.POST("/send-email", h.SendEmail)
}

// NewAPI builds the versioned API groups on r. Setup must still be called.
func NewAPI(r *Router, h Handlers, g Guards) *Router {
	secured := []gin.HandlerFunc{g.Authenticate}
	if g.Traced != nil {
		secured = append(secured, g.Traced)
	}

	authGroup := NewDomainGroup("auth", "/auth")
	public := authGroup.Group("auth-public", "")
	if g.AuthRateLimit != nil {
		public.Use(g.AuthRateLimit)
	}
	public.POST("/register", h.Auth.Register).
		POST("/login", h.Auth.Login).
		POST("/refresh", h.Auth.Refresh)
	authGroup.Group("auth-session", "").
		Use(secured...).
		GET("/me", h.Auth.Me).
		POST("/logout", h.Auth.Logout)

	drafts := NewDomainGroup("drafts", "/drafts").
		Use(secured...).
		POST("", h.Draft.Create)

	grievances := NewDomainGroup("grievances", "/grievances").
		Use(secured...).
		POST("", h.Grievance.Create).
		GET("/mine", h.Grievance.ListMine).
		GET("/mine/stream", h.Stream.MineSSE).
		GET("/mine/ws", h.Stream.MineWS).
		GET("/:id", h.Grievance.Get).
		GET("/:id/attachment", h.Grievance.AttachmentLink)

	admin := NewDomainGroup("admin", "/admin").
		Use(secured...).
		Use(middleware.RequireAdmin())
	admin.Group("admin-grievances", "/grievances").
		GET("", h.Grievance.ListAll).
		GET("/stream", h.Stream.AllSSE).
		GET("/ws", h.Stream.AllWS).
		PUT("/:id/status", h.Grievance.UpdateStatus)

	system := NewDomainGroup("system", "/system").
		Use(secured...).
		GET("/info", h.System.GetSystemInfo)

	return r.Register(authGroup).
		Register(drafts).
		Register(grievances).
		Register(admin).
		Register(system)
}
