// Package router assembles the versioned API from domain route groups.
package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// RouteRegistrar mounts its routes on a router group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup) []RouteInfo
}

// RouteInfo describes one mounted route
type RouteInfo struct {
	Group  string
	Method string
	Path   string
}

// Router mounts registrars under /api/<version>
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion sets the version segment of the prefix
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a Router for engine. The default version is v1.
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues a registrar for Setup
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// BasePath returns the versioned prefix, e.g. "/api/v1"
func (r *Router) BasePath() string {
	return "/api/" + r.apiVersion
}

// Setup mounts every registrar and returns the routes it added
func (r *Router) Setup() []RouteInfo {
	api := r.engine.Group(r.BasePath())
	var routes []RouteInfo
	for _, registrar := range r.registrars {
		routes = append(routes, registrar.RegisterRoutes(api)...)
	}
	return routes
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// DomainGroup collects the routes of one API area under a prefix.
// Middleware added with Use applies to the group's routes and subgroups.
type DomainGroup struct {
	name       string
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
	subgroups  []*DomainGroup
}

// NewDomainGroup creates an empty group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Name returns the group name
func (dg *DomainGroup) Name() string { return dg.name }

// Prefix returns the path prefix relative to the parent
func (dg *DomainGroup) Prefix() string { return dg.prefix }

// Use appends middleware
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

// GET adds a GET route
func (dg *DomainGroup) GET(p string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodGet, p, handlers)
}

// POST adds a POST route
func (dg *DomainGroup) POST(p string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPost, p, handlers)
}

// PUT adds a PUT route
func (dg *DomainGroup) PUT(p string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPut, p, handlers)
}

func (dg *DomainGroup) handle(method, p string, handlers []gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, route{method: method, path: p, handlers: handlers})
	return dg
}

// Group creates a subgroup that inherits this group's prefix and middleware
func (dg *DomainGroup) Group(name, prefix string) *DomainGroup {
	sub := NewDomainGroup(name, prefix)
	dg.subgroups = append(dg.subgroups, sub)
	return sub
}

// RegisterRoutes mounts the group on rg
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) []RouteInfo {
	group := rg.Group(dg.prefix, dg.middleware...)

	infos := make([]RouteInfo, 0, len(dg.routes))
	for _, rt := range dg.routes {
		group.Handle(rt.method, rt.path, rt.handlers...)
		infos = append(infos, RouteInfo{
			Group:  dg.name,
			Method: rt.method,
			Path:   joinPath(group.BasePath(), rt.path),
		})
	}
	for _, sub := range dg.subgroups {
		infos = append(infos, sub.RegisterRoutes(group)...)
	}
	return infos
}

func joinPath(base, p string) string {
	if p == "" {
		return base
	}
	return path.Join(base, p)
}
