package handlers

import (
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
)

// RouteInfo represents information about a single route
type RouteInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// String renders the route as "METHOD /path".
func (r RouteInfo) String() string {
	return r.Method + " " + r.Path
}

// RouteListingHandler keeps the list of registered routes for the API info
// and not-found responses.
type RouteListingHandler struct {
	routes []RouteInfo
}

// NewRouteListingHandler creates an empty route listing.
func NewRouteListingHandler() *RouteListingHandler {
	return &RouteListingHandler{routes: []RouteInfo{}}
}

// CollectRoutes extracts all routes from a Gin engine. Call it after every
// route is registered.
func (h *RouteListingHandler) CollectRoutes(engine *gin.Engine) {
	h.routes = []RouteInfo{}
	for _, route := range engine.Routes() {
		if strings.HasPrefix(route.Path, "/debug/") {
			continue
		}
		h.routes = append(h.routes, RouteInfo{Method: route.Method, Path: route.Path})
	}

	sort.Slice(h.routes, func(i, j int) bool {
		if h.routes[i].Path == h.routes[j].Path {
			return h.routes[i].Method < h.routes[j].Method
		}
		return h.routes[i].Path < h.routes[j].Path
	})
}

// Routes returns the collected routes.
func (h *RouteListingHandler) Routes() []RouteInfo {
	return h.routes
}

// Endpoints returns the routes as "METHOD /path" strings.
func (h *RouteListingHandler) Endpoints() []string {
	out := make([]string, 0, len(h.routes))
	for _, r := range h.routes {
		out = append(out, r.String())
	}
	return out
}
