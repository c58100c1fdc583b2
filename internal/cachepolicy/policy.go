// Package cachepolicy decides how each route may be cached, both as
// Cache-Control headers on the server and as the lookup order used by the
// API client.
package cachepolicy

import (
	"fmt"
	"net/http"
	"strings"

	"learnapp/internal/config"

	"github.com/gin-gonic/gin"
)

// Strategy is a caching strategy for one request.
type Strategy string

const (
	// NetworkOnly never serves or stores a cached copy.
	NetworkOnly Strategy = "network-only"
	// NetworkFirst asks the server and falls back to the last good copy
	// when the server cannot be reached.
	NetworkFirst Strategy = "network-first"
	// CacheFirst serves a fresh cached copy without asking the server.
	CacheFirst Strategy = "cache-first"
)

// cacheableAPIPrefixes change only on redeploy.
var cacheableAPIPrefixes = []string{
	"/api/questions/config",
	"/api/questions/sample/",
}

// networkOnlyPaths must always reflect the live process.
var networkOnlyPaths = map[string]bool{
	"/health": true,
}

// Select picks the strategy for a request.
func Select(method, path string) Strategy {
	if method != http.MethodGet {
		return NetworkOnly
	}
	if networkOnlyPaths[path] {
		return NetworkOnly
	}
	if strings.HasPrefix(path, "/api/") || path == "/api" {
		for _, prefix := range cacheableAPIPrefixes {
			if strings.HasPrefix(path, prefix) {
				return CacheFirst
			}
		}
		return NetworkFirst
	}
	return CacheFirst
}

// CacheControl returns the Cache-Control header value for s.
func (s Strategy) CacheControl() string {
	switch s {
	case CacheFirst:
		return fmt.Sprintf("public, max-age=%d", int(config.CacheFirstMaxAge.Seconds()))
	case NetworkFirst:
		return "no-cache"
	default:
		return "no-store"
	}
}

// Middleware sets Cache-Control on every response. It must run before the
// handler writes headers.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", Select(c.Request.Method, c.Request.URL.Path).CacheControl())
		c.Next()
	}
}
