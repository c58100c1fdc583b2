package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout = 60 * time.Second
	AIRequestTimeout   = 2 * time.Minute
	ShutdownTimeout    = 30 * time.Second
	ReadHeaderTimeout  = 10 * time.Second
)

// Size constants
const (
	// DefaultMaxUploadBytes is the per-file upload limit (5 MiB)
	DefaultMaxUploadBytes int64 = 5 * 1024 * 1024
	// MultipartMemory bounds the in-memory part of multipart parsing
	MultipartMemory int64 = 32 << 20
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self'; img-src 'self' data: blob:;"
)

// Cache lifetimes used by the cache policy middleware
const (
	CacheFirstMaxAge = time.Hour
)
