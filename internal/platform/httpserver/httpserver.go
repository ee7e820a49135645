package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with defaults sized for this service: search
// requests fan out to registry backends, so write timeouts stay generous
// while header reads are kept tight.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
