package httpserver

import (
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	minWriteTimeout   = 30 * time.Second
	idleTimeout       = 60 * time.Second
)

// New builds the HTTP server. The write timeout leaves room for a document
// session to wait on its collaborators for the full collaboratorTimeout.
func New(addr string, handler http.Handler, collaboratorTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      WriteTimeout(collaboratorTimeout),
		IdleTimeout:       idleTimeout,
	}
}

// WriteTimeout returns the response deadline for a collaborator budget.
func WriteTimeout(collaboratorTimeout time.Duration) time.Duration {
	if d := collaboratorTimeout + 10*time.Second; d > minWriteTimeout {
		return d
	}
	return minWriteTimeout
}
