// Package httpserver builds the gateway's HTTP server with timeouts suited
// to short auth round trips.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server for the given handler. Callers own Shutdown.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
