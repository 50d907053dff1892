package httpserver

import (
	"net/http"
	"time"
)

// New builds the registry's HTTP server. Read and write timeouts come from
// configuration; batch verification is the slowest request and bounds the
// sensible write timeout.
func New(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       2 * readTimeout,
	}
}
