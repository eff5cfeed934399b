package httpserver

import (
	"net/http"
	"time"

	"family-tree-go/internal/config"
)

// New builds the API server. The write timeout leaves room for the request
// timeout middleware to answer first.
func New(cfg config.Config, handler http.Handler) *http.Server {
	writeTimeout := 30 * time.Second
	if cfg.HTTP.RequestTimeout > 0 {
		writeTimeout = cfg.HTTP.RequestTimeout + 5*time.Second
	}
	return &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
}
