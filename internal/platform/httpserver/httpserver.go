package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. Verification and registry calls are small
// JSON exchanges; only batch registration does real work per request, so
// the write timeout is sized for that and everything else is kept tight.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
