// Package server wires HTTP handlers into a ServeMux for the chat relay via
// routing helpers.
package server

import (
	"log/slog"
	"net/http"

	"github.com/Tyrowin/directchat/internal/chat"
)

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
// It sets up handlers for registration, the chat WebSocket endpoint and health checks.
func SetupRoutes(svc *chat.Service, logger *slog.Logger) *http.ServeMux {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/register", RegisterHandler(svc, logger))
	mux.HandleFunc("/chat", ChatHandler(svc, logger))
	mux.HandleFunc("/health", HealthHandler(svc, logger))
	return mux
}
