package server

import (
	"context"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// HTTPServer serves MCP over streamable HTTP without authentication.
type HTTPServer struct {
	mcpServer   *mcpserver.MCPServer
	mcpEndpoint string
	metrics     http.Handler
	httpServer  *http.Server
}

// NewHTTPServer creates an unauthenticated HTTP server for MCP. A nil
// metrics handler disables /metrics.
func NewHTTPServer(mcpSrv *mcpserver.MCPServer, mcpEndpoint string, metrics http.Handler) *HTTPServer {
	return &HTTPServer{mcpServer: mcpSrv, mcpEndpoint: mcpEndpoint, metrics: metrics}
}

// Start starts the HTTP server.
func (s *HTTPServer) Start(addr string) error {
	mux := http.NewServeMux()
	mux.Handle(s.mcpEndpoint, mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath(s.mcpEndpoint),
	))
	registerOperationalRoutes(mux, s.metrics)

	s.httpServer = newHTTPServer(addr, mux)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// registerOperationalRoutes adds the unauthenticated health and metrics routes.
func registerOperationalRoutes(mux *http.ServeMux, metrics http.Handler) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}
}
