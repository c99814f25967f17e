package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/giantswarm/llm-optimizer/internal/digest"
	mcptools "github.com/giantswarm/llm-optimizer/internal/mcp"
	"github.com/giantswarm/llm-optimizer/internal/server"
)

const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"
)

func newServeCmd() *cobra.Command {
	var (
		transport     string
		httpAddr      string
		httpEndpoint  string
		enableMetrics bool
		debug         bool

		// OAuth options (simplified from mcp-kubernetes).
		enableOAuth     bool
		oauthBaseURL    string
		oauthProvider   string
		dexIssuerURL    string
		dexClientID     string
		dexClientSecret string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server to expose the optimizer via the Model Context Protocol.

Tools: list_functions, optimize_function and get_outcomes. Only one
optimization runs at a time; concurrent requests are refused.

Supports multiple transport types:
  - stdio: Standard input/output (default, for IDE integration)
  - streamable-http: HTTP with streaming support (for remote access)

When using streamable-http transport, OAuth 2.1 authentication can be enabled
and Prometheus metrics are served on /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})))
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			check := cfg
			if check.RevertWinnerImmediately == nil {
				slog.Warn("revert_winner_immediately is not configured; optimize_function calls must pass revert_winner")
				keep := false
				check.RevertWinnerImmediately = &keep
			}
			if err := check.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			dir := jobsDir(cmd)

			digests, err := digest.Open(digest.Config{Dir: cfg.DigestDir, Logger: slog.Default()})
			if err != nil {
				return err
			}
			defer func() { _ = digests.Close() }()

			sc := &server.ServerContext{
				Config:    cfg,
				Digests:   digests,
				LLMClient: newLLMClient(cfg.LLM),
				JobsDir:   dir,
				Logger:    slog.Default(),
			}

			// Create MCP server.
			mcpSrv := mcpserver.NewMCPServer("llm-optimizer", rootCmd.Version,
				mcpserver.WithToolCapabilities(true),
			)

			if err := mcptools.RegisterTools(mcpSrv, sc); err != nil {
				return fmt.Errorf("failed to register MCP tools: %w", err)
			}

			// Set up graceful shutdown.
			shutdownCtx, cancel := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer cancel()

			switch transport {
			case transportStdio:
				return runStdioServer(mcpSrv)
			case transportStreamableHTTP:
				var metrics http.Handler
				if enableMetrics {
					handler, shutdownMetrics, err := server.NewMetricsHandler()
					if err != nil {
						return err
					}
					defer func() { _ = shutdownMetrics(context.Background()) }()
					metrics = handler
				}

				fmt.Printf("Starting llm-optimizer MCP server with %s transport...\n", transport)
				if enableOAuth {
					return runOAuthHTTPServer(mcpSrv, httpAddr, httpEndpoint, shutdownCtx, oauthConfig{
						baseURL:         oauthBaseURL,
						provider:        oauthProvider,
						dexIssuerURL:    dexIssuerURL,
						dexClientID:     dexClientID,
						dexClientSecret: dexClientSecret,
						metrics:         metrics,
					})
				}
				return runHTTPServer(mcpSrv, httpAddr, httpEndpoint, metrics, shutdownCtx)
			default:
				return fmt.Errorf("unsupported transport: %s (supported: stdio, streamable-http)", transport)
			}
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&transport, "transport", transportStdio, "Transport type: stdio or streamable-http")
	fs.StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http)")
	fs.StringVar(&httpEndpoint, "http-endpoint", "/mcp", "HTTP endpoint path (for streamable-http)")
	fs.BoolVar(&enableMetrics, "metrics", true, "Serve Prometheus metrics on /metrics (for streamable-http)")
	fs.String("output-dir", "results", "Directory for run outcomes")
	fs.String("digest-dir", "", "Directory for the digest store (in-memory if empty)")
	addLLMFlags(fs)
	fs.BoolVar(&debug, "debug", false, "Enable debug logging")

	// OAuth flags.
	fs.BoolVar(&enableOAuth, "enable-oauth", false, "Enable OAuth 2.1 authentication (for HTTP transport)")
	fs.StringVar(&oauthBaseURL, "oauth-base-url", "", "OAuth base URL (e.g. https://optimizer.example.com)")
	fs.StringVar(&oauthProvider, "oauth-provider", "dex", "OAuth provider: dex")
	fs.StringVar(&dexIssuerURL, "dex-issuer-url", "", "Dex OIDC issuer URL")
	fs.StringVar(&dexClientID, "dex-client-id", "", "Dex OAuth client ID")
	fs.StringVar(&dexClientSecret, "dex-client-secret", "", "Dex OAuth client secret")

	return cmd
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runHTTPServer(mcpSrv *mcpserver.MCPServer, addr, endpoint string, metrics http.Handler, ctx context.Context) error {
	httpSrv := server.NewHTTPServer(mcpSrv, endpoint, metrics)

	fmt.Printf("  HTTP endpoint: %s\n", endpoint)
	fmt.Printf("  Health: /healthz\n")
	if metrics != nil {
		fmt.Printf("  Metrics: /metrics\n")
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpSrv.Start(addr); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Println("Shutdown signal received, stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	fmt.Println("HTTP server stopped")
	return nil
}

type oauthConfig struct {
	baseURL         string
	provider        string
	dexIssuerURL    string
	dexClientID     string
	dexClientSecret string
	metrics         http.Handler
}

func runOAuthHTTPServer(mcpSrv *mcpserver.MCPServer, addr, endpoint string, ctx context.Context, cfg oauthConfig) error {
	// Load credentials from env vars if not set via flags.
	if cfg.dexIssuerURL == "" {
		cfg.dexIssuerURL = os.Getenv("DEX_ISSUER_URL")
	}
	if cfg.dexClientID == "" {
		cfg.dexClientID = os.Getenv("DEX_CLIENT_ID")
	}
	if cfg.dexClientSecret == "" {
		cfg.dexClientSecret = os.Getenv("DEX_CLIENT_SECRET")
	}

	if cfg.baseURL == "" {
		return fmt.Errorf("--oauth-base-url is required when --enable-oauth is set")
	}
	if cfg.dexIssuerURL == "" {
		return fmt.Errorf("dex issuer URL is required (--dex-issuer-url or DEX_ISSUER_URL)")
	}
	if cfg.dexClientID == "" {
		return fmt.Errorf("dex client ID is required (--dex-client-id or DEX_CLIENT_ID)")
	}
	if cfg.dexClientSecret == "" {
		return fmt.Errorf("dex client secret is required (--dex-client-secret or DEX_CLIENT_SECRET)")
	}

	oauthSrv, err := server.NewOAuthHTTPServer(mcpSrv, endpoint, server.OAuthConfig{
		BaseURL:         cfg.baseURL,
		Provider:        cfg.provider,
		DexIssuerURL:    cfg.dexIssuerURL,
		DexClientID:     cfg.dexClientID,
		DexClientSecret: cfg.dexClientSecret,
		MetricsHandler:  cfg.metrics,
		Logger:          slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("failed to create OAuth HTTP server: %w", err)
	}

	fmt.Printf("OAuth-enabled HTTP server starting on %s\n", addr)
	fmt.Printf("  Base URL: %s\n", cfg.baseURL)
	fmt.Printf("  Provider: %s\n", cfg.provider)
	fmt.Printf("  MCP endpoint: %s (requires OAuth Bearer token)\n", endpoint)
	fmt.Printf("  Health: /healthz\n")
	if cfg.metrics != nil {
		fmt.Printf("  Metrics: /metrics\n")
	}
	fmt.Printf("  OAuth endpoints:\n")
	fmt.Printf("    - Authorization Server Metadata: /.well-known/oauth-authorization-server\n")
	fmt.Printf("    - Protected Resource Metadata: /.well-known/oauth-protected-resource\n")
	fmt.Printf("    - Client Registration: /oauth/register\n")
	fmt.Printf("    - Authorization: /oauth/authorize\n")
	fmt.Printf("    - Token: /oauth/token\n")
	fmt.Printf("    - Callback: /oauth/callback\n")

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := oauthSrv.Start(addr); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Println("Shutdown signal received, stopping OAuth HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := oauthSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down OAuth HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("OAuth HTTP server error: %w", err)
		}
	}

	fmt.Println("OAuth HTTP server stopped")
	return nil
}
