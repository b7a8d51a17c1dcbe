package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/kgmaker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve extraction, import and node queries over HTTP",
	Long: `Start an HTTP server.

  POST /extract        run an extraction, streaming events as JSON lines
  POST /import         run an import, streaming events as JSON lines
  GET  /nodes          list nodes, or one node and its neighbours
  GET  /nodes/similar  nearest nodes to ?q= by embedding
  GET  /health

KGMAKER_API_KEY enables bearer-token auth; KGMAKER_CORS_ORIGINS is a
comma-separated list of allowed origins, or "*".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		p, err := kgmaker.New(cfg)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:         addr,
			Handler:      newServer(p, os.Getenv("KGMAKER_API_KEY"), os.Getenv("KGMAKER_CORS_ORIGINS")),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0, // extraction streams for as long as it runs
			IdleTimeout:  120 * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			slog.Info("server starting", "addr", addr)
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-cmd.Context().Done():
		}

		slog.Info("shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		slog.Info("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	rootCmd.AddCommand(serveCmd)
}

// newServer builds the routed handler with its middleware chain.
func newServer(p *kgmaker.Pipeline, apiKey, corsOrigins string) http.Handler {
	h := newHandler(p)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /extract", h.handleExtract)
	mux.HandleFunc("POST /import", h.handleImport)
	mux.HandleFunc("GET /nodes", h.handleNodes)
	mux.HandleFunc("GET /nodes/similar", h.handleSimilar)
	mux.HandleFunc("GET /health", h.handleHealth)

	return chain(mux, recoverPanics, allowOrigins(corsOrigins), requireKey(apiKey), logRequests)
}
