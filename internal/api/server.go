package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AdrienSalicis/WindDatas/internal/store"
)

// Server exposes the stored sites, series and comparison results read-only.
type Server struct {
	store *store.Store
	port  string
}

func NewServer(store *store.Store, port string) *Server {
	return &Server{store: store, port: port}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/sites", s.handleSites)
	mux.HandleFunc("GET /api/sites/{site}/stations", s.handleSiteStations)
	mux.HandleFunc("GET /api/sites/{site}/sources", s.handleSources)
	mux.HandleFunc("GET /api/sites/{site}/series/{source}", s.handleSeries)
	mux.HandleFunc("GET /api/sites/{site}/comparisons", s.handleComparisons)
	mux.HandleFunc("GET /api/sites/{site}/descriptives", s.handleDescriptives)
	mux.HandleFunc("GET /api/batches", s.handleBatches)
	mux.HandleFunc("GET /api/ingest/health", s.handleIngestHealth)
	mux.HandleFunc("GET /api/ingest/errors", s.handleIngestErrors)
	mux.HandleFunc("GET /api/payloads/stats", s.handlePayloadStats)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
