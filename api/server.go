package api

import (
	"context"
	"net/http"
	"time"

	"hattery/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// Server is the thin HTTP host around the engine. It translates requests
// into engine calls and error kinds into status codes; it holds no campaign
// state of its own.
type Server struct {
	campaigns service.CampaignService
	cache     *StatusCache
	httpSrv   *http.Server
}

// NewServer creates a new API server. cache may be nil to serve all status
// reads directly from the engine.
func NewServer(addr string, campaigns service.CampaignService, cache *StatusCache) *Server {
	s := &Server{
		campaigns: campaigns,
		cache:     cache,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)

	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", s.handleOpenCampaign)
		r.Get("/", s.handleListCampaigns)
		r.Route("/{campaignID}", func(r chi.Router) {
			r.Get("/", s.handleCampaignStatus)
			r.Get("/card.svg", s.handleCampaignCard)
			r.Get("/positions", s.handleCampaignPositions)
			r.Post("/wagers", s.handlePlaceWager)
			r.Post("/resolve", s.handleResolve)
			r.Post("/cancel", s.handleCancel)
		})
	})

	r.Route("/positions/{positionID}", func(r chi.Router) {
		r.Get("/", s.handleGetPosition)
		r.Post("/claim", s.handleClaim)
	})

	r.Get("/participants/{participantID}/positions", s.handleListPositions)

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Start serves HTTP until the context is cancelled, then shuts down
// gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.httpSrv.Addr).Info("HTTP server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
