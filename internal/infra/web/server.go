package web

import (
	"net/http"

	"github.com/pranit-garg/Dispatch/internal/domain/ports/adapter"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/repository"
	"github.com/pranit-garg/Dispatch/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server is the HTTP surface of the coordinator: quoting, job
// submission and status for requesters, plus a token-gated operator
// view of settlements.
type Server struct {
	quote       usecase.QuoteUseCase
	jobs        usecase.JobUseCase
	pairings    usecase.PairingUseCase
	settlements repository.SettlementRepository
	gate        adapter.PaymentGate
	auth        *AuthManager
	adminKey    string
	log         *zerolog.Logger
}

func NewServer(
	quote usecase.QuoteUseCase,
	jobs usecase.JobUseCase,
	pairings usecase.PairingUseCase,
	settlements repository.SettlementRepository,
	gate adapter.PaymentGate,
	auth *AuthManager,
	adminKey string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		quote:       quote,
		jobs:        jobs,
		pairings:    pairings,
		settlements: settlements,
		gate:        gate,
		auth:        auth,
		adminKey:    adminKey,
		log:         logger,
	}
}

// Router builds the chi mux with all routes registered.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/quote", s.quoteHandler())
		r.Post("/jobs", s.jobSubmitHandler())
		r.Get("/jobs/{id}", s.jobGetHandler())
		r.Post("/jobs/{id}/cancel", s.jobCancelHandler())
		r.Post("/pairings", s.pairingCreateHandler())
		r.Post("/pairings/claim", s.pairingClaimHandler())
		r.Get("/pairings/{code}", s.pairingGetHandler())

		r.Post("/admin/session", s.loginHandler())
		r.Group(func(r chi.Router) {
			r.Use(s.requireOperator)
			r.Get("/admin/settlements/{jobID}", s.settlementGetHandler())
		})
	})
	return r
}

// requireOperator rejects requests without a valid operator session.
func (s *Server) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
