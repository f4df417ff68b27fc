package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"fitmarket-settlement/internal/usecase"
)

// Server exposes the settlement engine to its collaborators: the client,
// trainer, and admin consoles plus the payment-gateway callback. It holds no
// business logic; it decodes requests, calls a use case, and maps domain
// errors to status codes.
type Server struct {
	settlement  usecase.SettlementUseCase
	memberships usecase.MembershipUseCase
	reports     usecase.ReportUseCase
	log         *zerolog.Logger
}

func NewServer(
	settlement usecase.SettlementUseCase,
	memberships usecase.MembershipUseCase,
	reports usecase.ReportUseCase,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{settlement: settlement, memberships: memberships, reports: reports, log: &l}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(s.log), Recover(s.log), RequestLog(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Membership provisioning flow
		r.Post("/memberships/plan", s.handleCreatePaymentMembership)
		r.Post("/memberships/contract", s.handleCreateContractMembership)
		r.Post("/memberships/{id}/renew", s.handleRenewMembership)
		r.Post("/memberships/reactivate", s.handleReactivateMembership)

		// Client console
		r.Post("/payments/{id}/approve", s.transitionHandler(func(ctx reqCtx) (interface{}, error) {
			return s.settlement.ApproveByClient(ctx.ctx, ctx.paymentID)
		}))

		// Trainer console
		r.Post("/payments/{id}/request-collection", s.transitionHandler(func(ctx reqCtx) (interface{}, error) {
			return s.settlement.RequestCollection(ctx.ctx, ctx.paymentID)
		}))
		r.Get("/trainers/{id}/summary", s.handleTrainerSummary)

		// Admin console
		r.Post("/payments/{id}/collect", s.transitionHandler(func(ctx reqCtx) (interface{}, error) {
			return s.settlement.MarkPaidToTrainer(ctx.ctx, ctx.paymentID)
		}))
		r.Post("/payments/{id}/observe", s.handleObserve)
		r.Post("/payments/{id}/release", s.transitionHandler(func(ctx reqCtx) (interface{}, error) {
			return s.settlement.ReleaseObserved(ctx.ctx, ctx.paymentID)
		}))
		r.Post("/payments/{id}/cancel", s.handleCancel)
		r.Get("/summary", s.handleSummary)
		r.Get("/payments", s.handleListPayments)
		r.Get("/payments/export", s.handleExportCSV)

		// Gateway callback
		r.Post("/payments/{id}/complete", s.handleCompletePayment)
	})
	return r
}

// ListenAndServe runs the HTTP server until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("http server listening")
	return srv.ListenAndServe()
}
