package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"fitmarket-settlement/internal/domain"
	"fitmarket-settlement/internal/domain/model"
	"fitmarket-settlement/internal/domain/ports/repository"
	"fitmarket-settlement/internal/infra/logging"
	"fitmarket-settlement/internal/usecase"
)

type reqCtx struct {
	ctx       context.Context
	paymentID string
}

// transitionHandler wraps the single-payment state transitions, which all
// share the same request/response shape.
func (s *Server) transitionHandler(fn func(reqCtx) (interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ctx := logging.WithPaymentID(r.Context(), id)
		out, err := fn(reqCtx{ctx: ctx, paymentID: id})
		if err != nil {
			s.writeError(ctx, w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type createPaymentMembershipRequest struct {
	UserID string `json:"user_id"`
	PlanID string `json:"plan_id"`
	Amount string `json:"amount"`
	Method string `json:"method"`
}

func (s *Server) handleCreatePaymentMembership(w http.ResponseWriter, r *http.Request) {
	var req createPaymentMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		http.Error(w, "Invalid amount", http.StatusBadRequest)
		return
	}
	method, err := model.ParsePaymentMethod(req.Method)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	ms, p, err := s.memberships.CreatePaymentMembership(r.Context(), req.UserID, req.PlanID, amount, method)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, membershipResponse{Membership: ms, Payment: p})
}

type createContractMembershipRequest struct {
	UserID            string  `json:"user_id"`
	TrainerID         string  `json:"trainer_id"`
	StartDate         string  `json:"start_date"` // YYYY-MM-DD
	EndDate           string  `json:"end_date"`
	Details           string  `json:"details"`
	Amount            *string `json:"amount,omitempty"`
	Method            *string `json:"method,omitempty"`
	ServiceContractID *string `json:"service_contract_id,omitempty"`
}

type membershipResponse struct {
	Membership *model.Membership `json:"membership"`
	Payment    *model.Payment    `json:"payment,omitempty"`
}

func (s *Server) handleCreateContractMembership(w http.ResponseWriter, r *http.Request) {
	var req createContractMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		http.Error(w, "Invalid start_date", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.DateOnly, req.EndDate)
	if err != nil {
		http.Error(w, "Invalid end_date", http.StatusBadRequest)
		return
	}

	var payment *usecase.ContractPaymentInput
	if req.Amount != nil && req.Method != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			http.Error(w, "Invalid amount", http.StatusBadRequest)
			return
		}
		method, err := model.ParsePaymentMethod(*req.Method)
		if err != nil {
			s.writeError(r.Context(), w, err)
			return
		}
		payment = &usecase.ContractPaymentInput{Amount: amount, Method: method, ServiceContractID: req.ServiceContractID}
	}

	ms, p, err := s.memberships.CreateContractMembership(r.Context(), req.UserID, req.TrainerID, start, end, req.Details, payment)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, membershipResponse{Membership: ms, Payment: p})
}

func (s *Server) handleRenewMembership(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := logging.WithMembershipID(r.Context(), id)
	ms, err := s.memberships.RenewMembership(ctx, id)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, membershipResponse{Membership: ms})
}

func (s *Server) handleReactivateMembership(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	method, err := model.ParsePaymentMethod(req.Method)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	ctx := logging.WithUserID(r.Context(), req.UserID)
	ms, p, err := s.memberships.ReactivateExpiredMembership(ctx, req.UserID, method)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, membershipResponse{Membership: ms, Payment: p})
}

func (s *Server) handleCompletePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TransactionID == "" {
		http.Error(w, "transaction_id is required", http.StatusBadRequest)
		return
	}
	p, err := s.settlement.CompletePayment(r.Context(), chi.URLParam(r, "id"), req.TransactionID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	p, err := s.settlement.MarkObserved(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	p, err := s.settlement.CancelPayment(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.reports.Summary(r.Context())
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleTrainerSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.reports.TrainerSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	f, err := paymentFilterFromQuery(r)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	page, err := s.reports.ListPayments(r.Context(), f)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	f, err := paymentFilterFromQuery(r)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="payments.csv"`)
	if err := s.reports.ExportCSV(r.Context(), f, w); err != nil {
		// Headers are gone; all we can do is log.
		s.log.Error().Err(err).Msg("csv export aborted")
	}
}

func paymentFilterFromQuery(r *http.Request) (repository.PaymentFilter, error) {
	var f repository.PaymentFilter
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		st, err := model.ParsePaymentStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}
	if v := q.Get("method"); v != "" {
		m, err := model.ParsePaymentMethod(v)
		if err != nil {
			return f, err
		}
		f.Method = &m
	}
	if v := q.Get("trainer_id"); v != "" {
		f.TrainerID = &v
	}
	if v := q.Get("user_id"); v != "" {
		f.UserID = &v
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return f, domain.ErrValidation
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return f, domain.ErrValidation
		}
		f.To = &t
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, domain.ErrValidation
		}
		f.Offset = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, domain.ErrValidation
		}
		f.Limit = n
	}
	return f, nil
}

// writeError maps domain errors onto HTTP status codes; the engine itself has
// no HTTP awareness.
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logging.With(ctx, s.log).Error().Err(err).Msg("internal error")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
