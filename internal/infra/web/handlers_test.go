//go:build !integration

package web

import (
	"context"
	"encoding/csv"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fitmarket-settlement/internal/domain"
	"fitmarket-settlement/internal/domain/model"
	"fitmarket-settlement/internal/domain/ports/repository"
	"fitmarket-settlement/internal/usecase"
)

// --- Mock use cases ---

type mockSettlementUC struct {
	usecase.SettlementUseCase // embed for forward compatibility

	ApproveByClientFunc func(ctx context.Context, paymentID string) (*model.Payment, error)
	CompletePaymentFunc func(ctx context.Context, paymentID, transactionID string) (*model.Payment, error)
	CancelPaymentFunc   func(ctx context.Context, paymentID, reason string) (*model.Payment, error)
}

func (m *mockSettlementUC) ApproveByClient(ctx context.Context, paymentID string) (*model.Payment, error) {
	return m.ApproveByClientFunc(ctx, paymentID)
}

func (m *mockSettlementUC) CompletePayment(ctx context.Context, paymentID, transactionID string) (*model.Payment, error) {
	return m.CompletePaymentFunc(ctx, paymentID, transactionID)
}

func (m *mockSettlementUC) CancelPayment(ctx context.Context, paymentID, reason string) (*model.Payment, error) {
	return m.CancelPaymentFunc(ctx, paymentID, reason)
}

type mockMembershipUC struct {
	usecase.MembershipUseCase

	CreatePaymentMembershipFunc func(ctx context.Context, userID, planID string, amount decimal.Decimal, method model.PaymentMethod) (*model.Membership, *model.Payment, error)
}

func (m *mockMembershipUC) CreatePaymentMembership(ctx context.Context, userID, planID string, amount decimal.Decimal, method model.PaymentMethod) (*model.Membership, *model.Payment, error) {
	return m.CreatePaymentMembershipFunc(ctx, userID, planID, amount, method)
}

type mockReportUC struct {
	usecase.ReportUseCase

	ExportCSVFunc func(ctx context.Context, f repository.PaymentFilter, w io.Writer) error
}

func (m *mockReportUC) ExportCSV(ctx context.Context, f repository.PaymentFilter, w io.Writer) error {
	return m.ExportCSVFunc(ctx, f, w)
}

func newTestServer(settlement *mockSettlementUC, memberships *mockMembershipUC, reports *mockReportUC) *Server {
	logger := zerolog.New(io.Discard)
	return NewServer(settlement, memberships, reports, &logger)
}

// --- Tests ---

func TestServer_ErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"not found maps to 404", domain.ErrNotFound, http.StatusNotFound},
		{"invalid state maps to 409", domain.ErrInvalidState, http.StatusConflict},
		{"conflict maps to 409", domain.ErrConflict, http.StatusConflict},
		{"validation maps to 400", domain.ErrValidation, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			settlement := &mockSettlementUC{
				ApproveByClientFunc: func(ctx context.Context, paymentID string) (*model.Payment, error) {
					return nil, tc.err
				},
			}
			srv := newTestServer(settlement, &mockMembershipUC{}, &mockReportUC{})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/pay-1/approve", nil)
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Errorf("expected %d, got %d", tc.wantCode, rec.Code)
			}
		})
	}
}

func TestServer_ApprovePayment(t *testing.T) {
	cs := model.CollectionAvailable
	settlement := &mockSettlementUC{
		ApproveByClientFunc: func(ctx context.Context, paymentID string) (*model.Payment, error) {
			if paymentID != "pay-1" {
				t.Errorf("expected payment id pay-1, got %s", paymentID)
			}
			return &model.Payment{ID: paymentID, Status: model.PaymentStatusCompleted, CollectionStatus: &cs}, nil
		},
	}
	srv := newTestServer(settlement, &mockMembershipUC{}, &mockReportUC{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/pay-1/approve", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "AVAILABLE_FOR_COLLECTION") {
		t.Errorf("response should carry the new collection status: %s", rec.Body.String())
	}
}

func TestServer_CreatePaymentMembership(t *testing.T) {
	t.Run("happy path returns 201", func(t *testing.T) {
		memberships := &mockMembershipUC{
			CreatePaymentMembershipFunc: func(ctx context.Context, userID, planID string, amount decimal.Decimal, method model.PaymentMethod) (*model.Membership, *model.Payment, error) {
				if userID != "client-1" || planID != "plan-1" {
					t.Errorf("unexpected args: %s %s", userID, planID)
				}
				if !amount.Equal(decimal.RequireFromString("29.90")) {
					t.Errorf("unexpected amount %s", amount)
				}
				return &model.Membership{ID: "ms-1"}, &model.Payment{ID: "pay-1"}, nil
			},
		}
		srv := newTestServer(&mockSettlementUC{}, memberships, &mockReportUC{})

		body := `{"user_id":"client-1","plan_id":"plan-1","amount":"29.90","method":"CREDIT_CARD"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/memberships/plan", strings.NewReader(body))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("bad amount returns 400 before the use case runs", func(t *testing.T) {
		memberships := &mockMembershipUC{
			CreatePaymentMembershipFunc: func(ctx context.Context, userID, planID string, amount decimal.Decimal, method model.PaymentMethod) (*model.Membership, *model.Payment, error) {
				t.Fatal("use case must not be called")
				return nil, nil, nil
			},
		}
		srv := newTestServer(&mockSettlementUC{}, memberships, &mockReportUC{})

		body := `{"user_id":"client-1","plan_id":"plan-1","amount":"not-a-number","method":"CREDIT_CARD"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/memberships/plan", strings.NewReader(body))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestServer_CompletePayment(t *testing.T) {
	t.Run("requires a transaction id", func(t *testing.T) {
		srv := newTestServer(&mockSettlementUC{}, &mockMembershipUC{}, &mockReportUC{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/pay-1/complete", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("passes the gateway reference through", func(t *testing.T) {
		settlement := &mockSettlementUC{
			CompletePaymentFunc: func(ctx context.Context, paymentID, transactionID string) (*model.Payment, error) {
				if transactionID != "GW-1" {
					t.Errorf("expected GW-1, got %s", transactionID)
				}
				return &model.Payment{ID: paymentID, Status: model.PaymentStatusCompleted}, nil
			},
		}
		srv := newTestServer(settlement, &mockMembershipUC{}, &mockReportUC{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/pay-1/complete", strings.NewReader(`{"transaction_id":"GW-1"}`))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestServer_ListPayments_RejectsUnknownStatus(t *testing.T) {
	reports := &mockReportUC{}
	srv := newTestServer(&mockSettlementUC{}, &mockMembershipUC{}, reports)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments?status=BOGUS", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown status filter, got %d", rec.Code)
	}
}

func TestServer_ExportCSV(t *testing.T) {
	reports := &mockReportUC{
		ExportCSVFunc: func(ctx context.Context, f repository.PaymentFilter, w io.Writer) error {
			if f.From == nil || !f.From.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
				t.Errorf("expected from filter, got %v", f.From)
			}
			cw := csv.NewWriter(w)
			_ = cw.Write([]string{"ID", "Client Name"})
			cw.Flush()
			return cw.Error()
		},
	}
	srv := newTestServer(&mockSettlementUC{}, &mockMembershipUC{}, reports)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/export?from=2025-01-01", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "payments.csv") {
		t.Errorf("expected attachment disposition, got %q", cd)
	}
}
