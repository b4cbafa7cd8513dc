package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/feastly-app/api/internal/handler"
	"github.com/feastly-app/api/internal/service"
)

type mockPaymentConfirmer struct {
	ConfirmPaymentFunc func(ctx context.Context, number string) error
}

func (m *mockPaymentConfirmer) ConfirmPayment(ctx context.Context, number string) error {
	return m.ConfirmPaymentFunc(ctx, number)
}

func setupPaymentRouter(svc handler.PaymentConfirmer) chi.Router {
	r := chi.NewRouter()
	handler.NewPaymentHandler(svc).RegisterRoutes(r)
	return r
}

func TestPaymentNotify_Success(t *testing.T) {
	var gotNumber string
	svc := &mockPaymentConfirmer{
		ConfirmPaymentFunc: func(_ context.Context, number string) error {
			gotNumber = number
			return nil
		},
	}
	router := setupPaymentRouter(svc)

	rr := doRequest(t, router, "POST", "/notify/payment", map[string]string{"order_number": "1756600000000"}, "")

	wantStatus(t, rr, http.StatusOK)
	resp := decodeJSON(t, rr)
	if resp["code"] != "SUCCESS" {
		t.Errorf("code: got %v, want SUCCESS", resp["code"])
	}
	if gotNumber != "1756600000000" {
		t.Errorf("order number: got %q, want 1756600000000", gotNumber)
	}
}

func TestPaymentNotify_UnknownOrderStillAcknowledged(t *testing.T) {
	svc := &mockPaymentConfirmer{
		ConfirmPaymentFunc: func(_ context.Context, _ string) error {
			return service.ErrOrderNotFound
		},
	}
	router := setupPaymentRouter(svc)

	rr := doRequest(t, router, "POST", "/notify/payment", map[string]string{"order_number": "999"}, "")

	// A 500 would make the provider retry a callback that can never succeed.
	wantStatus(t, rr, http.StatusOK)
	resp := decodeJSON(t, rr)
	if resp["code"] != "SUCCESS" {
		t.Errorf("code: got %v, want SUCCESS", resp["code"])
	}
}

func TestPaymentNotify_MissingNumber(t *testing.T) {
	router := setupPaymentRouter(&mockPaymentConfirmer{})

	rr := doRequest(t, router, "POST", "/notify/payment", map[string]string{}, "")

	wantStatus(t, rr, http.StatusBadRequest)
	resp := decodeJSON(t, rr)
	if resp["code"] != "FAIL" {
		t.Errorf("code: got %v, want FAIL", resp["code"])
	}
}

func TestPaymentNotify_TransientFailure(t *testing.T) {
	svc := &mockPaymentConfirmer{
		ConfirmPaymentFunc: func(_ context.Context, _ string) error {
			return errors.New("connection reset")
		},
	}
	router := setupPaymentRouter(svc)

	rr := doRequest(t, router, "POST", "/notify/payment", map[string]string{"order_number": "123"}, "")

	wantStatus(t, rr, http.StatusInternalServerError)
	resp := decodeJSON(t, rr)
	if resp["code"] != "FAIL" {
		t.Errorf("code: got %v, want FAIL", resp["code"])
	}
}
