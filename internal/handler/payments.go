package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/feastly-app/api/internal/service"
)

// PaymentConfirmer defines the service method needed by the payment
// callback handler. Satisfied by *service.OrderService.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, number string) error
}

// PaymentHandler handles the payment provider's server-to-server callback.
// This endpoint is unauthenticated: the provider is not a logged-in user.
type PaymentHandler struct {
	svc PaymentConfirmer
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentConfirmer) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// RegisterRoutes registers the callback endpoint on the given Chi router.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/notify/payment", h.Notify)
}

type paymentNotifyRequest struct {
	OrderNumber string `json:"order_number"`
}

type paymentNotifyResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Notify handles POST /notify/payment. The provider retries on any
// non-2xx, so every terminal outcome, including a duplicate callback and an
// unknown order number, answers 200; only transient failures answer 500.
func (h *PaymentHandler) Notify(w http.ResponseWriter, r *http.Request) {
	var req paymentNotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, paymentNotifyResponse{Code: "FAIL", Message: "invalid request body"})
		return
	}
	if req.OrderNumber == "" {
		writeJSON(w, http.StatusBadRequest, paymentNotifyResponse{Code: "FAIL", Message: "order_number is required"})
		return
	}

	if err := h.svc.ConfirmPayment(r.Context(), req.OrderNumber); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			// Retrying will not make the order exist.
			log.Printf("ERROR: payment callback for unknown order %s", req.OrderNumber)
			writeJSON(w, http.StatusOK, paymentNotifyResponse{Code: "SUCCESS", Message: ""})
			return
		}
		log.Printf("ERROR: payment callback: %v", err)
		writeJSON(w, http.StatusInternalServerError, paymentNotifyResponse{Code: "FAIL", Message: "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, paymentNotifyResponse{Code: "SUCCESS", Message: ""})
}
