package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/feastly-app/api/internal/database"
	"github.com/feastly-app/api/internal/enum"
	"github.com/feastly-app/api/internal/service"
)

// AdminOrderServicer defines the service methods needed by merchant order
// handlers. Satisfied by *service.OrderService.
type AdminOrderServicer interface {
	Confirm(ctx context.Context, orderID uuid.UUID) (database.Order, error)
	Deliver(ctx context.Context, orderID uuid.UUID) (database.Order, error)
	Complete(ctx context.Context, orderID uuid.UUID) (database.Order, error)
	Reject(ctx context.Context, orderID uuid.UUID, reason string) (database.Order, error)
	CancelByMerchant(ctx context.Context, orderID uuid.UUID, reason string) (database.Order, error)
}

// AdminOrderStore defines the database methods needed by merchant order
// read handlers. Satisfied by *database.Queries.
type AdminOrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	SearchOrders(ctx context.Context, arg database.SearchOrdersParams) ([]database.Order, error)
	ListOrderDetailsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderDetail, error)
	CountOrdersByStatus(ctx context.Context, arg database.CountOrdersByStatusParams) (int64, error)
}

// AdminOrderHandler handles merchant-facing order endpoints.
type AdminOrderHandler struct {
	svc   AdminOrderServicer
	store AdminOrderStore
}

// NewAdminOrderHandler creates a new AdminOrderHandler.
func NewAdminOrderHandler(svc AdminOrderServicer, store AdminOrderStore) *AdminOrderHandler {
	return &AdminOrderHandler{svc: svc, store: store}
}

// RegisterRoutes registers merchant order endpoints on the given Chi router.
// Expected to be mounted inside an admin-only subrouter: /admin/orders
func (h *AdminOrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Search)
	r.Get("/statistics", h.Statistics)
	r.Get("/{id}", h.Get)
	r.Put("/{id}/confirm", h.Confirm)
	r.Put("/{id}/rejection", h.Reject)
	r.Put("/{id}/delivery", h.Deliver)
	r.Put("/{id}/complete", h.Complete)
	r.Put("/{id}/cancel", h.Cancel)
}

// --- Request / Response types ---

type rejectOrderRequest struct {
	Reason string `json:"reason"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type orderStatisticsResponse struct {
	ToBeConfirmed      int64 `json:"to_be_confirmed"`
	Confirmed          int64 `json:"confirmed"`
	DeliveryInProgress int64 `json:"delivery_in_progress"`
}

// --- Handlers ---

// Search handles GET /admin/orders with optional status, number and date
// range filters.
func (h *AdminOrderHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	params := database.SearchOrdersParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		if !isValidOrderStatus(s) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("number"); s != "" {
		params.Number = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		params.EndDate = pgtype.Timestamptz{Time: t, Valid: true}
	}

	orders, err := h.store.SearchOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: search orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Statistics handles GET /admin/orders/statistics: live counts of the
// states the kitchen acts on.
func (h *AdminOrderHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	var resp orderStatisticsResponse
	counts := []struct {
		status string
		dest   *int64
	}{
		{enum.OrderStatusToBeConfirmed, &resp.ToBeConfirmed},
		{enum.OrderStatusConfirmed, &resp.Confirmed},
		{enum.OrderStatusDeliveryInProgress, &resp.DeliveryInProgress},
	}
	for _, c := range counts {
		n, err := h.store.CountOrdersByStatus(r.Context(), database.CountOrdersByStatusParams{Status: c.status})
		if err != nil {
			log.Printf("ERROR: count orders by status: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		*c.dest = n
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /admin/orders/{id}.
func (h *AdminOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	details, err := h.store.ListOrderDetailsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order details: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbOrderToResponse(order)
	resp.Items = make([]orderDetailResponse, len(details))
	for i, d := range details {
		resp.Items[i] = dbOrderDetailToResponse(d)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Confirm handles PUT /admin/orders/{id}/confirm.
func (h *AdminOrderHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Confirm)
}

// Deliver handles PUT /admin/orders/{id}/delivery.
func (h *AdminOrderHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Deliver)
}

// Complete handles PUT /admin/orders/{id}/complete.
func (h *AdminOrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Complete)
}

// Reject handles PUT /admin/orders/{id}/rejection.
func (h *AdminOrderHandler) Reject(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req rejectOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reason is required"})
		return
	}

	order, err := h.svc.Reject(r.Context(), orderID, req.Reason)
	if err != nil {
		h.writeTransitionError(w, err, "reject order")
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// Cancel handles PUT /admin/orders/{id}/cancel.
func (h *AdminOrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reason is required"})
		return
	}

	order, err := h.svc.CancelByMerchant(r.Context(), orderID, req.Reason)
	if err != nil {
		h.writeTransitionError(w, err, "cancel order")
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// --- Helpers ---

func (h *AdminOrderHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, orderID uuid.UUID) (database.Order, error)) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := fn(r.Context(), orderID)
	if err != nil {
		h.writeTransitionError(w, err, "order transition")
		return
	}
	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

func (h *AdminOrderHandler) writeTransitionError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, service.ErrStatusConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// isValidOrderStatus checks if the given string is a known order status.
func isValidOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPendingPayment,
		enum.OrderStatusToBeConfirmed,
		enum.OrderStatusConfirmed,
		enum.OrderStatusDeliveryInProgress,
		enum.OrderStatusCompleted,
		enum.OrderStatusCancelled:
		return true
	}
	return false
}
