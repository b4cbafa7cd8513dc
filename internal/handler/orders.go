package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/feastly-app/api/internal/database"
	"github.com/feastly-app/api/internal/middleware"
	"github.com/feastly-app/api/internal/payment"
	"github.com/feastly-app/api/internal/service"
)

// OrderServicer defines the service methods needed by customer order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Submit(ctx context.Context, userID uuid.UUID, req service.SubmitOrderRequest) (*service.SubmitOrderResult, error)
	InitiatePayment(ctx context.Context, userID, orderID uuid.UUID) (*payment.PrepayResponse, error)
	RequestAssistance(ctx context.Context, orderID uuid.UUID) error
	CancelByUser(ctx context.Context, userID, orderID uuid.UUID) (database.Order, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrdersByUser(ctx context.Context, arg database.ListOrdersByUserParams) ([]database.Order, error)
	ListOrderDetailsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderDetail, error)
	ListAddressesByUser(ctx context.Context, userID uuid.UUID) ([]database.Address, error)
}

// OrderHandler handles customer-facing order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderStore
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore) *OrderHandler {
	return &OrderHandler{svc: svc, store: store}
}

// RegisterRoutes registers customer order endpoints on the given Chi router.
// Expected to be mounted inside an authenticated subrouter: /orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Submit)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/payment", h.Pay)
	r.Post("/{id}/reminder", h.Remind)
	r.Post("/{id}/cancel", h.Cancel)
}

// --- Request / Response types ---

type submitOrderRequest struct {
	AddressID string `json:"address_id"`
	Remark    string `json:"remark"`
}

type submitOrderResponse struct {
	ID        uuid.UUID `json:"id"`
	Number    string    `json:"number"`
	Amount    string    `json:"amount"`
	OrderTime time.Time `json:"order_time"`
}

type orderResponse struct {
	ID           uuid.UUID             `json:"id"`
	Number       string                `json:"number"`
	Status       string                `json:"status"`
	PayStatus    string                `json:"pay_status"`
	Amount       string                `json:"amount"`
	Consignee    string                `json:"consignee"`
	Phone        string                `json:"phone"`
	Address      string                `json:"address"`
	Remark       *string               `json:"remark"`
	OrderTime    time.Time             `json:"order_time"`
	CheckoutTime *time.Time            `json:"checkout_time"`
	CancelTime   *time.Time            `json:"cancel_time"`
	CancelReason *string               `json:"cancel_reason"`
	Items        []orderDetailResponse `json:"items,omitempty"`
}

type orderDetailResponse struct {
	Name     string  `json:"name"`
	Image    *string `json:"image"`
	Price    string  `json:"price"`
	Quantity int32   `json:"quantity"`
	Flavor   *string `json:"flavor"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type addressResponse struct {
	ID        uuid.UUID `json:"id"`
	Consignee string    `json:"consignee"`
	Phone     string    `json:"phone"`
	Detail    string    `json:"detail"`
	IsDefault bool      `json:"is_default"`
}

// --- Handlers ---

// Submit handles POST /orders: convert the cart into an order.
func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.AddressID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "address_id is required"})
		return
	}

	result, err := h.svc.Submit(r.Context(), claims.UserID, service.SubmitOrderRequest{
		AddressID: req.AddressID,
		Remark:    req.Remark,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAddressID):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrAddressNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrEmptyCart):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: submit order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, submitOrderResponse{
		ID:        result.ID,
		Number:    result.Number,
		Amount:    result.Amount.StringFixed(2),
		OrderTime: result.OrderTime,
	})
}

// List handles GET /orders: the caller's order history, newest first.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	limit, offset := parsePagination(r)

	orders, err := h.store.ListOrdersByUser(r.Context(), database.ListOrdersByUserParams{
		UserID: claims.UserID,
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
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

// Get handles GET /orders/{id}: one order plus its line items.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

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

	// Customers only see their own orders.
	if order.UserID != claims.UserID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
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

// Pay handles POST /orders/{id}/payment: fetch a prepay payload from the
// payment gateway.
func (h *OrderHandler) Pay(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	prepay, err := h.svc.InitiatePayment(r.Context(), claims.UserID, orderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrAlreadyPaid):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: initiate payment: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, prepay)
}

// Remind handles POST /orders/{id}/reminder: nudge the merchant about a
// waiting order.
func (h *OrderHandler) Remind(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	if err := h.svc.RequestAssistance(r.Context(), orderID); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: order reminder: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Cancel handles POST /orders/{id}/cancel: back out of an unpaid order.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.svc.CancelByUser(r.Context(), claims.UserID, orderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrStatusConflict):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: cancel order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(order))
}

// --- Address book ---

// AddressHandler serves the caller's delivery addresses.
type AddressHandler struct {
	store OrderStore
}

func NewAddressHandler(store OrderStore) *AddressHandler {
	return &AddressHandler{store: store}
}

func (h *AddressHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

// List handles GET /addresses.
func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	addresses, err := h.store.ListAddressesByUser(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("ERROR: list addresses: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]addressResponse, len(addresses))
	for i, a := range addresses {
		resp[i] = addressResponse{
			ID:        a.ID,
			Consignee: a.Consignee,
			Phone:     a.Phone,
			Detail:    a.Detail,
			IsDefault: a.IsDefault,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset = 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:        o.ID,
		Number:    o.Number,
		Status:    o.Status,
		PayStatus: o.PayStatus,
		Amount:    numericToString(o.Amount),
		Consignee: o.Consignee,
		Phone:     o.Phone,
		Address:   o.Address,
		OrderTime: o.OrderTime,
	}
	if o.Remark.Valid {
		resp.Remark = &o.Remark.String
	}
	if o.CheckoutTime.Valid {
		resp.CheckoutTime = &o.CheckoutTime.Time
	}
	if o.CancelTime.Valid {
		resp.CancelTime = &o.CancelTime.Time
	}
	if o.CancelReason.Valid {
		resp.CancelReason = &o.CancelReason.String
	}
	return resp
}

func dbOrderDetailToResponse(d database.OrderDetail) orderDetailResponse {
	resp := orderDetailResponse{
		Name:     d.Name,
		Price:    numericToString(d.Price),
		Quantity: d.Quantity,
	}
	if d.Image.Valid {
		resp.Image = &d.Image.String
	}
	if d.Flavor.Valid {
		resp.Flavor = &d.Flavor.String
	}
	return resp
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}
