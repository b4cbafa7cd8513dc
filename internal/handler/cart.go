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
	"github.com/shopspring/decimal"

	"github.com/feastly-app/api/internal/database"
	"github.com/feastly-app/api/internal/middleware"
	"github.com/feastly-app/api/internal/service"
)

// CartServicer defines the service methods needed by cart handlers.
// Satisfied by *service.CartService; narrow interface for testability.
type CartServicer interface {
	Add(ctx context.Context, userID uuid.UUID, ref service.CartItemRef) (database.CartLine, error)
	Remove(ctx context.Context, userID uuid.UUID, ref service.CartItemRef) error
	List(ctx context.Context, userID uuid.UUID) ([]database.CartLine, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

// CartHandler handles shopping cart endpoints.
type CartHandler struct {
	svc CartServicer
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(svc CartServicer) *CartHandler {
	return &CartHandler{svc: svc}
}

// RegisterRoutes registers cart endpoints on the given Chi router.
// Expected to be mounted inside an authenticated subrouter: /cart
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Delete("/", h.Clear)
	r.Post("/items", h.Add)
	r.Post("/items/remove", h.Remove)
}

// --- Request / Response types ---

type cartItemRequest struct {
	DishID    string `json:"dish_id"`
	SetMealID string `json:"set_meal_id"`
	Flavor    string `json:"flavor"`
}

type cartLineResponse struct {
	ID        uuid.UUID `json:"id"`
	DishID    *string   `json:"dish_id"`
	SetMealID *string   `json:"set_meal_id"`
	Flavor    *string   `json:"flavor"`
	Name      string    `json:"name"`
	Image     *string   `json:"image"`
	Price     string    `json:"price"`
	Quantity  int32     `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

type cartResponse struct {
	Items []cartLineResponse `json:"items"`
	Total string             `json:"total"`
}

// --- Handlers ---

// Add handles POST /cart/items: put one unit of an item into the cart.
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	line, err := h.svc.Add(r.Context(), claims.UserID, service.CartItemRef{
		DishID:    req.DishID,
		SetMealID: req.SetMealID,
		Flavor:    req.Flavor,
	})
	if err != nil {
		if isCartValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if errors.Is(err, service.ErrDishNotFound) || errors.Is(err, service.ErrSetMealNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		if errors.Is(err, service.ErrItemOffSale) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: add cart item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toCartLineResponse(line))
}

// Remove handles POST /cart/items/remove: take one unit of an item out.
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	err := h.svc.Remove(r.Context(), claims.UserID, service.CartItemRef{
		DishID:    req.DishID,
		SetMealID: req.SetMealID,
		Flavor:    req.Flavor,
	})
	if err != nil {
		if isCartValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if errors.Is(err, service.ErrCartLineMissing) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: remove cart item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /cart.
func (h *CartHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	lines, err := h.svc.List(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("ERROR: list cart: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items := make([]cartLineResponse, len(lines))
	total := decimal.Zero
	for i, line := range lines {
		items[i] = toCartLineResponse(line)
		total = total.Add(numericToDecimal(line.Price).Mul(decimal.NewFromInt32(line.Quantity)))
	}

	writeJSON(w, http.StatusOK, cartResponse{
		Items: items,
		Total: total.StringFixed(2),
	})
}

// Clear handles DELETE /cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	if err := h.svc.Clear(r.Context(), claims.UserID); err != nil {
		log.Printf("ERROR: clear cart: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func isCartValidationError(err error) bool {
	return errors.Is(err, service.ErrItemRequired) ||
		errors.Is(err, service.ErrItemAmbiguous) ||
		errors.Is(err, service.ErrInvalidItemID)
}

func toCartLineResponse(line database.CartLine) cartLineResponse {
	resp := cartLineResponse{
		ID:        line.ID,
		Name:      line.Name,
		Price:     numericToString(line.Price),
		Quantity:  line.Quantity,
		CreatedAt: line.CreatedAt,
	}
	if line.DishID.Valid {
		s := uuid.UUID(line.DishID.Bytes).String()
		resp.DishID = &s
	}
	if line.SetMealID.Valid {
		s := uuid.UUID(line.SetMealID.Bytes).String()
		resp.SetMealID = &s
	}
	if line.Flavor.Valid {
		resp.Flavor = &line.Flavor.String
	}
	if line.Image.Valid {
		resp.Image = &line.Image.String
	}
	return resp
}
