package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/feastly-app/api/internal/database"
	"github.com/feastly-app/api/internal/enum"
)

const maxCartAddRetries = 3

// Errors returned by the cart service.
var (
	ErrItemRequired    = errors.New("either dish_id or set_meal_id must be provided")
	ErrItemAmbiguous   = errors.New("provide only one of dish_id or set_meal_id")
	ErrInvalidItemID   = errors.New("invalid item id")
	ErrDishNotFound    = errors.New("dish not found")
	ErrSetMealNotFound = errors.New("set meal not found")
	ErrItemOffSale     = errors.New("item is not on sale")
	ErrCartLineMissing = errors.New("cart line not found")
)

// CartStore defines the DB methods needed by the cart service.
// Satisfied by *database.Queries.
type CartStore interface {
	GetDish(ctx context.Context, id uuid.UUID) (database.Dish, error)
	GetSetMeal(ctx context.Context, id uuid.UUID) (database.SetMeal, error)
	FindCartLine(ctx context.Context, arg database.FindCartLineParams) (database.CartLine, error)
	CreateCartLine(ctx context.Context, arg database.CreateCartLineParams) (database.CartLine, error)
	IncrementCartLine(ctx context.Context, id uuid.UUID) (database.CartLine, error)
	DecrementCartLine(ctx context.Context, id uuid.UUID) (database.CartLine, error)
	DeleteCartLine(ctx context.Context, id uuid.UUID) error
	ListCartLines(ctx context.Context, userID uuid.UUID) ([]database.CartLine, error)
	ClearCart(ctx context.Context, userID uuid.UUID) error
}

// CartItemRef identifies one addable item: exactly one of DishID or
// SetMealID, plus an optional flavor choice for dishes.
type CartItemRef struct {
	DishID    string
	SetMealID string
	Flavor    string
}

// CartService manages per-user shopping carts. Quantity is tracked per
// distinct (item, flavor) line, never as duplicate rows.
type CartService struct {
	store CartStore
}

func NewCartService(store CartStore) *CartService {
	return &CartService{store: store}
}

// resolvedItem carries the catalog snapshot a new cart line is built from.
type resolvedItem struct {
	dishID    pgtype.UUID
	setMealID pgtype.UUID
	flavor    pgtype.Text
	name      string
	image     pgtype.Text
	price     pgtype.Numeric
}

// Add puts one unit of the referenced item into the user's cart. A line for
// the same (item, flavor) already present gets its quantity bumped instead
// of a second row. Concurrent adds of the same line are resolved by the
// unique index on cart_lines plus a bounded retry.
func (s *CartService) Add(ctx context.Context, userID uuid.UUID, ref CartItemRef) (database.CartLine, error) {
	item, err := s.resolveItem(ctx, ref)
	if err != nil {
		return database.CartLine{}, err
	}

	var lastErr error
	for attempt := 0; attempt < maxCartAddRetries; attempt++ {
		line, err := s.addOnce(ctx, userID, item)
		if err == nil {
			return line, nil
		}
		if isCartLineConflict(err) {
			// Another request inserted the same line first; retry lands on
			// the increment path.
			lastErr = err
			continue
		}
		return database.CartLine{}, err
	}
	return database.CartLine{}, lastErr
}

func (s *CartService) addOnce(ctx context.Context, userID uuid.UUID, item resolvedItem) (database.CartLine, error) {
	existing, err := s.store.FindCartLine(ctx, database.FindCartLineParams{
		UserID:    userID,
		DishID:    item.dishID,
		SetMealID: item.setMealID,
		Flavor:    item.flavor,
	})
	if err == nil {
		return s.store.IncrementCartLine(ctx, existing.ID)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.CartLine{}, fmt.Errorf("find cart line: %w", err)
	}

	return s.store.CreateCartLine(ctx, database.CreateCartLineParams{
		UserID:    userID,
		DishID:    item.dishID,
		SetMealID: item.setMealID,
		Flavor:    item.flavor,
		Name:      item.name,
		Image:     item.image,
		Price:     item.price,
	})
}

func isCartLineConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "cart_lines_identity_key"
	}
	return false
}

// Remove takes one unit of the referenced item out of the cart. The last
// unit deletes the line entirely.
func (s *CartService) Remove(ctx context.Context, userID uuid.UUID, ref CartItemRef) error {
	dishID, setMealID, flavor, err := parseItemRef(ref)
	if err != nil {
		return err
	}

	line, err := s.store.FindCartLine(ctx, database.FindCartLineParams{
		UserID:    userID,
		DishID:    dishID,
		SetMealID: setMealID,
		Flavor:    flavor,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCartLineMissing
		}
		return fmt.Errorf("find cart line: %w", err)
	}

	if line.Quantity > 1 {
		if _, err := s.store.DecrementCartLine(ctx, line.ID); err != nil {
			// Raced to quantity 1 since the read; fall through to delete.
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("decrement cart line: %w", err)
			}
		} else {
			return nil
		}
	}
	return s.store.DeleteCartLine(ctx, line.ID)
}

// List returns the user's cart lines in add order.
func (s *CartService) List(ctx context.Context, userID uuid.UUID) ([]database.CartLine, error) {
	return s.store.ListCartLines(ctx, userID)
}

// Clear empties the user's cart.
func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.store.ClearCart(ctx, userID)
}

// resolveItem validates the reference and snapshots name, image and price
// from the catalog.
func (s *CartService) resolveItem(ctx context.Context, ref CartItemRef) (resolvedItem, error) {
	dishID, setMealID, flavor, err := parseItemRef(ref)
	if err != nil {
		return resolvedItem{}, err
	}

	item := resolvedItem{dishID: dishID, setMealID: setMealID, flavor: flavor}
	if dishID.Valid {
		dish, err := s.store.GetDish(ctx, uuid.UUID(dishID.Bytes))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return resolvedItem{}, ErrDishNotFound
			}
			return resolvedItem{}, fmt.Errorf("get dish: %w", err)
		}
		if dish.Status != enum.ItemStatusOnSale {
			return resolvedItem{}, ErrItemOffSale
		}
		item.name = dish.Name
		item.image = dish.Image
		item.price = dish.Price
		return item, nil
	}

	setMeal, err := s.store.GetSetMeal(ctx, uuid.UUID(setMealID.Bytes))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return resolvedItem{}, ErrSetMealNotFound
		}
		return resolvedItem{}, fmt.Errorf("get set meal: %w", err)
	}
	if setMeal.Status != enum.ItemStatusOnSale {
		return resolvedItem{}, ErrItemOffSale
	}
	item.name = setMeal.Name
	item.image = setMeal.Image
	item.price = setMeal.Price
	return item, nil
}

func parseItemRef(ref CartItemRef) (dishID, setMealID pgtype.UUID, flavor pgtype.Text, err error) {
	if ref.DishID == "" && ref.SetMealID == "" {
		err = ErrItemRequired
		return
	}
	if ref.DishID != "" && ref.SetMealID != "" {
		err = ErrItemAmbiguous
		return
	}
	if ref.DishID != "" {
		id, parseErr := uuid.Parse(ref.DishID)
		if parseErr != nil {
			err = ErrInvalidItemID
			return
		}
		dishID = pgtype.UUID{Bytes: id, Valid: true}
	} else {
		id, parseErr := uuid.Parse(ref.SetMealID)
		if parseErr != nil {
			err = ErrInvalidItemID
			return
		}
		setMealID = pgtype.UUID{Bytes: id, Valid: true}
	}
	if ref.Flavor != "" {
		flavor = pgtype.Text{String: ref.Flavor, Valid: true}
	}
	return
}
