package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const cartLineColumns = `id, user_id, dish_id, set_meal_id, flavor, name, image, price, quantity, created_at`

func scanCartLine(row interface{ Scan(dest ...any) error }) (CartLine, error) {
	var l CartLine
	err := row.Scan(
		&l.ID,
		&l.UserID,
		&l.DishID,
		&l.SetMealID,
		&l.Flavor,
		&l.Name,
		&l.Image,
		&l.Price,
		&l.Quantity,
		&l.CreatedAt,
	)
	return l, err
}

// FindCartLine resolves the (user, item-identity, flavor) tuple to its single
// row if present. IS NOT DISTINCT FROM keeps NULL item ids and flavors
// comparable, matching the uniqueness index on the table.
const findCartLine = `
SELECT ` + cartLineColumns + ` FROM cart_lines
WHERE user_id = $1
  AND dish_id IS NOT DISTINCT FROM $2
  AND set_meal_id IS NOT DISTINCT FROM $3
  AND flavor IS NOT DISTINCT FROM $4`

type FindCartLineParams struct {
	UserID    uuid.UUID
	DishID    pgtype.UUID
	SetMealID pgtype.UUID
	Flavor    pgtype.Text
}

func (q *Queries) FindCartLine(ctx context.Context, arg FindCartLineParams) (CartLine, error) {
	row := q.db.QueryRow(ctx, findCartLine, arg.UserID, arg.DishID, arg.SetMealID, arg.Flavor)
	return scanCartLine(row)
}

const createCartLine = `
INSERT INTO cart_lines (user_id, dish_id, set_meal_id, flavor, name, image, price, quantity)
VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
RETURNING ` + cartLineColumns

type CreateCartLineParams struct {
	UserID    uuid.UUID
	DishID    pgtype.UUID
	SetMealID pgtype.UUID
	Flavor    pgtype.Text
	Name      string
	Image     pgtype.Text
	Price     pgtype.Numeric
}

func (q *Queries) CreateCartLine(ctx context.Context, arg CreateCartLineParams) (CartLine, error) {
	row := q.db.QueryRow(ctx, createCartLine,
		arg.UserID,
		arg.DishID,
		arg.SetMealID,
		arg.Flavor,
		arg.Name,
		arg.Image,
		arg.Price,
	)
	return scanCartLine(row)
}

const incrementCartLine = `
UPDATE cart_lines SET quantity = quantity + 1
WHERE id = $1
RETURNING ` + cartLineColumns

func (q *Queries) IncrementCartLine(ctx context.Context, id uuid.UUID) (CartLine, error) {
	return scanCartLine(q.db.QueryRow(ctx, incrementCartLine, id))
}

// DecrementCartLine only fires while more than one unit remains; the last
// unit is removed with DeleteCartLine instead.
const decrementCartLine = `
UPDATE cart_lines SET quantity = quantity - 1
WHERE id = $1 AND quantity > 1
RETURNING ` + cartLineColumns

func (q *Queries) DecrementCartLine(ctx context.Context, id uuid.UUID) (CartLine, error) {
	return scanCartLine(q.db.QueryRow(ctx, decrementCartLine, id))
}

const deleteCartLine = `
DELETE FROM cart_lines WHERE id = $1`

func (q *Queries) DeleteCartLine(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteCartLine, id)
	return err
}

const listCartLines = `
SELECT ` + cartLineColumns + ` FROM cart_lines
WHERE user_id = $1
ORDER BY created_at`

func (q *Queries) ListCartLines(ctx context.Context, userID uuid.UUID) ([]CartLine, error) {
	rows, err := q.db.Query(ctx, listCartLines, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CartLine
	for rows.Next() {
		l, err := scanCartLine(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

const clearCart = `
DELETE FROM cart_lines WHERE user_id = $1`

func (q *Queries) ClearCart(ctx context.Context, userID uuid.UUID) error {
	_, err := q.db.Exec(ctx, clearCart, userID)
	return err
}
