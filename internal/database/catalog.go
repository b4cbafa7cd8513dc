package database

import (
	"context"

	"github.com/google/uuid"
)

const getDish = `
SELECT id, name, image, price, status FROM dishes WHERE id = $1`

func (q *Queries) GetDish(ctx context.Context, id uuid.UUID) (Dish, error) {
	var d Dish
	err := q.db.QueryRow(ctx, getDish, id).Scan(&d.ID, &d.Name, &d.Image, &d.Price, &d.Status)
	return d, err
}

const getSetMeal = `
SELECT id, name, image, price, status FROM set_meals WHERE id = $1`

func (q *Queries) GetSetMeal(ctx context.Context, id uuid.UUID) (SetMeal, error) {
	var s SetMeal
	err := q.db.QueryRow(ctx, getSetMeal, id).Scan(&s.ID, &s.Name, &s.Image, &s.Price, &s.Status)
	return s, err
}

const getAddress = `
SELECT id, user_id, consignee, phone, detail, is_default
FROM addresses WHERE id = $1`

func (q *Queries) GetAddress(ctx context.Context, id uuid.UUID) (Address, error) {
	var a Address
	err := q.db.QueryRow(ctx, getAddress, id).Scan(
		&a.ID, &a.UserID, &a.Consignee, &a.Phone, &a.Detail, &a.IsDefault,
	)
	return a, err
}

const listAddressesByUser = `
SELECT id, user_id, consignee, phone, detail, is_default
FROM addresses
WHERE user_id = $1
ORDER BY is_default DESC, consignee`

func (q *Queries) ListAddressesByUser(ctx context.Context, userID uuid.UUID) ([]Address, error) {
	rows, err := q.db.Query(ctx, listAddressesByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Address
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Consignee, &a.Phone, &a.Detail, &a.IsDefault); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
