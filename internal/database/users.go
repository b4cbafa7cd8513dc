package database

import (
	"context"

	"github.com/google/uuid"
)

const userColumns = `id, full_name, email, phone, hashed_password, role, created_at`

const getUserByEmail = `
SELECT ` + userColumns + ` FROM users WHERE email = $1`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, getUserByEmail, email).Scan(
		&u.ID, &u.FullName, &u.Email, &u.Phone, &u.HashedPassword, &u.Role, &u.CreatedAt,
	)
	return u, err
}

const getUserByID = `
SELECT ` + userColumns + ` FROM users WHERE id = $1`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, getUserByID, id).Scan(
		&u.ID, &u.FullName, &u.Email, &u.Phone, &u.HashedPassword, &u.Role, &u.CreatedAt,
	)
	return u, err
}
