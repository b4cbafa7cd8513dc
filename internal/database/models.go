package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID
	FullName       string
	Email          string
	Phone          pgtype.Text
	HashedPassword string
	Role           string
	CreatedAt      time.Time
}

type Address struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Consignee string
	Phone     string
	Detail    string
	IsDefault bool
}

type Dish struct {
	ID     uuid.UUID
	Name   string
	Image  pgtype.Text
	Price  pgtype.Numeric
	Status string
}

type SetMeal struct {
	ID     uuid.UUID
	Name   string
	Image  pgtype.Text
	Price  pgtype.Numeric
	Status string
}

// CartLine is one distinct (item, flavor) entry in a user's cart.
// Exactly one of DishID / SetMealID is set. Name, image and price are
// captured at add-time so later catalog edits do not change the cart.
type CartLine struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	DishID    pgtype.UUID
	SetMealID pgtype.UUID
	Flavor    pgtype.Text
	Name      string
	Image     pgtype.Text
	Price     pgtype.Numeric
	Quantity  int32
	CreatedAt time.Time
}

// Order address fields are a snapshot copied from the address book at
// submission; they never track later edits to the source address.
type Order struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Number       string
	Status       string
	PayStatus    string
	Amount       pgtype.Numeric
	Consignee    string
	Phone        string
	Address      string
	Remark       pgtype.Text
	OrderTime    time.Time
	CheckoutTime pgtype.Timestamptz
	CancelTime   pgtype.Timestamptz
	CancelReason pgtype.Text
}

type OrderDetail struct {
	ID       uuid.UUID
	OrderID  uuid.UUID
	Name     string
	Image    pgtype.Text
	Price    pgtype.Numeric
	Quantity int32
	Flavor   pgtype.Text
}
