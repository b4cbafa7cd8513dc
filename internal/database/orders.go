package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, user_id, number, status, pay_status, amount, consignee, phone, address, remark, order_time, checkout_time, cancel_time, cancel_reason`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.Number,
		&o.Status,
		&o.PayStatus,
		&o.Amount,
		&o.Consignee,
		&o.Phone,
		&o.Address,
		&o.Remark,
		&o.OrderTime,
		&o.CheckoutTime,
		&o.CancelTime,
		&o.CancelReason,
	)
	return o, err
}

const createOrder = `
INSERT INTO orders (user_id, number, status, pay_status, amount, consignee, phone, address, remark, order_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	UserID    uuid.UUID
	Number    string
	Status    string
	PayStatus string
	Amount    pgtype.Numeric
	Consignee string
	Phone     string
	Address   string
	Remark    pgtype.Text
	OrderTime time.Time
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.UserID,
		arg.Number,
		arg.Status,
		arg.PayStatus,
		arg.Amount,
		arg.Consignee,
		arg.Phone,
		arg.Address,
		arg.Remark,
		arg.OrderTime,
	)
	return scanOrder(row)
}

const createOrderDetail = `
INSERT INTO order_details (order_id, name, image, price, quantity, flavor)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_id, name, image, price, quantity, flavor`

type CreateOrderDetailParams struct {
	OrderID  uuid.UUID
	Name     string
	Image    pgtype.Text
	Price    pgtype.Numeric
	Quantity int32
	Flavor   pgtype.Text
}

func (q *Queries) CreateOrderDetail(ctx context.Context, arg CreateOrderDetailParams) (OrderDetail, error) {
	row := q.db.QueryRow(ctx, createOrderDetail,
		arg.OrderID,
		arg.Name,
		arg.Image,
		arg.Price,
		arg.Quantity,
		arg.Flavor,
	)
	var d OrderDetail
	err := row.Scan(&d.ID, &d.OrderID, &d.Name, &d.Image, &d.Price, &d.Quantity, &d.Flavor)
	return d, err
}

const getOrder = `
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderByNumber = `
SELECT ` + orderColumns + ` FROM orders WHERE number = $1`

func (q *Queries) GetOrderByNumber(ctx context.Context, number string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByNumber, number))
}

const listOrdersByUser = `
SELECT ` + orderColumns + ` FROM orders
WHERE user_id = $1
ORDER BY order_time DESC
LIMIT $2 OFFSET $3`

type ListOrdersByUserParams struct {
	UserID uuid.UUID
	Limit  int32
	Offset int32
}

func (q *Queries) ListOrdersByUser(ctx context.Context, arg ListOrdersByUserParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByUser, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const searchOrders = `
SELECT ` + orderColumns + ` FROM orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::text IS NULL OR number = $2)
  AND ($3::timestamptz IS NULL OR order_time >= $3)
  AND ($4::timestamptz IS NULL OR order_time < $4)
ORDER BY order_time DESC
LIMIT $5 OFFSET $6`

type SearchOrdersParams struct {
	Status    pgtype.Text
	Number    pgtype.Text
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) SearchOrders(ctx context.Context, arg SearchOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, searchOrders,
		arg.Status,
		arg.Number,
		arg.StartDate,
		arg.EndDate,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const listOrderDetailsByOrder = `
SELECT id, order_id, name, image, price, quantity, flavor
FROM order_details
WHERE order_id = $1
ORDER BY name`

func (q *Queries) ListOrderDetailsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderDetail, error) {
	rows, err := q.db.Query(ctx, listOrderDetailsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderDetail
	for rows.Next() {
		var d OrderDetail
		if err := rows.Scan(&d.ID, &d.OrderID, &d.Name, &d.Image, &d.Price, &d.Quantity, &d.Flavor); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// MarkOrderPaid transitions an order out of PENDING_PAYMENT on a payment
// callback. The WHERE clause makes the transition conditional, so a
// duplicate callback or a race with the timeout sweeper surfaces as
// pgx.ErrNoRows rather than a double update.
const markOrderPaid = `
UPDATE orders
SET status = $3, pay_status = $4, checkout_time = $2
WHERE number = $1 AND status = $5
RETURNING ` + orderColumns

type MarkOrderPaidParams struct {
	Number       string
	CheckoutTime time.Time
	Status       string
	PayStatus    string
	FromStatus   string
}

func (q *Queries) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) (Order, error) {
	row := q.db.QueryRow(ctx, markOrderPaid,
		arg.Number,
		arg.CheckoutTime,
		arg.Status,
		arg.PayStatus,
		arg.FromStatus,
	)
	return scanOrder(row)
}

// UpdateOrderStatus applies one state-machine step conditioned on the
// expected prior status. pgx.ErrNoRows means the row was not in FromStatus.
const updateOrderStatus = `
UPDATE orders
SET status = $2
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	Status     string
	FromStatus string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.FromStatus)
	return scanOrder(row)
}

const cancelOrder = `
UPDATE orders
SET status = $4, cancel_reason = $2, cancel_time = $3
WHERE id = $1 AND status = $5
RETURNING ` + orderColumns

type CancelOrderParams struct {
	ID           uuid.UUID
	CancelReason string
	CancelTime   time.Time
	Status       string
	FromStatus   string
}

func (q *Queries) CancelOrder(ctx context.Context, arg CancelOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, cancelOrder,
		arg.ID,
		arg.CancelReason,
		arg.CancelTime,
		arg.Status,
		arg.FromStatus,
	)
	return scanOrder(row)
}

const listOrdersByStatusOlderThan = `
SELECT ` + orderColumns + ` FROM orders
WHERE status = $1 AND order_time < $2
ORDER BY order_time`

type ListOrdersByStatusOlderThanParams struct {
	Status    string
	OrderTime time.Time
}

func (q *Queries) ListOrdersByStatusOlderThan(ctx context.Context, arg ListOrdersByStatusOlderThanParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByStatusOlderThan, arg.Status, arg.OrderTime)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const countOrdersByStatus = `
SELECT COUNT(*) FROM orders
WHERE status = $1
  AND ($2::timestamptz IS NULL OR order_time >= $2)
  AND ($3::timestamptz IS NULL OR order_time < $3)`

type CountOrdersByStatusParams struct {
	Status    string
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
}

func (q *Queries) CountOrdersByStatus(ctx context.Context, arg CountOrdersByStatusParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countOrdersByStatus, arg.Status, arg.StartDate, arg.EndDate).Scan(&count)
	return count, err
}

const sumOrderAmountByStatus = `
SELECT COALESCE(SUM(amount), 0) FROM orders
WHERE status = $1
  AND ($2::timestamptz IS NULL OR order_time >= $2)
  AND ($3::timestamptz IS NULL OR order_time < $3)`

type SumOrderAmountByStatusParams struct {
	Status    string
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
}

func (q *Queries) SumOrderAmountByStatus(ctx context.Context, arg SumOrderAmountByStatusParams) (pgtype.Numeric, error) {
	var sum pgtype.Numeric
	err := q.db.QueryRow(ctx, sumOrderAmountByStatus, arg.Status, arg.StartDate, arg.EndDate).Scan(&sum)
	return sum, err
}

const getDailyTurnover = `
SELECT date_trunc('day', checkout_time)::date AS day,
       COUNT(*) AS order_count,
       COALESCE(SUM(amount), 0) AS turnover
FROM orders
WHERE status = $1 AND checkout_time >= $2 AND checkout_time < $3
GROUP BY 1
ORDER BY 1`

type GetDailyTurnoverParams struct {
	Status    string
	StartDate time.Time
	EndDate   time.Time
}

type GetDailyTurnoverRow struct {
	Day        pgtype.Date
	OrderCount int64
	Turnover   pgtype.Numeric
}

func (q *Queries) GetDailyTurnover(ctx context.Context, arg GetDailyTurnoverParams) ([]GetDailyTurnoverRow, error) {
	rows, err := q.db.Query(ctx, getDailyTurnover, arg.Status, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetDailyTurnoverRow
	for rows.Next() {
		var r GetDailyTurnoverRow
		if err := rows.Scan(&r.Day, &r.OrderCount, &r.Turnover); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
