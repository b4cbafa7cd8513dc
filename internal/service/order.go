package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/feastly-app/api/internal/database"
	"github.com/feastly-app/api/internal/enum"
	"github.com/feastly-app/api/internal/payment"
	"github.com/feastly-app/api/internal/ws"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrInvalidAddressID = errors.New("invalid address_id")
	ErrAddressNotFound  = errors.New("address not found")
	ErrEmptyCart        = errors.New("shopping cart is empty")
	ErrOrderNotFound    = errors.New("order not found")
	ErrAlreadyPaid      = errors.New("order already paid")
	ErrStatusConflict   = errors.New("order status does not allow this transition")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order lifecycle.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetAddress(ctx context.Context, id uuid.UUID) (database.Address, error)
	ListCartLines(ctx context.Context, userID uuid.UUID) ([]database.CartLine, error)
	ClearCart(ctx context.Context, userID uuid.UUID) error
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderDetail(ctx context.Context, arg database.CreateOrderDetailParams) (database.OrderDetail, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (database.Order, error)
	MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// Notifier fans an event out to every connected observer. The concrete
// transport lives in internal/ws; the order logic only knows this method.
type Notifier interface {
	Broadcast(event ws.Event)
}

// SubmitOrderRequest is the validated input for submitting an order.
type SubmitOrderRequest struct {
	AddressID string
	Remark    string
}

// SubmitOrderResult is the confirmation returned to the customer.
type SubmitOrderResult struct {
	ID        uuid.UUID
	Number    string
	Amount    decimal.Decimal
	OrderTime time.Time
}

// OrderService handles the order lifecycle: submission, payment transitions,
// merchant transitions and notification fan-out.
type OrderService struct {
	pool     TxBeginner
	store    OrderStore
	newStore NewOrderStore
	gateway  payment.Gateway
	notifier Notifier
	logger   *zap.Logger
}

func NewOrderService(pool TxBeginner, store OrderStore, newStore NewOrderStore, gateway payment.Gateway, notifier Notifier, logger *zap.Logger) *OrderService {
	return &OrderService{
		pool:     pool,
		store:    store,
		newStore: newStore,
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
	}
}

// Submit converts the user's cart into an order plus its details, clears the
// cart, and returns the confirmation. The order insert, the detail inserts
// and the cart clear are one transaction: a failure anywhere rolls back
// everything. Retries up to maxOrderNumberRetries times on order number
// unique constraint violations.
func (s *OrderService) Submit(ctx context.Context, userID uuid.UUID, req SubmitOrderRequest) (*SubmitOrderResult, error) {
	addressID, err := uuid.Parse(req.AddressID)
	if err != nil {
		return nil, ErrInvalidAddressID
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.submitTx(ctx, userID, addressID, req.Remark)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_number_key"
	}
	return false
}

func (s *OrderService) submitTx(ctx context.Context, userID, addressID uuid.UUID, remark string) (*SubmitOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Resolve the delivery address; its fields are copied onto the order so
	// later address edits never touch submitted orders.
	address, err := store.GetAddress(ctx, addressID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("get address: %w", err)
	}
	if address.UserID != userID {
		return nil, ErrAddressNotFound
	}

	lines, err := store.ListCartLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	amount := decimal.Zero
	for _, line := range lines {
		price := numericToDecimal(line.Price)
		amount = amount.Add(price.Mul(decimal.NewFromInt32(line.Quantity)))
	}

	now := time.Now()
	number := newOrderNumber(now)

	var remarkText pgtype.Text
	if remark != "" {
		remarkText = pgtype.Text{String: remark, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		UserID:    userID,
		Number:    number,
		Status:    enum.OrderStatusPendingPayment,
		PayStatus: enum.PayStatusUnpaid,
		Amount:    decimalToNumeric(amount),
		Consignee: address.Consignee,
		Phone:     address.Phone,
		Address:   address.Detail,
		Remark:    remarkText,
		OrderTime: now,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// One detail per cart line, each a frozen copy of the line at submit time.
	for _, line := range lines {
		_, err := store.CreateOrderDetail(ctx, database.CreateOrderDetailParams{
			OrderID:  order.ID,
			Name:     line.Name,
			Image:    line.Image,
			Price:    line.Price,
			Quantity: line.Quantity,
			Flavor:   line.Flavor,
		})
		if err != nil {
			return nil, fmt.Errorf("create order detail: %w", err)
		}
	}

	if err := store.ClearCart(ctx, userID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &SubmitOrderResult{
		ID:        order.ID,
		Number:    order.Number,
		Amount:    amount,
		OrderTime: order.OrderTime,
	}, nil
}

// newOrderNumber derives the display-facing order number from the submission
// time. Uniqueness comes from the orders_number_key index plus the retry
// loop in Submit, not from the clock.
func newOrderNumber(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10)
}

// InitiatePayment asks the gateway for a prepay payload the client hands to
// its payment SDK. No local state changes here: the order stays
// PENDING_PAYMENT until the provider's callback confirms completion.
func (s *OrderService) InitiatePayment(ctx context.Context, userID, orderID uuid.UUID) (*payment.PrepayResponse, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}

	prepay, err := s.gateway.CreatePrepay(ctx, payment.PrepayRequest{
		OrderNumber: order.Number,
		Amount:      numericToDecimal(order.Amount),
		Description: "Feastly takeout order",
		PayerID:     userID.String(),
	})
	if err != nil {
		if errors.Is(err, payment.ErrOrderPaid) {
			return nil, ErrAlreadyPaid
		}
		return nil, fmt.Errorf("create prepay: %w", err)
	}
	return prepay, nil
}

// ConfirmPayment handles the provider's payment-success callback. The
// transition is conditional on the order still being PENDING_PAYMENT, which
// makes duplicate callbacks and races with the timeout sweeper no-ops: only
// the winning call stamps the checkout time and notifies the merchant.
func (s *OrderService) ConfirmPayment(ctx context.Context, number string) error {
	order, err := s.store.MarkOrderPaid(ctx, database.MarkOrderPaidParams{
		Number:       number,
		CheckoutTime: time.Now(),
		Status:       enum.OrderStatusToBeConfirmed,
		PayStatus:    enum.PayStatusPaid,
		FromStatus:   enum.OrderStatusPendingPayment,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.confirmPaymentMiss(ctx, number)
		}
		return fmt.Errorf("mark order paid: %w", err)
	}

	s.notifier.Broadcast(ws.Event{
		Type:    enum.NotifyTypeNewOrder,
		OrderID: order.ID,
		Content: "order number: " + number,
	})
	return nil
}

// confirmPaymentMiss distinguishes an unknown order number from a duplicate
// or raced callback. The latter is expected provider behavior and resolves
// to a logged no-op.
func (s *OrderService) confirmPaymentMiss(ctx context.Context, number string) error {
	order, err := s.store.GetOrderByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("get order by number: %w", err)
	}
	s.logger.Info("payment callback ignored, order already transitioned",
		zap.String("number", number),
		zap.String("status", order.Status),
	)
	return nil
}

// RequestAssistance pushes a reminder event for an order the customer is
// waiting on. No state change.
func (s *OrderService) RequestAssistance(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("get order: %w", err)
	}

	s.notifier.Broadcast(ws.Event{
		Type:    enum.NotifyTypeReminder,
		OrderID: order.ID,
		Content: "order number: " + order.Number,
	})
	return nil
}

// --- Merchant transitions ---

// Confirm accepts a paid order: TO_BE_CONFIRMED → CONFIRMED.
func (s *OrderService) Confirm(ctx context.Context, orderID uuid.UUID) (database.Order, error) {
	return s.transition(ctx, orderID, enum.OrderStatusToBeConfirmed, enum.OrderStatusConfirmed)
}

// Deliver hands the order to a courier: CONFIRMED → DELIVERY_IN_PROGRESS.
func (s *OrderService) Deliver(ctx context.Context, orderID uuid.UUID) (database.Order, error) {
	return s.transition(ctx, orderID, enum.OrderStatusConfirmed, enum.OrderStatusDeliveryInProgress)
}

// Complete closes out a delivered order: DELIVERY_IN_PROGRESS → COMPLETED.
func (s *OrderService) Complete(ctx context.Context, orderID uuid.UUID) (database.Order, error) {
	return s.transition(ctx, orderID, enum.OrderStatusDeliveryInProgress, enum.OrderStatusCompleted)
}

// Reject declines a paid order that has not been confirmed yet.
func (s *OrderService) Reject(ctx context.Context, orderID uuid.UUID, reason string) (database.Order, error) {
	return s.cancelFrom(ctx, orderID, enum.OrderStatusToBeConfirmed, reason)
}

// CancelByUser lets a customer back out while the order is still unpaid.
func (s *OrderService) CancelByUser(ctx context.Context, userID, orderID uuid.UUID) (database.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order.UserID != userID {
		return database.Order{}, ErrOrderNotFound
	}
	return s.cancelFrom(ctx, orderID, enum.OrderStatusPendingPayment, enum.CancelReasonUserRequest)
}

// CancelByMerchant cancels an order in any non-terminal state. The cancel is
// conditioned on the status observed just before, so it loses cleanly to a
// concurrent transition.
func (s *OrderService) CancelByMerchant(ctx context.Context, orderID uuid.UUID, reason string) (database.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order.Status == enum.OrderStatusCompleted || order.Status == enum.OrderStatusCancelled {
		return database.Order{}, ErrStatusConflict
	}
	return s.cancelFrom(ctx, orderID, order.Status, reason)
}

func (s *OrderService) transition(ctx context.Context, orderID uuid.UUID, from, to string) (database.Order, error) {
	order, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:         orderID,
		Status:     to,
		FromStatus: from,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, s.explainMiss(ctx, orderID)
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}
	return order, nil
}

func (s *OrderService) cancelFrom(ctx context.Context, orderID uuid.UUID, from, reason string) (database.Order, error) {
	order, err := s.store.CancelOrder(ctx, database.CancelOrderParams{
		ID:           orderID,
		CancelReason: reason,
		CancelTime:   time.Now(),
		Status:       enum.OrderStatusCancelled,
		FromStatus:   from,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, s.explainMiss(ctx, orderID)
		}
		return database.Order{}, fmt.Errorf("cancel order: %w", err)
	}
	return order, nil
}

// explainMiss turns a conditional-update miss into the right sentinel:
// the order is either absent or no longer in the expected state.
func (s *OrderService) explainMiss(ctx context.Context, orderID uuid.UUID) error {
	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("get order: %w", err)
	}
	return ErrStatusConflict
}

// --- Helpers ---

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

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
