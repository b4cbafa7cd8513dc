package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/feastly-app/api/internal/database"
	"github.com/feastly-app/api/internal/enum"
)

// SweeperStore defines the DB methods needed by the timeout sweeps.
// Satisfied by *database.Queries.
type SweeperStore interface {
	ListOrdersByStatusOlderThan(ctx context.Context, arg database.ListOrdersByStatusOlderThanParams) ([]database.Order, error)
	CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
}

// TimeoutSweeper reconciles orders that have sat too long in a waiting
// state. Each sweep takes the reference time as a parameter so runs are
// reproducible and testable without a real clock.
type TimeoutSweeper struct {
	store         SweeperStore
	paymentGrace  time.Duration
	deliveryGrace time.Duration
	logger        *zap.Logger
}

func NewTimeoutSweeper(store SweeperStore, paymentGrace, deliveryGrace time.Duration, logger *zap.Logger) *TimeoutSweeper {
	return &TimeoutSweeper{
		store:         store,
		paymentGrace:  paymentGrace,
		deliveryGrace: deliveryGrace,
		logger:        logger,
	}
}

// SweepUnpaid cancels every order still PENDING_PAYMENT whose submission
// time is more than the payment grace period before now. Each cancel is
// conditional on the status, so an order paid between the listing and the
// update survives untouched. Returns the number of orders cancelled.
func (s *TimeoutSweeper) SweepUnpaid(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.paymentGrace)
	orders, err := s.store.ListOrdersByStatusOlderThan(ctx, database.ListOrdersByStatusOlderThanParams{
		Status:    enum.OrderStatusPendingPayment,
		OrderTime: cutoff,
	})
	if err != nil {
		return 0, fmt.Errorf("list unpaid orders: %w", err)
	}

	cancelled := 0
	for _, order := range orders {
		ok, err := s.cancelExpired(ctx, order.ID, enum.OrderStatusPendingPayment, enum.CancelReasonPaymentTimeout, now)
		if err != nil {
			// Keep sweeping; one bad row must not starve the rest.
			s.logger.Error("cancel unpaid order failed",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if ok {
			cancelled++
		}
	}
	if cancelled > 0 {
		s.logger.Info("unpaid sweep done",
			zap.Int("cancelled", cancelled),
			zap.Time("cutoff", cutoff),
		)
	}
	return cancelled, nil
}

// SweepStuckDelivery cancels every order still DELIVERY_IN_PROGRESS whose
// submission time is more than the delivery grace period before now.
// Returns the number of orders cancelled.
//
// TODO: confirm with product whether a stuck delivery should complete
// instead of cancel; cancelling a paid, possibly-delivered order is
// surprising for the customer.
func (s *TimeoutSweeper) SweepStuckDelivery(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.deliveryGrace)
	orders, err := s.store.ListOrdersByStatusOlderThan(ctx, database.ListOrdersByStatusOlderThanParams{
		Status:    enum.OrderStatusDeliveryInProgress,
		OrderTime: cutoff,
	})
	if err != nil {
		return 0, fmt.Errorf("list stuck deliveries: %w", err)
	}

	cancelled := 0
	for _, order := range orders {
		ok, err := s.cancelExpired(ctx, order.ID, enum.OrderStatusDeliveryInProgress, enum.CancelReasonDeliveryTimeout, now)
		if err != nil {
			s.logger.Error("cancel stuck delivery failed",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if ok {
			cancelled++
		}
	}
	if cancelled > 0 {
		s.logger.Info("stuck delivery sweep done",
			zap.Int("cancelled", cancelled),
			zap.Time("cutoff", cutoff),
		)
	}
	return cancelled, nil
}

// cancelExpired applies one conditional cancel. A miss means the order left
// the swept status between the listing and the update; that is a no-op, not
// an error.
func (s *TimeoutSweeper) cancelExpired(ctx context.Context, orderID uuid.UUID, fromStatus, reason string, now time.Time) (bool, error) {
	_, err := s.store.CancelOrder(ctx, database.CancelOrderParams{
		ID:           orderID,
		CancelReason: reason,
		CancelTime:   now,
		Status:       enum.OrderStatusCancelled,
		FromStatus:   fromStatus,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
