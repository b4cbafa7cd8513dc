package enum

// --- Order state machine ---
//
// PENDING_PAYMENT → (TO_BE_CONFIRMED | CANCELLED) → CONFIRMED →
// DELIVERY_IN_PROGRESS → (COMPLETED | CANCELLED)

const (
	OrderStatusPendingPayment     = "PENDING_PAYMENT"
	OrderStatusToBeConfirmed      = "TO_BE_CONFIRMED"
	OrderStatusConfirmed          = "CONFIRMED"
	OrderStatusDeliveryInProgress = "DELIVERY_IN_PROGRESS"
	OrderStatusCompleted          = "COMPLETED"
	OrderStatusCancelled          = "CANCELLED"
)

const (
	PayStatusUnpaid   = "UNPAID"
	PayStatusPaid     = "PAID"
	PayStatusRefunded = "REFUNDED"
)

// --- Notification message types (wire contract, see internal/ws) ---

const (
	NotifyTypeNewOrder = 1
	NotifyTypeReminder = 2
)

// --- Cancel reasons stamped by the system ---

const (
	CancelReasonPaymentTimeout  = "payment timed out, cancelled automatically"
	CancelReasonDeliveryTimeout = "delivery unresolved, cancelled automatically"
	CancelReasonUserRequest     = "cancelled by customer"
)

// --- Roles ---

const (
	UserRoleCustomer = "CUSTOMER"
	UserRoleAdmin    = "ADMIN"
)

// --- Catalog item availability ---

const (
	ItemStatusOnSale  = "ON_SALE"
	ItemStatusOffSale = "OFF_SALE"
)
