package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeTransferIssued    = "TRANSFER_ISSUED"
	EventTypeTransferConfirmed = "TRANSFER_CONFIRMED"
	EventTypeTransferCancelled = "TRANSFER_CANCELLED"
	EventTypeJoinCodeIssued    = "JOIN_CODE_ISSUED"
	EventTypeJoinCodeConsumed  = "JOIN_CODE_CONSUMED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	StoreID   int64     `json:"store_id"`
	Timestamp time.Time `json:"timestamp"`
}

// TransferIssuedEvent is published when a new transfer code is created. A
// re-returned pending code publishes nothing.
type TransferIssuedEvent struct {
	BaseEvent
	TransferID int64     `json:"transfer_id"`
	CartID     int64     `json:"cart_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// TransferConfirmedEvent is published after the order transaction commits.
type TransferConfirmedEvent struct {
	BaseEvent
	TransferID    int64           `json:"transfer_id"`
	OrderID       int64           `json:"order_id"`
	StaffID       int64           `json:"staff_id"`
	PaymentMethod string          `json:"payment_method"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	Items         []OrderItemData `json:"items"`
}

// TransferCancelledEvent is published when staff cancels a pending code.
type TransferCancelledEvent struct {
	BaseEvent
	TransferID int64 `json:"transfer_id"`
	StaffID    int64 `json:"staff_id"`
}

// JoinCodeIssuedEvent never carries the code itself.
type JoinCodeIssuedEvent struct {
	BaseEvent
	JoinCodeID int64     `json:"join_code_id"`
	Role       string    `json:"role"`
	CreatedBy  int64     `json:"created_by"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// JoinCodeConsumedEvent is published when a user joins a store.
type JoinCodeConsumedEvent struct {
	BaseEvent
	JoinCodeID int64  `json:"join_code_id"`
	Role       string `json:"role"`
	UserID     int64  `json:"user_id"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	Size      *string         `json:"size,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
