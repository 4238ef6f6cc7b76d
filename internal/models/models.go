package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// WholesaleTier offers a lower unit price at or above MinQty.
type WholesaleTier struct {
	MinQty int             `json:"minQty"`
	Price  decimal.Decimal `json:"price"`
	Label  string          `json:"label,omitempty"`
}

// SizeOption is a size variant with its own base price and stock.
type SizeOption struct {
	Size  string           `json:"size"`
	Price *decimal.Decimal `json:"price,omitempty"`
	Stock int              `json:"stock"`
}

// WholesaleTiers is stored as a JSONB array.
type WholesaleTiers []WholesaleTier

func (t WholesaleTiers) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal(t)
	return string(b), err
}

func (t *WholesaleTiers) Scan(src interface{}) error {
	return scanJSON(src, t)
}

// SizeOptions is stored as a nullable JSONB array.
type SizeOptions []SizeOption

func (s SizeOptions) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	return string(b), err
}

func (s *SizeOptions) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// Find returns the option with the given size name.
func (s SizeOptions) Find(size string) (SizeOption, bool) {
	for _, opt := range s {
		if opt.Size == size {
			return opt, true
		}
	}
	return SizeOption{}, false
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("unsupported JSON column type")
	}
}

// Product is owned by the catalog; the handoff core only reads it and
// decrements stock.
type Product struct {
	ID             int64           `db:"id" json:"id"`
	StoreID        int64           `db:"store_id" json:"storeId"`
	Name           string          `db:"name" json:"name"`
	Price          decimal.Decimal `db:"price" json:"price"`
	WholesaleTiers WholesaleTiers  `db:"wholesale_tiers" json:"wholesaleTiers"`
	Sizes          SizeOptions     `db:"sizes" json:"sizes"`
	Stock          int             `db:"stock" json:"stock"`
}

// Cart is one per (session, store), created on first access.
type Cart struct {
	ID        int64     `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"sessionId"`
	StoreID   int64     `db:"store_id" json:"storeId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// CartItem is unique per (cart, product, size). UnitPrice is a snapshot taken
// on the last mutation.
type CartItem struct {
	ID          int64           `db:"id" json:"id"`
	CartID      int64           `db:"cart_id" json:"cartId"`
	ProductID   int64           `db:"product_id" json:"productId"`
	Size        *string         `db:"size" json:"size"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unitPrice"`
	IsWholesale bool            `db:"is_wholesale" json:"isWholesale"`
	TierLabel   *string         `db:"tier_label" json:"tierLabel"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// Roles a join code can grant.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Join code statuses
const (
	JoinCodeActive  = "active"
	JoinCodeUsed    = "used"
	JoinCodeExpired = "expired"
)

// JoinCode grants membership of a store with a role. At most one active code
// exists per (store, role).
type JoinCode struct {
	ID        int64      `db:"id" json:"id"`
	StoreID   int64      `db:"store_id" json:"storeId"`
	Role      string     `db:"role" json:"role"`
	Code      string     `db:"code" json:"code"`
	Status    string     `db:"status" json:"status"`
	ExpiresAt time.Time  `db:"expires_at" json:"expiresAt"`
	CreatedBy int64      `db:"created_by" json:"createdBy"`
	UsedBy    *int64     `db:"used_by" json:"usedBy"`
	UsedAt    *time.Time `db:"used_at" json:"usedAt"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

// Transfer code statuses
const (
	TransferPending   = "pending"
	TransferConfirmed = "confirmed"
	TransferCancelled = "cancelled"
	TransferExpired   = "expired"
)

// TransferCode binds a cart to a short code a cashier can redeem.
type TransferCode struct {
	ID        int64     `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	CartID    int64     `db:"cart_id" json:"cartId"`
	Status    string    `db:"status" json:"status"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	StaffID   *int64    `db:"staff_id" json:"staffId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Expired reports whether the code's lifetime has passed at now.
func (t *TransferCode) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// Payment methods accepted at the counter.
const (
	PaymentCash        = "cash"
	PaymentCard        = "card"
	PaymentMobileMoney = "mobile_money"
	PaymentVoucher     = "voucher"
)

// ValidPaymentMethod reports whether m is an accepted payment method.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentMobileMoney, PaymentVoucher:
		return true
	}
	return false
}

// Order statuses
const (
	OrderStatusCompleted = "completed"
)

// Order is written once per confirmed transfer code and never updated.
type Order struct {
	ID             int64           `db:"id" json:"id"`
	StoreID        int64           `db:"store_id" json:"storeId"`
	TransferCodeID int64           `db:"transfer_code_id" json:"transferCodeId"`
	Status         string          `db:"status" json:"status"`
	PaymentMethod  string          `db:"payment_method" json:"paymentMethod"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"totalAmount"`
	TotalDiscount  decimal.Decimal `db:"total_discount" json:"totalDiscount"`
	StaffID        int64           `db:"staff_id" json:"staffId"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
}

// OrderItem denormalizes the product name and prices at the time of sale.
type OrderItem struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     int64           `db:"order_id" json:"orderId"`
	ProductID   int64           `db:"product_id" json:"productId"`
	ProductName string          `db:"product_name" json:"productName"`
	Size        *string         `db:"size" json:"size"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unitPrice"`
	BasisPrice  decimal.Decimal `db:"basis_price" json:"basisPrice"`
	IsWholesale bool            `db:"is_wholesale" json:"isWholesale"`
	TierLabel   *string         `db:"tier_label" json:"tierLabel"`
	LineTotal   decimal.Decimal `db:"line_total" json:"lineTotal"`
}

// StoreMember is created when a join code is consumed.
type StoreMember struct {
	StoreID  int64     `db:"store_id" json:"storeId"`
	UserID   int64     `db:"user_id" json:"userId"`
	Role     string    `db:"role" json:"role"`
	JoinedAt time.Time `db:"joined_at" json:"joinedAt"`
}

// AuditEntry is the projection of a domain event kept for staff review.
type AuditEntry struct {
	ID        int64           `db:"id" json:"id"`
	EventID   string          `db:"event_id" json:"eventId"`
	EventType string          `db:"event_type" json:"eventType"`
	StoreID   int64           `db:"store_id" json:"storeId"`
	ActorID   *int64          `db:"actor_id" json:"actorId"`
	Subject   string          `db:"subject" json:"subject"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}
