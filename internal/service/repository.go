package service

import (
	"context"
	"time"

	"handoff-service/internal/models"
	"handoff-service/internal/store"
)

// cartReader is what pricing a cart needs; both the store and an open
// handoff transaction provide it.
type cartReader interface {
	GetCartItems(ctx context.Context, cartID int64) ([]models.CartItem, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
}

// CartRepository persists carts and their lines.
type CartRepository interface {
	cartReader
	GetOrCreateCart(ctx context.Context, sessionID string, storeID int64) (*models.Cart, error)
	FindCart(ctx context.Context, sessionID string, storeID int64) (*models.Cart, error)
	GetCart(ctx context.Context, cartID int64) (*models.Cart, error)
	GetCartItem(ctx context.Context, itemID int64) (*models.CartItem, error)
	FindCartItem(ctx context.Context, cartID, productID int64, size *string) (*models.CartItem, error)
	InsertCartItem(ctx context.Context, item *models.CartItem) error
	UpdateCartItem(ctx context.Context, item *models.CartItem) error
	UpdateCartItemIfQuantity(ctx context.Context, item *models.CartItem, expected int) (bool, error)
	DeleteCartItem(ctx context.Context, itemID int64) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
}

// HandoffTx is the transactional view used while confirming a transfer.
type HandoffTx interface {
	cartReader
	ClaimTransfer(ctx context.Context, id, staffID int64, now time.Time) (*models.TransferCode, bool, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	DecrementStock(ctx context.Context, productID int64, size *string, quantity int) error
	ClearCart(ctx context.Context, cartID int64) error
}

// TransferRepository persists transfer codes and runs the confirm
// transaction.
type TransferRepository interface {
	cartReader
	GetCart(ctx context.Context, cartID int64) (*models.Cart, error)
	ExpireStaleTransfers(ctx context.Context, cartID int64, now time.Time) error
	GetPendingTransfer(ctx context.Context, cartID int64, now time.Time) (*models.TransferCode, error)
	InsertTransfer(ctx context.Context, t *models.TransferCode) error
	GetTransferByCode(ctx context.Context, code string) (*models.TransferCode, error)
	GetTransferByID(ctx context.Context, id int64) (*models.TransferCode, error)
	ExpireTransfer(ctx context.Context, id int64, now time.Time) error
	CancelTransfer(ctx context.Context, id, staffID int64, now time.Time) (*models.TransferCode, bool, error)
	RunHandoff(ctx context.Context, fn func(HandoffTx) error) error
}

// JoinCodeRepository persists stored join codes.
type JoinCodeRepository interface {
	IssueJoinCode(ctx context.Context, jc *models.JoinCode) error
	ExpireJoinCodes(ctx context.Context, storeID int64, role string, now time.Time) error
	GetActiveJoinCode(ctx context.Context, storeID int64, role string, now time.Time) (*models.JoinCode, error)
	FindActiveJoinCode(ctx context.Context, storeID int64, role, code string, now time.Time) (*models.JoinCode, error)
	ConsumeJoinCode(ctx context.Context, id, userID int64, now time.Time) (*models.JoinCode, bool, error)
}

// MemberRepository reads store memberships.
type MemberRepository interface {
	GetMember(ctx context.Context, storeID, userID int64) (*models.StoreMember, error)
}

// EventPublisher publishes domain events after state changes commit.
type EventPublisher interface {
	PublishTransferIssued(ctx context.Context, event *models.TransferIssuedEvent) error
	PublishTransferConfirmed(ctx context.Context, event *models.TransferConfirmedEvent) error
	PublishTransferCancelled(ctx context.Context, event *models.TransferCancelledEvent) error
	PublishJoinCodeIssued(ctx context.Context, event *models.JoinCodeIssuedEvent) error
	PublishJoinCodeConsumed(ctx context.Context, event *models.JoinCodeConsumedEvent) error
}

// StoreRepository adapts *store.Store to every repository interface above.
type StoreRepository struct {
	*store.Store
}

// NewRepository wraps the Postgres store.
func NewRepository(s *store.Store) *StoreRepository {
	return &StoreRepository{Store: s}
}

// RunHandoff runs fn in one database transaction.
func (r *StoreRepository) RunHandoff(ctx context.Context, fn func(HandoffTx) error) error {
	return r.WithTx(ctx, func(tx *store.Tx) error {
		return fn(tx)
	})
}

var (
	_ CartRepository     = (*StoreRepository)(nil)
	_ TransferRepository = (*StoreRepository)(nil)
	_ JoinCodeRepository = (*StoreRepository)(nil)
	_ MemberRepository   = (*StoreRepository)(nil)
	_ HandoffTx          = (*store.Tx)(nil)
)

var _ AuditRepository = (*StoreRepository)(nil)
