package store

import (
	"context"
	"time"

	"handoff-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const cartItemColumns = `id, cart_id, product_id, size, quantity, unit_price, is_wholesale, tier_label, created_at, updated_at`

// GetOrCreateCart returns the session's cart for the store, creating it on
// first access. Concurrent callers end up with the same row.
func (s *Store) GetOrCreateCart(ctx context.Context, sessionID string, storeID int64) (*models.Cart, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO carts (session_id, store_id) VALUES ($1, $2)
		ON CONFLICT (session_id, store_id) DO NOTHING`,
		sessionID, storeID)
	if err != nil {
		return nil, err
	}
	return s.FindCart(ctx, sessionID, storeID)
}

// FindCart returns the session's cart for the store without creating it.
func (s *Store) FindCart(ctx context.Context, sessionID string, storeID int64) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart,
		"SELECT * FROM carts WHERE session_id = $1 AND store_id = $2", sessionID, storeID)
	if err != nil {
		return nil, notFound(err)
	}
	return &cart, nil
}

// GetCart retrieves a cart by ID
func (s *Store) GetCart(ctx context.Context, cartID int64) (*models.Cart, error) {
	return getCart(ctx, s.db, cartID)
}

func (t *Tx) GetCart(ctx context.Context, cartID int64) (*models.Cart, error) {
	return getCart(ctx, t.tx, cartID)
}

func getCart(ctx context.Context, q sqlx.QueryerContext, cartID int64) (*models.Cart, error) {
	var cart models.Cart
	if err := sqlx.GetContext(ctx, q, &cart, "SELECT * FROM carts WHERE id = $1", cartID); err != nil {
		return nil, notFound(err)
	}
	return &cart, nil
}

// GetCartItems retrieves all lines of a cart in insertion order
func (s *Store) GetCartItems(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	return getCartItems(ctx, s.db, cartID)
}

func (t *Tx) GetCartItems(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	return getCartItems(ctx, t.tx, cartID)
}

func getCartItems(ctx context.Context, q sqlx.QueryerContext, cartID int64) ([]models.CartItem, error) {
	items := []models.CartItem{}
	err := sqlx.SelectContext(ctx, q, &items,
		"SELECT "+cartItemColumns+" FROM cart_items WHERE cart_id = $1 ORDER BY id", cartID)
	return items, err
}

// GetCartItem retrieves a cart line by ID
func (s *Store) GetCartItem(ctx context.Context, itemID int64) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.GetContext(ctx, &item,
		"SELECT "+cartItemColumns+" FROM cart_items WHERE id = $1", itemID)
	if err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// FindCartItem returns the line for (cart, product, size). A nil size only
// matches a line without size.
func (s *Store) FindCartItem(ctx context.Context, cartID, productID int64, size *string) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.GetContext(ctx, &item, `
		SELECT `+cartItemColumns+` FROM cart_items
		WHERE cart_id = $1 AND product_id = $2 AND COALESCE(size, '') = COALESCE($3, '')`,
		cartID, productID, size)
	if err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// InsertCartItem adds a new line. ErrDuplicate means a concurrent request
// inserted the same (cart, product, size) first.
func (s *Store) InsertCartItem(ctx context.Context, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (cart_id, product_id, size, quantity, unit_price, is_wholesale, tier_label)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		item.CartID, item.ProductID, item.Size, item.Quantity,
		item.UnitPrice, item.IsWholesale, item.TierLabel,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if constraint, ok := uniqueConstraint(err); ok && constraint == "cart_items_identity_key" {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	return s.touchCart(ctx, item.CartID)
}

// UpdateCartItem overwrites quantity and the price snapshot.
func (s *Store) UpdateCartItem(ctx context.Context, item *models.CartItem) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cart_items
		SET quantity = $1, unit_price = $2, is_wholesale = $3, tier_label = $4, updated_at = NOW()
		WHERE id = $5`,
		item.Quantity, item.UnitPrice, item.IsWholesale, item.TierLabel, item.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return s.touchCart(ctx, item.CartID)
}

// UpdateCartItemIfQuantity is UpdateCartItem guarded by the quantity the
// caller read. It returns false when another request changed the line first.
func (s *Store) UpdateCartItemIfQuantity(ctx context.Context, item *models.CartItem, expected int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cart_items
		SET quantity = $1, unit_price = $2, is_wholesale = $3, tier_label = $4, updated_at = NOW()
		WHERE id = $5 AND quantity = $6`,
		item.Quantity, item.UnitPrice, item.IsWholesale, item.TierLabel, item.ID, expected)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	return true, s.touchCart(ctx, item.CartID)
}

// DeleteCartItem removes a line; deleting a missing line is not an error.
func (s *Store) DeleteCartItem(ctx context.Context, itemID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE id = $1", itemID)
	return err
}

// ClearCart deletes every line of the cart. The cart row stays for reuse.
func (t *Tx) ClearCart(ctx context.Context, cartID int64) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, "UPDATE carts SET updated_at = $1 WHERE id = $2", time.Now(), cartID)
	return err
}

func (s *Store) touchCart(ctx context.Context, cartID int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE carts SET updated_at = NOW() WHERE id = $1", cartID)
	return err
}
