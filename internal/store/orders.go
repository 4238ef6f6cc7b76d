package store

import (
	"context"

	"handoff-service/internal/models"
)

// CreateOrder creates a new order
func (t *Tx) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (store_id, transfer_code_id, status, payment_method, total_amount, total_discount, staff_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := t.tx.QueryRowxContext(ctx, query,
		order.StoreID, order.TransferCodeID, order.Status, order.PaymentMethod,
		order.TotalAmount, order.TotalDiscount, order.StaffID,
	).Scan(&order.ID, &order.CreatedAt)
	if _, ok := uniqueConstraint(err); ok {
		return ErrDuplicate
	}
	return err
}

// CreateOrderItem creates a new order item
func (t *Tx) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items
			(order_id, product_id, product_name, size, quantity, unit_price, basis_price, is_wholesale, tier_label, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	return t.tx.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.ProductName, item.Size, item.Quantity,
		item.UnitPrice, item.BasisPrice, item.IsWholesale, item.TierLabel, item.LineTotal)
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// CountOrdersForTransfer counts the orders written for a transfer code.
func (s *Store) CountOrdersForTransfer(ctx context.Context, transferID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM orders WHERE transfer_code_id = $1", transferID)
	return n, err
}
