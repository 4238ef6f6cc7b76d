package store

import (
	"context"

	"handoff-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const productColumns = `id, store_id, name, price, wholesale_tiers, sizes, stock`

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	return getProductsByIDs(ctx, s.db, ids)
}

func (t *Tx) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	return getProductsByIDs(ctx, t.tx, ids)
}

func getProductsByIDs(ctx context.Context, q sqlx.QueryerContext, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	var products []models.Product
	err = sqlx.SelectContext(ctx, q, &products, query, args...)
	return products, err
}

// DecrementStock lowers the product's stock counter, and the size's counter
// when size is set, never below zero. It runs under a savepoint so a failure
// leaves the surrounding transaction usable; the counters are advisory.
func (t *Tx) DecrementStock(ctx context.Context, productID int64, size *string, quantity int) error {
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT stock_decrement"); err != nil {
		return err
	}

	err := t.decrementStock(ctx, productID, size, quantity)
	if err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT stock_decrement"); rbErr != nil {
			return rbErr
		}
		return err
	}

	_, err = t.tx.ExecContext(ctx, "RELEASE SAVEPOINT stock_decrement")
	return err
}

func (t *Tx) decrementStock(ctx context.Context, productID int64, size *string, quantity int) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE products SET stock = GREATEST(stock - $1, 0) WHERE id = $2",
		quantity, productID)
	if err != nil || size == nil {
		return err
	}

	_, err = t.tx.ExecContext(ctx, `
		UPDATE products p SET sizes = (
			SELECT jsonb_agg(
				CASE WHEN elem->>'size' = $2
					THEN jsonb_set(elem, '{stock}', to_jsonb(GREATEST(COALESCE((elem->>'stock')::int, 0) - $3, 0)))
					ELSE elem
				END ORDER BY ord)
			FROM jsonb_array_elements(p.sizes) WITH ORDINALITY AS s(elem, ord)
		)
		WHERE p.id = $1 AND p.sizes IS NOT NULL AND jsonb_array_length(p.sizes) > 0`,
		productID, *size, quantity)
	return err
}
