package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"handoff-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const transferColumns = `id, code, cart_id, status, expires_at, staff_id, created_at, updated_at`

// ExpireStaleTransfers flips the cart's pending codes whose lifetime passed.
func (s *Store) ExpireStaleTransfers(ctx context.Context, cartID int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE transfer_codes SET status = 'expired', updated_at = $1
		WHERE cart_id = $2 AND status = 'pending' AND expires_at <= $1`,
		now, cartID)
	return err
}

// GetPendingTransfer returns the cart's live pending code.
func (s *Store) GetPendingTransfer(ctx context.Context, cartID int64, now time.Time) (*models.TransferCode, error) {
	var t models.TransferCode
	err := s.db.GetContext(ctx, &t, `
		SELECT `+transferColumns+` FROM transfer_codes
		WHERE cart_id = $1 AND status = 'pending' AND expires_at > $2`,
		cartID, now)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// InsertTransfer stores a new pending code. ErrCodeTaken means the random
// code collided; ErrDuplicate means the cart already has a pending code.
func (s *Store) InsertTransfer(ctx context.Context, t *models.TransferCode) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO transfer_codes (code, cart_id, status, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		t.Code, t.CartID, models.TransferPending, t.ExpiresAt,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if constraint, ok := uniqueConstraint(err); ok {
		if constraint == "transfer_codes_code_key" {
			return ErrCodeTaken
		}
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	t.Status = models.TransferPending
	return nil
}

// GetTransferByCode retrieves a transfer code by its code
func (s *Store) GetTransferByCode(ctx context.Context, code string) (*models.TransferCode, error) {
	var t models.TransferCode
	err := s.db.GetContext(ctx, &t,
		"SELECT "+transferColumns+" FROM transfer_codes WHERE code = $1", code)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// GetTransferByID retrieves a transfer code by ID
func (s *Store) GetTransferByID(ctx context.Context, id int64) (*models.TransferCode, error) {
	var t models.TransferCode
	err := s.db.GetContext(ctx, &t,
		"SELECT "+transferColumns+" FROM transfer_codes WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// ExpireTransfer lazily flips one pending code whose lifetime passed.
func (s *Store) ExpireTransfer(ctx context.Context, id int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE transfer_codes SET status = 'expired', updated_at = $1
		WHERE id = $2 AND status = 'pending' AND expires_at <= $1`,
		now, id)
	return err
}

// CancelTransfer moves a live pending code to cancelled. It returns false
// when the code is not pending anymore or has expired.
func (s *Store) CancelTransfer(ctx context.Context, id, staffID int64, now time.Time) (*models.TransferCode, bool, error) {
	return transition(ctx, s.db, id, staffID, models.TransferCancelled, now)
}

// ClaimTransfer moves a live pending code to confirmed inside the order
// transaction. The row lock it takes serializes concurrent confirmers; the
// loser sees zero rows once the winner commits.
func (t *Tx) ClaimTransfer(ctx context.Context, id, staffID int64, now time.Time) (*models.TransferCode, bool, error) {
	return transition(ctx, t.tx, id, staffID, models.TransferConfirmed, now)
}

func transition(ctx context.Context, q sqlx.QueryerContext, id, staffID int64, status string, now time.Time) (*models.TransferCode, bool, error) {
	var t models.TransferCode
	err := sqlx.GetContext(ctx, q, &t, `
		UPDATE transfer_codes SET status = $1, staff_id = $2, updated_at = $3
		WHERE id = $4 AND status = 'pending' AND expires_at > $3
		RETURNING `+transferColumns,
		status, staffID, now, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &t, true, nil
}
