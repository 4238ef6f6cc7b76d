package store

import (
	"context"
	"errors"
	"time"

	"handoff-service/internal/models"
)

const joinCodeColumns = `id, store_id, role, code, status, expires_at, created_by, used_by, used_at, created_at`

// IssueJoinCode expires every active code for (store, role) and inserts jc as
// the new active one, in one transaction. ErrCodeTaken means the code was
// issued before, in any store and any status; ErrDuplicate means a
// concurrent issue for the same (store, role) won the slot.
func (s *Store) IssueJoinCode(ctx context.Context, jc *models.JoinCode) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.tx.ExecContext(ctx, `
			UPDATE join_codes SET status = 'expired'
			WHERE store_id = $1 AND role = $2 AND status = 'active'`,
			jc.StoreID, jc.Role)
		if err != nil {
			return err
		}

		err = tx.tx.QueryRowxContext(ctx, `
			INSERT INTO join_codes (store_id, role, code, status, expires_at, created_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at`,
			jc.StoreID, jc.Role, jc.Code, models.JoinCodeActive, jc.ExpiresAt, jc.CreatedBy,
		).Scan(&jc.ID, &jc.CreatedAt)
		if constraint, ok := uniqueConstraint(err); ok {
			if constraint == "join_codes_code_key" {
				return ErrCodeTaken
			}
			return ErrDuplicate
		}
		if err != nil {
			return err
		}
		jc.Status = models.JoinCodeActive
		return nil
	})
}

// ExpireJoinCodes flips active codes of (store, role) whose lifetime has
// passed. Running it twice is harmless.
func (s *Store) ExpireJoinCodes(ctx context.Context, storeID int64, role string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE join_codes SET status = 'expired'
		WHERE store_id = $1 AND role = $2 AND status = 'active' AND expires_at <= $3`,
		storeID, role, now)
	return err
}

// GetActiveJoinCode returns the live code for (store, role).
func (s *Store) GetActiveJoinCode(ctx context.Context, storeID int64, role string, now time.Time) (*models.JoinCode, error) {
	var jc models.JoinCode
	err := s.db.GetContext(ctx, &jc, `
		SELECT `+joinCodeColumns+` FROM join_codes
		WHERE store_id = $1 AND role = $2 AND status = 'active' AND expires_at > $3`,
		storeID, role, now)
	if err != nil {
		return nil, notFound(err)
	}
	return &jc, nil
}

// FindActiveJoinCode matches a presented code against the live code for
// (store, role).
func (s *Store) FindActiveJoinCode(ctx context.Context, storeID int64, role, code string, now time.Time) (*models.JoinCode, error) {
	var jc models.JoinCode
	err := s.db.GetContext(ctx, &jc, `
		SELECT `+joinCodeColumns+` FROM join_codes
		WHERE store_id = $1 AND role = $2 AND code = $3 AND status = 'active' AND expires_at > $4`,
		storeID, role, code, now)
	if err != nil {
		return nil, notFound(err)
	}
	return &jc, nil
}

// ConsumeJoinCode marks the code used by userID and records the membership it
// grants. The conditional update is the only guard against double use: it
// returns false when the code is no longer active.
func (s *Store) ConsumeJoinCode(ctx context.Context, id, userID int64, now time.Time) (*models.JoinCode, bool, error) {
	var jc models.JoinCode
	applied := false

	err := s.WithTx(ctx, func(tx *Tx) error {
		err := tx.tx.GetContext(ctx, &jc, `
			UPDATE join_codes SET status = 'used', used_at = $1, used_by = $2
			WHERE id = $3 AND status = 'active' AND expires_at > $1
			RETURNING `+joinCodeColumns,
			now, userID, id)
		if err != nil {
			return notFound(err)
		}

		_, err = tx.tx.ExecContext(ctx, `
			INSERT INTO store_members (store_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (store_id, user_id) DO UPDATE
			SET role = CASE WHEN store_members.role = 'admin' THEN 'admin' ELSE EXCLUDED.role END`,
			jc.StoreID, userID, jc.Role, now)
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &jc, applied, nil
}
