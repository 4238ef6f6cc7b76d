package store

import (
	"context"

	"handoff-service/internal/models"
)

// RecordAuditEvent stores the audit projection of an event and marks the
// event processed in one transaction, so redelivered messages are no-ops.
func (s *Store) RecordAuditEvent(ctx context.Context, entry *models.AuditEntry) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		res, err := tx.tx.ExecContext(ctx,
			"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
			entry.EventID, entry.EventType)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		_, err = tx.tx.ExecContext(ctx, `
			INSERT INTO audit_log (event_id, event_type, store_id, actor_id, subject, payload)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			entry.EventID, entry.EventType, entry.StoreID, entry.ActorID, entry.Subject, string(entry.Payload))
		return err
	})
}

// ListAuditEntries returns the most recent audit entries of a store.
func (s *Store) ListAuditEntries(ctx context.Context, storeID int64, limit int) ([]models.AuditEntry, error) {
	entries := []models.AuditEntry{}
	err := s.db.SelectContext(ctx, &entries, `
		SELECT * FROM audit_log WHERE store_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`,
		storeID, limit)
	return entries, err
}
