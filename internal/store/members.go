package store

import (
	"context"

	"handoff-service/internal/models"
)

// GetMember returns the user's membership of a store.
func (s *Store) GetMember(ctx context.Context, storeID, userID int64) (*models.StoreMember, error) {
	var m models.StoreMember
	err := s.db.GetContext(ctx, &m,
		"SELECT * FROM store_members WHERE store_id = $1 AND user_id = $2", storeID, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}
