package service

import (
	"context"

	"handoff-service/internal/apperr"
	"handoff-service/internal/models"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditRepository reads the audit projection written by the audit worker.
type AuditRepository interface {
	ListAuditEntries(ctx context.Context, storeID int64, limit int) ([]models.AuditEntry, error)
}

// AuditService lets store admins review code and handoff activity.
type AuditService struct {
	repo   AuditRepository
	access *Authorizer
}

// NewAuditService creates a new audit service
func NewAuditService(repo AuditRepository, access *Authorizer) *AuditService {
	return &AuditService{repo: repo, access: access}
}

// List returns the newest entries first. limit is clamped to a sane range.
func (s *AuditService) List(ctx context.Context, actor Principal, storeID int64, limit int) ([]models.AuditEntry, error) {
	if storeID <= 0 {
		return nil, apperr.Required("storeId")
	}
	if err := s.access.Require(ctx, actor, storeID, models.RoleAdmin); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	entries, err := s.repo.ListAuditEntries(ctx, storeID, limit)
	if err != nil {
		return nil, apperr.Store("list audit entries", err)
	}
	return entries, nil
}
