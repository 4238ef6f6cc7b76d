package service

import (
	"context"
	"errors"

	"handoff-service/internal/apperr"
	"handoff-service/internal/store"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID     int64
	SuperAdmin bool
}

// Authenticated reports whether the request carried a valid identity.
func (p Principal) Authenticated() bool {
	return p.UserID > 0
}

// Authorizer checks store roles recorded by join-code consumption.
type Authorizer struct {
	members MemberRepository
}

// NewAuthorizer creates a new store role authorizer
func NewAuthorizer(members MemberRepository) *Authorizer {
	return &Authorizer{members: members}
}

// Require returns nil when p holds one of roles in storeID. Super admins pass
// every check.
func (a *Authorizer) Require(ctx context.Context, p Principal, storeID int64, roles ...string) error {
	if !p.Authenticated() {
		return apperr.Unauthenticated(apperr.MsgAuthRequired)
	}
	if p.SuperAdmin {
		return nil
	}

	member, err := a.members.GetMember(ctx, storeID, p.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.Forbidden(apperr.MsgInsufficientRole)
	}
	if err != nil {
		return apperr.Store("load membership", err)
	}

	for _, role := range roles {
		if member.Role == role {
			return nil
		}
	}
	return apperr.Forbidden(apperr.MsgInsufficientRole)
}

// actorID resolves the acting user. A client-supplied id must match the
// authenticated one.
func actorID(p Principal, claimed *int64) (int64, error) {
	if !p.Authenticated() {
		return 0, apperr.Unauthenticated(apperr.MsgAuthRequired)
	}
	if claimed != nil && *claimed != p.UserID {
		return 0, apperr.Forbidden(apperr.MsgActorMismatch)
	}
	return p.UserID, nil
}
