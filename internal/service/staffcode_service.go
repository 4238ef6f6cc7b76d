package service

import (
	"context"
	"strings"
	"time"

	"handoff-service/internal/apperr"
	"handoff-service/internal/codes"
	"handoff-service/internal/models"
	"handoff-service/internal/util"
)

// StaffCodeService exposes the deterministic staff code. Nothing is stored:
// a code stays valid for anyone until its window and the grace window lapse.
type StaffCodeService struct {
	codes  *codes.StaffCodes
	access *Authorizer
	now    func() time.Time
}

// NewStaffCodeService creates a new staff code service
func NewStaffCodeService(staffCodes *codes.StaffCodes, access *Authorizer) *StaffCodeService {
	return &StaffCodeService{codes: staffCodes, access: access, now: time.Now}
}

// VerifyStaffCodeRequest represents a staff code presented for a store
type VerifyStaffCodeRequest struct {
	StoreID int64  `json:"storeId"`
	Code    string `json:"code"`
}

// Current returns the store's code for the running window to a store admin.
func (s *StaffCodeService) Current(ctx context.Context, actor Principal, storeID int64) (codes.StaffCode, error) {
	if storeID <= 0 {
		return codes.StaffCode{}, apperr.Required("storeId")
	}
	if err := s.access.Require(ctx, actor, storeID, models.RoleAdmin); err != nil {
		return codes.StaffCode{}, err
	}
	return s.codes.Current(storeID, s.now()), nil
}

// Verify accepts the code of the current or the previous window.
func (s *StaffCodeService) Verify(req *VerifyStaffCodeRequest) error {
	if req.StoreID <= 0 {
		return apperr.Required("storeId")
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return apperr.Required("code")
	}

	if !s.codes.Verify(req.StoreID, code, s.now()) {
		util.StaffCodeVerificationsTotal.WithLabelValues("invalid").Inc()
		return apperr.Validation(apperr.MsgInvalidCode)
	}
	util.StaffCodeVerificationsTotal.WithLabelValues("valid").Inc()
	return nil
}
