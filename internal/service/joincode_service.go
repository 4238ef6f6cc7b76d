package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"handoff-service/internal/apperr"
	"handoff-service/internal/codes"
	"handoff-service/internal/models"
	"handoff-service/internal/store"
	"handoff-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Verification modes for join codes.
const (
	ModeCheck   = "check"
	ModeConsume = "consume"
)

// JoinCodeService issues and redeems stored join codes.
type JoinCodeService struct {
	repo      JoinCodeRepository
	access    *Authorizer
	publisher EventPublisher
	gen       codes.Generator
	ttl       time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewJoinCodeService creates a new join code service
func NewJoinCodeService(
	repo JoinCodeRepository,
	access *Authorizer,
	publisher EventPublisher,
	gen codes.Generator,
	ttl time.Duration,
) *JoinCodeService {
	return &JoinCodeService{
		repo:      repo,
		access:    access,
		publisher: publisher,
		gen:       gen,
		ttl:       ttl,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// IssueJoinCodeRequest represents a request for a new join code
type IssueJoinCodeRequest struct {
	StoreID int64  `json:"storeId"`
	Role    string `json:"role"`
}

// VerifyJoinCodeRequest checks a join code, or redeems it when Mode is
// consume.
type VerifyJoinCodeRequest struct {
	StoreID int64  `json:"storeId"`
	Code    string `json:"code"`
	Role    string `json:"role"`
	Mode    string `json:"mode"`
	UserID  *int64 `json:"userId,omitempty"`
}

// JoinCodeVerification is the outcome of a successful verify.
type JoinCodeVerification struct {
	Valid    bool             `json:"valid"`
	Consumed bool             `json:"consumed"`
	JoinCode *models.JoinCode `json:"joinCode,omitempty"`
}

// Issue replaces the active code for (store, role) with a fresh one. Only
// store admins may issue.
func (s *JoinCodeService) Issue(ctx context.Context, actor Principal, req *IssueJoinCodeRequest) (*models.JoinCode, error) {
	ctx, span := util.StartSpan(ctx, "JoinCodeService.Issue",
		attribute.Int64("store_id", req.StoreID), attribute.String("role", req.Role))
	defer span.End()

	if err := validateScope(req.StoreID, req.Role); err != nil {
		return nil, err
	}
	if err := s.access.Require(ctx, actor, req.StoreID, models.RoleAdmin); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.gen.Numeric()
		if err != nil {
			return nil, apperr.Store("generate join code", err)
		}

		jc := &models.JoinCode{
			StoreID:   req.StoreID,
			Role:      req.Role,
			Code:      code,
			ExpiresAt: s.now().Add(s.ttl),
			CreatedBy: actor.UserID,
		}
		err = s.repo.IssueJoinCode(ctx, jc)
		if errors.Is(err, store.ErrCodeTaken) || errors.Is(err, store.ErrDuplicate) {
			s.logger.Debug("Join code collision, regenerating", zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, apperr.Store("issue join code", err)
		}

		util.JoinCodesIssuedTotal.WithLabelValues(jc.Role).Inc()
		s.logger.Info("Join code issued",
			zap.Int64("store_id", jc.StoreID),
			zap.String("role", jc.Role),
			zap.Int64("created_by", jc.CreatedBy))

		event := &models.JoinCodeIssuedEvent{
			BaseEvent:  newBaseEvent(models.EventTypeJoinCodeIssued, jc.StoreID),
			JoinCodeID: jc.ID,
			Role:       jc.Role,
			CreatedBy:  jc.CreatedBy,
			ExpiresAt:  jc.ExpiresAt,
		}
		if err := s.publisher.PublishJoinCodeIssued(ctx, event); err != nil {
			s.publishFailed(event.EventType, err)
		}
		return jc, nil
	}

	return nil, apperr.Conflict("could not allocate a join code, try again")
}

// Active returns the live code for (store, role) to a store admin.
func (s *JoinCodeService) Active(ctx context.Context, actor Principal, storeID int64, role string) (*models.JoinCode, error) {
	if err := validateScope(storeID, role); err != nil {
		return nil, err
	}
	if err := s.access.Require(ctx, actor, storeID, models.RoleAdmin); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.repo.ExpireJoinCodes(ctx, storeID, role, now); err != nil {
		return nil, apperr.Store("expire join codes", err)
	}

	jc, err := s.repo.GetActiveJoinCode(ctx, storeID, role, now)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("no active join code")
	}
	if err != nil {
		return nil, apperr.Store("load join code", err)
	}
	return jc, nil
}

// Verify matches a presented code against the live code for (store, role).
// In consume mode a match is redeemed for the authenticated user.
func (s *JoinCodeService) Verify(ctx context.Context, actor Principal, req *VerifyJoinCodeRequest) (*JoinCodeVerification, error) {
	ctx, span := util.StartSpan(ctx, "JoinCodeService.Verify",
		attribute.Int64("store_id", req.StoreID), attribute.String("mode", req.Mode))
	defer span.End()

	mode := req.Mode
	if mode == "" {
		mode = ModeCheck
	}
	if mode != ModeCheck && mode != ModeConsume {
		return nil, apperr.Validation("mode must be check or consume")
	}
	if err := validateScope(req.StoreID, req.Role); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, apperr.Required("code")
	}

	userID, err := actorID(actor, req.UserID)
	if err != nil {
		return nil, err
	}

	jc, err := s.match(ctx, req.StoreID, req.Role, code)
	if err != nil {
		util.JoinCodeVerificationsTotal.WithLabelValues(mode, "invalid").Inc()
		return nil, err
	}

	if mode == ModeCheck {
		util.JoinCodeVerificationsTotal.WithLabelValues(mode, "valid").Inc()
		return &JoinCodeVerification{Valid: true}, nil
	}

	used, err := s.Consume(ctx, jc.ID, userID)
	if err != nil {
		util.JoinCodeVerificationsTotal.WithLabelValues(mode, "conflict").Inc()
		return nil, err
	}
	util.JoinCodeVerificationsTotal.WithLabelValues(mode, "consumed").Inc()
	return &JoinCodeVerification{Valid: true, Consumed: true, JoinCode: used}, nil
}

// Consume redeems code id for userID and grants its role. Two concurrent
// consumers cannot both succeed; the loser gets a Conflict.
func (s *JoinCodeService) Consume(ctx context.Context, id, userID int64) (*models.JoinCode, error) {
	jc, ok, err := s.repo.ConsumeJoinCode(ctx, id, userID, s.now())
	if err != nil {
		return nil, apperr.Store("consume join code", err)
	}
	if !ok {
		return nil, apperr.Conflict("join code already used or expired")
	}

	s.logger.Info("Join code consumed",
		zap.Int64("store_id", jc.StoreID),
		zap.String("role", jc.Role),
		zap.Int64("user_id", userID))

	event := &models.JoinCodeConsumedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeJoinCodeConsumed, jc.StoreID),
		JoinCodeID: jc.ID,
		Role:       jc.Role,
		UserID:     userID,
	}
	if err := s.publisher.PublishJoinCodeConsumed(ctx, event); err != nil {
		s.publishFailed(event.EventType, err)
	}
	return jc, nil
}

// match sweeps expired codes of the scope first so a lapsed code never
// matches.
func (s *JoinCodeService) match(ctx context.Context, storeID int64, role, code string) (*models.JoinCode, error) {
	if !codes.IsNumeric(code) {
		return nil, apperr.Validation(apperr.MsgInvalidCode)
	}

	now := s.now()
	if err := s.repo.ExpireJoinCodes(ctx, storeID, role, now); err != nil {
		return nil, apperr.Store("expire join codes", err)
	}

	jc, err := s.repo.FindActiveJoinCode(ctx, storeID, role, code, now)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Validation(apperr.MsgInvalidCode)
	}
	if err != nil {
		return nil, apperr.Store("find join code", err)
	}
	return jc, nil
}

func (s *JoinCodeService) publishFailed(eventType string, err error) {
	util.EventsPublishFailedTotal.WithLabelValues(eventType).Inc()
	s.logger.Error("Failed to publish event", zap.String("event_type", eventType), zap.Error(err))
}

func validateScope(storeID int64, role string) error {
	if storeID <= 0 {
		return apperr.Required("storeId")
	}
	if role == "" {
		return apperr.Required("role")
	}
	if role != models.RoleAdmin && role != models.RoleStaff {
		return apperr.Validation("role must be admin or staff")
	}
	return nil
}
