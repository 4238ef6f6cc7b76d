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

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// maxCodeAttempts bounds regeneration when a random code collides.
const maxCodeAttempts = 5

// Actions accepted on a pending transfer.
const (
	ActionConfirm = "confirm"
	ActionCancel  = "cancel"
)

var errNotClaimed = errors.New("transfer no longer pending")

// TransferService issues transfer codes and drives the checkout handoff.
type TransferService struct {
	repo      TransferRepository
	access    *Authorizer
	publisher EventPublisher
	gen       codes.Generator
	ttl       time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewTransferService creates a new transfer service
func NewTransferService(
	repo TransferRepository,
	access *Authorizer,
	publisher EventPublisher,
	gen codes.Generator,
	ttl time.Duration,
) *TransferService {
	return &TransferService{
		repo:      repo,
		access:    access,
		publisher: publisher,
		gen:       gen,
		ttl:       ttl,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// TransferLookup is what a cashier sees after entering a code.
type TransferLookup struct {
	Transfer *models.TransferCode `json:"transfer"`
	StoreID  int64                `json:"storeId"`
	Cart     *CartView            `json:"cart"`
}

// TransferActionRequest confirms or cancels a pending transfer.
type TransferActionRequest struct {
	TransferID    int64  `json:"transferId"`
	Action        string `json:"action"`
	StaffID       *int64 `json:"staffId,omitempty"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
}

// ConfirmResult is the order materialized from a transfer.
type ConfirmResult struct {
	Order *models.Order      `json:"order"`
	Items []models.OrderItem `json:"items"`
}

// Issue returns the cart's pending transfer code, creating one when none is
// live. Issuing twice for the same cart returns the same code.
func (s *TransferService) Issue(ctx context.Context, cartID int64) (*models.TransferCode, error) {
	ctx, span := util.StartSpan(ctx, "TransferService.Issue", attribute.Int64("cart_id", cartID))
	defer span.End()

	if cartID <= 0 {
		return nil, apperr.Required("cartId")
	}

	cart, err := s.repo.GetCart(ctx, cartID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("cart not found")
	}
	if err != nil {
		return nil, apperr.Store("load cart", err)
	}

	items, err := s.repo.GetCartItems(ctx, cartID)
	if err != nil {
		return nil, apperr.Store("load cart items", err)
	}
	if len(items) == 0 {
		return nil, apperr.Conflict(apperr.MsgCartEmpty)
	}

	now := s.now()
	if err := s.repo.ExpireStaleTransfers(ctx, cartID, now); err != nil {
		return nil, apperr.Store("expire stale transfers", err)
	}

	pending, err := s.repo.GetPendingTransfer(ctx, cartID, now)
	if err == nil {
		util.TransferCodesIssuedTotal.WithLabelValues("reused").Inc()
		return pending, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Store("load pending transfer", err)
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.gen.Base36()
		if err != nil {
			return nil, apperr.Store("generate transfer code", err)
		}

		t := &models.TransferCode{
			Code:      code,
			CartID:    cartID,
			ExpiresAt: now.Add(s.ttl),
		}
		err = s.repo.InsertTransfer(ctx, t)
		switch {
		case err == nil:
			util.TransferCodesIssuedTotal.WithLabelValues("new").Inc()
			s.logger.Info("Transfer code issued",
				zap.Int64("transfer_id", t.ID),
				zap.Int64("cart_id", cartID))
			s.publishIssued(ctx, cart.StoreID, t)
			return t, nil

		case errors.Is(err, store.ErrCodeTaken):
			continue

		case errors.Is(err, store.ErrDuplicate):
			// A concurrent request issued the cart's code first.
			winner, err := s.repo.GetPendingTransfer(ctx, cartID, now)
			if err == nil {
				util.TransferCodesIssuedTotal.WithLabelValues("reused").Inc()
				return winner, nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return nil, apperr.Store("load pending transfer", err)
			}

		default:
			return nil, apperr.Store("insert transfer code", err)
		}
	}

	return nil, apperr.Conflict("could not allocate a transfer code, try again")
}

// Lookup resolves a code for a cashier of the cart's store and prices the
// cart as it stands now. A code belonging to a store the actor has no role in
// is reported as not found, the same as an unknown code.
func (s *TransferService) Lookup(ctx context.Context, actor Principal, code string) (*TransferLookup, error) {
	ctx, span := util.StartSpan(ctx, "TransferService.Lookup")
	defer span.End()

	if !actor.Authenticated() {
		return nil, apperr.Unauthenticated(apperr.MsgAuthRequired)
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, apperr.Required("code")
	}
	if !codes.IsBase36(code) {
		return nil, apperr.NotFound("transfer code not found")
	}

	t, err := s.repo.GetTransferByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("transfer code not found")
	}
	if err != nil {
		return nil, apperr.Store("load transfer", err)
	}

	storeID, err := s.authorize(ctx, actor, t)
	if apperr.Is(err, apperr.KindForbidden) {
		return nil, apperr.NotFound("transfer code not found")
	}
	if err != nil {
		return nil, err
	}

	if err := s.ensurePending(ctx, t); err != nil {
		return nil, err
	}

	view, err := priceCart(ctx, s.repo, t.CartID)
	if err != nil {
		return nil, apperr.Store("price cart", err)
	}

	return &TransferLookup{Transfer: t, StoreID: storeID, Cart: view}, nil
}

// Confirm turns a pending transfer into a completed order in one
// transaction: claim the code, re-price the cart, write the order and its
// items, decrement stock and clear the cart. A code can be confirmed once.
func (s *TransferService) Confirm(ctx context.Context, actor Principal, transferID int64, staffID *int64, paymentMethod string) (*ConfirmResult, error) {
	ctx, span := util.StartSpan(ctx, "TransferService.Confirm", attribute.Int64("transfer_id", transferID))
	defer span.End()

	if transferID <= 0 {
		return nil, apperr.Required("transferId")
	}
	if paymentMethod == "" {
		paymentMethod = models.PaymentCash
	}
	paymentMethod = strings.ToLower(paymentMethod)
	if !models.ValidPaymentMethod(paymentMethod) {
		return nil, apperr.Validation("unsupported payment method " + paymentMethod)
	}

	actingID, err := actorID(actor, staffID)
	if err != nil {
		return nil, err
	}

	t, err := s.loadTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	storeID, err := s.authorize(ctx, actor, t)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	now := s.now()
	var result *ConfirmResult
	var lines []CartLine

	err = s.repo.RunHandoff(ctx, func(tx HandoffTx) error {
		claimed, ok, err := tx.ClaimTransfer(ctx, transferID, actingID, now)
		if err != nil {
			return apperr.Store("claim transfer", err)
		}
		if !ok {
			return errNotClaimed
		}

		view, err := priceCart(ctx, tx, claimed.CartID)
		if err != nil {
			return apperr.Store("price cart", err)
		}
		if len(view.Items) == 0 {
			return apperr.Conflict(apperr.MsgCartEmpty)
		}

		order := &models.Order{
			StoreID:        storeID,
			TransferCodeID: claimed.ID,
			Status:         models.OrderStatusCompleted,
			PaymentMethod:  paymentMethod,
			TotalAmount:    view.Total,
			TotalDiscount:  view.TotalDiscount,
			StaffID:        actingID,
		}
		err = tx.CreateOrder(ctx, order)
		if errors.Is(err, store.ErrDuplicate) {
			return errNotClaimed
		}
		if err != nil {
			return apperr.Store("create order", err)
		}

		items := make([]models.OrderItem, 0, len(view.Items))
		for _, line := range view.Items {
			item := models.OrderItem{
				OrderID:     order.ID,
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Size:        line.Size,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
				BasisPrice:  line.BasisPrice,
				IsWholesale: line.IsWholesale,
				TierLabel:   line.TierLabel,
				LineTotal:   line.LineTotal,
			}
			if err := tx.CreateOrderItem(ctx, &item); err != nil {
				return apperr.Store("create order item", err)
			}
			items = append(items, item)
		}

		for _, line := range view.Items {
			if err := tx.DecrementStock(ctx, line.ProductID, line.Size, line.Quantity); err != nil {
				util.StockDecrementFailuresTotal.Inc()
				s.logger.Warn("Stock decrement failed",
					zap.Int64("order_id", order.ID),
					zap.Int64("product_id", line.ProductID),
					zap.Error(err))
			}
		}

		if err := tx.ClearCart(ctx, claimed.CartID); err != nil {
			return apperr.Store("clear cart", err)
		}

		result = &ConfirmResult{Order: order, Items: items}
		lines = view.Items
		return nil
	})
	if errors.Is(err, errNotClaimed) {
		util.TransferConfirmConflictsTotal.Inc()
		return nil, s.settledError(ctx, transferID)
	}
	if err != nil {
		if apperr.KindOf(err) == apperr.KindStore {
			s.logger.Error("Confirm transaction failed", zap.Int64("transfer_id", transferID), zap.Error(err))
		}
		return nil, err
	}

	util.OrderConfirmLatency.Observe(time.Since(start).Seconds())
	util.TransfersCompletedTotal.WithLabelValues(models.TransferConfirmed).Inc()
	s.logger.Info("Transfer confirmed",
		zap.Int64("transfer_id", transferID),
		zap.Int64("order_id", result.Order.ID),
		zap.String("total", result.Order.TotalAmount.String()))

	s.publishConfirmed(ctx, transferID, result.Order, lines)
	return result, nil
}

// Cancel moves a pending transfer to cancelled. The cart and stock are left
// untouched.
func (s *TransferService) Cancel(ctx context.Context, actor Principal, transferID int64, staffID *int64) (*models.TransferCode, error) {
	ctx, span := util.StartSpan(ctx, "TransferService.Cancel", attribute.Int64("transfer_id", transferID))
	defer span.End()

	if transferID <= 0 {
		return nil, apperr.Required("transferId")
	}
	actingID, err := actorID(actor, staffID)
	if err != nil {
		return nil, err
	}

	t, err := s.loadTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	storeID, err := s.authorize(ctx, actor, t)
	if err != nil {
		return nil, err
	}

	updated, ok, err := s.repo.CancelTransfer(ctx, transferID, actingID, s.now())
	if err != nil {
		return nil, apperr.Store("cancel transfer", err)
	}
	if !ok {
		return nil, s.settledError(ctx, transferID)
	}

	util.TransfersCompletedTotal.WithLabelValues(models.TransferCancelled).Inc()
	s.logger.Info("Transfer cancelled", zap.Int64("transfer_id", transferID), zap.Int64("staff_id", actingID))

	event := &models.TransferCancelledEvent{
		BaseEvent:  newBaseEvent(models.EventTypeTransferCancelled, storeID),
		TransferID: updated.ID,
		StaffID:    actingID,
	}
	if err := s.publisher.PublishTransferCancelled(ctx, event); err != nil {
		s.publishFailed(event.EventType, err)
	}
	return updated, nil
}

func (s *TransferService) loadTransfer(ctx context.Context, id int64) (*models.TransferCode, error) {
	t, err := s.repo.GetTransferByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("transfer not found")
	}
	if err != nil {
		return nil, apperr.Store("load transfer", err)
	}
	return t, nil
}

// authorize checks actor is staff or admin of the store owning t's cart and
// returns that store.
func (s *TransferService) authorize(ctx context.Context, actor Principal, t *models.TransferCode) (int64, error) {
	cart, err := s.repo.GetCart(ctx, t.CartID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, apperr.NotFound("cart not found")
	}
	if err != nil {
		return 0, apperr.Store("load cart", err)
	}
	if err := s.access.Require(ctx, actor, cart.StoreID, models.RoleAdmin, models.RoleStaff); err != nil {
		return 0, err
	}
	return cart.StoreID, nil
}

// ensurePending reports why t cannot be acted on, flipping it to expired when
// its lifetime passed.
func (s *TransferService) ensurePending(ctx context.Context, t *models.TransferCode) error {
	now := s.now()
	switch {
	case t.Status == models.TransferExpired:
		return apperr.Gone(apperr.MsgCodeExpired)
	case t.Status != models.TransferPending:
		return apperr.AlreadyProcessed(t.Status)
	case t.Expired(now):
		if err := s.repo.ExpireTransfer(ctx, t.ID, now); err != nil {
			return apperr.Store("expire transfer", err)
		}
		t.Status = models.TransferExpired
		return apperr.Gone(apperr.MsgCodeExpired)
	}
	return nil
}

// settledError re-reads a transfer whose conditional update matched nothing
// and reports its current state.
func (s *TransferService) settledError(ctx context.Context, id int64) error {
	t, err := s.loadTransfer(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ensurePending(ctx, t); err != nil {
		return err
	}
	return apperr.Conflict("transfer is being processed")
}

func (s *TransferService) publishIssued(ctx context.Context, storeID int64, t *models.TransferCode) {
	event := &models.TransferIssuedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeTransferIssued, storeID),
		TransferID: t.ID,
		CartID:     t.CartID,
		ExpiresAt:  t.ExpiresAt,
	}
	if err := s.publisher.PublishTransferIssued(ctx, event); err != nil {
		s.publishFailed(event.EventType, err)
	}
}

func (s *TransferService) publishConfirmed(ctx context.Context, transferID int64, order *models.Order, lines []CartLine) {
	items := make([]models.OrderItemData, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.OrderItemData{
			ProductID: line.ProductID,
			Size:      line.Size,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	event := &models.TransferConfirmedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeTransferConfirmed, order.StoreID),
		TransferID:    transferID,
		OrderID:       order.ID,
		StaffID:       order.StaffID,
		PaymentMethod: order.PaymentMethod,
		TotalAmount:   order.TotalAmount,
		TotalDiscount: order.TotalDiscount,
		Items:         items,
	}
	if err := s.publisher.PublishTransferConfirmed(ctx, event); err != nil {
		s.publishFailed(event.EventType, err)
	}
}

func (s *TransferService) publishFailed(eventType string, err error) {
	util.EventsPublishFailedTotal.WithLabelValues(eventType).Inc()
	s.logger.Error("Failed to publish event", zap.String("event_type", eventType), zap.Error(err))
}

func newBaseEvent(eventType string, storeID int64) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		StoreID:   storeID,
		Timestamp: time.Now(),
	}
}
