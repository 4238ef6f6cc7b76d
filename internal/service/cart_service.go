package service

import (
	"context"
	"errors"
	"strings"

	"handoff-service/internal/apperr"
	"handoff-service/internal/models"
	"handoff-service/internal/store"
	"handoff-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// maxMergeAttempts bounds the insert/merge loop when concurrent adds race on
// the same (cart, product, size).
const maxMergeAttempts = 3

// CartService handles cart business logic
type CartService struct {
	repo   CartRepository
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(repo CartRepository) *CartService {
	return &CartService{
		repo:   repo,
		logger: util.GetLogger(),
	}
}

// AddItemRequest represents a request to add a product to a cart
type AddItemRequest struct {
	SessionID string  `json:"sessionId"`
	ProductID int64   `json:"productId"`
	Quantity  int     `json:"quantity"`
	Size      *string `json:"size,omitempty"`
}

// UpdateItemRequest represents a quantity change on a cart line
type UpdateItemRequest struct {
	SessionID string `json:"sessionId"`
	ItemID    int64  `json:"itemId"`
	Quantity  int    `json:"quantity"`
}

// GetOrCreate returns the session's cart for the store, creating it on first
// access.
func (s *CartService) GetOrCreate(ctx context.Context, sessionID string, storeID int64) (*models.Cart, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, apperr.Required("session")
	}
	if storeID <= 0 {
		return nil, apperr.Required("storeId")
	}

	cart, err := s.repo.GetOrCreateCart(ctx, sessionID, storeID)
	if err != nil {
		return nil, apperr.Store("get or create cart", err)
	}
	return cart, nil
}

// AddItem adds quantity of a product to the session's cart in the product's
// store, merging into an existing line of the same size.
func (s *CartService) AddItem(ctx context.Context, req *AddItemRequest) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem",
		attribute.Int64("product_id", req.ProductID))
	defer span.End()

	if strings.TrimSpace(req.SessionID) == "" {
		return nil, apperr.Required("sessionId")
	}
	if req.ProductID <= 0 {
		return nil, apperr.Required("productId")
	}
	if req.Quantity <= 0 {
		return nil, apperr.Validation("quantity must be positive")
	}
	size := normalizeSize(req.Size)

	product, err := s.repo.GetProductByID(ctx, req.ProductID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("product not found")
	}
	if err != nil {
		return nil, apperr.Store("load product", err)
	}
	if size != nil {
		if _, ok := product.Sizes.Find(*size); !ok {
			return nil, apperr.Validation("unknown size " + *size)
		}
	}

	cart, err := s.GetOrCreate(ctx, req.SessionID, product.StoreID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxMergeAttempts; attempt++ {
		item, done, err := s.addOnce(ctx, cart.ID, product, size, req.Quantity)
		if err != nil {
			return nil, err
		}
		if done {
			util.CartMutationsTotal.WithLabelValues("add").Inc()
			return item, nil
		}
		util.CartMergeRetriesTotal.Inc()
		s.logger.Debug("Cart item changed concurrently, retrying",
			zap.Int64("cart_id", cart.ID),
			zap.Int64("product_id", product.ID),
			zap.Int("attempt", attempt+1))
	}

	return nil, apperr.Conflict("cart item is being modified, try again")
}

// addOnce merges into the existing line or inserts a new one. It reports
// false when a concurrent writer got there first and the caller should
// re-read.
func (s *CartService) addOnce(ctx context.Context, cartID int64, product *models.Product, size *string, quantity int) (*models.CartItem, bool, error) {
	existing, err := s.repo.FindCartItem(ctx, cartID, product.ID, size)
	switch {
	case err == nil:
		expected := existing.Quantity
		applyPrice(existing, product, expected+quantity)
		ok, err := s.repo.UpdateCartItemIfQuantity(ctx, existing, expected)
		if err != nil {
			return nil, false, apperr.Store("merge cart item", err)
		}
		return existing, ok, nil

	case errors.Is(err, store.ErrNotFound):
		item := &models.CartItem{
			CartID:    cartID,
			ProductID: product.ID,
			Size:      size,
		}
		applyPrice(item, product, quantity)
		err := s.repo.InsertCartItem(ctx, item)
		if errors.Is(err, store.ErrDuplicate) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, apperr.Store("insert cart item", err)
		}
		return item, true, nil

	default:
		return nil, false, apperr.Store("find cart item", err)
	}
}

// UpdateItem sets a line's quantity; zero or less removes it. The line must
// belong to a cart of the session.
func (s *CartService) UpdateItem(ctx context.Context, req *UpdateItemRequest) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateItem",
		attribute.Int64("item_id", req.ItemID))
	defer span.End()

	if strings.TrimSpace(req.SessionID) == "" {
		return nil, apperr.Required("sessionId")
	}
	if req.ItemID <= 0 {
		return nil, apperr.Required("itemId")
	}

	item, err := s.ownedItem(ctx, req.SessionID, req.ItemID)
	if err != nil {
		return nil, err
	}

	if req.Quantity <= 0 {
		if err := s.repo.DeleteCartItem(ctx, item.ID); err != nil {
			return nil, apperr.Store("delete cart item", err)
		}
		util.CartMutationsTotal.WithLabelValues("remove").Inc()
		return nil, nil
	}

	product, err := s.repo.GetProductByID(ctx, item.ProductID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("product not found")
	}
	if err != nil {
		return nil, apperr.Store("load product", err)
	}

	applyPrice(item, product, req.Quantity)
	err = s.repo.UpdateCartItem(ctx, item)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("cart item not found")
	}
	if err != nil {
		return nil, apperr.Store("update cart item", err)
	}

	util.CartMutationsTotal.WithLabelValues("update").Inc()
	return item, nil
}

func (s *CartService) ownedItem(ctx context.Context, sessionID string, itemID int64) (*models.CartItem, error) {
	item, err := s.repo.GetCartItem(ctx, itemID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("cart item not found")
	}
	if err != nil {
		return nil, apperr.Store("load cart item", err)
	}

	cart, err := s.repo.GetCart(ctx, item.CartID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && cart.SessionID != sessionID) {
		return nil, apperr.NotFound("cart item not found")
	}
	if err != nil {
		return nil, apperr.Store("load cart", err)
	}
	return item, nil
}

// RemoveItem deletes a line of the session's cart. Removing a missing line
// succeeds, and a line owned by another session is treated as missing.
func (s *CartService) RemoveItem(ctx context.Context, sessionID string, itemID int64) error {
	if itemID <= 0 {
		return apperr.Required("itemId")
	}
	if sessionID == "" {
		return apperr.Required("session")
	}

	_, err := s.ownedItem(ctx, sessionID, itemID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.repo.DeleteCartItem(ctx, itemID); err != nil {
		return apperr.Store("delete cart item", err)
	}
	util.CartMutationsTotal.WithLabelValues("remove").Inc()
	return nil
}

// View prices the cart with live product data. An unknown cart is empty.
func (s *CartService) View(ctx context.Context, cartID int64) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.View")
	defer span.End()

	if cartID <= 0 {
		return nil, apperr.Required("cartId")
	}

	_, err := s.repo.GetCart(ctx, cartID)
	if errors.Is(err, store.ErrNotFound) {
		return emptyView(cartID), nil
	}
	if err != nil {
		return nil, apperr.Store("load cart", err)
	}

	view, err := priceCart(ctx, s.repo, cartID)
	if err != nil {
		return nil, apperr.Store("price cart", err)
	}
	return view, nil
}

// ViewSession prices the session's cart for a store without creating it.
func (s *CartService) ViewSession(ctx context.Context, sessionID string, storeID int64) (*CartView, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, apperr.Required("session")
	}
	if storeID <= 0 {
		return nil, apperr.Required("storeId")
	}

	cart, err := s.repo.FindCart(ctx, sessionID, storeID)
	if errors.Is(err, store.ErrNotFound) {
		return emptyView(0), nil
	}
	if err != nil {
		return nil, apperr.Store("find cart", err)
	}
	return s.View(ctx, cart.ID)
}

// applyPrice sets quantity and the price snapshot for that quantity.
func applyPrice(item *models.CartItem, product *models.Product, quantity int) {
	res := priceItem(product, item.Size, quantity)
	item.Quantity = quantity
	item.UnitPrice = res.Price
	item.IsWholesale = res.IsWholesale
	item.TierLabel = res.TierLabelPtr()
}

func normalizeSize(size *string) *string {
	if size == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*size)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
