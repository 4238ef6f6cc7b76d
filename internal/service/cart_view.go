package service

import (
	"context"

	"handoff-service/internal/models"
	"handoff-service/internal/pricing"

	"github.com/shopspring/decimal"
)

// CartLine is one cart item priced against live product data.
type CartLine struct {
	ItemID      int64           `json:"itemId"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Size        *string         `json:"size"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	BasisPrice  decimal.Decimal `json:"basisPrice"`
	IsWholesale bool            `json:"isWholesale"`
	TierLabel   *string         `json:"tierLabel"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
	Discount    decimal.Decimal `json:"discount"`
}

// CartView is the priced cart. The same computation backs the cart page,
// transfer lookup and order confirmation, so the totals always agree.
type CartView struct {
	CartID        int64           `json:"cartId"`
	Items         []CartLine      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	TotalDiscount decimal.Decimal `json:"totalDiscount"`
	ItemCount     int             `json:"itemCount"`
}

func emptyView(cartID int64) *CartView {
	return &CartView{
		CartID:        cartID,
		Items:         []CartLine{},
		Total:         decimal.Zero,
		TotalDiscount: decimal.Zero,
	}
}

// sizeOverride returns the size's own base price, if it has one. A size that
// no longer exists on the product falls back to the product price.
func sizeOverride(product *models.Product, size *string) *decimal.Decimal {
	if size == nil {
		return nil
	}
	opt, ok := product.Sizes.Find(*size)
	if !ok {
		return nil
	}
	return opt.Price
}

func priceItem(product *models.Product, size *string, quantity int) pricing.Result {
	return pricing.Resolve(product.Price, product.WholesaleTiers, quantity, sizeOverride(product, size))
}

// priceCart re-prices every line of the cart with current tiers and sizes.
// Lines whose product has been deleted are left out.
func priceCart(ctx context.Context, r cartReader, cartID int64) (*CartView, error) {
	items, err := r.GetCartItems(ctx, cartID)
	if err != nil {
		return nil, err
	}

	view := emptyView(cartID)
	if len(items) == 0 {
		return view, nil
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := r.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			continue
		}
		res := priceItem(product, item.Size, item.Quantity)
		line := CartLine{
			ItemID:      item.ID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Size:        item.Size,
			Quantity:    item.Quantity,
			UnitPrice:   res.Price,
			BasisPrice:  res.Basis,
			IsWholesale: res.IsWholesale,
			TierLabel:   res.TierLabelPtr(),
			LineTotal:   res.LineTotal(item.Quantity),
			Discount:    res.DiscountTotal,
		}
		view.Items = append(view.Items, line)
		view.Total = view.Total.Add(line.LineTotal)
		view.TotalDiscount = view.TotalDiscount.Add(line.Discount)
		view.ItemCount += item.Quantity
	}

	return view, nil
}
