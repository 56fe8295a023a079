// Package checkout prices carts: it resolves products, runs the coupon
// engine, and records redemption events for applied coupons.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adworldmediaonline/ewo-checkout/internal/domain/cart"
	"github.com/adworldmediaonline/ewo-checkout/internal/domain/coupon"
	"github.com/adworldmediaonline/ewo-checkout/internal/domain/product"
)

// Sentinel errors for request validation.
var (
	ErrEmptyItems = errors.New("items required")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// QuoteItem is a requested cart line: product reference plus order quantity.
type QuoteItem struct {
	ProductID string
	Quantity  int
}

// QuoteRequest holds the input for pricing a cart.
type QuoteRequest struct {
	UserID      string
	Items       []QuoteItem
	Shipping    decimal.Decimal
	CouponCodes []string
	// AppliedCodes lists coupon codes already applied in a previous call;
	// they are skipped during resolution.
	AppliedCodes []string
}

// Quote is a fully priced cart with its coupon resolution breakdown.
type Quote struct {
	ID        string
	UserID    string
	Items     []cart.LineItem
	Subtotal  decimal.Decimal
	Shipping  decimal.Decimal
	Discount  decimal.Decimal
	Total     decimal.Decimal
	Coupons   coupon.Summary
	CreatedAt time.Time
}

// Redemption is an append-only usage event for an applied coupon. Usage
// counters are derived from these events; the coupon rules themselves are
// never mutated.
type Redemption struct {
	ID      string
	QuoteID string
	Code    string
	UserID  string
	Amount  decimal.Decimal
}

// RedemptionRecorder appends coupon redemption events.
type RedemptionRecorder interface {
	Record(ctx context.Context, r *Redemption) error
}

// Service encapsulates cart pricing business logic.
type Service struct {
	products    product.Repository
	coupons     coupon.Repository
	redemptions RedemptionRecorder
	now         func() time.Time
}

// NewService creates a checkout Service with the required domain dependencies.
func NewService(
	products product.Repository,
	coupons coupon.Repository,
	redemptions RedemptionRecorder,
) *Service {
	return &Service{
		products:    products,
		coupons:     coupons,
		redemptions: redemptions,
		now:         time.Now,
	}
}

// Quote prices the requested cart without side effects: products are fetched
// in a single batch, coupon rules are loaded per code, and the resolver
// decides which coupons apply.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	// Validate quantities and collect product IDs.
	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	// Batch fetch all products in a single query.
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	// Build cart lines from catalog data; prices, categories, and brands come
	// from the catalog, never from the client.
	items := make([]cart.LineItem, len(req.Items))
	for i, item := range req.Items {
		p, ok := productMap[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		items[i] = cart.LineItem{
			ProductID: p.ID,
			Title:     p.Title,
			Category:  p.Category,
			Brand:     p.Brand,
			UnitPrice: p.Price,
			Quantity:  item.Quantity,
		}
	}

	shipping := req.Shipping
	if shipping.IsNegative() {
		shipping = decimal.Zero
	}
	c := cart.Cart{Items: items, Shipping: shipping}

	// Look up each requested coupon; unknown codes flow into the resolver as
	// nil rules so the caller gets a per-code failure reason instead of an
	// error for the whole quote.
	reqs := make([]coupon.Request, 0, len(req.CouponCodes))
	for _, code := range req.CouponCodes {
		if code == "" {
			continue
		}
		rule, err := s.coupons.FindByCode(ctx, code)
		if err != nil {
			if errors.Is(err, coupon.ErrInvalidCoupon) {
				reqs = append(reqs, coupon.Request{Code: code})
				continue
			}
			return nil, errors.Wrapf(err, "lookup coupon %s", code)
		}
		reqs = append(reqs, coupon.Request{Code: code, Rule: rule})
	}

	summary := coupon.Resolve(reqs, c, coupon.Options{
		Now:            s.now(),
		UserID:         req.UserID,
		ExcludeApplied: req.AppliedCodes,
	})

	subtotal := c.Subtotal().Round(2)
	discount := summary.TotalDiscount

	// Total = subtotal + shipping - discount, floored at zero.
	total := subtotal.Add(shipping).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return &Quote{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Items:     items,
		Subtotal:  subtotal,
		Shipping:  shipping.Round(2),
		Discount:  discount,
		Total:     total.Round(2),
		Coupons:   summary,
		CreatedAt: s.now(),
	}, nil
}

// Checkout prices the cart and records a redemption event for every applied
// coupon. Concurrency control over usage budgets is the storage layer's
// concern; the event append itself is atomic.
func (s *Service) Checkout(ctx context.Context, req QuoteRequest) (*Quote, error) {
	quote, err := s.Quote(ctx, req)
	if err != nil {
		return nil, err
	}

	for _, outcome := range quote.Coupons.Outcomes {
		if !outcome.Applied {
			continue
		}
		redemption := &Redemption{
			ID:      uuid.New().String(),
			QuoteID: quote.ID,
			Code:    outcome.Code,
			UserID:  req.UserID,
			Amount:  outcome.Discount,
		}
		if err := s.redemptions.Record(ctx, redemption); err != nil {
			return nil, errors.Wrapf(err, "record redemption for coupon %s", outcome.Code)
		}
	}

	return quote, nil
}
