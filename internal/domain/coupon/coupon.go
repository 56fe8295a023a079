// Package coupon implements the discount evaluation engine: eligibility
// filtering, per-coupon discount calculation, and multi-coupon resolution.
// All functions are pure; usage counters and audit records are the caller's
// responsibility.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixedAmount applies a fixed monetary discount capped at the base amount.
	DiscountFixedAmount DiscountType = "fixed_amount"
	// DiscountBuyXGetY grants free units, cheapest first, for every X units bought.
	DiscountBuyXGetY DiscountType = "buy_x_get_y"
	// DiscountFreeShipping removes the shipping cost.
	DiscountFreeShipping DiscountType = "free_shipping"
)

// Scope enumerates the dimensions a coupon can match cart items on.
type Scope string

const (
	// ScopeAll matches every item not explicitly excluded.
	ScopeAll Scope = "all"
	// ScopeProduct matches items by product ID.
	ScopeProduct Scope = "product"
	// ScopeCategory matches items by category.
	ScopeCategory Scope = "category"
	// ScopeBrand matches items by brand.
	ScopeBrand Scope = "brand"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is not found.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when a coupon is outside its valid time window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrCouponNotAllowed is returned when a coupon is restricted to other users.
	ErrCouponNotAllowed = errors.New("coupon not available for this user")
)

// Set is a membership set of product IDs, categories, brands, or user IDs.
type Set map[string]struct{}

// NewSet builds a Set from a slice of values, ignoring empty strings.
func NewSet(values []string) Set {
	if len(values) == 0 {
		return nil
	}
	s := make(Set, len(values))
	for _, v := range values {
		if v != "" {
			s[v] = struct{}{}
		}
	}
	return s
}

// Contains reports whether v is a member. A nil Set contains nothing.
func (s Set) Contains(v string) bool {
	_, ok := s[v]
	return ok
}

// Values returns the members as a slice in unspecified order.
func (s Set) Values() []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	return out
}

// Rule defines a coupon's discount behaviour and eligibility constraints.
// Exactly the fields matching DiscountType must be populated; Validate
// enforces this at construction boundaries so the calculator never has to
// re-check shape per request.
type Rule struct {
	Code         string
	DiscountType DiscountType

	// Percentage is required for DiscountPercentage (0-100).
	Percentage decimal.Decimal
	// Amount is required for DiscountFixedAmount.
	Amount decimal.Decimal
	// BuyQuantity and GetQuantity are required for DiscountBuyXGetY.
	BuyQuantity int
	GetQuantity int

	Scope      Scope
	Products   Set
	Categories Set
	Brands     Set
	// Excluded lists product IDs that are never eligible, regardless of scope.
	Excluded Set

	// MinimumAmount and MaximumAmount bound the order amount the coupon is
	// valid for. The bound is checked against the full total when
	// ApplyToFullTotal is set, otherwise against the cart subtotal.
	MinimumAmount *decimal.Decimal
	MaximumAmount *decimal.Decimal

	// ApplyToFullTotal computes the discount against subtotal plus shipping.
	// It only takes effect for ScopeAll coupons; scoped coupons always
	// discount their matched items' subtotal.
	ApplyToFullTotal bool

	// Priority orders coupons during multi-coupon resolution, higher first.
	Priority int

	ValidFrom  *time.Time
	ValidUntil *time.Time

	// UsageLimit caps total redemptions; zero means unlimited. UsageCount is
	// the current redemption count as derived by the storage layer. The
	// engine reads the remaining budget and never mutates it.
	UsageLimit int
	UsageCount int

	// AllowedUsers restricts redemption to specific user IDs when non-empty.
	AllowedUsers Set

	Description string
}

// Validate checks that the rule's type-specific fields match its
// DiscountType and that its scope carries a matching set. It is meant to run
// once where rules are constructed (storage scan, import), not per request.
func (r *Rule) Validate() error {
	if r.Code == "" {
		return errors.New("coupon code is required")
	}

	switch r.DiscountType {
	case DiscountPercentage:
		if r.Percentage.LessThanOrEqual(decimal.Zero) || r.Percentage.GreaterThan(decimal.NewFromInt(100)) {
			return errors.Errorf("coupon %s: percentage must be in (0, 100], got %s", r.Code, r.Percentage)
		}
	case DiscountFixedAmount:
		if r.Amount.LessThanOrEqual(decimal.Zero) {
			return errors.Errorf("coupon %s: fixed amount must be positive, got %s", r.Code, r.Amount)
		}
	case DiscountBuyXGetY:
		if r.BuyQuantity < 1 || r.GetQuantity < 1 {
			return errors.Errorf("coupon %s: buy/get quantities must be at least 1, got %d/%d",
				r.Code, r.BuyQuantity, r.GetQuantity)
		}
	case DiscountFreeShipping:
		// No type-specific fields.
	default:
		return errors.Errorf("coupon %s: unsupported discount type %q", r.Code, r.DiscountType)
	}

	switch r.Scope {
	case ScopeAll:
	case ScopeProduct:
		if len(r.Products) == 0 {
			return errors.Errorf("coupon %s: product scope requires applicable products", r.Code)
		}
	case ScopeCategory:
		if len(r.Categories) == 0 {
			return errors.Errorf("coupon %s: category scope requires applicable categories", r.Code)
		}
	case ScopeBrand:
		if len(r.Brands) == 0 {
			return errors.Errorf("coupon %s: brand scope requires applicable brands", r.Code)
		}
	default:
		return errors.Errorf("coupon %s: unsupported scope %q", r.Code, r.Scope)
	}

	if r.MinimumAmount != nil && r.MinimumAmount.IsNegative() {
		return errors.Errorf("coupon %s: minimum amount must not be negative", r.Code)
	}
	if r.MaximumAmount != nil && r.MaximumAmount.IsNegative() {
		return errors.Errorf("coupon %s: maximum amount must not be negative", r.Code)
	}

	return nil
}

// IsValid checks the rule's validity window and remaining usage budget at
// the given instant.
func (r *Rule) IsValid(now time.Time) error {
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrCouponExpired
	}
	if r.ValidUntil != nil && now.After(*r.ValidUntil) {
		return ErrCouponExpired
	}
	if r.UsageLimit > 0 && r.UsageCount >= r.UsageLimit {
		return ErrCouponUsageLimitReached
	}
	return nil
}

// CanBeUsedBy reports whether the given user may redeem this coupon.
// An empty AllowedUsers set places no restriction.
func (r *Rule) CanBeUsedBy(userID string) bool {
	if len(r.AllowedUsers) == 0 {
		return true
	}
	return r.AllowedUsers.Contains(userID)
}

// Repository provides lookup of coupon rules by their code.
type Repository interface {
	// FindByCode looks up a rule by its case-insensitive code. Implementations
	// return ErrInvalidCoupon when no active rule matches.
	FindByCode(ctx context.Context, code string) (*Rule, error)
}
