package coupon

import (
	"fmt"
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/adworldmediaonline/ewo-checkout/internal/domain/cart"
)

var hundred = decimal.NewFromInt(100)

// Result holds the outcome of a single discount calculation. A zero Amount
// with a non-empty Message represents a business-rule mismatch (minimum not
// met, nothing eligible), not a failure.
type Result struct {
	Amount             decimal.Decimal
	AppliedToFullTotal bool
	EligibleItems      []cart.LineItem
	EligibleSubtotal   decimal.Decimal
	Message            string
}

// Calculate computes the discount the rule yields for the given items within
// the cart-level amounts. The items may be a subset of the cart (the resolver
// hands in only unclaimed items); amounts always describe the full cart.
//
// Temporal validity and user restrictions are the caller's concern: Calculate
// only enforces the rule's numeric thresholds and discount semantics. The
// only error condition is a malformed rule, which construction-time
// validation should have prevented.
func Calculate(rule *Rule, items []cart.LineItem, amounts cart.Amounts) (Result, error) {
	zero := Result{Amount: decimal.Zero, EligibleSubtotal: decimal.Zero}

	// Threshold bounds are checked against the full total only when the rule
	// opts into full-total application; otherwise against the cart subtotal.
	base := amounts.Subtotal
	if rule.ApplyToFullTotal {
		base = amounts.Total()
	}
	if rule.MinimumAmount != nil && base.LessThan(*rule.MinimumAmount) {
		zero.Message = fmt.Sprintf("Minimum order amount of $%s required", rule.MinimumAmount.StringFixed(2))
		return zero, nil
	}
	if rule.MaximumAmount != nil && base.GreaterThan(*rule.MaximumAmount) {
		zero.Message = fmt.Sprintf("Maximum order amount of $%s exceeded", rule.MaximumAmount.StringFixed(2))
		return zero, nil
	}

	eligible := rule.EligibleItems(items)
	if len(eligible) == 0 {
		zero.Message = "No applicable items in cart"
		return zero, nil
	}

	eligibleSubtotal := decimal.Zero
	for _, item := range eligible {
		eligibleSubtotal = eligibleSubtotal.Add(item.LineTotal())
	}

	// Only ScopeAll coupons may discount the shipping-inclusive total; a
	// scoped coupon with ApplyToFullTotal set still discounts its matched
	// subtotal. This asymmetry is intentional.
	fullTotal := rule.ApplyToFullTotal && rule.Scope == ScopeAll

	var amount decimal.Decimal
	switch rule.DiscountType {
	case DiscountPercentage:
		discountBase := eligibleSubtotal
		if fullTotal {
			discountBase = amounts.Total()
		}
		amount = discountBase.Mul(rule.Percentage).Div(hundred)

	case DiscountFixedAmount:
		discountBase := eligibleSubtotal
		if fullTotal {
			discountBase = amounts.Total()
		}
		amount = decimal.Min(rule.Amount, discountBase)

	case DiscountBuyXGetY:
		amount = buyXGetYDiscount(rule, eligible)
		fullTotal = false

	case DiscountFreeShipping:
		amount = amounts.Shipping
		fullTotal = false

	default:
		return Result{}, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}

	message := rule.Description
	if message == "" {
		message = fmt.Sprintf("Coupon %s applied", rule.Code)
	}

	return Result{
		Amount:             floorAtZero(amount).Round(2),
		AppliedToFullTotal: fullTotal,
		EligibleItems:      eligible,
		EligibleSubtotal:   eligibleSubtotal.Round(2),
		Message:            message,
	}, nil
}

// buyXGetYDiscount zeroes out the free units granted by the rule, cheapest
// units first, and returns their summed price. The free unit budget is
// floor(totalQty / buy) * get, naturally capped by the units available.
func buyXGetYDiscount(rule *Rule, eligible []cart.LineItem) decimal.Decimal {
	totalQty := 0
	for _, item := range eligible {
		totalQty += item.Units()
	}
	if totalQty < rule.BuyQuantity {
		return decimal.Zero
	}

	freeUnits := totalQty / rule.BuyQuantity * rule.GetQuantity

	sorted := make([]cart.LineItem, len(eligible))
	copy(sorted, eligible)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UnitPrice.LessThan(sorted[j].UnitPrice)
	})

	discount := decimal.Zero
	for _, item := range sorted {
		if freeUnits == 0 {
			break
		}
		units := item.Units()
		if units > freeUnits {
			units = freeUnits
		}
		discount = discount.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(units))))
		freeUnits -= units
	}
	return discount
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
