package coupon

import "github.com/adworldmediaonline/ewo-checkout/internal/domain/cart"

// EligibleItems returns the cart items the rule's scope covers, preserving
// input order. The exclusion set always wins over any inclusion match. An
// empty result means the coupon has nothing to act on; it is never an error.
func (r *Rule) EligibleItems(items []cart.LineItem) []cart.LineItem {
	eligible := make([]cart.LineItem, 0, len(items))
	for _, item := range items {
		if r.covers(item) {
			eligible = append(eligible, item)
		}
	}
	return eligible
}

// covers reports whether a single item falls inside the rule's scope.
func (r *Rule) covers(item cart.LineItem) bool {
	// Exclusion short-circuits every inclusion check, including ScopeAll.
	if r.Excluded.Contains(item.ProductID) {
		return false
	}

	switch r.Scope {
	case ScopeAll:
		return true
	case ScopeProduct:
		return r.Products.Contains(item.ProductID)
	case ScopeCategory:
		return r.Categories.Contains(item.Category)
	case ScopeBrand:
		return r.Brands.Contains(item.Brand)
	default:
		return false
	}
}
