package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/adworldmediaonline/ewo-checkout/internal/domain/cart"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func item(id, category, brand, price string, qty int) cart.LineItem {
	return cart.LineItem{
		ProductID: id,
		Title:     id,
		Category:  category,
		Brand:     brand,
		UnitPrice: d(price),
		Quantity:  qty,
	}
}

func TestEligibleItems(t *testing.T) {
	items := []cart.LineItem{
		item("p1", "tires", "goodyear", "100", 1),
		item("p2", "oil", "castrol", "50", 2),
		item("p3", "tires", "michelin", "120", 1),
		item("p4", "brakes", "brembo", "80", 1),
	}

	tests := []struct {
		name    string
		rule    *Rule
		items   []cart.LineItem
		wantIDs []string
	}{
		{
			name:    "all scope matches everything",
			rule:    &Rule{Code: "ALL", Scope: ScopeAll},
			items:   items,
			wantIDs: []string{"p1", "p2", "p3", "p4"},
		},
		{
			name:    "all scope honours exclusions",
			rule:    &Rule{Code: "ALL", Scope: ScopeAll, Excluded: NewSet([]string{"p2", "p4"})},
			items:   items,
			wantIDs: []string{"p1", "p3"},
		},
		{
			name:    "product scope matches listed ids only",
			rule:    &Rule{Code: "PROD", Scope: ScopeProduct, Products: NewSet([]string{"p2", "p3"})},
			items:   items,
			wantIDs: []string{"p2", "p3"},
		},
		{
			name:    "category scope matches by category",
			rule:    &Rule{Code: "CAT", Scope: ScopeCategory, Categories: NewSet([]string{"tires"})},
			items:   items,
			wantIDs: []string{"p1", "p3"},
		},
		{
			name:    "brand scope matches by brand",
			rule:    &Rule{Code: "BRAND", Scope: ScopeBrand, Brands: NewSet([]string{"castrol", "brembo"})},
			items:   items,
			wantIDs: []string{"p2", "p4"},
		},
		{
			name: "exclusion wins over product inclusion",
			rule: &Rule{
				Code:     "EXCL",
				Scope:    ScopeProduct,
				Products: NewSet([]string{"p1", "p2"}),
				Excluded: NewSet([]string{"p1"}),
			},
			items:   items,
			wantIDs: []string{"p2"},
		},
		{
			name: "exclusion wins over category inclusion",
			rule: &Rule{
				Code:       "EXCL",
				Scope:      ScopeCategory,
				Categories: NewSet([]string{"tires"}),
				Excluded:   NewSet([]string{"p3"}),
			},
			items:   items,
			wantIDs: []string{"p1"},
		},
		{
			name: "exclusion wins over brand inclusion",
			rule: &Rule{
				Code:     "EXCL",
				Scope:    ScopeBrand,
				Brands:   NewSet([]string{"goodyear"}),
				Excluded: NewSet([]string{"p1"}),
			},
			items:   items,
			wantIDs: []string{},
		},
		{
			name:    "no match returns empty, not nil error",
			rule:    &Rule{Code: "NONE", Scope: ScopeCategory, Categories: NewSet([]string{"wipers"})},
			items:   items,
			wantIDs: []string{},
		},
		{
			name:    "empty cart returns empty",
			rule:    &Rule{Code: "ALL", Scope: ScopeAll},
			items:   nil,
			wantIDs: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rule.EligibleItems(tt.items)

			gotIDs := make([]string, 0, len(got))
			for _, it := range got {
				gotIDs = append(gotIDs, it.ProductID)
			}
			assert.Equal(t, tt.wantIDs, gotIDs)
		})
	}
}

func TestEligibleItems_PreservesCartOrder(t *testing.T) {
	items := []cart.LineItem{
		item("z9", "tires", "a", "10", 1),
		item("a1", "tires", "b", "20", 1),
		item("m5", "tires", "c", "30", 1),
	}
	rule := &Rule{Code: "ORD", Scope: ScopeCategory, Categories: NewSet([]string{"tires"})}

	got := rule.EligibleItems(items)

	assert.Equal(t, "z9", got[0].ProductID)
	assert.Equal(t, "a1", got[1].ProductID)
	assert.Equal(t, "m5", got[2].ProductID)
}
