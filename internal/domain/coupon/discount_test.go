package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adworldmediaonline/ewo-checkout/internal/domain/cart"
)

func dptr(v string) *decimal.Decimal {
	dec := d(v)
	return &dec
}

func amounts(subtotal, shipping string) cart.Amounts {
	return cart.Amounts{Subtotal: d(subtotal), Shipping: d(shipping)}
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name          string
		rule          *Rule
		items         []cart.LineItem
		amounts       cart.Amounts
		wantAmount    decimal.Decimal
		wantFullTotal bool
		wantMessage   string
	}{
		{
			name: "percentage on full total with all scope",
			rule: &Rule{
				Code:             "TEN",
				DiscountType:     DiscountPercentage,
				Percentage:       d("10"),
				Scope:            ScopeAll,
				ApplyToFullTotal: true,
			},
			items:         []cart.LineItem{item("p1", "tires", "x", "90", 1)},
			amounts:       amounts("90", "10"),
			wantAmount:    d("10.00"),
			wantFullTotal: true,
		},
		{
			name: "percentage on category subset",
			rule: &Rule{
				Code:         "TIRES20",
				DiscountType: DiscountPercentage,
				Percentage:   d("20"),
				Scope:        ScopeCategory,
				Categories:   NewSet([]string{"tires"}),
			},
			items: []cart.LineItem{
				item("p1", "tires", "x", "100", 1),
				item("p2", "oil", "y", "50", 1),
			},
			amounts:       amounts("150", "0"),
			wantAmount:    d("20.00"),
			wantFullTotal: false,
		},
		{
			name: "scoped coupon never applies to full total even when flagged",
			rule: &Rule{
				Code:             "TIRES10",
				DiscountType:     DiscountPercentage,
				Percentage:       d("10"),
				Scope:            ScopeCategory,
				Categories:       NewSet([]string{"tires"}),
				ApplyToFullTotal: true,
			},
			items: []cart.LineItem{
				item("p1", "tires", "x", "100", 1),
				item("p2", "oil", "y", "50", 1),
			},
			amounts: amounts("150", "25"),
			// 10% of the tires subtotal (100), not of 175.
			wantAmount:    d("10.00"),
			wantFullTotal: false,
		},
		{
			name: "fixed amount capped at eligible subtotal",
			rule: &Rule{
				Code:         "FLAT50",
				DiscountType: DiscountFixedAmount,
				Amount:       d("50"),
				Scope:        ScopeProduct,
				Products:     NewSet([]string{"p1"}),
			},
			items: []cart.LineItem{
				item("p1", "tires", "x", "30", 1),
				item("p2", "oil", "y", "200", 1),
			},
			amounts:       amounts("230", "0"),
			wantAmount:    d("30.00"),
			wantFullTotal: false,
		},
		{
			name: "fixed amount capped at full total for all scope",
			rule: &Rule{
				Code:             "FLAT500",
				DiscountType:     DiscountFixedAmount,
				Amount:           d("500"),
				Scope:            ScopeAll,
				ApplyToFullTotal: true,
			},
			items:         []cart.LineItem{item("p1", "tires", "x", "100", 1)},
			amounts:       amounts("100", "15"),
			wantAmount:    d("115.00"),
			wantFullTotal: true,
		},
		{
			name: "buy 2 get 1 zeroes cheapest units first",
			rule: &Rule{
				Code:         "B2G1",
				DiscountType: DiscountBuyXGetY,
				BuyQuantity:  2,
				GetQuantity:  1,
				Scope:        ScopeAll,
			},
			items: []cart.LineItem{
				item("p1", "tires", "x", "10", 3),
				item("p2", "tires", "x", "5", 3),
			},
			// totalQty=6, freeUnits=3, all from the $5 line.
			amounts:       amounts("45", "0"),
			wantAmount:    d("15.00"),
			wantFullTotal: false,
		},
		{
			name: "buy x get y free units spill into next cheapest line",
			rule: &Rule{
				Code:         "B1G1",
				DiscountType: DiscountBuyXGetY,
				BuyQuantity:  1,
				GetQuantity:  1,
				Scope:        ScopeAll,
			},
			items: []cart.LineItem{
				item("p1", "tires", "x", "10", 2),
				item("p2", "tires", "x", "5", 2),
			},
			// freeUnits=4 covers every unit: 2*5 + 2*10.
			amounts:       amounts("30", "0"),
			wantAmount:    d("30.00"),
			wantFullTotal: false,
		},
		{
			name: "buy x get y below buy quantity yields zero",
			rule: &Rule{
				Code:         "B5G1",
				DiscountType: DiscountBuyXGetY,
				BuyQuantity:  5,
				GetQuantity:  1,
				Scope:        ScopeAll,
			},
			items:         []cart.LineItem{item("p1", "tires", "x", "10", 3)},
			amounts:       amounts("30", "0"),
			wantAmount:    d("0.00"),
			wantFullTotal: false,
		},
		{
			name: "free shipping equals shipping cost",
			rule: &Rule{
				Code:         "SHIPFREE",
				DiscountType: DiscountFreeShipping,
				Scope:        ScopeAll,
			},
			items:         []cart.LineItem{item("p1", "tires", "x", "100", 1)},
			amounts:       amounts("100", "15"),
			wantAmount:    d("15.00"),
			wantFullTotal: false,
		},
		{
			name: "minimum not met yields zero with message",
			rule: &Rule{
				Code:             "MIN50",
				DiscountType:     DiscountPercentage,
				Percentage:       d("10"),
				Scope:            ScopeAll,
				ApplyToFullTotal: true,
				MinimumAmount:    dptr("50"),
			},
			items:       []cart.LineItem{item("p1", "tires", "x", "40", 1)},
			amounts:     amounts("40", "0"),
			wantAmount:  d("0"),
			wantMessage: "Minimum order amount of $50.00 required",
		},
		{
			name: "minimum checked against subtotal when not full total",
			rule: &Rule{
				Code:          "MIN100",
				DiscountType:  DiscountPercentage,
				Percentage:    d("10"),
				Scope:         ScopeAll,
				MinimumAmount: dptr("100"),
			},
			// Subtotal 95 misses the bound even though total is 110.
			items:       []cart.LineItem{item("p1", "tires", "x", "95", 1)},
			amounts:     amounts("95", "15"),
			wantAmount:  d("0"),
			wantMessage: "Minimum order amount of $100.00 required",
		},
		{
			name: "maximum exceeded yields zero with message",
			rule: &Rule{
				Code:             "SMALL",
				DiscountType:     DiscountPercentage,
				Percentage:       d("5"),
				Scope:            ScopeAll,
				ApplyToFullTotal: true,
				MaximumAmount:    dptr("200"),
			},
			items:       []cart.LineItem{item("p1", "tires", "x", "250", 1)},
			amounts:     amounts("250", "0"),
			wantAmount:  d("0"),
			wantMessage: "Maximum order amount of $200.00 exceeded",
		},
		{
			name: "no applicable items yields zero with message",
			rule: &Rule{
				Code:         "WIPERS",
				DiscountType: DiscountPercentage,
				Percentage:   d("10"),
				Scope:        ScopeCategory,
				Categories:   NewSet([]string{"wipers"}),
			},
			items:       []cart.LineItem{item("p1", "tires", "x", "100", 1)},
			amounts:     amounts("100", "0"),
			wantAmount:  d("0"),
			wantMessage: "No applicable items in cart",
		},
		{
			name: "rounding to two decimals",
			rule: &Rule{
				Code:         "ODD",
				DiscountType: DiscountPercentage,
				Percentage:   d("15"),
				Scope:        ScopeAll,
			},
			// 15% of 33.33 = 4.9995 -> 5.00.
			items:         []cart.LineItem{item("p1", "tires", "x", "33.33", 1)},
			amounts:       amounts("33.33", "0"),
			wantAmount:    d("5.00"),
			wantFullTotal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Calculate(tt.rule, tt.items, tt.amounts)
			require.NoError(t, err)

			assert.True(t, tt.wantAmount.Equal(got.Amount),
				"expected amount %s, got %s", tt.wantAmount, got.Amount)
			assert.Equal(t, tt.wantFullTotal, got.AppliedToFullTotal)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, got.Message)
			}
			assert.LessOrEqual(t, int(got.Amount.Exponent())*-1, 2,
				"discount must have at most two decimal digits")
		})
	}
}

func TestCalculate_ZeroValueItemsStayEligible(t *testing.T) {
	rule := &Rule{
		Code:         "TEN",
		DiscountType: DiscountPercentage,
		Percentage:   d("10"),
		Scope:        ScopeAll,
	}
	items := []cart.LineItem{
		item("p1", "tires", "x", "100", 1),
		item("p2", "tires", "x", "0", 2),
		item("p3", "tires", "x", "50", 0),
	}

	got, err := Calculate(rule, items, amounts("100", "0"))
	require.NoError(t, err)

	// Zero-price and zero-quantity items contribute nothing but still count
	// as eligible.
	assert.Len(t, got.EligibleItems, 3)
	assert.True(t, d("100").Equal(got.EligibleSubtotal))
	assert.True(t, d("10.00").Equal(got.Amount))
}

func TestCalculate_MalformedTypeFails(t *testing.T) {
	rule := &Rule{Code: "BAD", DiscountType: "bogus", Scope: ScopeAll}

	_, err := Calculate(rule, []cart.LineItem{item("p1", "tires", "x", "10", 1)}, amounts("10", "0"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported discount type")
}

func TestCalculate_FixedAmountNeverExceedsBase(t *testing.T) {
	rule := &Rule{
		Code:         "FLAT",
		DiscountType: DiscountFixedAmount,
		Amount:       d("80"),
		Scope:        ScopeProduct,
		Products:     NewSet([]string{"p1"}),
	}
	items := []cart.LineItem{
		item("p1", "tires", "x", "25.50", 2),
		item("p2", "oil", "y", "400", 1),
	}

	got, err := Calculate(rule, items, amounts("451", "0"))
	require.NoError(t, err)

	assert.True(t, got.Amount.LessThanOrEqual(got.EligibleSubtotal),
		"fixed discount %s exceeds eligible subtotal %s", got.Amount, got.EligibleSubtotal)
	assert.True(t, d("51.00").Equal(got.Amount))
}
