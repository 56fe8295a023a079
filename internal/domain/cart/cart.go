// Package cart defines the cart data model shared by the coupon engine and
// the checkout service. All monetary values use decimal arithmetic.
package cart

import "github.com/shopspring/decimal"

// LineItem represents a single cart line with its catalog attributes.
type LineItem struct {
	ProductID string
	Title     string
	Category  string
	Brand     string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Units returns the item quantity clamped at zero. A missing or negative
// quantity contributes nothing to totals instead of corrupting them.
func (i LineItem) Units() int {
	if i.Quantity < 0 {
		return 0
	}
	return i.Quantity
}

// LineTotal returns unit price times quantity. Negative prices and
// quantities are treated as zero.
func (i LineItem) LineTotal() decimal.Decimal {
	price := i.UnitPrice
	if price.IsNegative() {
		price = decimal.Zero
	}
	return price.Mul(decimal.NewFromInt(int64(i.Units())))
}

// Amounts carries the cart-level monetary context a discount is computed
// against. Subtotal is the sum of line totals for the whole cart, which may
// differ from the sum over a subset of items handed to the calculator.
type Amounts struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
}

// Total returns subtotal plus shipping.
func (a Amounts) Total() decimal.Decimal {
	return a.Subtotal.Add(a.Shipping)
}

// Cart is an ordered sequence of line items plus the shipping cost.
type Cart struct {
	Items    []LineItem
	Shipping decimal.Decimal
}

// Subtotal returns the sum of line totals across all items.
func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// Amounts returns the cart-level amounts used for discount calculation.
func (c Cart) Amounts() Amounts {
	return Amounts{Subtotal: c.Subtotal(), Shipping: c.Shipping}
}
