package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adworldmediaonline/ewo-checkout/internal/domain/coupon"
	"github.com/adworldmediaonline/ewo-checkout/internal/domain/product"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type mockProductRepo struct {
	byID   map[string]product.Product
	getErr error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockCouponRepo struct {
	rules map[string]*coupon.Rule
	err   error
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Rule, error) {
	if m.err != nil {
		return nil, m.err
	}
	rule, ok := m.rules[code]
	if !ok {
		return nil, coupon.ErrInvalidCoupon
	}
	return rule, nil
}

type mockRedemptionRecorder struct {
	recorded []*Redemption
	err      error
}

func (m *mockRedemptionRecorder) Record(_ context.Context, r *Redemption) error {
	if m.err != nil {
		return m.err
	}
	m.recorded = append(m.recorded, r)
	return nil
}

func newCatalog() *mockProductRepo {
	return &mockProductRepo{byID: map[string]product.Product{
		"p1": {ID: "p1", Title: "All-Season Tire", Price: d("100"), Category: "tires", Brand: "goodyear"},
		"p2": {ID: "p2", Title: "Synthetic Oil", Price: d("50"), Category: "oil", Brand: "castrol"},
	}}
}

func newService(products *mockProductRepo, coupons *mockCouponRepo, redemptions *mockRedemptionRecorder) *Service {
	s := NewService(products, coupons, redemptions)
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestQuote_NoCoupons(t *testing.T) {
	s := newService(newCatalog(), &mockCouponRepo{}, &mockRedemptionRecorder{})

	quote, err := s.Quote(context.Background(), QuoteRequest{
		Items:    []QuoteItem{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 1}},
		Shipping: d("12.50"),
	})
	require.NoError(t, err)

	assert.True(t, d("250.00").Equal(quote.Subtotal))
	assert.True(t, d("12.50").Equal(quote.Shipping))
	assert.True(t, quote.Discount.IsZero())
	assert.True(t, d("262.50").Equal(quote.Total))
	assert.NotEmpty(t, quote.ID)
}

func TestQuote_AppliesCoupon(t *testing.T) {
	coupons := &mockCouponRepo{rules: map[string]*coupon.Rule{
		"TIRES20": {
			Code:         "TIRES20",
			DiscountType: coupon.DiscountPercentage,
			Percentage:   d("20"),
			Scope:        coupon.ScopeCategory,
			Categories:   coupon.NewSet([]string{"tires"}),
		},
	}}
	s := newService(newCatalog(), coupons, &mockRedemptionRecorder{})

	quote, err := s.Quote(context.Background(), QuoteRequest{
		Items:       []QuoteItem{{ProductID: "p1", Quantity: 1}, {ProductID: "p2", Quantity: 1}},
		CouponCodes: []string{"TIRES20"},
	})
	require.NoError(t, err)

	assert.True(t, d("20.00").Equal(quote.Discount))
	assert.True(t, d("130.00").Equal(quote.Total))
	require.Len(t, quote.Coupons.Outcomes, 1)
	assert.True(t, quote.Coupons.Outcomes[0].Applied)
}

func TestQuote_UnknownCouponFailsSoftly(t *testing.T) {
	s := newService(newCatalog(), &mockCouponRepo{}, &mockRedemptionRecorder{})

	quote, err := s.Quote(context.Background(), QuoteRequest{
		Items:       []QuoteItem{{ProductID: "p1", Quantity: 1}},
		CouponCodes: []string{"BOGUS"},
	})
	require.NoError(t, err)

	assert.True(t, quote.Discount.IsZero())
	require.Len(t, quote.Coupons.Outcomes, 1)
	assert.False(t, quote.Coupons.Outcomes[0].Applied)
	assert.Equal(t, coupon.ErrInvalidCoupon.Error(), quote.Coupons.Outcomes[0].Reason)
}

func TestQuote_ValidationErrors(t *testing.T) {
	s := newService(newCatalog(), &mockCouponRepo{}, &mockRedemptionRecorder{})

	_, err := s.Quote(context.Background(), QuoteRequest{})
	assert.ErrorIs(t, err, ErrEmptyItems)

	_, err = s.Quote(context.Background(), QuoteRequest{
		Items: []QuoteItem{{ProductID: "p1", Quantity: 0}},
	})
	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)

	_, err = s.Quote(context.Background(), QuoteRequest{
		Items: []QuoteItem{{ProductID: "ghost", Quantity: 1}},
	})
	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, "ghost", pnfErr.ProductID)
}

func TestQuote_RepositoryErrorPropagates(t *testing.T) {
	s := newService(newCatalog(), &mockCouponRepo{err: errors.New("db down")}, &mockRedemptionRecorder{})

	_, err := s.Quote(context.Background(), QuoteRequest{
		Items:       []QuoteItem{{ProductID: "p1", Quantity: 1}},
		CouponCodes: []string{"ANY"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup coupon")
}

func TestQuote_DiscountNeverExceedsTotal(t *testing.T) {
	coupons := &mockCouponRepo{rules: map[string]*coupon.Rule{
		"ALLFREE": {
			Code:             "ALLFREE",
			DiscountType:     coupon.DiscountPercentage,
			Percentage:       d("100"),
			Scope:            coupon.ScopeAll,
			ApplyToFullTotal: true,
		},
	}}
	s := newService(newCatalog(), coupons, &mockRedemptionRecorder{})

	quote, err := s.Quote(context.Background(), QuoteRequest{
		Items:       []QuoteItem{{ProductID: "p2", Quantity: 1}},
		Shipping:    d("10"),
		CouponCodes: []string{"ALLFREE"},
	})
	require.NoError(t, err)

	assert.True(t, d("60.00").Equal(quote.Discount))
	assert.True(t, quote.Total.IsZero())
}

func TestCheckout_RecordsRedemptions(t *testing.T) {
	coupons := &mockCouponRepo{rules: map[string]*coupon.Rule{
		"TIRES20": {
			Code:         "TIRES20",
			DiscountType: coupon.DiscountPercentage,
			Percentage:   d("20"),
			Scope:        coupon.ScopeCategory,
			Categories:   coupon.NewSet([]string{"tires"}),
		},
		"OIL5": {
			Code:         "OIL5",
			DiscountType: coupon.DiscountFixedAmount,
			Amount:       d("5"),
			Scope:        coupon.ScopeCategory,
			Categories:   coupon.NewSet([]string{"oil"}),
		},
	}}
	recorder := &mockRedemptionRecorder{}
	s := newService(newCatalog(), coupons, recorder)

	quote, err := s.Checkout(context.Background(), QuoteRequest{
		UserID:      "user-7",
		Items:       []QuoteItem{{ProductID: "p1", Quantity: 1}, {ProductID: "p2", Quantity: 1}},
		CouponCodes: []string{"TIRES20", "OIL5", "BOGUS"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, quote.Coupons.Applied)
	require.Len(t, recorder.recorded, 2)
	for _, r := range recorder.recorded {
		assert.Equal(t, quote.ID, r.QuoteID)
		assert.Equal(t, "user-7", r.UserID)
		assert.True(t, r.Amount.IsPositive())
	}
}

func TestCheckout_RecorderErrorPropagates(t *testing.T) {
	coupons := &mockCouponRepo{rules: map[string]*coupon.Rule{
		"TEN": {
			Code:         "TEN",
			DiscountType: coupon.DiscountPercentage,
			Percentage:   d("10"),
			Scope:        coupon.ScopeAll,
		},
	}}
	s := newService(newCatalog(), coupons, &mockRedemptionRecorder{err: errors.New("insert failed")})

	_, err := s.Checkout(context.Background(), QuoteRequest{
		Items:       []QuoteItem{{ProductID: "p1", Quantity: 1}},
		CouponCodes: []string{"TEN"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "record redemption")
}

func TestCheckout_NoRedemptionsWithoutAppliedCoupons(t *testing.T) {
	recorder := &mockRedemptionRecorder{}
	s := newService(newCatalog(), &mockCouponRepo{}, recorder)

	_, err := s.Checkout(context.Background(), QuoteRequest{
		Items:       []QuoteItem{{ProductID: "p1", Quantity: 1}},
		CouponCodes: []string{"BOGUS"},
	})
	require.NoError(t, err)

	assert.Empty(t, recorder.recorded)
}
