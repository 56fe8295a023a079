package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/adworldmediaonline/ewo-checkout/internal/domain/coupon"
)

// The usage count is derived from the redemption event table rather than
// stored on the coupon row, so concurrent checkouts can never lose updates.
const getCouponByCodeSQL = `SELECT
		c.code, c.discount_type, c.percentage, c.amount, c.buy_quantity, c.get_quantity,
		c.scope, c.products, c.categories, c.brands, c.excluded_products,
		c.minimum_amount, c.maximum_amount, c.apply_to_full_total, c.priority,
		c.valid_from, c.valid_until, c.usage_limit,
		(SELECT COUNT(*) FROM coupon_redemptions r WHERE r.coupon_code = c.code) AS usage_count,
		c.allowed_users, c.description
	FROM coupons c
	WHERE UPPER(c.code) = UPPER($1) AND c.active = TRUE`

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrInvalidCoupon when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("coupon %q failed validation: %w", code, err)
	}
	return &rule, nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule         coupon.Rule
		discountType string
		scope        string
		percentage   decimal.Decimal
		amount       decimal.Decimal
		buyQty       int32
		getQty       int32
		products     []string
		categories   []string
		brands       []string
		excluded     []string
		minAmount    *decimal.Decimal
		maxAmount    *decimal.Decimal
		priority     int32
		validFrom    *time.Time
		validUntil   *time.Time
		usageLimit   int32
		usageCount   int64
		allowedUsers []string
	)
	err := row.Scan(
		&rule.Code, &discountType, &percentage, &amount, &buyQty, &getQty,
		&scope, &products, &categories, &brands, &excluded,
		&minAmount, &maxAmount, &rule.ApplyToFullTotal, &priority,
		&validFrom, &validUntil, &usageLimit, &usageCount,
		&allowedUsers, &rule.Description,
	)
	rule.DiscountType = coupon.DiscountType(discountType)
	rule.Percentage = percentage
	rule.Amount = amount
	rule.BuyQuantity = int(buyQty)
	rule.GetQuantity = int(getQty)
	rule.Scope = coupon.Scope(scope)
	rule.Products = coupon.NewSet(products)
	rule.Categories = coupon.NewSet(categories)
	rule.Brands = coupon.NewSet(brands)
	rule.Excluded = coupon.NewSet(excluded)
	rule.MinimumAmount = minAmount
	rule.MaximumAmount = maxAmount
	rule.Priority = int(priority)
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	rule.UsageLimit = int(usageLimit)
	rule.UsageCount = int(usageCount)
	rule.AllowedUsers = coupon.NewSet(allowedUsers)
	return rule, err
}
