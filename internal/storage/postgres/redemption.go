package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adworldmediaonline/ewo-checkout/internal/domain/checkout"
)

const insertRedemptionSQL = `INSERT INTO coupon_redemptions (id, quote_id, coupon_code, user_id, amount)
	VALUES ($1, $2, $3, $4, $5)`

var _ checkout.RedemptionRecorder = (*RedemptionRepository)(nil)

// RedemptionRepository appends coupon redemption events. The table is
// append-only; usage counts are derived from it with a COUNT subquery in
// CouponRepository.FindByCode.
type RedemptionRepository struct {
	pool *pgxpool.Pool
}

// NewRedemptionRepository returns a RedemptionRepository that uses the given pool.
func NewRedemptionRepository(pool *pgxpool.Pool) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// Record inserts a single redemption event.
func (r *RedemptionRepository) Record(ctx context.Context, redemption *checkout.Redemption) error {
	_, err := r.pool.Exec(ctx, insertRedemptionSQL,
		redemption.ID, redemption.QuoteID, redemption.Code, redemption.UserID, redemption.Amount,
	)
	if err != nil {
		return fmt.Errorf("recording redemption for coupon %q: %w", redemption.Code, err)
	}
	return nil
}
