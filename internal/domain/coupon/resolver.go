package coupon

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adworldmediaonline/ewo-checkout/internal/domain/cart"
)

// Request pairs a requested coupon code with its looked-up rule. Rule is nil
// when the code was not found; the resolver reports it as a failed outcome
// instead of erroring.
type Request struct {
	Code string
	Rule *Rule
}

// Options controls a single resolution pass.
type Options struct {
	// Now is the instant validity windows are checked against. The zero
	// value means time.Now.
	Now time.Time
	// UserID is checked against each rule's user restriction when set.
	UserID string
	// ExcludeApplied lists codes already applied upstream; matching requests
	// are skipped entirely and produce no outcome.
	ExcludeApplied []string
}

// Outcome records how a single requested coupon fared.
type Outcome struct {
	Code     string
	Applied  bool
	Discount decimal.Decimal
	// Reason is a human-readable explanation when the coupon was not applied.
	Reason string
	// Result carries the full calculation detail for applied coupons.
	Result *Result
}

// Summary aggregates a resolution pass over multiple coupons.
type Summary struct {
	Outcomes      []Outcome
	TotalDiscount decimal.Decimal
	// Requested counts the codes evaluated (after ExcludeApplied filtering).
	Requested int
	// Applied counts the coupons that produced a positive discount.
	Applied int
	// ProductsDiscounted counts distinct product IDs claimed by applied coupons.
	ProductsDiscounted int
}

// Resolve evaluates multiple coupons against one cart. Rules are processed in
// descending Priority order (stable, so equal priorities keep request order)
// and each product may be claimed by at most one applied coupon: later
// coupons only see items no earlier coupon has discounted.
func Resolve(reqs []Request, c cart.Cart, opts Options) Summary {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	excluded := NewSet(opts.ExcludeApplied)

	pending := make([]Request, 0, len(reqs))
	for _, req := range reqs {
		if excluded.Contains(req.Code) {
			continue
		}
		pending = append(pending, req)
	}

	sort.SliceStable(pending, func(i, j int) bool {
		var pi, pj int
		if pending[i].Rule != nil {
			pi = pending[i].Rule.Priority
		}
		if pending[j].Rule != nil {
			pj = pending[j].Rule.Priority
		}
		return pi > pj
	})

	amounts := c.Amounts()
	claimed := make(Set)
	summary := Summary{
		Outcomes:      make([]Outcome, 0, len(pending)),
		TotalDiscount: decimal.Zero,
		Requested:     len(pending),
	}

	for _, req := range pending {
		outcome := resolveOne(req, c.Items, amounts, claimed, now, opts.UserID)
		if outcome.Applied {
			summary.Applied++
			summary.TotalDiscount = summary.TotalDiscount.Add(outcome.Discount)
			for _, item := range outcome.Result.EligibleItems {
				claimed[item.ProductID] = struct{}{}
			}
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}

	summary.TotalDiscount = summary.TotalDiscount.Round(2)
	summary.ProductsDiscounted = len(claimed)
	return summary
}

// resolveOne evaluates a single request against the items not yet claimed by
// earlier coupons in this pass.
func resolveOne(
	req Request,
	items []cart.LineItem,
	amounts cart.Amounts,
	claimed Set,
	now time.Time,
	userID string,
) Outcome {
	outcome := Outcome{Code: req.Code, Discount: decimal.Zero}

	rule := req.Rule
	if rule == nil {
		outcome.Reason = ErrInvalidCoupon.Error()
		return outcome
	}
	if err := rule.IsValid(now); err != nil {
		outcome.Reason = err.Error()
		return outcome
	}
	if !rule.CanBeUsedBy(userID) {
		outcome.Reason = ErrCouponNotAllowed.Error()
		return outcome
	}

	eligible := rule.EligibleItems(items)
	if len(eligible) == 0 {
		outcome.Reason = "No applicable items in cart"
		return outcome
	}

	remaining := make([]cart.LineItem, 0, len(eligible))
	for _, item := range eligible {
		if !claimed.Contains(item.ProductID) {
			remaining = append(remaining, item)
		}
	}
	if len(remaining) == 0 {
		outcome.Reason = "All applicable items already claimed"
		return outcome
	}

	result, err := Calculate(rule, remaining, amounts)
	if err != nil {
		outcome.Reason = err.Error()
		return outcome
	}
	if !result.Amount.IsPositive() {
		outcome.Reason = result.Message
		return outcome
	}

	outcome.Applied = true
	outcome.Discount = result.Amount
	outcome.Result = &result
	return outcome
}
