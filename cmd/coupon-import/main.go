// Command coupon-import loads bulk promo code feeds into the coupons table.
//
// Feeds arrive as gzipped newline-delimited code lists from multiple
// marketing partners. A code is only considered valid when at least two
// feeds agree on it. The feeds are far too large to hold in memory, so
// validation runs in two streaming passes: pass 1 builds a bloom filter per
// feed, pass 2 re-streams each feed and collects codes that any other feed's
// filter also contains.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/adworldmediaonline/ewo-checkout/internal/storage/postgres"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	numFeeds      = 3
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
	insertBatch   = 1000
)

// promoRule describes the discount to attach to a known promo code. Codes
// absent from this table get the default rule.
type promoRule struct {
	discountType string
	percentage   string
	amount       string
	description  string
}

var promoRules = map[string]promoRule{
	"TIREFIFTY": {discountType: "percentage", percentage: "50", amount: "0", description: "50% off entire order"},
	"OILCHANGE": {discountType: "fixed_amount", percentage: "0", amount: "15", description: "$15 off your order"},
	"SHIPFREE0": {discountType: "free_shipping", percentage: "0", amount: "0", description: "Free shipping"},
	"GARAGEDAY": {discountType: "percentage", percentage: "25", amount: "0", description: "Garage day: 25% off"},
	"WINTERSET": {discountType: "percentage", percentage: "18", amount: "0", description: "Winter prep: 18% off"},
}

var defaultRule = promoRule{
	discountType: "percentage",
	percentage:   "10",
	amount:       "0",
	description:  "Valid promo code: 10% off",
}

// feedResult holds candidate codes found in a single feed during pass 2.
// The mask records which feeds contained the code.
type feedResult struct {
	candidates map[string]uint
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing promocodesN.gz feed files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	feeds := make([]string, numFeeds)
	for i := range numFeeds {
		feeds[i] = filepath.Join(dataDir, fmt.Sprintf("promocodes%d.gz", i+1))
	}
	for _, f := range feeds {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check feed %s", f)
		}
	}

	slog.Info("pass 1: building bloom filters", slog.Int("feeds", numFeeds))

	filters, err := buildBloomFilters(ctx, feeds)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: finding candidate codes")

	validCodes, err := findValidCodes(ctx, feeds, filters)
	if err != nil {
		return errors.Wrap(err, "find valid codes")
	}

	slog.Info("valid codes found", slog.Int("count", len(validCodes)))

	if len(validCodes) == 0 {
		slog.Info("no valid codes to import")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCoupons(ctx, pool, validCodes); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per feed, concurrently.
func buildBloomFilters(ctx context.Context, feeds []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range feeds {
		g.Go(buildFilterForFeed(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFeed(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFeed(ctx, path, func(code string) {
			if len(code) >= minCodeLen && len(code) <= maxCodeLen {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress",
						slog.Int("feed", idx+1),
						slog.Uint64("codes", count),
					)
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for feed %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("feed", idx+1),
			slog.Uint64("total_codes", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findValidCodes re-streams each feed and checks codes against the OTHER
// feeds' bloom filters. A code is valid if it appears in 2 or more feeds.
func findValidCodes(ctx context.Context, feeds []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]feedResult, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range feeds {
		g.Go(findCandidatesInFeed(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge bitmasks from all feeds.
	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r.candidates {
			merged[code] |= mask
		}
	}

	var valid []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			valid = append(valid, code)
		}
	}

	return valid, nil
}

func findCandidatesInFeed(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []feedResult,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		feedBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFeed(ctx, path, func(code string) {
			if len(code) < minCodeLen || len(code) > maxCodeLen {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("feed", idx+1),
					slog.Uint64("codes", count),
				)
			}

			// Check if this code appears in any OTHER feed's bloom filter.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(code) {
					candidates[code] |= feedBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan feed %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("feed", idx+1),
			slog.Uint64("total_codes", count),
			slog.Int("candidates", len(candidates)),
		)

		results[idx] = feedResult{candidates: candidates}
		return nil
	}
}

// streamGzFeed opens a gzip-compressed feed and calls fn for each line.
func streamGzFeed(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

const importCouponSQL = `
INSERT INTO coupons (code, discount_type, percentage, amount, scope, description, active)
VALUES ($1, $2, $3, $4, 'all', $5, TRUE)
ON CONFLICT (code) DO NOTHING
`

// writeCoupons inserts the validated codes in batches over a single
// connection. Existing codes are left untouched.
func writeCoupons(ctx context.Context, pool *pgxpool.Pool, codes []string) error {
	slog.Info("writing coupons", slog.Int("count", len(codes)))

	var written int
	for start := 0; start < len(codes); start += insertBatch {
		end := min(start+insertBatch, len(codes))

		batch := &pgx.Batch{}
		for _, code := range codes[start:end] {
			rule, ok := promoRules[code]
			if !ok {
				rule = defaultRule
			}
			batch.Queue(importCouponSQL,
				code, rule.discountType, rule.percentage, rule.amount, rule.description,
			)
		}

		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrapf(err, "insert batch at offset %d", start)
		}

		written += end - start
		if written%100_000 == 0 || written == len(codes) {
			slog.Info("write progress", slog.Int("written", written))
		}
	}

	return nil
}
