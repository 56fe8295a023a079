// Command seed-db loads the demo catalog, a set of demo coupons, and a
// default API key into the database. It is idempotent: every write is an
// upsert.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/adworldmediaonline/ewo-checkout/internal/storage/postgres"
)

type productJSON struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Brand    string          `json:"brand"`
}

// demoCoupon mirrors the coupons table columns that the demo set exercises.
type demoCoupon struct {
	code         string
	discountType string
	percentage   decimal.Decimal
	amount       decimal.Decimal
	buyQuantity  int
	getQuantity  int
	scope        string
	categories   []string
	brands       []string
	minimum      *decimal.Decimal
	fullTotal    bool
	priority     int
	description  string
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or EWO_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or EWO_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("EWO_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or EWO_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("EWO_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

const upsertProductSQL = `
INSERT INTO products (id, title, price, category, brand)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    title    = EXCLUDED.title,
    price    = EXCLUDED.price,
    category = EXCLUDED.category,
    brand    = EXCLUDED.brand
`

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		_, err := pool.Exec(ctx, upsertProductSQL, p.ID, p.Title, p.Price, p.Category, p.Brand)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("title", p.Title))
	}

	return nil
}

const upsertCouponSQL = `
INSERT INTO coupons (
    code, discount_type, percentage, amount, buy_quantity, get_quantity,
    scope, categories, brands, minimum_amount, apply_to_full_total,
    priority, description, active
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, TRUE)
ON CONFLICT (code) DO UPDATE SET
    discount_type       = EXCLUDED.discount_type,
    percentage          = EXCLUDED.percentage,
    amount              = EXCLUDED.amount,
    buy_quantity        = EXCLUDED.buy_quantity,
    get_quantity        = EXCLUDED.get_quantity,
    scope               = EXCLUDED.scope,
    categories          = EXCLUDED.categories,
    brands              = EXCLUDED.brands,
    minimum_amount      = EXCLUDED.minimum_amount,
    apply_to_full_total = EXCLUDED.apply_to_full_total,
    priority            = EXCLUDED.priority,
    description         = EXCLUDED.description,
    active              = TRUE
`

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo coupons")

	fifty := decimal.NewFromInt(50)
	coupons := []demoCoupon{
		{
			code:         "SAVE10",
			discountType: "percentage",
			percentage:   decimal.NewFromInt(10),
			scope:        "all",
			fullTotal:    true,
			description:  "10% off your entire order",
		},
		{
			code:         "TIRE20",
			discountType: "percentage",
			percentage:   decimal.NewFromInt(20),
			scope:        "category",
			categories:   []string{"tires"},
			priority:     10,
			description:  "20% off all tires",
		},
		{
			code:         "OIL5OFF",
			discountType: "fixed_amount",
			amount:       decimal.NewFromInt(5),
			scope:        "category",
			categories:   []string{"oil"},
			minimum:      &fifty,
			description:  "$5 off motor oil orders over $50",
		},
		{
			code:         "WIPER3FOR2",
			discountType: "buy_x_get_y",
			buyQuantity:  2,
			getQuantity:  1,
			scope:        "category",
			categories:   []string{"wipers"},
			description:  "Buy 2 wiper blades, get 1 free",
		},
		{
			code:         "FREESHIP",
			discountType: "free_shipping",
			scope:        "all",
			minimum:      &fifty,
			description:  "Free shipping on orders over $50",
		},
		{
			code:         "BREMBO15",
			discountType: "percentage",
			percentage:   decimal.NewFromInt(15),
			scope:        "brand",
			brands:       []string{"brembo"},
			priority:     5,
			description:  "15% off Brembo brakes",
		},
	}

	for _, c := range coupons {
		// Nil slices encode as SQL NULL; the array columns are NOT NULL.
		if c.categories == nil {
			c.categories = []string{}
		}
		if c.brands == nil {
			c.brands = []string{}
		}
		_, err := pool.Exec(ctx, upsertCouponSQL,
			c.code, c.discountType, c.percentage, c.amount,
			c.buyQuantity, c.getQuantity, c.scope,
			c.categories, c.brands, c.minimum, c.fullTotal,
			c.priority, c.description,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}

		slog.Info("upserted coupon", slog.String("code", c.code), slog.String("description", c.description))
	}

	return nil
}

const upsertAPIKeySQL = `
INSERT INTO api_keys (id, key_hash, name, scopes, active)
VALUES ($1, $2, $3, $4, TRUE)
ON CONFLICT (id) DO UPDATE SET
    key_hash = EXCLUDED.key_hash,
    name     = EXCLUDED.name,
    scopes   = EXCLUDED.scopes,
    active   = TRUE
`

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	_, err := pool.Exec(ctx, upsertAPIKeySQL,
		"default", keyHash, "Default test key", []string{"checkout"},
	)
	if err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"), slog.String("name", "Default test key"))

	return nil
}
