package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/gabpaderog/maxicoffee-server/internal/domain/catalog"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/user"
	"github.com/gabpaderog/maxicoffee-server/internal/repository"
	"github.com/gabpaderog/maxicoffee-server/internal/txn"
)

const (
	upsertCategorySQL = `INSERT INTO categories (id, name, description) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description`

	upsertProductSQL = `INSERT INTO products (id, name, category_id, base_price, available, image)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, category_id = EXCLUDED.category_id,
			base_price = EXCLUDED.base_price, available = EXCLUDED.available, image = EXCLUDED.image`

	upsertAddonSQL = `INSERT INTO addons (id, name, price, is_global, applicable_categories, available)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price,
			is_global = EXCLUDED.is_global, applicable_categories = EXCLUDED.applicable_categories,
			available = EXCLUDED.available`

	upsertDiscountSQL = `INSERT INTO discounts (id, name, percentage, requires_verification)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, percentage = EXCLUDED.percentage,
			requires_verification = EXCLUDED.requires_verification`

	upsertAdminSQL = `INSERT INTO users (id, name, email, password_hash, role, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'admin', TRUE, $5, $5)
		ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash, role = 'admin',
			is_verified = TRUE, updated_at = EXCLUDED.updated_at`
)

type seedFile struct {
	Categories []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"categories"`
	Products []struct {
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Category  string          `json:"category"`
		BasePrice decimal.Decimal `json:"basePrice"`
		Available bool            `json:"available"`
		Image     string          `json:"image"`
	} `json:"products"`
	Addons []struct {
		ID                   string          `json:"id"`
		Name                 string          `json:"name"`
		Price                decimal.Decimal `json:"price"`
		IsGlobal             bool            `json:"isGlobal"`
		ApplicableCategories []string        `json:"applicableCategories"`
		Available            bool            `json:"available"`
	} `json:"addons"`
	Discounts []struct {
		ID                   string          `json:"id"`
		Name                 string          `json:"name"`
		Percentage           decimal.Decimal `json:"percentage"`
		RequiresVerification bool            `json:"requiresVerification"`
	} `json:"discounts"`
}

type admin struct {
	name, email, password string
}

func main() {
	var (
		databaseURL string
		seedPath    string
		adm         admin
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/catalog.json", "path to catalog seed JSON file")
	flag.StringVar(&adm.email, "admin-email", "", "email of an admin account to create (optional)")
	flag.StringVar(&adm.name, "admin-name", "Administrator", "display name of the admin account")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adm.email != "" {
		adm.password = os.Getenv("CAFE_SEED_ADMIN_PASSWORD")
		if adm.password == "" {
			slog.Error("admin password is required: set CAFE_SEED_ADMIN_PASSWORD")
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath, adm); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string, adm admin) error {
	slog.Info("reading seed file", slog.String("path", seedPath))

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return txn.NewManager(pool).Run(ctx, func(ctx context.Context) error {
		db := txn.Querier(ctx, pool)
		if err := seedCatalog(ctx, db, &seed); err != nil {
			return err
		}
		if err := seedDiscounts(ctx, db, &seed); err != nil {
			return err
		}
		if adm.email != "" {
			return seedAdmin(ctx, db, adm)
		}
		return nil
	})
}

func seedCatalog(ctx context.Context, db txn.DB, seed *seedFile) error {
	slog.Info("upserting categories", slog.Int("count", len(seed.Categories)))

	for _, c := range seed.Categories {
		if _, err := db.Exec(ctx, upsertCategorySQL, c.ID, catalog.TitleCase(c.Name), c.Description); err != nil {
			return errors.Wrapf(err, "upsert category %s", c.ID)
		}
		slog.Info("upserted category", slog.String("id", c.ID), slog.String("name", c.Name))
	}

	slog.Info("upserting products", slog.Int("count", len(seed.Products)))

	for _, p := range seed.Products {
		if _, err := db.Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Category, p.BasePrice, p.Available, p.Image); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	slog.Info("upserting addons", slog.Int("count", len(seed.Addons)))

	for _, a := range seed.Addons {
		scope := a.ApplicableCategories
		if a.IsGlobal || scope == nil {
			scope = []string{}
		}
		if _, err := db.Exec(ctx, upsertAddonSQL, a.ID, a.Name, a.Price, a.IsGlobal, scope, a.Available); err != nil {
			return errors.Wrapf(err, "upsert addon %s", a.ID)
		}
		slog.Info("upserted addon", slog.String("id", a.ID), slog.String("name", a.Name))
	}

	return nil
}

func seedDiscounts(ctx context.Context, db txn.DB, seed *seedFile) error {
	slog.Info("upserting discounts", slog.Int("count", len(seed.Discounts)))

	for _, d := range seed.Discounts {
		if !d.Percentage.IsPositive() || d.Percentage.GreaterThan(decimal.NewFromInt(1)) {
			return errors.Errorf("discount %s: percentage must be in (0, 1]", d.ID)
		}
		if _, err := db.Exec(ctx, upsertDiscountSQL, d.ID, d.Name, d.Percentage, d.RequiresVerification); err != nil {
			return errors.Wrapf(err, "upsert discount %s", d.ID)
		}
		slog.Info("upserted discount", slog.String("id", d.ID), slog.String("name", d.Name))
	}

	return nil
}

func seedAdmin(ctx context.Context, db txn.DB, adm admin) error {
	slog.Info("seeding admin account", slog.String("email", adm.email))

	hash, err := bcrypt.GenerateFromPassword([]byte(adm.password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash admin password")
	}
	email := strings.ToLower(strings.TrimSpace(adm.email))
	if _, err := db.Exec(ctx, upsertAdminSQL, uuid.New().String(), adm.name, email, string(hash), time.Now().UTC()); err != nil {
		return errors.Wrap(err, "upsert admin")
	}

	slog.Info("upserted admin account", slog.String("email", email), slog.String("role", user.RoleAdmin))

	return nil
}
