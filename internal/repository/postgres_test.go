//go:build integration

package repository

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gabpaderog/maxicoffee-server/internal/apperr"
	"github.com/gabpaderog/maxicoffee-server/internal/auth"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/catalog"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/discount"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/order"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/report"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/user"
	"github.com/gabpaderog/maxicoffee-server/internal/txn"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "cafe",
				"POSTGRES_PASSWORD": "cafe",
				"POSTGRES_DB":       "cafe",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := c.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := c.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	url := fmt.Sprintf("postgres://cafe:cafe@%s:%s/cafe?sslmode=disable", host, port.Port())
	testPool, err = NewPool(ctx, url)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	return m.Run()
}

func resetTables(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(),
		`TRUNCATE orders, tokens, users, addons, products, categories, discounts CASCADE`)
	require.NoError(t, err)
}

func seedUser(t *testing.T, id string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, NewUserRepository(testPool).Create(context.Background(), &user.User{
		ID: id, Name: "Ana", Email: id + "@example.com", PasswordHash: "x",
		Role: user.RoleUser, IsVerified: true, CreatedAt: now, UpdatedAt: now,
	}))
}

func newOrderService(clock func() time.Time) *order.Service {
	return order.NewService(
		NewUserRepository(testPool),
		NewDiscountRepository(testPool),
		NewOrderRepository(testPool),
		txn.NewManager(testPool),
		order.WithClock(clock),
	)
}

func latte(addons ...order.Addon) order.Item {
	return order.Item{ProductName: "Latte", Price: decimal.RequireFromString("4"), Addons: addons}
}

func TestOrderLifecycle(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	seedUser(t, "u1")

	require.NoError(t, NewDiscountRepository(testPool).Create(ctx, &discount.Discount{
		ID: "d1", Name: "Student", Percentage: decimal.RequireFromString("0.2"), RequiresVerification: true,
	}))

	svc := newOrderService(time.Now)
	created, err := svc.Create(ctx, order.CreateRequest{
		UserID:     "u1",
		DiscountID: "d1",
		Items: []order.Item{
			latte(order.Addon{AddonName: "Oat milk", Price: decimal.RequireFromString("0.5")}),
			latte(),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "8.5", created.Total.String())
	assert.False(t, created.DiscountApplied)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Customer)
	assert.Equal(t, "Ana", got.Customer.Name)
	require.NotNil(t, got.DiscountDetails)
	assert.Equal(t, "Student", got.DiscountDetails.Name)
	assert.Len(t, got.Items, 2)
	assert.NotNil(t, got.Items[1].Addons)

	applied, err := svc.ApplyDiscount(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "6.8", applied.Total.String())
	assert.True(t, applied.DiscountApplied)

	_, err = svc.ApplyDiscount(ctx, created.ID)
	assert.ErrorIs(t, err, order.ErrDiscountAlreadyApplied)

	updated, err := svc.UpdateStatus(ctx, created.ID, order.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, updated.Status)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestApplyDiscount_ConcurrentCallsApplyOnce(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	seedUser(t, "u1")

	require.NoError(t, NewDiscountRepository(testPool).Create(ctx, &discount.Discount{
		ID: "d1", Name: "Student", Percentage: decimal.RequireFromString("0.2"), RequiresVerification: true,
	}))

	svc := newOrderService(time.Now)
	created, err := svc.Create(ctx, order.CreateRequest{
		UserID:     "u1",
		DiscountID: "d1",
		Items: []order.Item{
			latte(order.Addon{AddonName: "Oat milk", Price: decimal.RequireFromString("0.5")}),
			latte(),
		},
	})
	require.NoError(t, err)

	const callers = 8
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, callers)
	)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = svc.ApplyDiscount(ctx, created.ID)
		}()
	}
	close(start)
	wg.Wait()

	var applied, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			applied++
		case apperr.KindOf(err) == apperr.Conflict:
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, applied)
	assert.Equal(t, callers-1, conflicts)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.DiscountApplied)
	assert.True(t, decimal.RequireFromString("6.8").Equal(got.Total), got.Total.String())
}

func TestOrderCreate_RollsBackOnUnknownUser(t *testing.T) {
	resetTables(t)
	ctx := context.Background()

	_, err := newOrderService(time.Now).Create(ctx, order.CreateRequest{
		UserID: "ghost",
		Items:  []order.Item{latte()},
	})
	assert.ErrorIs(t, err, order.ErrUserNotFound)

	orders, err := NewOrderRepository(testPool).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrderIDs(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	seedUser(t, "u1")

	repo := NewOrderRepository(testPool)
	for _, id := range []string{"o1", "o2"} {
		require.NoError(t, repo.Create(ctx, &order.Order{
			ID: id, UserID: "u1", Items: []order.Item{latte()},
			Total: decimal.RequireFromString("4"), Status: order.StatusPending, CreatedAt: time.Now(),
		}))
	}

	var scanned []string
	require.NoError(t, repo.ScanIDs(ctx, func(id string) { scanned = append(scanned, id) }))
	assert.ElementsMatch(t, []string{"o1", "o2"}, scanned)

	existing, err := repo.Existing(ctx, []string{"o2", "o3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"o2"}, existing)
}

func TestDiscountDelete_KeepsOrderSnapshot(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	seedUser(t, "u1")

	discounts := NewDiscountRepository(testPool)
	require.NoError(t, discounts.Create(ctx, &discount.Discount{
		ID: "d1", Name: "Senior", Percentage: decimal.RequireFromString("0.2"), RequiresVerification: true,
	}))

	created, err := newOrderService(time.Now).Create(ctx, order.CreateRequest{
		UserID: "u1", DiscountID: "d1", Items: []order.Item{latte()},
	})
	require.NoError(t, err)

	require.NoError(t, discounts.Delete(ctx, "d1"))

	got, err := NewOrderRepository(testPool).Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DiscountID)
	require.NotNil(t, got.DiscountDetails)
	assert.Equal(t, "Senior", got.DiscountDetails.Name)
}

func TestCategoryConstraints(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	categories := NewCategoryRepository(testPool)
	now := time.Now().UTC()

	require.NoError(t, categories.Create(ctx, &catalog.Category{ID: "c1", Name: "Coffee", CreatedAt: now}))
	err := categories.Create(ctx, &catalog.Category{ID: "c2", Name: "Coffee", CreatedAt: now})
	assert.ErrorIs(t, err, catalog.ErrCategoryExists)

	require.NoError(t, NewProductRepository(testPool).Create(ctx, &catalog.Product{
		ID: "p1", Name: "Latte", CategoryID: "c1", BasePrice: decimal.RequireFromString("4"),
		Available: true, CreatedAt: now,
	}))
	assert.ErrorIs(t, categories.Delete(ctx, "c1"), catalog.ErrCategoryInUse)

	products, err := NewProductRepository(testPool).ListByCategory(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Coffee", products[0].CategoryName)
}

func TestAddonScopes(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	addons := NewAddonRepository(testPool)
	require.NoError(t, NewCategoryRepository(testPool).Create(ctx, &catalog.Category{
		ID: "c1", Name: "Coffee", CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, addons.Create(ctx, &catalog.Addon{
		ID: "a1", Name: "Sugar", Price: decimal.Zero, IsGlobal: true, Available: true,
	}))
	require.NoError(t, addons.Create(ctx, &catalog.Addon{
		ID: "a2", Name: "Espresso shot", Price: decimal.RequireFromString("1"),
		ApplicableCategories: []string{"c1"}, Available: true,
	}))

	global, err := addons.ListGlobal(ctx)
	require.NoError(t, err)
	require.Len(t, global, 1)
	assert.Empty(t, global[0].ApplicableCategories)

	scoped, err := addons.ListForCategory(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "Espresso shot", scoped[0].Name)
}

func TestUserAndTokens(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	users := NewUserRepository(testPool)
	tokens := NewTokenRepository(testPool)
	seedUser(t, "u1")

	now := time.Now().UTC()
	err := users.Create(ctx, &user.User{
		ID: "u2", Name: "Dup", Email: "u1@example.com", PasswordHash: "x",
		Role: user.RoleUser, CreatedAt: now, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, user.ErrEmailTaken)

	require.NoError(t, tokens.Create(ctx, &user.Token{
		ID: "t1", UserID: "u1", Token: "abc", Type: auth.TypeVerification, ExpiresAt: now.Add(time.Minute),
	}))

	found, err := tokens.Find(ctx, "abc", auth.TypeVerification, now)
	require.NoError(t, err)
	assert.Equal(t, "u1", found.UserID)

	_, err = tokens.Find(ctx, "abc", auth.TypeVerification, now.Add(2*time.Minute))
	assert.ErrorIs(t, err, user.ErrTokenNotFound)

	require.NoError(t, tokens.DeleteForUser(ctx, "u1", auth.TypeVerification))
	_, err = tokens.Find(ctx, "abc", auth.TypeVerification, now)
	assert.ErrorIs(t, err, user.ErrTokenNotFound)

	n, err := users.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestReportQueries(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	seedUser(t, "u1")

	manila, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)

	// 23:30 UTC on Jan 31 is Feb 1 in Manila.
	at := []time.Time{
		time.Date(2025, 1, 31, 23, 30, 0, 0, time.UTC),
		time.Date(2025, 2, 1, 3, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 15, 3, 0, 0, 0, time.UTC),
	}
	for i, ts := range at {
		svc := newOrderService(func() time.Time { return ts })
		items := []order.Item{latte(order.Addon{AddonName: "Oat milk", Price: decimal.RequireFromString("0.5")})}
		if i == 2 {
			items = []order.Item{{ProductName: "Mocha", Price: decimal.RequireFromString("5")}}
		}
		_, err := svc.Create(ctx, order.CreateRequest{UserID: "u1", Items: items})
		require.NoError(t, err)
	}

	reader := NewReportRepository(testPool)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, manila)
	to := time.Date(2025, 3, 1, 0, 0, 0, 0, manila)

	buckets, err := reader.SalesBuckets(ctx, report.Month, from, to, manila)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), buckets[0].Start)
	assert.EqualValues(t, 1, buckets[0].OrderCount)
	assert.Equal(t, "9", buckets[1].TotalSales.String())

	top, err := reader.TopProducts(ctx, from, to, 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Latte", top[0].ProductName)
	assert.EqualValues(t, 2, top[0].TotalSold)
	assert.Equal(t, "9", top[0].TotalRevenue.String())
	require.Len(t, top[0].PopularAddons, 2)
	assert.Equal(t, "Oat milk", top[0].PopularAddons[0][0].AddonName)

	days, err := reader.ProductDaily(ctx, "Latte", from, to, manila)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), days[0].Start)

	totals, err := reader.Totals(ctx, from, to)
	require.NoError(t, err)
	assert.EqualValues(t, 3, totals.OrderCount)

	pending, err := reader.CountByStatus(ctx, order.StatusPending)
	require.NoError(t, err)
	assert.EqualValues(t, 3, pending)
}
