package main

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabpaderog/maxicoffee-server/internal/domain/order"
)

// --- Mock implementations ---

type memStore struct {
	orders    map[string]order.Order
	lookups   int
	createErr error
}

func newMemStore(ids ...string) *memStore {
	m := &memStore{orders: map[string]order.Order{}}
	for _, id := range ids {
		m.orders[id] = order.Order{ID: id}
	}
	return m
}

func (m *memStore) Create(_ context.Context, o *order.Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.orders[o.ID]; ok {
		return errors.Errorf("duplicate key %q", o.ID)
	}
	m.orders[o.ID] = *o
	return nil
}

func (m *memStore) Existing(_ context.Context, ids []string) ([]string, error) {
	m.lookups++
	var out []string
	for _, id := range ids {
		if _, ok := m.orders[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

type directRunner struct{}

func (directRunner) Run(ctx context.Context, work func(ctx context.Context) error) error {
	return work(ctx)
}

func newFilter(ids ...string) *bloom.BloomFilter {
	f := bloom.NewWithEstimates(1000, 0.001)
	for _, id := range ids {
		f.AddString(id)
	}
	return f
}

func testOrder(id string) order.Order {
	return order.Order{
		ID:        id,
		UserID:    "u1",
		Items:     []order.Item{{ProductName: "Latte", Price: decimal.RequireFromString("4")}},
		Total:     decimal.RequireFromString("4"),
		Status:    order.StatusCompleted,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// --- Tests ---

func TestImporter_SkipsStoredAndRepeatedIDs(t *testing.T) {
	ctx := context.Background()
	st := newMemStore("old")
	im := newImporter(st, directRunner{}, newFilter("old"), 2)

	for _, id := range []string{"a", "old", "b", "a", "c", "c"} {
		require.NoError(t, im.add(ctx, testOrder(id)))
	}
	require.NoError(t, im.finish(ctx))

	assert.Equal(t, 3, im.stats.inserted)
	assert.Equal(t, 3, im.stats.duplicates)
	ids := make([]string, 0, len(st.orders))
	for id := range st.orders {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	assert.Equal(t, []string{"a", "b", "c", "old"}, ids)
}

func TestImporter_NoLookupWithoutFilterHits(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	im := newImporter(st, directRunner{}, newFilter(), 10)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, im.add(ctx, testOrder(id)))
	}
	require.NoError(t, im.finish(ctx))

	assert.Equal(t, 3, im.stats.inserted)
	assert.Zero(t, st.lookups)
}

func TestImporter_WriteFailure(t *testing.T) {
	st := newMemStore()
	st.createErr = errors.New("connection reset")
	im := newImporter(st, directRunner{}, newFilter(), 1)

	err := im.add(context.Background(), testOrder("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert batch of 1")
	assert.Zero(t, im.stats.inserted)
}

func TestRecordToOrder(t *testing.T) {
	name := "Student"
	r := record{
		ID:     "o1",
		UserID: "u1",
		Items: []order.Item{{
			ProductName: "Latte",
			Price:       decimal.RequireFromString("4"),
			Addons:      []order.Addon{{AddonName: "Shot", Price: decimal.RequireFromString("1")}},
		}},
		DiscountName:       &name,
		DiscountPercentage: decimal.NewNullDecimal(decimal.RequireFromString("0.2")),
		DiscountApplied:    true,
		CreatedAt:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	o, err := r.toOrder()
	require.NoError(t, err)
	assert.Equal(t, "4", o.Total.String())
	assert.Equal(t, order.StatusPending, o.Status)
	require.NotNil(t, o.DiscountDetails)
	assert.Equal(t, "Student", o.DiscountDetails.Name)

	r.Status = "lost"
	_, err = r.toOrder()
	assert.EqualError(t, err, `invalid status "lost"`)

	r.Status = order.StatusReady
	r.Items[0].Addons[0].Price = decimal.RequireFromString("1e-5000000")
	_, err = r.toOrder()
	assert.EqualError(t, err, "items[0].addons[0]: price out of range")

	r.Items = nil
	_, err = r.toOrder()
	assert.EqualError(t, err, "no items")
}

func writeArchive(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	for _, l := range lines {
		_, err := gz.Write([]byte(l + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestImportArchives(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeArchive(t, dir, "a.jsonl.gz",
			`{"id":"o1","userId":"u1","items":[{"productName":"Latte","price":4,"addons":[]}],"total":4,"status":"completed","createdAt":"2024-01-02T08:00:00Z"}`,
			`not json`,
			`{"id":"o2","userId":"u1","items":[{"productName":"Mocha","price":5}],"createdAt":"2024-01-03T08:00:00Z"}`,
		),
		writeArchive(t, dir, "b.jsonl.gz",
			`{"id":"o1","userId":"u1","items":[{"productName":"Latte","price":4}],"total":4,"createdAt":"2024-01-02T08:00:00Z"}`,
			``,
			`{"id":"o3","userId":"","items":[{"productName":"Latte","price":4}],"createdAt":"2024-01-02T08:00:00Z"}`,
		),
	}

	st := newMemStore()
	im := newImporter(st, directRunner{}, newFilter(), 10)
	skipped, err := importArchives(context.Background(), files, 2, im)
	require.NoError(t, err)

	assert.EqualValues(t, 2, skipped)
	assert.Equal(t, 2, im.stats.inserted)
	assert.Equal(t, 1, im.stats.duplicates)
	require.Contains(t, st.orders, "o2")
	assert.Equal(t, "5", st.orders["o2"].Total.String())
	assert.Equal(t, order.StatusPending, st.orders["o2"].Status)
}

func TestImportArchives_MissingFile(t *testing.T) {
	im := newImporter(newMemStore(), directRunner{}, newFilter(), 10)
	_, err := importArchives(context.Background(), []string{filepath.Join(t.TempDir(), "nope.jsonl.gz")}, 1, im)
	require.Error(t, err)
}
