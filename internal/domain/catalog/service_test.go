package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabpaderog/maxicoffee-server/internal/apperr"
)

// --- Mock implementations ---

type mockCategories struct {
	byID map[string]Category
}

func (m *mockCategories) Create(_ context.Context, c *Category) error {
	for _, existing := range m.byID {
		if existing.Name == c.Name {
			return ErrCategoryExists
		}
	}
	m.byID[c.ID] = *c
	return nil
}

func (m *mockCategories) Get(_ context.Context, id string) (*Category, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	return &c, nil
}

func (m *mockCategories) List(_ context.Context) ([]Category, error) {
	out := make([]Category, 0, len(m.byID))
	for _, c := range m.byID {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCategories) Update(_ context.Context, c *Category) error {
	for id, existing := range m.byID {
		if id != c.ID && existing.Name == c.Name {
			return ErrCategoryExists
		}
	}
	m.byID[c.ID] = *c
	return nil
}

func (m *mockCategories) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return ErrCategoryNotFound
	}
	delete(m.byID, id)
	return nil
}

type mockProducts struct {
	byID map[string]Product
}

func (m *mockProducts) Create(_ context.Context, p *Product) error {
	m.byID[p.ID] = *p
	return nil
}

func (m *mockProducts) Get(_ context.Context, id string) (*Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

func (m *mockProducts) List(_ context.Context) ([]Product, error) {
	out := make([]Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProducts) ListByCategory(_ context.Context, categoryID string) ([]Product, error) {
	var out []Product
	for _, p := range m.byID {
		if p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProducts) Update(_ context.Context, p *Product) error {
	m.byID[p.ID] = *p
	return nil
}

func (m *mockProducts) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return ErrProductNotFound
	}
	delete(m.byID, id)
	return nil
}

type mockAddons struct {
	byID map[string]Addon
}

func (m *mockAddons) Create(_ context.Context, a *Addon) error {
	m.byID[a.ID] = *a
	return nil
}

func (m *mockAddons) Get(_ context.Context, id string) (*Addon, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, ErrAddonNotFound
	}
	return &a, nil
}

func (m *mockAddons) List(_ context.Context) ([]Addon, error) {
	out := make([]Addon, 0, len(m.byID))
	for _, a := range m.byID {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockAddons) ListGlobal(_ context.Context) ([]Addon, error) {
	var out []Addon
	for _, a := range m.byID {
		if a.IsGlobal && a.Available {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAddons) ListForCategory(_ context.Context, categoryID string) ([]Addon, error) {
	var out []Addon
	for _, a := range m.byID {
		if a.IsGlobal || !a.Available {
			continue
		}
		for _, c := range a.ApplicableCategories {
			if c == categoryID {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

func (m *mockAddons) Update(_ context.Context, a *Addon) error {
	m.byID[a.ID] = *a
	return nil
}

func (m *mockAddons) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return ErrAddonNotFound
	}
	delete(m.byID, id)
	return nil
}

// --- Helpers ---

func ptr[T any](v T) *T { return &v }

type fixture struct {
	categories *mockCategories
	products   *mockProducts
	addons     *mockAddons
	svc        *Service
}

func newFixture() *fixture {
	f := &fixture{
		categories: &mockCategories{byID: map[string]Category{
			"c1": {ID: "c1", Name: "Hot Drinks"},
			"c2": {ID: "c2", Name: "Pastries"},
		}},
		products: &mockProducts{byID: map[string]Product{}},
		addons:   &mockAddons{byID: map[string]Addon{}},
	}
	f.svc = NewService(f.categories, f.products, f.addons)
	return f
}

// --- Tests ---

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"hot drinks", "Hot Drinks"},
		{"ICED   COFFEE", "Iced Coffee"},
		{"  matcha  ", "Matcha"},
		{"çafé au lait", "Çafé Au Lait"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TitleCase(tt.in), tt.in)
	}
}

func TestCreateCategory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	c, err := f.svc.CreateCategory(ctx, "cold brew", "Slow steeped")
	require.NoError(t, err)
	assert.Equal(t, "Cold Brew", c.Name)
	assert.Equal(t, "Slow steeped", c.Description)

	_, err = f.svc.CreateCategory(ctx, "COLD BREW", "")
	assert.ErrorIs(t, err, ErrCategoryExists)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	_, err = f.svc.CreateCategory(ctx, "   ", "")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestUpdateCategory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	c, err := f.svc.UpdateCategory(ctx, "c1", "warm drinks", "")
	require.NoError(t, err)
	assert.Equal(t, "Warm Drinks", c.Name)

	_, err = f.svc.UpdateCategory(ctx, "c1", "pastries", "")
	assert.ErrorIs(t, err, ErrCategoryExists)

	_, err = f.svc.UpdateCategory(ctx, "missing", "Anything", "")
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestCreateProduct(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	p, err := f.svc.CreateProduct(ctx, ProductInput{
		Name:       "Flat White",
		CategoryID: "c1",
		BasePrice:  decimal.RequireFromString("3.80"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Hot Drinks", p.CategoryName)
	assert.True(t, p.Available)

	_, err = f.svc.CreateProduct(ctx, ProductInput{Name: "Ghost", CategoryID: "nope", BasePrice: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	_, err = f.svc.CreateProduct(ctx, ProductInput{Name: "Neg", CategoryID: "c1", BasePrice: decimal.NewFromInt(-1)})
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, err = f.svc.CreateProduct(ctx, ProductInput{CategoryID: "c1"})
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestUpdateProduct_Partial(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	p, err := f.svc.CreateProduct(ctx, ProductInput{Name: "Croissant", CategoryID: "c1", BasePrice: decimal.NewFromInt(3)})
	require.NoError(t, err)

	updated, err := f.svc.UpdateProduct(ctx, p.ID, ProductPatch{CategoryID: ptr("c2"), Available: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, "Croissant", updated.Name)
	assert.Equal(t, "Pastries", updated.CategoryName)
	assert.False(t, updated.Available)
	assert.True(t, decimal.NewFromInt(3).Equal(updated.BasePrice))

	_, err = f.svc.UpdateProduct(ctx, "missing", ProductPatch{})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductsByCategory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateProduct(ctx, ProductInput{Name: "Mocha", CategoryID: "c1", BasePrice: decimal.NewFromInt(4)})
	require.NoError(t, err)
	_, err = f.svc.CreateProduct(ctx, ProductInput{Name: "Scone", CategoryID: "c2", BasePrice: decimal.NewFromInt(2)})
	require.NoError(t, err)

	ps, err := f.svc.ProductsByCategory(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "Mocha", ps[0].Name)

	_, err = f.svc.ProductsByCategory(ctx, "nope")
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestCreateAddon_Scope(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	scoped, err := f.svc.CreateAddon(ctx, AddonInput{
		Name:                 "Extra shot",
		Price:                ptr(decimal.RequireFromString("0.75")),
		ApplicableCategories: []string{"c1", "c2", "c1", " c2 "},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, scoped.ApplicableCategories)

	global, err := f.svc.CreateAddon(ctx, AddonInput{
		Name:                 "Napkin",
		Price:                ptr(decimal.Zero),
		IsGlobal:             true,
		ApplicableCategories: []string{"c1"},
	})
	require.NoError(t, err)
	assert.Empty(t, global.ApplicableCategories)
	assert.NotNil(t, global.ApplicableCategories)

	_, err = f.svc.CreateAddon(ctx, AddonInput{Name: "Bad", Price: ptr(decimal.Zero), ApplicableCategories: []string{"zzz"}})
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	_, err = f.svc.CreateAddon(ctx, AddonInput{Name: "No price"})
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestUpdateAddon_BecomesGlobal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	a, err := f.svc.CreateAddon(ctx, AddonInput{
		Name:                 "Syrup",
		Price:                ptr(decimal.RequireFromString("0.5")),
		ApplicableCategories: []string{"c1"},
	})
	require.NoError(t, err)

	updated, err := f.svc.UpdateAddon(ctx, a.ID, AddonPatch{IsGlobal: ptr(true)})
	require.NoError(t, err)
	assert.True(t, updated.IsGlobal)
	assert.Empty(t, updated.ApplicableCategories)

	updated, err = f.svc.UpdateAddon(ctx, a.ID, AddonPatch{
		IsGlobal:             ptr(false),
		ApplicableCategories: []string{"c2", "c2"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, updated.ApplicableCategories)
}

func TestAddonsForCategory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.CreateAddon(ctx, AddonInput{Name: "Cream", Price: ptr(decimal.NewFromInt(1)), ApplicableCategories: []string{"c2"}})
	require.NoError(t, err)
	_, err = f.svc.CreateAddon(ctx, AddonInput{Name: "Sugar", Price: ptr(decimal.Zero), IsGlobal: true})
	require.NoError(t, err)
	_, err = f.svc.CreateAddon(ctx, AddonInput{Name: "Jam", Price: ptr(decimal.NewFromInt(1)), ApplicableCategories: []string{"c2"}, Available: ptr(false)})
	require.NoError(t, err)

	as, err := f.svc.AddonsForCategory(ctx, "c2")
	require.NoError(t, err)
	require.Len(t, as, 1)
	assert.Equal(t, "Cream", as[0].Name)

	global, err := f.svc.GlobalAddons(ctx)
	require.NoError(t, err)
	require.Len(t, global, 1)
	assert.Equal(t, "Sugar", global[0].Name)
}
