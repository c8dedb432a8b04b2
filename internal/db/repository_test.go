package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bartek5186/storesync/internal/audit"
	"github.com/bartek5186/storesync/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	h, err := Open("sqlite", filepath.Join(t.TempDir(), "test.db")+"?_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	require.NoError(t, h.Migrate())
	return NewRepository(h)
}

func product(name, url string) catalog.Product {
	op := 79.0
	return catalog.Product{
		ExternalID:     "101",
		Name:           name,
		Description:    "Soft leather",
		Price:          49.5,
		OriginalPrice:  &op,
		Image:          "https://cdn.example.com/a.jpg",
		Images:         []string{"https://cdn.example.com/a.jpg"},
		Category:       catalog.CategoryAccessories,
		Brand:          "Acme",
		StockCount:     2,
		InStock:        true,
		Tags:           []string{"leather", "wallet"},
		Specifications: map[string]string{"Material": "Leather"},
		IsActive:       true,
		ProductType:    "Wallet",
		SourceURL:      url,
		Status:         catalog.StatusPublished,
		PublishAt:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.CreateProduct(ctx, "main-shop", product("Wallet", "https://shop.example.com/products/wallet"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "main-shop", created.Source)

	byURL, err := repo.FindBySourceURL(ctx, "https://shop.example.com/products/wallet")
	require.NoError(t, err)
	require.NotNil(t, byURL)
	assert.Equal(t, created.ID, byURL.ID)
	assert.Equal(t, []string{"leather", "wallet"}, byURL.Tags)
	assert.Equal(t, "Leather", byURL.Specifications["Material"])
	require.NotNil(t, byURL.OriginalPrice)
	assert.Equal(t, 79.0, *byURL.OriginalPrice)

	// produkt z source_url nie jest kandydatem dopasowania po nazwie i marce
	byName, err := repo.FindByNameBrand(ctx, "Wallet", "Acme")
	require.NoError(t, err)
	assert.Nil(t, byName)

	legacy, err := repo.CreateProduct(ctx, "manual", product("Wallet", ""))
	require.NoError(t, err)
	byName, err = repo.FindByNameBrand(ctx, "Wallet", "Acme")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, legacy.ID, byName.ID)

	none, err := repo.FindBySourceURL(ctx, "https://shop.example.com/products/nope")
	require.NoError(t, err)
	assert.Nil(t, none)

	none, err = repo.FindBySourceURL(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRepository_StoredProductDiffsCleanAgainstMapped(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	p := product("Wallet", "https://shop.example.com/products/wallet")
	created, err := repo.CreateProduct(ctx, "main-shop", p)
	require.NoError(t, err)

	found, err := repo.FindBySourceURL(ctx, p.SourceURL)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Empty(t, catalog.DiffProducts(&found.Product, p))
	assert.Equal(t, created.ID, found.ID)
}

func TestRepository_EmptySourceURLIsSparse(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.CreateProduct(ctx, "s", product("A", ""))
	require.NoError(t, err)
	_, err = repo.CreateProduct(ctx, "s", product("B", ""))
	require.NoError(t, err)

	_, err = repo.CreateProduct(ctx, "s", product("C", "https://x/products/c"))
	require.NoError(t, err)
	_, err = repo.CreateProduct(ctx, "s", product("D", "https://x/products/c"))
	assert.Error(t, err)

	n, err := repo.CountProducts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestRepository_UpdateKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.CreateProduct(ctx, "s", product("Wallet", "https://x/products/w"))
	require.NoError(t, err)

	changed := product("Wallet", "https://x/products/w")
	changed.Price = 39
	changed.OriginalPrice = nil
	updated, err := repo.UpdateProduct(ctx, created.ID, "s", changed)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	found, err := repo.FindBySourceURL(ctx, "https://x/products/w")
	require.NoError(t, err)
	assert.Equal(t, 39.0, found.Price)
	assert.Nil(t, found.OriginalPrice)

	_, err = repo.UpdateProduct(ctx, "999", "s", changed)
	assert.Error(t, err)
	_, err = repo.UpdateProduct(ctx, "abc", "s", changed)
	assert.Error(t, err)
}

func TestRepository_VersionsFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.CreateProduct(ctx, "s", product("Wallet", "https://x/products/w"))
	require.NoError(t, err)

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	after := product("Wallet", "https://x/products/w")

	require.NoError(t, repo.AppendVersion(ctx, catalog.VersionEntry{
		ProductID: created.ID, Action: catalog.ActionCreated, ExternalID: "101", Source: "s",
		OperationID: "op-1", After: &after, Diff: catalog.DiffProducts(nil, after), FetchedAt: t1,
	}))
	require.NoError(t, repo.AppendVersion(ctx, catalog.VersionEntry{
		ProductID: created.ID, Action: catalog.ActionUnchanged, ExternalID: "101", Source: "s",
		OperationID: "op-2", Before: &after, After: &after, FetchedAt: t2,
	}))
	require.NoError(t, repo.AppendVersion(ctx, catalog.VersionEntry{
		Action: catalog.ActionError, ExternalID: "102", Source: "other",
		OperationID: "op-3", Error: "boom", FetchedAt: t2,
	}))

	all, err := repo.ListVersions(ctx, catalog.VersionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "op-3", all[0].OperationID)

	bySource, err := repo.ListVersions(ctx, catalog.VersionFilter{Source: "s"})
	require.NoError(t, err)
	require.Len(t, bySource, 2)
	assert.Equal(t, catalog.ActionUnchanged, bySource[0].Action)
	assert.Empty(t, bySource[0].Diff)
	require.NotNil(t, bySource[1].After)
	assert.Nil(t, bySource[1].Before)
	assert.NotEmpty(t, bySource[1].Diff)
	assert.Equal(t, "name", bySource[1].Diff[0].Field)

	byProduct, err := repo.ListVersions(ctx, catalog.VersionFilter{ProductID: created.ID, Action: catalog.ActionCreated})
	require.NoError(t, err)
	require.Len(t, byProduct, 1)
	assert.Equal(t, t1, byProduct[0].FetchedAt)

	from := t1.Add(time.Minute)
	ranged, err := repo.ListVersions(ctx, catalog.VersionFilter{From: &from, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, ranged, 1)

	failed, err := repo.ListVersions(ctx, catalog.VersionFilter{ExternalID: "102"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "boom", failed[0].Error)
	assert.Empty(t, failed[0].ProductID)

	bogus, err := repo.ListVersions(ctx, catalog.VersionFilter{ProductID: "not-a-number"})
	require.NoError(t, err)
	assert.Empty(t, bogus)

	n, err := repo.CountVersions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestRepository_AuditAndState(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.AppendAudit(ctx, audit.Summary{Source: "s", OperationID: "op-1", Created: 3}))
	var logs []AuditLog
	require.NoError(t, repo.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, 3, logs[0].Created)

	_, ok, err := repo.GetState(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetState(ctx, "k", "1"))
	require.NoError(t, repo.SetState(ctx, "k", "2"))
	v, ok, err := repo.GetState(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "x")
	assert.Error(t, err)
}
