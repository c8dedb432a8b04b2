package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/bartek5186/storesync/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestVersionFilter(t *testing.T) {
	oid := primitive.NewObjectID()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	filter, ok := versionFilter(catalog.VersionFilter{
		ProductID: oid.Hex(),
		Source:    "main-shop",
		Action:    catalog.ActionUpdated,
		From:      &from,
		To:        &to,
	})
	require.True(t, ok)
	assert.Equal(t, oid, filter["product_id"])
	assert.Equal(t, "main-shop", filter["source"])
	assert.Equal(t, "updated", filter["action"])
	assert.Equal(t, bson.M{"$gte": from, "$lte": to}, filter["fetched_at"])
	assert.NotContains(t, filter, "external_id")

	empty, ok := versionFilter(catalog.VersionFilter{})
	require.True(t, ok)
	assert.Empty(t, empty)

	_, ok = versionFilter(catalog.VersionFilter{ProductID: "42"})
	assert.False(t, ok)
}

func TestConversions_SparseSourceURLAndMillis(t *testing.T) {
	p := catalog.Product{
		Name:      "Wallet",
		Category:  catalog.CategoryAccessories,
		PublishAt: time.Date(2024, 1, 1, 0, 0, 0, 123456789, time.UTC),
	}
	doc := fromCatalog("s", p)
	assert.Empty(t, doc.SourceURL)
	assert.Equal(t, 123000000, doc.PublishAt.Nanosecond())

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	_, err = bson.Raw(raw).LookupErr("source_url")
	assert.Error(t, err, "empty source_url must not be stored")
}

func TestNameBrandFilter_SkipsProductsWithSourceURL(t *testing.T) {
	f := nameBrandFilter("Wallet", "Acme")
	assert.Equal(t, "Wallet", f["name"])
	assert.Equal(t, "Acme", f["brand"])
	assert.Equal(t, bson.M{"$exists": false}, f["source_url"])
}

func TestRepository_WithMockDeployment(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("find by source url", func(mt *mtest.T) {
		repo := NewRepository(mt.Client, mt.DB)
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.products", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "name", Value: "Wallet"},
			{Key: "brand", Value: "Acme"},
			{Key: "price", Value: 49.5},
			{Key: "category", Value: "Accessories"},
			{Key: "source_url", Value: "https://x/products/w"},
		}))

		got, err := repo.FindBySourceURL(context.Background(), "https://x/products/w")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, oid.Hex(), got.ID)
		assert.Equal(t, 49.5, got.Price)
		assert.Equal(t, catalog.CategoryAccessories, got.Category)
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewRepository(mt.Client, mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.products", mtest.FirstBatch))

		got, err := repo.FindByNameBrand(context.Background(), "Nope", "Acme")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	mt.Run("create", func(mt *mtest.T) {
		repo := NewRepository(mt.Client, mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		sp, err := repo.CreateProduct(context.Background(), "s", catalog.Product{Name: "Wallet"})
		require.NoError(t, err)
		assert.Len(t, sp.ID, 24)
		assert.Equal(t, "s", sp.Source)
	})

	mt.Run("append version rejects bad product id", func(mt *mtest.T) {
		repo := NewRepository(mt.Client, mt.DB)
		err := repo.AppendVersion(context.Background(), catalog.VersionEntry{ProductID: "42"})
		assert.Error(t, err)
	})
}
