// internal/docstore/repository.go
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bartek5186/storesync/internal/audit"
	"github.com/bartek5186/storesync/internal/catalog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type productDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Source          string             `bson:"source"`
	ExternalID      string             `bson:"external_id"`
	Name            string             `bson:"name"`
	Brand           string             `bson:"brand"`
	Description     string             `bson:"description"`
	DescriptionHTML string             `bson:"description_html"`
	Price           float64            `bson:"price"`
	OriginalPrice   *float64           `bson:"original_price"`
	Image           string             `bson:"image"`
	Images          []string           `bson:"images"`
	Category        string             `bson:"category"`
	StockCount      int                `bson:"stock_count"`
	InStock         bool               `bson:"in_stock"`
	Tags            []string           `bson:"tags"`
	Specifications  map[string]string  `bson:"specifications"`
	IsActive        bool               `bson:"is_active"`
	ProductType     string             `bson:"product_type"`
	SourceURL       string             `bson:"source_url,omitempty"` // brak pola = indeks rzadki go pomija
	Status          string             `bson:"status"`
	PublishAt       time.Time          `bson:"publish_at"`
	CreatedAt       time.Time          `bson:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at"`
}

type versionDoc struct {
	ID          primitive.ObjectID    `bson:"_id,omitempty"`
	ProductID   *primitive.ObjectID   `bson:"product_id,omitempty"`
	Action      string                `bson:"action"`
	ExternalID  string                `bson:"external_id"`
	Source      string                `bson:"source"`
	OperationID string                `bson:"operation_id"`
	Before      *catalog.Product      `bson:"before"`
	After       *catalog.Product      `bson:"after"`
	Diff        []catalog.FieldChange `bson:"diff"`
	Error       string                `bson:"error,omitempty"`
	FetchedAt   time.Time             `bson:"fetched_at"`
}

type Repository struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewRepository(client *mongo.Client, db *mongo.Database) *Repository {
	return &Repository{client: client, db: db}
}

func (r *Repository) products() *mongo.Collection { return r.db.Collection(productsColl) }
func (r *Repository) versions() *mongo.Collection { return r.db.Collection(versionsColl) }

// FindBySourceURL zwraca nil, nil gdy brak dopasowania.
func (r *Repository) FindBySourceURL(ctx context.Context, url string) (*catalog.StoredProduct, error) {
	if url == "" {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"source_url": url})
}

// FindByNameBrand - tylko dokumenty bez source_url.
func (r *Repository) FindByNameBrand(ctx context.Context, name, brand string) (*catalog.StoredProduct, error) {
	return r.findOne(ctx, nameBrandFilter(name, brand))
}

func nameBrandFilter(name, brand string) bson.M {
	return bson.M{"name": name, "brand": brand, "source_url": bson.M{"$exists": false}}
}

func (r *Repository) findOne(ctx context.Context, filter bson.M) (*catalog.StoredProduct, error) {
	var doc productDoc
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})
	err := r.products().FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sp := doc.toCatalog()
	return &sp, nil
}

func (r *Repository) CreateProduct(ctx context.Context, source string, p catalog.Product) (catalog.StoredProduct, error) {
	now := mongoTime(time.Now())
	doc := fromCatalog(source, p)
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if _, err := r.products().InsertOne(ctx, doc); err != nil {
		return catalog.StoredProduct{}, fmt.Errorf("create product %q: %w", p.Name, err)
	}
	return doc.toCatalog(), nil
}

func (r *Repository) UpdateProduct(ctx context.Context, id, source string, p catalog.Product) (catalog.StoredProduct, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return catalog.StoredProduct{}, fmt.Errorf("product id %q: %w", id, err)
	}

	var existing productDoc
	if err := r.products().FindOne(ctx, bson.M{"_id": oid}).Decode(&existing); err != nil {
		return catalog.StoredProduct{}, fmt.Errorf("load product %s: %w", id, err)
	}

	doc := fromCatalog(source, p)
	doc.ID = oid
	doc.CreatedAt = existing.CreatedAt
	doc.UpdatedAt = mongoTime(time.Now())
	if _, err := r.products().ReplaceOne(ctx, bson.M{"_id": oid}, doc); err != nil {
		return catalog.StoredProduct{}, fmt.Errorf("update product %s: %w", id, err)
	}
	return doc.toCatalog(), nil
}

func (r *Repository) AppendVersion(ctx context.Context, v catalog.VersionEntry) error {
	doc := versionDoc{
		ID:          primitive.NewObjectID(),
		Action:      string(v.Action),
		ExternalID:  v.ExternalID,
		Source:      v.Source,
		OperationID: v.OperationID,
		Before:      v.Before,
		After:       v.After,
		Diff:        v.Diff,
		Error:       v.Error,
		FetchedAt:   mongoTime(v.FetchedAt),
	}
	if doc.Diff == nil {
		doc.Diff = []catalog.FieldChange{}
	}
	if v.ProductID != "" {
		oid, err := primitive.ObjectIDFromHex(v.ProductID)
		if err != nil {
			return fmt.Errorf("version product id %q: %w", v.ProductID, err)
		}
		doc.ProductID = &oid
	}
	_, err := r.versions().InsertOne(ctx, doc)
	return err
}

// ListVersions - najnowsze najpierw.
func (r *Repository) ListVersions(ctx context.Context, f catalog.VersionFilter) ([]catalog.VersionEntry, error) {
	filter, ok := versionFilter(f)
	if !ok {
		return []catalog.VersionEntry{}, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "fetched_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(f.EffectiveLimit()))

	cursor, err := r.versions().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []versionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]catalog.VersionEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toCatalog())
	}
	return out, nil
}

// versionFilter; ok=false gdy filtr nie może niczego dopasować (zły productId).
func versionFilter(f catalog.VersionFilter) (bson.M, bool) {
	filter := bson.M{}
	if f.ProductID != "" {
		oid, err := primitive.ObjectIDFromHex(f.ProductID)
		if err != nil {
			return nil, false
		}
		filter["product_id"] = oid
	}
	if f.Source != "" {
		filter["source"] = f.Source
	}
	if f.ExternalID != "" {
		filter["external_id"] = f.ExternalID
	}
	if f.OperationID != "" {
		filter["operation_id"] = f.OperationID
	}
	if f.Action != "" {
		filter["action"] = string(f.Action)
	}
	if f.From != nil || f.To != nil {
		rng := bson.M{}
		if f.From != nil {
			rng["$gte"] = f.From.UTC()
		}
		if f.To != nil {
			rng["$lte"] = f.To.UTC()
		}
		filter["fetched_at"] = rng
	}
	return filter, true
}

func (r *Repository) CountProducts(ctx context.Context) (int64, error) {
	return r.products().CountDocuments(ctx, bson.M{})
}

func (r *Repository) CountVersions(ctx context.Context) (int64, error) {
	return r.versions().CountDocuments(ctx, bson.M{})
}

func (r *Repository) AppendAudit(ctx context.Context, s audit.Summary) error {
	_, err := r.db.Collection(auditColl).InsertOne(ctx, bson.M{
		"source":       s.Source,
		"endpoint":     s.Endpoint,
		"operation_id": s.OperationID,
		"fetched_at":   s.FetchedAt.UTC(),
		"created":      s.Created,
		"updated":      s.Updated,
		"unchanged":    s.Unchanged,
		"failed":       s.Failed,
		"recorded_at":  time.Now().UTC(),
	})
	return err
}

func (r *Repository) GetState(ctx context.Context, key string) (string, bool, error) {
	var doc struct {
		V string `bson:"v"`
	}
	err := r.db.Collection(kvColl).FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return doc.V, true, nil
}

func (r *Repository) SetState(ctx context.Context, key, value string) error {
	_, err := r.db.Collection(kvColl).UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"v": value}},
		options.Update().SetUpsert(true))
	return err
}

// mongo trzyma czas z dokładnością do milisekund
func mongoTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func fromCatalog(source string, p catalog.Product) productDoc {
	return productDoc{
		Source:          source,
		ExternalID:      p.ExternalID,
		Name:            p.Name,
		Brand:           p.Brand,
		Description:     p.Description,
		DescriptionHTML: p.DescriptionHTML,
		Price:           p.Price,
		OriginalPrice:   p.OriginalPrice,
		Image:           p.Image,
		Images:          p.Images,
		Category:        string(p.Category),
		StockCount:      p.StockCount,
		InStock:         p.InStock,
		Tags:            p.Tags,
		Specifications:  p.Specifications,
		IsActive:        p.IsActive,
		ProductType:     p.ProductType,
		SourceURL:       p.SourceURL,
		Status:          p.Status,
		PublishAt:       mongoTime(p.PublishAt),
	}
}

func (d productDoc) toCatalog() catalog.StoredProduct {
	return catalog.StoredProduct{
		ID:     d.ID.Hex(),
		Source: d.Source,
		Product: catalog.Product{
			ExternalID:      d.ExternalID,
			Name:            d.Name,
			Description:     d.Description,
			DescriptionHTML: d.DescriptionHTML,
			Price:           d.Price,
			OriginalPrice:   d.OriginalPrice,
			Image:           d.Image,
			Images:          d.Images,
			Category:        catalog.Category(d.Category),
			Brand:           d.Brand,
			StockCount:      d.StockCount,
			InStock:         d.InStock,
			Tags:            d.Tags,
			Specifications:  d.Specifications,
			IsActive:        d.IsActive,
			ProductType:     d.ProductType,
			SourceURL:       d.SourceURL,
			Status:          d.Status,
			PublishAt:       d.PublishAt.UTC(),
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func (d versionDoc) toCatalog() catalog.VersionEntry {
	v := catalog.VersionEntry{
		ID:          d.ID.Hex(),
		Action:      catalog.Action(d.Action),
		ExternalID:  d.ExternalID,
		Source:      d.Source,
		OperationID: d.OperationID,
		Before:      d.Before,
		After:       d.After,
		Diff:        d.Diff,
		Error:       d.Error,
		FetchedAt:   d.FetchedAt.UTC(),
	}
	if d.ProductID != nil {
		v.ProductID = d.ProductID.Hex()
	}
	if v.Diff == nil {
		v.Diff = []catalog.FieldChange{}
	}
	return v
}
