// internal/docstore/docstore.go
package docstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	productsColl = "products"
	versionsColl = "product_versions"
	auditColl    = "audit_logs"
	kvColl       = "kv"
)

// Connect łączy się z mongo i sprawdza połączenie pingiem.
func Connect(ctx context.Context, uri, dbName string) (*Repository, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return NewRepository(client, client.Database(dbName)), nil
}

func (r *Repository) Close() error {
	if r.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return nil
}

// EnsureIndexes - odpowiednik migracji; source_url unikalny i rzadki.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	plan := map[string][]mongo.IndexModel{
		productsColl: {
			{Keys: bson.D{{Key: "source_url", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
			{Keys: bson.D{{Key: "name", Value: 1}, {Key: "brand", Value: 1}}},
		},
		versionsColl: {
			{Keys: bson.D{{Key: "product_id", Value: 1}}},
			{Keys: bson.D{{Key: "source", Value: 1}}},
			{Keys: bson.D{{Key: "external_id", Value: 1}}},
			{Keys: bson.D{{Key: "operation_id", Value: 1}}},
			{Keys: bson.D{{Key: "fetched_at", Value: -1}}},
		},
		auditColl: {
			{Keys: bson.D{{Key: "operation_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for coll, models := range plan {
		if _, err := r.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("indexes %s: %w", coll, err)
		}
	}
	return nil
}
