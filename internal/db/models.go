// internal/db/models.go
package db

import (
	"time"

	"gorm.io/datatypes"
)

// products
type Product struct {
	ID              uint   `gorm:"primaryKey"`
	Source          string `gorm:"size:128;index"`
	ExternalID      string `gorm:"size:128;index"`
	Name            string `gorm:"size:255;index:idx_products_name_brand,priority:1"`
	Brand           string `gorm:"size:255;index:idx_products_name_brand,priority:2"`
	Description     string `gorm:"type:text"`
	DescriptionHTML string `gorm:"type:text"`
	Price           float64
	OriginalPrice   *float64
	Image           string   `gorm:"size:1024"`
	Images          []string `gorm:"serializer:json;type:text"`
	Category        string   `gorm:"size:32;index"`
	StockCount      int
	InStock         bool
	Tags            []string          `gorm:"serializer:json;type:text"`
	Specifications  map[string]string `gorm:"serializer:json;type:text"`
	IsActive        bool
	ProductType     string  `gorm:"size:255"`
	SourceURL       *string `gorm:"size:512;uniqueIndex"` // NULL = brak url, NULL-e się nie gryzą
	Status          string  `gorm:"size:32"`
	PublishAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// product_versions (tylko insert)
type ProductVersion struct {
	ID          uint   `gorm:"primaryKey"`
	ProductID   *uint  `gorm:"index"`
	Action      string `gorm:"size:16;index"`
	ExternalID  string `gorm:"size:128;index"`
	Source      string `gorm:"size:128;index"`
	OperationID string `gorm:"size:64;index"`
	Before      datatypes.JSON
	After       datatypes.JSON
	Diff        datatypes.JSON
	Error       string    `gorm:"type:text"`
	FetchedAt   time.Time `gorm:"index"`
}

// audit_logs - podsumowanie przebiegu
type AuditLog struct {
	ID          uint   `gorm:"primaryKey"`
	Source      string `gorm:"size:128;index"`
	Endpoint    string `gorm:"size:1024"`
	OperationID string `gorm:"size:64;uniqueIndex"`
	FetchedAt   time.Time
	Created     int
	Updated     int
	Unchanged   int
	Failed      int
	RecordedAt  time.Time `gorm:"autoCreateTime"`
}

// kv - drobny stan serwisu (np. ostatni przebieg harmonogramu)
type KV struct {
	K string `gorm:"primaryKey;size:191"`
	V string
}
