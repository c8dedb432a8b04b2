// internal/db/repository.go
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/bartek5186/storesync/internal/audit"
	"github.com/bartek5186/storesync/internal/catalog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository - produkty, wersje i dziennik na gorm.
type Repository struct {
	db *gorm.DB
}

func NewRepository(h *Handle) *Repository { return &Repository{db: h.DB} }

// FindBySourceURL zwraca nil, nil gdy brak dopasowania.
func (r *Repository) FindBySourceURL(ctx context.Context, url string) (*catalog.StoredProduct, error) {
	if url == "" {
		return nil, nil
	}
	return r.findOne(ctx, "source_url = ?", url)
}

// FindByNameBrand - tylko produkty bez source_url; produkt z własnym URL-em
// dopasowuje wyłącznie FindBySourceURL.
func (r *Repository) FindByNameBrand(ctx context.Context, name, brand string) (*catalog.StoredProduct, error) {
	return r.findOne(ctx, "name = ? AND brand = ? AND source_url IS NULL", name, brand)
}

func (r *Repository) findOne(ctx context.Context, query string, args ...any) (*catalog.StoredProduct, error) {
	var row Product
	err := r.db.WithContext(ctx).Where(query, args...).Order("id").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sp := row.toCatalog()
	return &sp, nil
}

func (r *Repository) CreateProduct(ctx context.Context, source string, p catalog.Product) (catalog.StoredProduct, error) {
	row := fromCatalog(source, p)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return catalog.StoredProduct{}, fmt.Errorf("create product %q: %w", p.Name, err)
	}
	return row.toCatalog(), nil
}

func (r *Repository) UpdateProduct(ctx context.Context, id, source string, p catalog.Product) (catalog.StoredProduct, error) {
	pk, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return catalog.StoredProduct{}, fmt.Errorf("product id %q: %w", id, err)
	}

	var existing Product
	if err := r.db.WithContext(ctx).First(&existing, pk).Error; err != nil {
		return catalog.StoredProduct{}, fmt.Errorf("load product %s: %w", id, err)
	}

	row := fromCatalog(source, p)
	row.ID = existing.ID
	row.CreatedAt = existing.CreatedAt
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return catalog.StoredProduct{}, fmt.Errorf("update product %s: %w", id, err)
	}
	return row.toCatalog(), nil
}

func (r *Repository) AppendVersion(ctx context.Context, v catalog.VersionEntry) error {
	row, err := versionRow(v)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// ListVersions - najnowsze najpierw.
func (r *Repository) ListVersions(ctx context.Context, f catalog.VersionFilter) ([]catalog.VersionEntry, error) {
	q := r.db.WithContext(ctx).Model(&ProductVersion{})
	if f.ProductID != "" {
		pk, err := strconv.ParseUint(f.ProductID, 10, 64)
		if err != nil {
			return []catalog.VersionEntry{}, nil
		}
		q = q.Where("product_id = ?", pk)
	}
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	if f.ExternalID != "" {
		q = q.Where("external_id = ?", f.ExternalID)
	}
	if f.OperationID != "" {
		q = q.Where("operation_id = ?", f.OperationID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", string(f.Action))
	}
	if f.From != nil {
		q = q.Where("fetched_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("fetched_at <= ?", f.To.UTC())
	}

	var rows []ProductVersion
	if err := q.Order("fetched_at DESC").Order("id DESC").Limit(f.EffectiveLimit()).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]catalog.VersionEntry, 0, len(rows))
	for _, row := range rows {
		v, err := row.toCatalog()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *Repository) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Product{}).Count(&n).Error
	return n, err
}

func (r *Repository) CountVersions(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&ProductVersion{}).Count(&n).Error
	return n, err
}

func (r *Repository) AppendAudit(ctx context.Context, s audit.Summary) error {
	row := AuditLog{
		Source:      s.Source,
		Endpoint:    s.Endpoint,
		OperationID: s.OperationID,
		FetchedAt:   s.FetchedAt.UTC(),
		Created:     s.Created,
		Updated:     s.Updated,
		Unchanged:   s.Unchanged,
		Failed:      s.Failed,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// GetState / SetState - tabela kv
func (r *Repository) GetState(ctx context.Context, key string) (string, bool, error) {
	var kv KV
	err := r.db.WithContext(ctx).Where("k = ?", key).First(&kv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return kv.V, true, nil
}

func (r *Repository) SetState(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "k"}},
		DoUpdates: clause.AssignmentColumns([]string{"v"}),
	}).Create(&KV{K: key, V: value}).Error
}

func fromCatalog(source string, p catalog.Product) Product {
	row := Product{
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
		Status:          p.Status,
		PublishAt:       p.PublishAt.UTC(),
	}
	if p.SourceURL != "" {
		u := p.SourceURL
		row.SourceURL = &u
	}
	return row
}

func (row Product) toCatalog() catalog.StoredProduct {
	p := catalog.Product{
		ExternalID:      row.ExternalID,
		Name:            row.Name,
		Description:     row.Description,
		DescriptionHTML: row.DescriptionHTML,
		Price:           row.Price,
		OriginalPrice:   row.OriginalPrice,
		Image:           row.Image,
		Images:          row.Images,
		Category:        catalog.Category(row.Category),
		Brand:           row.Brand,
		StockCount:      row.StockCount,
		InStock:         row.InStock,
		Tags:            row.Tags,
		Specifications:  row.Specifications,
		IsActive:        row.IsActive,
		ProductType:     row.ProductType,
		Status:          row.Status,
		PublishAt:       row.PublishAt.UTC(),
	}
	if row.SourceURL != nil {
		p.SourceURL = *row.SourceURL
	}
	return catalog.StoredProduct{
		ID:        strconv.FormatUint(uint64(row.ID), 10),
		Source:    row.Source,
		Product:   p,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func versionRow(v catalog.VersionEntry) (ProductVersion, error) {
	row := ProductVersion{
		Action:      string(v.Action),
		ExternalID:  v.ExternalID,
		Source:      v.Source,
		OperationID: v.OperationID,
		Error:       v.Error,
		FetchedAt:   v.FetchedAt.UTC(),
	}
	if v.ProductID != "" {
		pk, err := strconv.ParseUint(v.ProductID, 10, 64)
		if err != nil {
			return row, fmt.Errorf("version product id %q: %w", v.ProductID, err)
		}
		id := uint(pk)
		row.ProductID = &id
	}

	var err error
	if row.Before, err = jsonOrNull(v.Before); err != nil {
		return row, err
	}
	if row.After, err = jsonOrNull(v.After); err != nil {
		return row, err
	}
	diff := v.Diff
	if diff == nil {
		diff = []catalog.FieldChange{}
	}
	if row.Diff, err = json.Marshal(diff); err != nil {
		return row, err
	}
	return row, nil
}

func jsonOrNull(p *catalog.Product) (datatypes.JSON, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func (row ProductVersion) toCatalog() (catalog.VersionEntry, error) {
	v := catalog.VersionEntry{
		ID:          strconv.FormatUint(uint64(row.ID), 10),
		Action:      catalog.Action(row.Action),
		ExternalID:  row.ExternalID,
		Source:      row.Source,
		OperationID: row.OperationID,
		Error:       row.Error,
		FetchedAt:   row.FetchedAt.UTC(),
		Diff:        []catalog.FieldChange{},
	}
	if row.ProductID != nil {
		v.ProductID = strconv.FormatUint(uint64(*row.ProductID), 10)
	}
	if len(row.Before) > 0 && string(row.Before) != "null" {
		v.Before = new(catalog.Product)
		if err := json.Unmarshal(row.Before, v.Before); err != nil {
			return v, fmt.Errorf("version %d before: %w", row.ID, err)
		}
	}
	if len(row.After) > 0 && string(row.After) != "null" {
		v.After = new(catalog.Product)
		if err := json.Unmarshal(row.After, v.After); err != nil {
			return v, fmt.Errorf("version %d after: %w", row.ID, err)
		}
	}
	if len(row.Diff) > 0 {
		if err := json.Unmarshal(row.Diff, &v.Diff); err != nil {
			return v, fmt.Errorf("version %d diff: %w", row.ID, err)
		}
	}
	return v, nil
}
