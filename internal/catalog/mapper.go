// internal/catalog/mapper.go
package catalog

import (
	"strings"
	"time"
)

const (
	DefaultBrand         = "Unbranded"
	PlaceholderImage     = "https://placehold.co/600x600?text=No+Image"
	MaxDescriptionLength = 5000
	StatusPublished      = "published"
)

// MapOptions - ustawienia źródła potrzebne do mapowania.
type MapOptions struct {
	StoreURL     string // baza do sourceUrl, np. https://shop.example.com
	DefaultBrand string // gdy vendor pusty
}

// Map zamienia rekord feedu na lokalny produkt. Nie zwraca błędów: złe dane
// lądują w bezpiecznych wartościach domyślnych.
// PublishAt zostaje zerowe gdy published_at brak lub nieparsowalne - uzupełnia reconciler.
func Map(rec ExternalProduct, opts MapOptions) Product {
	p := Product{
		ExternalID:      rec.ID.String(),
		Name:            strings.TrimSpace(rec.Title),
		DescriptionHTML: rec.BodyHTML,
		Brand:           strings.TrimSpace(rec.Vendor),
		Tags:            []string(rec.Tags),
		IsActive:        true,
		Status:          StatusPublished,
	}
	if p.Name == "" {
		p.Name = "Untitled"
	}
	if p.Brand == "" {
		p.Brand = opts.DefaultBrand
	}
	if p.Brand == "" {
		p.Brand = DefaultBrand
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}

	p.Description = Truncate(StripHTML(rec.BodyHTML), MaxDescriptionLength)

	// ceny z pierwszego wariantu
	if len(rec.Variants) > 0 {
		v := rec.Variants[0]
		if price, ok := v.Price.Float(); ok && price > 0 {
			p.Price = price
		}
		if cmp, ok := v.CompareAtPrice.Float(); ok && cmp > p.Price {
			orig := cmp
			p.OriginalPrice = &orig
		}
	}
	for _, v := range rec.Variants {
		if v.Available {
			p.StockCount++
		}
	}
	p.InStock = p.StockCount > 0

	p.Images = make([]string, 0, len(rec.Images))
	for _, img := range rec.Images {
		if src := strings.TrimSpace(img.Src); src != "" {
			p.Images = append(p.Images, src)
		}
	}
	if len(p.Images) > 0 {
		p.Image = p.Images[0]
	} else {
		p.Image = PlaceholderImage
	}

	p.Category = inferCategory(rec.ProductType, p.Tags)
	p.ProductType = strings.TrimSpace(rec.ProductType)
	if p.ProductType == "" {
		p.ProductType = string(p.Category)
	}

	p.Specifications = InferSpecifications(p.Name, p.Description)
	p.SourceURL = sourceURL(opts.StoreURL, rec.Handle)

	if ts := rec.PublishedAt.String(); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			// precyzja milisekund, jak w mongo
			p.PublishAt = t.UTC().Truncate(time.Millisecond)
		}
	}
	return p
}

// typ produktu ma pierwszeństwo, potem pierwszy tag dokładnie pasujący do słownika
func inferCategory(productType string, tags []string) Category {
	if c, ok := LookupCategory(productType); ok {
		return c
	}
	for _, t := range tags {
		if c, ok := LookupCategory(t); ok {
			return c
		}
	}
	return NormalizeCategory(productType)
}

func sourceURL(storeURL, handle string) string {
	handle = strings.Trim(strings.TrimSpace(handle), "/")
	if handle == "" {
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(storeURL), "/") + "/products/" + handle
}
