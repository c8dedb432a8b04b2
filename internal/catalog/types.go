// internal/catalog/types.go
package catalog

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Scalar trzyma surową wartość pola, które w feedzie bywa stringiem albo liczbą
// (np. "49.99" vs 49.99, id jako int64 vs string). null -> "".
type Scalar string

func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = Scalar(v)
		return nil
	}
	*s = Scalar(b)
	return nil
}

func (s Scalar) String() string { return strings.TrimSpace(string(s)) }

// Float zwraca wartość liczbową; ok=false gdy pole puste albo nieliczbowe.
func (s Scalar) Float() (float64, bool) {
	v, err := strconv.ParseFloat(s.String(), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// TagList akceptuje tagi jako tablicę albo jeden string rozdzielany przecinkami.
type TagList []string

func (t *TagList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*t = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = splitTags(s)
		return nil
	}
	var raw []any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	*t = out
	return nil
}

func splitTags(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ExternalProduct to jeden rekord z feedu sklepu (products.json w stylu Shopify).
type ExternalProduct struct {
	ID          Scalar    `json:"id"`
	Title       string    `json:"title"`
	BodyHTML    string    `json:"body_html"`
	Vendor      string    `json:"vendor"`
	ProductType string    `json:"product_type"`
	Tags        TagList   `json:"tags"`
	Images      []Image   `json:"images"`
	Variants    []Variant `json:"variants"`
	Handle      string    `json:"handle"`
	PublishedAt Scalar    `json:"published_at"`
}

type Image struct {
	Src string `json:"src"`
}

type Variant struct {
	Price          Scalar `json:"price"`
	CompareAtPrice Scalar `json:"compare_at_price"`
	Available      bool   `json:"available"`
}

// Product to lokalny kształt produktu wyliczony z rekordu feedu.
type Product struct {
	ExternalID      string            `json:"externalId"`
	Name            string            `json:"name" validate:"required"`
	Description     string            `json:"description"`
	DescriptionHTML string            `json:"descriptionHtml"`
	Price           float64           `json:"price" validate:"gte=0"`
	OriginalPrice   *float64          `json:"originalPrice,omitempty" validate:"omitempty,gte=0"`
	Image           string            `json:"image"`
	Images          []string          `json:"images"`
	Category        Category          `json:"category" validate:"oneof=Men Women 'Office & Travel' Accessories Gifting"`
	Brand           string            `json:"brand"`
	StockCount      int               `json:"stockCount" validate:"gte=0"`
	InStock         bool              `json:"inStock"`
	Tags            []string          `json:"tags"`
	Specifications  map[string]string `json:"specifications"`
	IsActive        bool              `json:"isActive"`
	ProductType     string            `json:"productType"`
	SourceURL       string            `json:"sourceUrl,omitempty"`
	Status          string            `json:"status"`
	PublishAt       time.Time         `json:"publishAt"`
}

// StoredProduct to produkt zapisany w bazie. ID jest nieprzezroczyste
// (liczba dla SQL, ObjectID hex dla mongo).
type StoredProduct struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Product
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
	ActionError     Action = "error"
)

// VersionEntry to niezmienny wpis audytowy: jeden na rekord feedu na przebieg.
type VersionEntry struct {
	ID          string        `json:"id"`
	ProductID   string        `json:"productId,omitempty"`
	Action      Action        `json:"action"`
	ExternalID  string        `json:"externalId"`
	Source      string        `json:"source"`
	OperationID string        `json:"operationId"`
	Before      *Product      `json:"before"`
	After       *Product      `json:"after"`
	Diff        []FieldChange `json:"diff"`
	Error       string        `json:"error,omitempty"`
	FetchedAt   time.Time     `json:"fetchedAt"`
}

// VersionFilter - filtry przeglądarki wersji. Puste pola nie filtrują.
type VersionFilter struct {
	ProductID   string
	Source      string
	ExternalID  string
	OperationID string
	Action      Action
	From        *time.Time
	To          *time.Time
	Limit       int
}

const (
	DefaultVersionLimit = 50
	MaxVersionLimit     = 500
)

// EffectiveLimit: 0 -> domyślny, powyżej maksimum -> maksimum.
func (f VersionFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultVersionLimit
	case f.Limit > MaxVersionLimit:
		return MaxVersionLimit
	}
	return f.Limit
}
