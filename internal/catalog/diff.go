// internal/catalog/diff.go
package catalog

import (
	"bytes"
	"encoding/json"
	"reflect"
	"time"
)

// FieldChange to jedna pozycja diffa.
type FieldChange struct {
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// TrackedFields - jedyne pola porównywane przy synchronizacji, w tej kolejności.
var TrackedFields = []string{
	"name",
	"description",
	"price",
	"originalPrice",
	"image",
	"category",
	"brand",
	"stockCount",
	"inStock",
	"isActive",
	"status",
	"publishAt",
	"productType",
}

var dateFields = map[string]bool{
	"publishAt": true,
}

// Diff porównuje pola z listy fields po ich zakodowaniu do JSON.
// before == nil traktowane jak obiekt z samymi null-ami.
// Kolejność wyniku = kolejność fields.
func Diff(before, after map[string]any, fields []string) []FieldChange {
	changes := make([]FieldChange, 0)
	for _, f := range fields {
		var b any
		if before != nil {
			b = normalizeValue(f, before[f])
		}
		a := normalizeValue(f, after[f])
		if jsonEqual(b, a) {
			continue
		}
		changes = append(changes, FieldChange{Field: f, Before: b, After: a})
	}
	return changes
}

// DiffProducts - wersja typowana, po TrackedFields.
func DiffProducts(before *Product, after Product) []FieldChange {
	var b map[string]any
	if before != nil {
		b = Snapshot(*before)
	}
	return Diff(b, Snapshot(after), TrackedFields)
}

// Snapshot zwraca śledzone pola produktu pod nazwami z JSON.
func Snapshot(p Product) map[string]any {
	return map[string]any{
		"name":          p.Name,
		"description":   p.Description,
		"price":         p.Price,
		"originalPrice": p.OriginalPrice,
		"image":         p.Image,
		"category":      string(p.Category),
		"brand":         p.Brand,
		"stockCount":    p.StockCount,
		"inStock":       p.InStock,
		"isActive":      p.IsActive,
		"status":        p.Status,
		"publishAt":     p.PublishAt,
		"productType":   p.ProductType,
	}
}

// daty do jednej postaci (UTC, RFC3339Nano); zerowy czas i nil-e -> nil
func normalizeValue(field string, v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return t.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil {
			return nil
		}
		return normalizeValue(field, *t)
	case *float64:
		if t == nil {
			return nil
		}
		return *t
	case string:
		if dateFields[field] {
			if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
				return normalizeValue(field, ts)
			}
		}
		return t
	}
	return v
}

func jsonEqual(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(ja, jb)
}
