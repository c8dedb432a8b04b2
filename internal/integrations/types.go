// internal/integrations/types.go
package integrations

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bartek5186/storesync/internal/catalog"
	"github.com/rs/zerolog"
)

// Source to zewnętrzny feed produktów (sklep, plik eksportu).
type Source interface {
	Name() string     // tag źródła zapisywany w wersjach
	Endpoint() string // skąd pobieramy (do logów i odpowiedzi API)
	Settings() Settings
	Fetch(ctx context.Context, limit int) ([]catalog.ExternalProduct, error)
}

// Factory buduje źródło z surowego JSON-a integracji z configu.
type Factory func(log zerolog.Logger, name string, raw json.RawMessage) (Source, error)

// Settings - wspólne pola każdej integracji w configu.
type Settings struct {
	Type            string `json:"type"`
	Enabled         *bool  `json:"enabled,omitempty"`
	StoreURL        string `json:"store_url,omitempty"`
	DefaultBrand    string `json:"default_brand,omitempty"`
	Limit           int    `json:"limit,omitempty"`
	IntervalMinutes int    `json:"interval_minutes,omitempty"` // 0 = tylko ręcznie
}

func (s Settings) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

func (s Settings) Interval() time.Duration {
	if s.IntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(s.IntervalMinutes) * time.Minute
}

func (s Settings) MapOptions() catalog.MapOptions {
	return catalog.MapOptions{StoreURL: s.StoreURL, DefaultBrand: s.DefaultBrand}
}
