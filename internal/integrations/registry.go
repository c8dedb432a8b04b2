// internal/integrations/registry.go
package integrations

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// typ używany gdy wpis w configu nie podaje "type"
const DefaultType = "shopify"

var (
	regMu    sync.RWMutex
	registry = map[string]Factory{}
)

func Register(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

func Get(name string) (Factory, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

func All() map[string]Factory {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make(map[string]Factory, len(registry))
	for k, v := range registry {
		out[k] = v
	}
	return out
}

// Build tworzy źródła z mapy nazwa -> surowy JSON. Błędne i wyłączone wpisy
// są pomijane; błędy zwracane zbiorczo, żeby jeden zły wpis nie blokował reszty.
func Build(log zerolog.Logger, entries map[string]json.RawMessage) (map[string]Source, []error) {
	out := make(map[string]Source, len(entries))
	var errs []error

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw := entries[name]
		var s Settings
		if err := json.Unmarshal(raw, &s); err != nil {
			errs = append(errs, fmt.Errorf("integracja %q: %w", name, err))
			continue
		}
		if !s.IsEnabled() {
			log.Info().Str("integration", name).Msg("disabled in config, skipping")
			continue
		}
		typ := s.Type
		if typ == "" {
			typ = DefaultType
		}
		f, ok := Get(typ)
		if !ok {
			errs = append(errs, fmt.Errorf("integracja %q: brak fabryki dla typu %q", name, typ))
			continue
		}
		src, err := f(log.With().Str("integration", name).Logger(), name, raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("integracja %q: %w", name, err))
			continue
		}
		out[name] = src
	}
	return out, errs
}
