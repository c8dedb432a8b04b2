// internal/config/config.go
package conf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Główny config aplikacji
type Config struct {
	AutoStart           bool                       `json:"auto_start"`
	SyncIntervalSeconds int                        `json:"sync_interval_seconds"` // co ile harmonogram sprawdza terminy
	HTTPAddr            string                     `json:"http_addr"`
	LogLevel            string                     `json:"log_level"`
	FetchTimeoutSeconds int                        `json:"fetch_timeout_seconds"`
	AbortOnRecordError  bool                       `json:"abort_on_record_error"`
	Database            Database                   `json:"database"`
	Progress            Progress                   `json:"progress"`
	Audit               Audit                      `json:"audit"`
	Auth                Auth                       `json:"auth"`
	Integrations        map[string]json.RawMessage `json:"integrations"` // nazwa -> surowy JSON integracji
}

type Database struct {
	Driver string `json:"driver"` // sqlite | sqlite3 | postgres | mysql | mongo
	DSN    string `json:"dsn"`    // dla sqlite pusty = plik w katalogu aplikacji
	Name   string `json:"name,omitempty"`
}

type Progress struct {
	Backend    string `json:"backend"` // memory | redis
	RedisURL   string `json:"redis_url,omitempty"`
	TTLMinutes int    `json:"ttl_minutes"`
}

type Audit struct {
	KafkaBrokers []string `json:"kafka_brokers,omitempty"`
	KafkaTopic   string   `json:"kafka_topic,omitempty"`
}

type Auth struct {
	JWTSecret string `json:"jwt_secret"`
}

// Przykładowa integracja sklepu (do domyślnego JSON-a)
type shopDefaults struct {
	Type            string `json:"type"`
	BaseURL         string `json:"base_url"`
	StoreURL        string `json:"store_url"`
	DefaultBrand    string `json:"default_brand"`
	Limit           int    `json:"limit"`
	IntervalMinutes int    `json:"interval_minutes"`
	Enabled         bool   `json:"enabled"`
}

func Default() *Config {
	rawShop, _ := json.Marshal(shopDefaults{
		Type:            "shopify",
		BaseURL:         "https://shop.example.com",
		StoreURL:        "https://shop.example.com",
		DefaultBrand:    "Unbranded",
		Limit:           100,
		IntervalMinutes: 60,
		Enabled:         false,
	})
	return &Config{
		AutoStart:           false,
		SyncIntervalSeconds: 30,
		HTTPAddr:            ":8080",
		LogLevel:            "info",
		FetchTimeoutSeconds: 20,
		Database:            Database{Driver: "sqlite"},
		Progress:            Progress{Backend: "memory", TTLMinutes: 30},
		Auth:                Auth{JWTSecret: "change-me"},
		Integrations: map[string]json.RawMessage{
			"main-shop": rawShop,
		},
	}
}

func LoadOrCreate(path string) (*Config, bool, error) {
	// upewnij się, że katalog istnieje
	_ = os.MkdirAll(filepath.Dir(path), 0o755)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if err := Save(path, cfg); err != nil {
				return nil, false, fmt.Errorf("błąd zapisu domyślnego configa: %w", err)
			}
			cfg.applyEnv()
			return cfg, true, nil
		}
		return nil, false, fmt.Errorf("błąd otwierania configa: %w", err)
	}
	defer f.Close()

	cfg := Default()
	cfg.Integrations = nil
	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return nil, false, fmt.Errorf("błąd parsowania configa: %w", err)
	}
	if cfg.Integrations == nil {
		cfg.Integrations = map[string]json.RawMessage{}
	}
	cfg.applyEnv()
	return cfg, false, nil
}

// LoadEnv wczytuje .env (jeśli jest) z podanych ścieżek; brak pliku to nie błąd.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("błąd wczytania %s: %w", p, err)
		}
	}
	return nil
}

// zmienne środowiskowe nadpisują plik (sekrety nie muszą siedzieć w config.json)
func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Database.Driver, "STORESYNC_DB_DRIVER")
	set(&c.Database.DSN, "STORESYNC_DB_DSN")
	set(&c.Auth.JWTSecret, "STORESYNC_JWT_SECRET")
	set(&c.Progress.RedisURL, "STORESYNC_REDIS_URL")
	set(&c.HTTPAddr, "STORESYNC_HTTP_ADDR")
	if c.Progress.RedisURL != "" && os.Getenv("STORESYNC_REDIS_URL") != "" {
		c.Progress.Backend = "redis"
	}
}

func Save(path string, cfg *Config) error {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

// Helper do odczytu konkretnej integracji do struktury docelowej
func (c *Config) UnmarshalIntegration(name string, v any) error {
	raw, ok := c.Integrations[name]
	if !ok {
		return fmt.Errorf("brak integracji %q w configu", name)
	}
	return json.Unmarshal(raw, v)
}
