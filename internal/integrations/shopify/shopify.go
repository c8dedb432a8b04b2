// internal/integrations/shopify/shopify.go
package shopify

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bartek5186/storesync/internal/integrations"
	"github.com/rs/zerolog"
)

const defaultTimeout = 20 * time.Second

type Config struct {
	integrations.Settings
	BaseURL     string `json:"base_url"`               // https://shop.example.com
	AccessToken string `json:"access_token,omitempty"` // X-Shopify-Access-Token, opcjonalnie
	TimeoutSec  int    `json:"timeout_sec,omitempty"`
}

// Shop to feed products.json jednego sklepu.
type Shop struct {
	log  zerolog.Logger
	name string
	cfg  Config
	http *http.Client
}

func New(log zerolog.Logger, name string, cfg Config) (*Shop, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("shopify: base_url jest wymagany")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, err
	}
	if cfg.StoreURL == "" {
		cfg.StoreURL = cfg.BaseURL
	}
	timeout := defaultTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}
	return &Shop{
		log:  log,
		name: name,
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}, nil
}

func (s *Shop) Name() string { return s.name }

func (s *Shop) Settings() integrations.Settings { return s.cfg.Settings }

func (s *Shop) Endpoint() string {
	u, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return s.cfg.BaseURL
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/products.json"
	return u.String()
}

func factory(log zerolog.Logger, name string, raw json.RawMessage) (integrations.Source, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return New(log, name, cfg)
}

func init() {
	integrations.Register("shopify", factory)
}
