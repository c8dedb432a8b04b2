// internal/integrations/shopify/client.go
package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bartek5186/storesync/internal/catalog"
)

// StatusError - feed odpowiedział kodem spoza 2xx.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("shopify feed %s: http %d", e.URL, e.Code)
}

type feedResponse struct {
	Products []catalog.ExternalProduct `json:"products"`
}

// Fetch pobiera jedną stronę products.json z limitem.
func (s *Shop) Fetch(ctx context.Context, limit int) ([]catalog.ExternalProduct, error) {
	base, err := url.Parse(s.Endpoint())
	if err != nil {
		return nil, fmt.Errorf("shopify url: %w", err)
	}
	q := base.Query()
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	base.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "storesync/1.0")
	if s.cfg.AccessToken != "" {
		req.Header.Set("X-Shopify-Access-Token", s.cfg.AccessToken)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shopify feed %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, URL: base.String(), Body: string(body)}
	}

	var feed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode feed %s: %w", s.name, err)
	}
	s.log.Debug().Int("count", len(feed.Products)).Str("url", base.String()).Msg("feed fetched")
	return feed.Products, nil
}
