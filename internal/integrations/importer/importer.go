// internal/integrations/importer/importer.go
package importer

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bartek5186/storesync/internal/catalog"
	"github.com/bartek5186/storesync/internal/integrations"
	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"
)

// Config - źródło z pliku eksportu (products.json zapisany na dysku,
// np. z narzędzia eksportu sklepu albo wrzucony przez FTP).
type Config struct {
	integrations.Settings
	Path    string `json:"path"`              // np. ~/storesync/imports/products.json
	Charset string `json:"charset,omitempty"` // dla starych eksportów w cp1250/latin2
}

type Importer struct {
	log  zerolog.Logger
	name string
	cfg  Config
}

func (i *Importer) Name() string { return i.name }

func (i *Importer) Settings() integrations.Settings { return i.cfg.Settings }

func (i *Importer) Endpoint() string { return "file://" + expandHome(i.cfg.Path) }

// Fetch czyta cały plik; akceptuje {"products":[...]} albo gołą tablicę.
func (i *Importer) Fetch(ctx context.Context, limit int) ([]catalog.ExternalProduct, error) {
	full := expandHome(i.cfg.Path)

	sum, err := fileSHA256(full)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if i.cfg.Charset != "" {
		r, err = charset.NewReaderLabel(normalizeCharset(i.cfg.Charset), r)
		if err != nil {
			return nil, fmt.Errorf("charset %q: %w", i.cfg.Charset, err)
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	products, err := decodeExport(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(full), err)
	}
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}

	i.log.Info().
		Str("file", full).
		Str("sha256", sum).
		Int("products", len(products)).
		Msg("export file read")
	return products, nil
}

func decodeExport(data []byte) ([]catalog.ExternalProduct, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("pusty plik")
	}
	if data[0] == '[' {
		var list []catalog.ExternalProduct
		err := json.Unmarshal(data, &list)
		return list, err
	}
	var feed struct {
		Products []catalog.ExternalProduct `json:"products"`
	}
	err := json.Unmarshal(data, &feed)
	return feed.Products, err
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func factory(log zerolog.Logger, name string, raw json.RawMessage) (integrations.Source, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("importer: path jest wymagany")
	}
	return &Importer{log: log, name: name, cfg: cfg}, nil
}

func init() {
	integrations.Register("file", factory)
}

// normalizeCharset mapuje nietypowe etykiety na standardowe nazwy rozpoznawane przez charset.NewReaderLabel
func normalizeCharset(cs string) string {
	c := strings.TrimSpace(strings.ToLower(cs))
	switch c {
	case "latin ii", "latin-2", "latin2", "iso8859-2", "iso_8859-2":
		return "iso-8859-2"
	case "cp1250", "windows1250", "win-1250":
		return "windows-1250"
	default:
		return c
	}
}
