package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bartek5186/storesync/internal/catalog"
	"github.com/bartek5186/storesync/internal/db"
	"github.com/bartek5186/storesync/internal/integrations"
	"github.com/bartek5186/storesync/internal/integrations/shopify"
	"github.com/bartek5186/storesync/internal/progress"
	"github.com/bartek5186/storesync/internal/syncer"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type mockSync struct {
	triggerErr error
	runErr     error
	runResult  syncer.Result
	snapshots  map[string]progress.Snapshot
	gotOpts    syncer.TriggerOptions
	gotSource  string
}

func (m *mockSync) Trigger(_ context.Context, source string, opts syncer.TriggerOptions) (syncer.Started, error) {
	m.gotSource, m.gotOpts = source, opts
	if m.triggerErr != nil {
		return syncer.Started{}, m.triggerErr
	}
	return syncer.Started{Source: source, Endpoint: "https://x/products.json", OperationID: "op-1", FetchedAt: time.Now().UTC()}, nil
}

func (m *mockSync) Run(_ context.Context, source string, opts syncer.TriggerOptions) (syncer.Result, error) {
	m.gotSource, m.gotOpts = source, opts
	return m.runResult, m.runErr
}

func (m *mockSync) Progress(_ context.Context, id string) (progress.Snapshot, bool, error) {
	s, ok := m.snapshots[id]
	return s, ok, nil
}

type mockVersions struct {
	got   catalog.VersionFilter
	items []catalog.VersionEntry
}

func (m *mockVersions) ListVersions(_ context.Context, f catalog.VersionFilter) ([]catalog.VersionEntry, error) {
	m.got = f
	return m.items, nil
}

type mockSchedules []syncer.Schedule

func (m mockSchedules) Schedules() []syncer.Schedule { return m }

func setupRouter(s SyncService, v VersionLister) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(Deps{
		Log:       zerolog.Nop(),
		Sync:      s,
		Versions:  v,
		Schedules: mockSchedules{{Source: "main-shop", IntervalMinutes: 60}},
		JWTSecret: testSecret,
	})
}

func adminToken(t *testing.T) string {
	t.Helper()
	tok, err := IssueAdminToken([]byte(testSecret), "tester", time.Hour)
	require.NoError(t, err)
	return tok
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_RejectsMissingAndInvalidTokens(t *testing.T) {
	r := setupRouter(&mockSync{}, &mockVersions{})

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/api/admin/sync/main-shop", "").Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/api/admin/sync/main-shop", "garbage").Code)

	wrongKey, err := IssueAdminToken([]byte("other"), "x", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/api/admin/sources", wrongKey).Code)

	expired, err := IssueAdminToken([]byte(testSecret), "x", -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/api/admin/sources", expired).Code)

	viewer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "viewer"}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/api/admin/sources", viewer).Code)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/admin/sources", adminToken(t)).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", "").Code)
}

func TestTrigger_ReturnsOperation(t *testing.T) {
	ms := &mockSync{}
	r := setupRouter(ms, &mockVersions{})

	w := do(r, http.MethodPost, "/api/admin/sync/main-shop?limit=5&dryRun=true", adminToken(t))
	require.Equal(t, http.StatusAccepted, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "op-1", body["operationId"])
	assert.Equal(t, "main-shop", body["source"])
	assert.Contains(t, body, "fetchedAt")
	assert.Contains(t, body, "endpoint")
	assert.Equal(t, syncer.TriggerOptions{Limit: 5, DryRun: true}, ms.gotOpts)
}

func TestTrigger_JSONBody(t *testing.T) {
	ms := &mockSync{}
	r := setupRouter(ms, &mockVersions{})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/sync/main-shop", strings.NewReader(`{"limit":7,"dryRun":true}`))
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 7, ms.gotOpts.Limit)
	assert.True(t, ms.gotOpts.DryRun)
}

func TestTrigger_ErrorStatuses(t *testing.T) {
	cases := []struct {
		name string
		ms   *mockSync
		path string
		want int
	}{
		{"unknown", &mockSync{triggerErr: fmt.Errorf("%w: x", syncer.ErrUnknownSource)}, "/api/admin/sync/x", http.StatusNotFound},
		{"busy", &mockSync{triggerErr: fmt.Errorf("%w: x", syncer.ErrRunInProgress)}, "/api/admin/sync/x", http.StatusConflict},
		{"timeout", &mockSync{runErr: fmt.Errorf("%w: x: %w", syncer.ErrFetch, context.DeadlineExceeded)}, "/api/admin/sync/x?wait=true", http.StatusGatewayTimeout},
		{"upstream", &mockSync{runErr: fmt.Errorf("%w: x: %w", syncer.ErrFetch, errors.New("status 500"))}, "/api/admin/sync/x?wait=true", http.StatusBadGateway},
		{"other", &mockSync{runErr: errors.New("db down")}, "/api/admin/sync/x?wait=true", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := setupRouter(tc.ms, &mockVersions{})
			w := do(r, http.MethodPost, tc.path, adminToken(t))
			assert.Equal(t, tc.want, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestProgress(t *testing.T) {
	ms := &mockSync{snapshots: map[string]progress.Snapshot{
		"op-1": {Current: 2, Total: 5, Status: progress.StatusProcessing},
	}}
	r := setupRouter(ms, &mockVersions{})

	w := do(r, http.MethodGet, "/api/admin/sync/progress/op-1", adminToken(t))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"current":2,"total":5,"status":"Processing products"}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/admin/sync/progress/nope", adminToken(t))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListVersions_Filters(t *testing.T) {
	mv := &mockVersions{items: []catalog.VersionEntry{{ID: "1", Action: catalog.ActionUpdated}}}
	r := setupRouter(&mockSync{}, mv)

	w := do(r, http.MethodGet, "/api/admin/versions?source=main-shop&action=updated&from=2024-01-01T00:00:00Z&limit=900&productId=7", adminToken(t))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "main-shop", mv.got.Source)
	assert.Equal(t, catalog.ActionUpdated, mv.got.Action)
	assert.Equal(t, "7", mv.got.ProductID)
	require.NotNil(t, mv.got.From)
	assert.True(t, mv.got.From.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, mv.got.To)
	assert.Equal(t, catalog.MaxVersionLimit, mv.got.EffectiveLimit())

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/admin/versions?action=deleted", adminToken(t)).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/admin/versions?from=yesterday", adminToken(t)).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := setupRouter(&mockSync{}, &mockVersions{})
	do(r, http.MethodGet, "/health", "")

	w := do(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "storesync_http_requests_total")
}

// pełna ścieżka: sklep (httptest) -> reconciler -> sqlite -> API
func TestEndToEnd_TriggerPollAndBrowseVersions(t *testing.T) {
	shop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"products":[
			{"id":1,"title":"Leather Wallet","vendor":"Acme","product_type":"wallet","handle":"wallet",
			 "variants":[{"price":"49.99","available":true}],"published_at":"2024-03-01T10:00:00Z"},
			{"id":2,"title":"Silk Scarf","vendor":"","product_type":"scarves","tags":"women, silk","handle":"scarf",
			 "variants":[{"price":25,"available":false}]}
		]}`))
	}))
	defer shop.Close()

	h, err := db.Open("sqlite", filepath.Join(t.TempDir(), "api.db")+"?_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	defer h.Close()
	require.NoError(t, h.Migrate())
	repo := db.NewRepository(h)

	src, err := shopify.New(zerolog.Nop(), "main-shop", shopify.Config{BaseURL: shop.URL})
	require.NoError(t, err)

	rec := syncer.NewReconciler(zerolog.Nop(), repo, progress.NewMemory(time.Minute), nil, syncer.Options{})
	rec.SetSources(map[string]integrations.Source{"main-shop": src})

	gin.SetMode(gin.TestMode)
	r := NewRouter(Deps{Log: zerolog.Nop(), Sync: rec, Versions: repo, Schedules: mockSchedules{}, JWTSecret: testSecret})
	token := adminToken(t)

	w := do(r, http.MethodPost, "/api/admin/sync/main-shop", token)
	require.Equal(t, http.StatusAccepted, w.Code)
	var started syncer.Started
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	rec.Wait()

	w = do(r, http.MethodGet, "/api/admin/sync/progress/"+started.OperationID, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"current":2,"total":2,"status":"Complete"}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/admin/versions?operationId="+started.OperationID+"&action=created", token)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []catalog.VersionEntry `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 2)

	byName := map[string]*catalog.Product{}
	for _, v := range list.Items {
		byName[v.After.Name] = v.After
	}
	require.Contains(t, byName, "Silk Scarf")
	scarf := byName["Silk Scarf"]
	assert.Equal(t, catalog.CategoryWomen, scarf.Category)
	assert.Equal(t, catalog.DefaultBrand, scarf.Brand)
	assert.False(t, scarf.InStock)
	assert.Equal(t, shop.URL+"/products/scarf", scarf.SourceURL)

	w = do(r, http.MethodPost, "/api/admin/sync/main-shop?wait=true", token)
	require.Equal(t, http.StatusOK, w.Code)
	var res syncer.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 2, res.Unchanged)
}

func TestEndToEnd_WaitReportsUpstreamFailure(t *testing.T) {
	shop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer shop.Close()

	h, err := db.Open("sqlite", filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	defer h.Close()
	require.NoError(t, h.Migrate())
	repo := db.NewRepository(h)

	src, err := shopify.New(zerolog.Nop(), "main-shop", shopify.Config{BaseURL: shop.URL})
	require.NoError(t, err)
	rec := syncer.NewReconciler(zerolog.Nop(), repo, nil, nil, syncer.Options{})
	rec.SetSources(map[string]integrations.Source{"main-shop": src})

	gin.SetMode(gin.TestMode)
	r := NewRouter(Deps{Log: zerolog.Nop(), Sync: rec, Versions: repo, Schedules: mockSchedules{}, JWTSecret: testSecret})

	w := do(r, http.MethodPost, "/api/admin/sync/main-shop?wait=true", adminToken(t))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "operationId")

	n, err := repo.CountVersions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
