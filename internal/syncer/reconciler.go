// internal/syncer/reconciler.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bartek5186/storesync/internal/audit"
	"github.com/bartek5186/storesync/internal/catalog"
	"github.com/bartek5186/storesync/internal/integrations"
	"github.com/bartek5186/storesync/internal/metrics"
	"github.com/bartek5186/storesync/internal/progress"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrFetch         = errors.New("feed fetch failed")
	ErrRunInProgress = errors.New("sync already running for source")
	ErrUnknownSource = errors.New("unknown source")
)

const (
	DefaultLimit        = 100
	MaxLimit            = 200
	DefaultFetchTimeout = 20 * time.Second
)

// Repository - trwały katalog produktów i dziennik wersji (gorm albo mongo).
// Find* zwracają nil, nil gdy nic nie pasuje.
type Repository interface {
	FindBySourceURL(ctx context.Context, url string) (*catalog.StoredProduct, error)
	FindByNameBrand(ctx context.Context, name, brand string) (*catalog.StoredProduct, error)
	CreateProduct(ctx context.Context, source string, p catalog.Product) (catalog.StoredProduct, error)
	UpdateProduct(ctx context.Context, id, source string, p catalog.Product) (catalog.StoredProduct, error)
	AppendVersion(ctx context.Context, v catalog.VersionEntry) error
	ListVersions(ctx context.Context, f catalog.VersionFilter) ([]catalog.VersionEntry, error)
	CountProducts(ctx context.Context) (int64, error)
	CountVersions(ctx context.Context) (int64, error)
}

type Options struct {
	FetchTimeout       time.Duration
	AbortOnRecordError bool
}

type TriggerOptions struct {
	Limit  int  // 0 = limit źródła albo DefaultLimit
	DryRun bool // tylko pobranie i mapowanie
}

// Started - odpowiedź wyzwalacza.
type Started struct {
	Source      string    `json:"source"`
	Endpoint    string    `json:"endpoint"`
	FetchedAt   time.Time `json:"fetchedAt"`
	OperationID string    `json:"operationId"`
}

type Result struct {
	Started
	Total     int               `json:"total"`
	Created   int               `json:"created"`
	Updated   int               `json:"updated"`
	Unchanged int               `json:"unchanged"`
	Failed    int               `json:"failed"`
	Mapped    int               `json:"mapped"`
	DryRun    bool              `json:"dryRun"`
	Preview   []catalog.Product `json:"preview,omitempty"`
}

type Reconciler struct {
	log      zerolog.Logger
	repo     Repository
	progress progress.Store
	audit    audit.Sink
	opts     Options
	validate *validator.Validate
	now      func() time.Time

	mu      sync.Mutex
	sources map[string]integrations.Source
	active  map[string]string // źródło -> operationId biegnącego przebiegu
	wg      sync.WaitGroup
}

func NewReconciler(log zerolog.Logger, repo Repository, ps progress.Store, sink audit.Sink, opts Options) *Reconciler {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if ps == nil {
		ps = progress.NewMemory(progress.DefaultTTL)
	}
	if sink == nil {
		sink = audit.Nop
	}
	return &Reconciler{
		log:      log,
		repo:     repo,
		progress: ps,
		audit:    sink,
		opts:     opts,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
		sources:  map[string]integrations.Source{},
		active:   map[string]string{},
	}
}

// SetSources podmienia zestaw źródeł (np. po przeładowaniu configu).
// Biegnące przebiegi dokańczają się na starych instancjach.
func (r *Reconciler) SetSources(srcs map[string]integrations.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = make(map[string]integrations.Source, len(srcs))
	for k, v := range srcs {
		r.sources[k] = v
	}
}

func (r *Reconciler) Source(name string) (integrations.Source, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[name]
	return s, ok
}

// Sources - posortowane po nazwie.
func (r *Reconciler) Sources() []integrations.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]integrations.Source, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Running zwraca operationId trwającego przebiegu źródła.
func (r *Reconciler) Running(source string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.active[source]
	return op, ok
}

// Wait czeka na przebiegi odpalone przez Trigger.
func (r *Reconciler) Wait() { r.wg.Wait() }

func (r *Reconciler) Progress(ctx context.Context, operationID string) (progress.Snapshot, bool, error) {
	return r.progress.Get(ctx, operationID)
}

// ClampLimit: 0 -> DefaultLimit, poza tym [1, MaxLimit].
func ClampLimit(n int) int {
	switch {
	case n == 0:
		return DefaultLimit
	case n < 1:
		return 1
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// Trigger rezerwuje źródło, zapisuje "Starting" i odpala przebieg w tle.
// Przebieg nie jest związany z kontekstem żądania.
func (r *Reconciler) Trigger(ctx context.Context, source string, opts TriggerOptions) (Started, error) {
	src, st, err := r.begin(ctx, source)
	if err != nil {
		return Started{}, err
	}

	bg := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(source, st.OperationID)
		_, _ = r.run(bg, src, st, opts)
	}()
	return st, nil
}

// Run - przebieg synchroniczny (CLI, harmonogram, wait=true w API).
func (r *Reconciler) Run(ctx context.Context, source string, opts TriggerOptions) (Result, error) {
	src, st, err := r.begin(ctx, source)
	if err != nil {
		return Result{}, err
	}
	defer r.release(source, st.OperationID)
	return r.run(ctx, src, st, opts)
}

func (r *Reconciler) begin(ctx context.Context, source string) (integrations.Source, Started, error) {
	r.mu.Lock()
	src, ok := r.sources[source]
	if !ok {
		r.mu.Unlock()
		return nil, Started{}, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	if op, busy := r.active[source]; busy {
		r.mu.Unlock()
		return nil, Started{}, fmt.Errorf("%w: %s (operation %s)", ErrRunInProgress, source, op)
	}
	st := Started{
		Source:      source,
		Endpoint:    src.Endpoint(),
		FetchedAt:   r.now(),
		OperationID: uuid.NewString(),
	}
	r.active[source] = st.OperationID
	r.mu.Unlock()

	r.setProgress(ctx, st.OperationID, 0, 0, progress.StatusStarting)
	return src, st, nil
}

func (r *Reconciler) release(source, operationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[source] == operationID {
		delete(r.active, source)
	}
}

func (r *Reconciler) run(ctx context.Context, src integrations.Source, st Started, opts TriggerOptions) (res Result, err error) {
	name := src.Name()
	log := r.log.With().Str("source", name).Str("operation_id", st.OperationID).Logger()
	start := time.Now()
	res = Result{Started: st, DryRun: opts.DryRun}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sync %s panicked: %v", name, p)
		}
		status := "success"
		if err != nil {
			status = "error"
			if errors.Is(err, ErrFetch) {
				status = "fetch_error"
			}
			r.setProgress(ctx, st.OperationID, res.Created+res.Updated+res.Unchanged+res.Failed, res.Total, progress.StatusError)
			log.Error().Err(err).Msg("sync failed")
		}
		metrics.RecordRun(name, status, time.Since(start))
	}()

	limit := opts.Limit
	if limit == 0 {
		limit = src.Settings().Limit
	}
	limit = ClampLimit(limit)

	log.Info().Int("limit", limit).Bool("dry_run", opts.DryRun).Str("endpoint", st.Endpoint).Msg("sync start")
	r.setProgress(ctx, st.OperationID, 0, 0, progress.StatusFetching)

	fctx, cancel := context.WithTimeout(ctx, r.opts.FetchTimeout)
	records, ferr := src.Fetch(fctx, limit)
	cancel()
	if ferr != nil {
		return res, fmt.Errorf("%w: %s: %w", ErrFetch, name, ferr)
	}
	res.Total = len(records)
	log.Info().Int("records", res.Total).Msg("feed fetched")

	mapOpts := src.Settings().MapOptions()

	if opts.DryRun {
		res.Preview = make([]catalog.Product, 0, len(records))
		for i, rec := range records {
			p := catalog.Map(rec, mapOpts)
			if p.PublishAt.IsZero() {
				p.PublishAt = st.FetchedAt
			}
			res.Preview = append(res.Preview, p)
			res.Mapped++
			r.setProgress(ctx, st.OperationID, i+1, res.Total, progress.StatusDryRun)
		}
		r.setProgress(ctx, st.OperationID, res.Total, res.Total, progress.StatusComplete)
		log.Info().Int("mapped", res.Mapped).Msg("dry run complete")
		return res, nil
	}

	r.setProgress(ctx, st.OperationID, 0, res.Total, progress.StatusProcessing)
	for i, rec := range records {
		mapped := catalog.Map(rec, mapOpts)
		res.Mapped++

		action, rerr := r.reconcile(ctx, name, mapped, st)
		if rerr != nil {
			res.Failed++
			metrics.RecordRecord(name, string(catalog.ActionError))
			if r.opts.AbortOnRecordError {
				return res, fmt.Errorf("record %s: %w", mapped.ExternalID, rerr)
			}
			log.Warn().Err(rerr).Str("external_id", mapped.ExternalID).Str("name", mapped.Name).Msg("record failed, continuing")
			r.recordFailure(ctx, log, name, mapped, st, rerr)
		} else {
			metrics.RecordRecord(name, string(action))
			switch action {
			case catalog.ActionCreated:
				res.Created++
			case catalog.ActionUpdated:
				res.Updated++
			case catalog.ActionUnchanged:
				res.Unchanged++
			}
		}
		r.setProgress(ctx, st.OperationID, i+1, res.Total, progress.StatusProcessing)
	}

	r.setProgress(ctx, st.OperationID, res.Total, res.Total, progress.StatusComplete)
	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("unchanged", res.Unchanged).
		Int("failed", res.Failed).
		Dur("took", time.Since(start)).
		Msg("sync complete")

	if aerr := r.audit.Record(ctx, audit.Summary{
		Source:      name,
		Endpoint:    st.Endpoint,
		OperationID: st.OperationID,
		FetchedAt:   st.FetchedAt,
		Created:     res.Created,
		Updated:     res.Updated,
		Unchanged:   res.Unchanged,
		Failed:      res.Failed,
	}); aerr != nil {
		log.Warn().Err(aerr).Msg("audit summary not recorded")
	}
	return res, nil
}

// reconcile: dopasuj -> utwórz / zaktualizuj / bez zmian, plus wpis wersji.
func (r *Reconciler) reconcile(ctx context.Context, source string, mapped catalog.Product, st Started) (catalog.Action, error) {
	existing, err := r.match(ctx, mapped)
	if err != nil {
		return "", fmt.Errorf("match: %w", err)
	}

	// brak published_at: zostaw datę zapisanego produktu, nowy dostaje fetchedAt
	if mapped.PublishAt.IsZero() {
		if existing != nil {
			mapped.PublishAt = existing.PublishAt
		} else {
			mapped.PublishAt = st.FetchedAt
		}
	}
	if err := r.validate.Struct(mapped); err != nil {
		return "", fmt.Errorf("invalid product: %w", err)
	}

	entry := catalog.VersionEntry{
		ExternalID:  mapped.ExternalID,
		Source:      source,
		OperationID: st.OperationID,
		FetchedAt:   st.FetchedAt,
	}

	if existing == nil {
		created, err := r.repo.CreateProduct(ctx, source, mapped)
		if err != nil {
			return "", err
		}
		after := created.Product
		entry.Action = catalog.ActionCreated
		entry.ProductID = created.ID
		entry.After = &after
		entry.Diff = catalog.DiffProducts(nil, after)
	} else {
		before := existing.Product
		diff := catalog.DiffProducts(&before, mapped)
		// produkt przejęty po (name, brand) dostaje sourceUrl rekordu
		if before.SourceURL == "" && mapped.SourceURL != "" {
			diff = append(diff, catalog.FieldChange{Field: "sourceUrl", After: mapped.SourceURL})
		}
		entry.ProductID = existing.ID
		entry.Before = &before
		entry.Diff = diff
		if len(diff) == 0 {
			entry.Action = catalog.ActionUnchanged
			entry.After = &before
		} else {
			updated, err := r.repo.UpdateProduct(ctx, existing.ID, source, mapped)
			if err != nil {
				return "", err
			}
			after := updated.Product
			entry.Action = catalog.ActionUpdated
			entry.After = &after
		}
	}

	if err := r.repo.AppendVersion(ctx, entry); err != nil {
		return "", fmt.Errorf("append version: %w", err)
	}
	return entry.Action, nil
}

// match: najpierw sourceUrl, potem para (name, brand) wśród produktów bez sourceUrl.
// Produkt z innym sourceUrl to inny rekord feedu, nie przejmujemy go.
func (r *Reconciler) match(ctx context.Context, p catalog.Product) (*catalog.StoredProduct, error) {
	if p.SourceURL != "" {
		sp, err := r.repo.FindBySourceURL(ctx, p.SourceURL)
		if err != nil || sp != nil {
			return sp, err
		}
	}
	sp, err := r.repo.FindByNameBrand(ctx, p.Name, p.Brand)
	if err != nil || sp == nil {
		return sp, err
	}
	if sp.SourceURL != "" && sp.SourceURL != p.SourceURL {
		return nil, nil
	}
	return sp, nil
}

func (r *Reconciler) recordFailure(ctx context.Context, log zerolog.Logger, source string, mapped catalog.Product, st Started, cause error) {
	after := mapped
	err := r.repo.AppendVersion(ctx, catalog.VersionEntry{
		Action:      catalog.ActionError,
		ExternalID:  mapped.ExternalID,
		Source:      source,
		OperationID: st.OperationID,
		After:       &after,
		Diff:        []catalog.FieldChange{},
		Error:       cause.Error(),
		FetchedAt:   st.FetchedAt,
	})
	if err != nil {
		log.Warn().Err(err).Str("external_id", mapped.ExternalID).Msg("error version not recorded")
	}
}

// postęp jest best-effort - błąd zapisu tylko logujemy
func (r *Reconciler) setProgress(ctx context.Context, operationID string, current, total int, status string) {
	err := r.progress.Set(ctx, operationID, progress.Snapshot{
		Current:   current,
		Total:     total,
		Status:    status,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		r.log.Warn().Err(err).Str("operation_id", operationID).Str("status", status).Msg("progress update failed")
	}
}
