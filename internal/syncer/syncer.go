// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	conf "github.com/bartek5186/storesync/internal/config"
	"github.com/bartek5186/storesync/internal/integrations"
	"github.com/rs/zerolog"
)

// Runner - to, co harmonogram odpala (Reconciler).
type Runner interface {
	Run(ctx context.Context, source string, opts TriggerOptions) (Result, error)
	Sources() []integrations.Source
}

// StateStore - opcjonalnie trwały stan harmonogramu (tabela/kolekcja kv).
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool, error)
	SetState(ctx context.Context, key, value string) error
}

// wpis rejestru: jedno źródło z własnym interwałem
type schedule struct {
	interval time.Duration
	nextDue  time.Time
	lastRun  time.Time
	lastErr  string
}

// Schedule - widok wpisu dla API / CLI.
type Schedule struct {
	Source          string     `json:"source"`
	Endpoint        string     `json:"endpoint"`
	IntervalMinutes int        `json:"intervalMinutes"` // 0 = tylko ręcznie
	NextDue         *time.Time `json:"nextDue,omitempty"`
	LastRun         *time.Time `json:"lastRun,omitempty"`
	LastError       string     `json:"lastError,omitempty"`
}

type Syncer struct {
	log     zerolog.Logger // logowanie
	runner  Runner         // kto wykonuje przebieg
	state   StateStore     // może być nil
	mu      sync.Mutex     // ochrona sekcji krytycznych
	cfg     *conf.Config   // aktualna konfiguracja
	running bool           // czy pętla działa
	cancel  context.CancelFunc
	parent  context.Context // kontekst z Start, używany przy restarcie
	wg      sync.WaitGroup  // śledzi goroutines
	ticks   uint64          // licznik przebiegów pętli
	entries map[string]*schedule
	now     func() time.Time
}

func New(log zerolog.Logger, cfg *conf.Config, runner Runner, state StateStore) *Syncer {
	return &Syncer{
		log:     log,
		cfg:     cfg,
		runner:  runner,
		state:   state,
		entries: map[string]*schedule{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func stateKey(source string) string { return "schedule:last_run:" + source }

// refreshLocked synchronizuje rejestr ze źródłami runnera. Nowe źródło jest
// należne od razu, chyba że w stanie jest ostatni przebieg.
func (s *Syncer) refreshLocked(ctx context.Context, now time.Time) {
	seen := map[string]bool{}
	for _, src := range s.runner.Sources() {
		name := src.Name()
		seen[name] = true
		interval := src.Settings().Interval()

		e, ok := s.entries[name]
		if !ok {
			e = &schedule{nextDue: now}
			if last, ok := s.loadLastRun(ctx, name); ok {
				e.lastRun = last
				e.nextDue = last.Add(interval)
			}
			s.entries[name] = e
		} else if e.interval != interval && !e.lastRun.IsZero() {
			e.nextDue = e.lastRun.Add(interval)
		}
		e.interval = interval
	}
	for name := range s.entries {
		if !seen[name] {
			delete(s.entries, name)
		}
	}
}

func (s *Syncer) loadLastRun(ctx context.Context, source string) (time.Time, bool) {
	if s.state == nil {
		return time.Time{}, false
	}
	v, ok, err := s.state.GetState(ctx, stateKey(source))
	if err != nil {
		s.log.Warn().Err(err).Str("source", source).Msg("scheduler: cannot read last run")
		return time.Time{}, false
	}
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// Due - źródła z interwałem > 0, których termin minął; posortowane.
func (s *Syncer) Due(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked(context.Background(), now)
	return s.dueLocked(now)
}

func (s *Syncer) dueLocked(now time.Time) []string {
	var out []string
	for name, e := range s.entries {
		if e.interval > 0 && !now.Before(e.nextDue) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Tick odpala po kolei wszystkie należne źródła i przesuwa ich termin.
// Zwraca liczbę odpalonych przebiegów.
func (s *Syncer) Tick(ctx context.Context, now time.Time) int {
	s.mu.Lock()
	s.refreshLocked(ctx, now)
	due := s.dueLocked(now)
	s.mu.Unlock()

	ran := 0
	for _, name := range due {
		if ctx.Err() != nil {
			break
		}
		res, err := s.runner.Run(ctx, name, TriggerOptions{})
		if errors.Is(err, ErrRunInProgress) {
			s.log.Info().Str("source", name).Msg("scheduler: run already in progress, skipping")
			continue
		}
		ran++

		s.mu.Lock()
		if e, ok := s.entries[name]; ok {
			e.lastRun = now
			e.nextDue = now.Add(e.interval)
			e.lastErr = ""
			if err != nil {
				e.lastErr = err.Error()
			}
		}
		s.mu.Unlock()

		if err != nil {
			s.log.Error().Err(err).Str("source", name).Msg("scheduler: sync failed")
		} else {
			s.log.Info().Str("source", name).Str("operation_id", res.OperationID).
				Int("created", res.Created).Int("updated", res.Updated).Int("unchanged", res.Unchanged).
				Msg("scheduler: sync done")
		}
		if s.state != nil {
			if serr := s.state.SetState(ctx, stateKey(name), now.Format(time.RFC3339Nano)); serr != nil {
				s.log.Warn().Err(serr).Str("source", name).Msg("scheduler: cannot persist last run")
			}
		}
	}
	return ran
}

// Schedules - stan rejestru, posortowany po nazwie źródła.
func (s *Syncer) Schedules() []Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked(context.Background(), s.now())

	var out []Schedule
	for _, src := range s.runner.Sources() {
		e, ok := s.entries[src.Name()]
		if !ok {
			continue
		}
		sc := Schedule{
			Source:          src.Name(),
			Endpoint:        src.Endpoint(),
			IntervalMinutes: int(e.interval / time.Minute),
			LastError:       e.lastErr,
		}
		if e.interval > 0 {
			next := e.nextDue
			sc.NextDue = &next
		}
		if !e.lastRun.IsZero() {
			last := e.lastRun
			sc.LastRun = &last
		}
		out = append(out, sc)
	}
	return out
}

func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.parent = ctx
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.ticks = 0
	s.wg.Add(1)
	s.mu.Unlock()

	s.log.Info().Dur("check_every", s.interval()).Msg("Scheduler: start")
	go s.loop(ctx)
	return nil
}

func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.log.Info().Msg("Scheduler: stop")
}

func (s *Syncer) UpdateConfig(cfg *conf.Config) {
	s.mu.Lock()
	s.cfg = cfg
	isRunning := s.running
	parent := s.parent
	s.mu.Unlock()

	s.log.Info().Msg("Scheduler: config zaktualizowany")

	if isRunning {
		// restart pętli, żeby ticker wziął nowy interwał
		s.Stop()
		if parent == nil {
			parent = context.Background()
		}
		_ = s.Start(parent)
	}
}

func (s *Syncer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Syncer) interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg != nil && s.cfg.SyncIntervalSeconds > 0 {
		return time.Duration(s.cfg.SyncIntervalSeconds) * time.Second
	}
	return 30 * time.Second
}

func (s *Syncer) loop(ctx context.Context) {
	defer s.wg.Done()

	// pierwszy strzał od razu
	s.tickOnce(ctx)

	current := s.interval()
	ticker := time.NewTicker(current)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Scheduler: koniec pętli")
			return
		case <-ticker.C:
			if next := s.interval(); next != current {
				current = next
				ticker.Reset(current)
			}
			s.tickOnce(ctx)
		}
	}
}

func (s *Syncer) tickOnce(ctx context.Context) {
	s.mu.Lock()
	s.ticks++
	n := s.ticks
	s.mu.Unlock()

	ran := s.Tick(ctx, s.now())
	s.log.Debug().Uint64("tick", n).Int("ran", ran).Msg("Scheduler: heartbeat")
}
