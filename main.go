package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bartek5186/storesync/internal/api"
	conf "github.com/bartek5186/storesync/internal/config"
	"github.com/bartek5186/storesync/internal/integrations"
	_ "github.com/bartek5186/storesync/internal/integrations/importer"
	_ "github.com/bartek5186/storesync/internal/integrations/shopify"
	logs "github.com/bartek5186/storesync/internal/logs"
	syncer "github.com/bartek5186/storesync/internal/syncer"
	"github.com/rs/zerolog"
)

// wersję można nadpisać przez: -ldflags "-X 'main.ver=1.0.1'"
var ver = "1.0.0"

func main() {
	dirFlag := flag.String("dir", "", "katalog danych (config.json, app.log, storesync.db)")
	cliFlag := flag.Bool("cli", false, "interaktywna pętla poleceń w terminalu")
	flag.Parse()

	appDir := *dirFlag
	if appDir == "" {
		appDir = mustAppDataDir("storesync")
	}
	_ = os.MkdirAll(appDir, 0o755)

	if err := conf.LoadEnv(".env", filepath.Join(appDir, ".env")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfgPath := filepath.Join(appDir, "config.json")
	cfg, firstRun, err := conf.LoadOrCreate(cfgPath)
	if err != nil {
		panic(err)
	}

	logPath := filepath.Join(appDir, "app.log")
	log := logs.New(logPath, true, cfg.LogLevel)
	if firstRun {
		log.Info().Msgf("Utworzono domyślną konfigurację: %s", cfgPath)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, stCloser, err := openStore(ctx, log, cfg, appDir)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("DB open error")
	}
	defer stCloser.Close()

	ps, psCloser, err := openProgress(log, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("progress store error")
	}
	defer psCloser.Close()

	sink, sinkCloser := openAudit(log, cfg, st)
	defer sinkCloser.Close()

	rec := syncer.NewReconciler(log, st, ps, sink, syncer.Options{
		FetchTimeout:       time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
		AbortOnRecordError: cfg.AbortOnRecordError,
	})
	rec.SetSources(buildSources(log, cfg))

	s := syncer.New(log, cfg, rec, st)

	// harmonogram tylko na wyraźne życzenie
	if cfg.AutoStart {
		if err := s.Start(ctx); err != nil {
			log.Error().Msgf("AutoStart nieudany: %v", err)
		} else {
			log.Info().Msgf("StoreSync %s: harmonogram działa", ver)
		}
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Deps{
			Log:       log,
			Sync:      rec,
			Versions:  st,
			Schedules: s,
			JWTSecret: cfg.Auth.JWTSecret,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
			cancel()
		}
	}()

	if *cliFlag {
		go runCLI(ctx, cancel, log, cfgPath, appDir, cfg, rec, s)
	}

	<-ctx.Done()
	log.Info().Msg("Zamykanie...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown error")
	}
	s.Stop()
	// przebiegi wyzwolone przez API dokończą zapis wersji
	rec.Wait()
	log.Info().Msg("Zamknięto")
}

func buildSources(log zerolog.Logger, cfg *conf.Config) map[string]integrations.Source {
	srcs, errs := integrations.Build(log, cfg.Integrations)
	for _, err := range errs {
		log.Error().Err(err).Msg("integration skipped")
	}
	for name, src := range srcs {
		log.Info().Str("source", name).Str("endpoint", src.Endpoint()).Msg("integration ready")
	}
	return srcs
}

// Prosta pętla poleceń w terminalu
func runCLI(ctx context.Context, cancel context.CancelFunc, log zerolog.Logger, cfgPath, appDir string, cfg *conf.Config, rec *syncer.Reconciler, s *syncer.Syncer) {
	const help = "Komendy: start | stop | reload | status | sync <źródło> [dry] | token | paths | quit"
	fmt.Println("StoreSync CLI", ver)
	fmt.Println(help)
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "start":
			if err := s.Start(ctx); err != nil {
				log.Error().Msgf("Start error: %v", err)
				fmt.Println("Błąd startu:", err)
				continue
			}
			fmt.Println("Start OK")
		case "stop":
			s.Stop()
			fmt.Println("Zatrzymano")
		case "reload":
			newCfg, _, err := conf.LoadOrCreate(cfgPath)
			if err != nil {
				log.Error().Msgf("Błąd reloadu: %v", err)
				fmt.Println("Błąd reloadu:", err)
				continue
			}
			cfg = newCfg
			rec.SetSources(buildSources(log, cfg))
			s.UpdateConfig(cfg)
			log.Info().Msg("Konfiguracja przeładowana")
			fmt.Println("Konfiguracja przeładowana")
		case "status":
			if s.IsRunning() {
				fmt.Println("Harmonogram: DZIAŁA")
			} else {
				fmt.Println("Harmonogram: ZATRZYMANY")
			}
			for _, sc := range s.Schedules() {
				state := "bezczynne"
				if op, busy := rec.Running(sc.Source); busy {
					state = "w toku (" + op + ")"
				}
				next := "ręcznie"
				if sc.NextDue != nil {
					next = sc.NextDue.Local().Format(time.DateTime)
				}
				fmt.Printf("  %-16s %-10s następny: %s  %s\n", sc.Source, state, next, sc.LastError)
			}
		case "sync":
			if len(fields) < 2 {
				fmt.Println("Użycie: sync <źródło> [dry]")
				continue
			}
			opts := syncer.TriggerOptions{DryRun: len(fields) > 2 && fields[2] == "dry"}
			res, err := rec.Run(ctx, fields[1], opts)
			if err != nil {
				fmt.Println("Błąd synchronizacji:", err)
				continue
			}
			if res.DryRun {
				fmt.Printf("Dry run: %d rekordów zmapowanych\n", res.Mapped)
				continue
			}
			fmt.Printf("OK: nowe %d, zmienione %d, bez zmian %d, błędy %d\n", res.Created, res.Updated, res.Unchanged, res.Failed)
		case "token":
			tok, err := api.IssueAdminToken([]byte(cfg.Auth.JWTSecret), "cli", 24*time.Hour)
			if err != nil {
				fmt.Println("Błąd tokenu:", err)
				continue
			}
			fmt.Println(tok)
		case "paths":
			fmt.Println("Logi:", filepath.Join(appDir, "app.log"))
			fmt.Println("Config:", cfgPath)
		case "quit", "exit":
			cancel()
			return
		default:
			fmt.Println("Nieznana komenda.", help)
		}
	}
}

func mustAppDataDir(name string) string {
	base, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	p := filepath.Join(base, name)
	_ = os.MkdirAll(p, 0o755)
	return p
}
