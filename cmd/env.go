package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"finnsync/config"
	"finnsync/httputil"
	"finnsync/logging"
	"finnsync/models"
	"finnsync/routing"
	"finnsync/scraper"
	"finnsync/sheets"
	"finnsync/storage"
	"finnsync/workers"
)

// environment holds what every command needs: config, logging and the
// record store. Remote collaborators are built on demand.
type environment struct {
	cfg     *config.Config
	store   *storage.SQLiteStore
	clients *httputil.Clients
	logFile *logging.RotatingWriter
	closers []func()
}

func setup(db, dir string, verbose bool) (*environment, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if db != "" {
		cfg.DBPath = db
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	e := &environment{cfg: cfg}
	logFile, err := logging.Setup(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		slog.Warn("File logging disabled", "error", err)
	} else {
		e.logFile = logFile
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	e.store = store
	e.clients = httputil.NewClients(cfg.Scraper)
	slog.Debug("Environment ready", "db", cfg.DBPath, "sites", len(cfg.Sites))
	return e, nil
}

func (e *environment) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
	if e.store != nil {
		e.store.Close()
	}
	if e.logFile != nil {
		e.logFile.Close()
	}
}

func (e *environment) configuredKinds() []models.Kind {
	kinds := make([]models.Kind, 0, len(e.cfg.Sites))
	for kind := range e.cfg.Sites {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (e *environment) fetcher() scraper.Fetcher {
	if e.cfg.Scraper.FetchMode == "browser" {
		b := scraper.NewBrowserFetcher()
		e.closers = append(e.closers, b.Close)
		return b
	}
	return scraper.NewHTTPFetcher(e.clients.Scraping)
}

func (e *environment) sheetTargets() map[models.Kind]sheets.Target {
	targets := make(map[models.Kind]sheets.Target, len(models.AllKinds))
	for _, kind := range models.AllKinds {
		site := e.cfg.Site(kind)
		targets[kind] = sheets.Target{Sheet: site.Sheet, UnlistedSheet: site.UnlistedSheet}
	}
	return targets
}

// synchronizer returns sheets.ErrNotConfigured when no spreadsheet is set.
func (e *environment) synchronizer(ctx context.Context, targets map[models.Kind]sheets.Target) (*sheets.Synchronizer, error) {
	if e.cfg.Sheets.SpreadsheetID == "" {
		return nil, sheets.ErrNotConfigured
	}
	svc, err := sheets.NewGoogleService(ctx, e.cfg.Sheets.SpreadsheetID, e.cfg.Sheets.CredentialsFile)
	if err != nil {
		return nil, err
	}
	if targets == nil {
		targets = e.sheetTargets()
	}
	return sheets.NewSynchronizer(svc, e.store, e.cfg.ExportFilter(), targets), nil
}

func (e *environment) enricher() (*workers.CommuteEnricher, error) {
	c := e.cfg.Commute
	if c.APIKey == "" {
		return nil, errors.New("GOOGLE_MAPS_API_KEY is not set")
	}
	if len(c.Anchors) == 0 {
		return nil, fmt.Errorf("no commute anchors in %s/commute.yaml", e.cfg.Dir)
	}
	policy, err := routing.NewPolicy(c.Morning.Weekday, c.Morning.Hour, c.ReturnHour, c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("departure policy: %w", err)
	}
	router := routing.NewDirectionsClient(e.clients.API, c.APIKey, routing.DefaultDirectionsURL)
	return workers.NewCommuteEnricher(e.store, router, policy, c.Anchors, httputil.NewLimiter(c.RPS)), nil
}

// mirror connects to the optional Postgres mirror. A failing connection is
// logged and the mirror skipped.
func (e *environment) mirror(ctx context.Context) *storage.PostgresMirror {
	if e.cfg.Mirror.DatabaseURL == "" {
		return nil
	}
	m, err := storage.NewPostgresMirror(ctx, e.cfg.Mirror.DatabaseURL)
	if err != nil {
		slog.Warn("Postgres mirror unavailable", "error", err)
		return nil
	}
	e.closers = append(e.closers, m.Close)
	return m
}

// orchestrator wires every optional stage that is configured.
func (e *environment) orchestrator(ctx context.Context, withEnrich bool) *scraper.Orchestrator {
	orch := scraper.NewOrchestrator(e.cfg, e.store, e.fetcher())

	syncer, err := e.synchronizer(ctx, nil)
	if err != nil {
		if errors.Is(err, sheets.ErrNotConfigured) {
			slog.Debug("Spreadsheet not configured")
		} else {
			slog.Warn("Spreadsheet unavailable", "error", err)
		}
		syncer = nil
	}

	var enricher *workers.CommuteEnricher
	if withEnrich {
		if enricher, err = e.enricher(); err != nil {
			slog.Warn("Commute enrichment unavailable", "error", err)
			enricher = nil
		}
	}

	orch.SetServices(enricher, syncer, e.mirror(ctx))
	return orch
}
