// Package app wires together all adapters and domain logic for one
// workspace: capability registry, grammar catalog, document cache, symbol
// store with its persister, and the orchestrator.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/corey/symdex/internal/adapters/bbolt"
	"github.com/corey/symdex/internal/adapters/sqlite"
	"github.com/corey/symdex/internal/adapters/treesitter"
	"github.com/corey/symdex/internal/config"
	"github.com/corey/symdex/internal/domain/capability"
	"github.com/corey/symdex/internal/domain/document"
	"github.com/corey/symdex/internal/domain/orchestrator"
	"github.com/corey/symdex/internal/domain/symbols"
	"github.com/corey/symdex/internal/logging"
	"github.com/corey/symdex/internal/ports"
)

// App is the top-level container wiring all components together.
type App struct {
	Paths        *Paths
	Config       *config.Config
	Capabilities *capability.Registry
	Catalog      *treesitter.Catalog
	Store        *symbols.Store
	Engine       *orchestrator.Orchestrator

	persister ports.SymbolPersister
}

// Options holds initialization parameters for the App.
type Options struct {
	Root   string
	Config *config.Config
	// MeterProvider receives engine metrics. Nil uses the global provider.
	MeterProvider metric.MeterProvider
}

// New creates an App with all dependencies wired and the store warmed from
// its persister. A capability table that fails to load is fatal.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.Root == "" {
		return nil, errors.New("workspace root required")
	}
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("configuration required")
	}
	paths := NewPaths(opts.Root)
	log := logging.WithComponent("app")

	caps, err := loadCapabilities(cfg)
	if err != nil {
		return nil, err
	}

	catalog := treesitter.NewCatalog()
	grammarPaths := cfg.Grammars.Paths
	if len(grammarPaths) == 0 {
		grammarPaths = treesitter.DefaultGrammarPaths(paths.Workspace)
	}
	catalog.SetGrammarPaths(grammarPaths)
	loaded := loadDynamicGrammars(ctx, catalog, caps)

	persister, err := openPersister(cfg, paths)
	if err != nil {
		return nil, err
	}
	store := symbols.NewStore(persister)
	warmed, err := store.Warm()
	if err != nil {
		closePersister(persister)
		return nil, fmt.Errorf("warm symbol store: %w", err)
	}

	docs := document.NewManager(document.Config{
		MaxDocuments: cfg.Documents.MaxDocuments,
		MaxBytes:     cfg.Documents.MaxBytes,
	})
	engine := orchestrator.New(orchestrator.Config{
		Workers:       cfg.Workers,
		FileTimeout:   cfg.FileTimeout,
		MeterProvider: opts.MeterProvider,
	}, catalog, caps, docs, store)

	log.Info(ctx, "workspace opened", logging.Fields{
		"root":            paths.Workspace,
		"languages":       catalog.Len(),
		"dynamic":         loaded,
		"store":           cfg.Store.Backend,
		"warmed_files":    warmed,
		"capability_rows": len(caps.Grammars()),
	})

	return &App{
		Paths:        paths,
		Config:       cfg,
		Capabilities: caps,
		Catalog:      catalog,
		Store:        store,
		Engine:       engine,
		persister:    persister,
	}, nil
}

func loadCapabilities(cfg *config.Config) (*capability.Registry, error) {
	if cfg.Capabilities.Path != "" {
		r, err := capability.LoadFile(cfg.Capabilities.Path)
		if err != nil {
			return nil, fmt.Errorf("load capability table: %w", err)
		}
		return r, nil
	}
	r, err := capability.Default()
	if err != nil {
		return nil, fmt.Errorf("load embedded capability table: %w", err)
	}
	return r, nil
}

// loadDynamicGrammars registers every tabled language that is not compiled
// in but has a shared library on the grammar paths. The table's version is
// the one registered, so capability lookups line up.
func loadDynamicGrammars(ctx context.Context, catalog *treesitter.Catalog, caps *capability.Registry) int {
	loader := catalog.Loader()
	if loader == nil {
		return 0
	}
	n := 0
	for _, g := range caps.Grammars() {
		if _, ok := catalog.Get(g.Language); ok {
			continue
		}
		if loader.GrammarPath(g.Language) == "" {
			continue
		}
		if _, err := catalog.LoadDynamic(g.Language, g.Version); err != nil {
			logging.Warn(ctx, "dynamic grammar unavailable", logging.Fields{
				"language": g.Language,
				"error":    err.Error(),
			})
			continue
		}
		n++
	}
	return n
}

func openPersister(cfg *config.Config, paths *Paths) (ports.SymbolPersister, error) {
	if cfg.Store.Backend == config.BackendMemory {
		return nil, nil
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("create %s: %w", paths.Root, err)
	}
	path := cfg.StorePath(paths.Workspace)
	switch cfg.Store.Backend {
	case config.BackendBbolt:
		p, err := bbolt.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open bbolt store: %w", err)
		}
		return p, nil
	case config.BackendSQLite:
		p, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func closePersister(p ports.SymbolPersister) {
	if p != nil {
		_ = p.Close()
	}
}

// LanguageFor names the language a workspace file would be extracted with.
func (a *App) LanguageFor(fileID string) string {
	return a.Engine.LanguageFor(fileID, "")
}

// Scan extracts the discovered files, walking the workspace first when d is
// nil. Stored files that were not discovered are forgotten. done, if set, is
// called as each file finishes.
func (a *App) Scan(ctx context.Context, d *Discovered, done func(orchestrator.FileResult)) (*Discovered, *orchestrator.ScanReport, error) {
	if d == nil {
		var err error
		if d, err = a.Discover(ctx); err != nil {
			return nil, nil, err
		}
	}
	report := a.Engine.ScanFunc(ctx, d.Files, done)

	if ctx.Err() == nil {
		seen := make(map[string]bool, len(d.Files))
		for _, f := range d.Files {
			seen[f.FileID] = true
		}
		for _, id := range a.Store.Files() {
			if seen[id] {
				continue
			}
			if err := a.Engine.Forget(id); err != nil {
				logging.ErrorWithError(ctx, err, "forget stale file", logging.Fields{"file": id})
			}
		}
	}
	return d, report, nil
}

// Discover walks the workspace with the configured filters.
func (a *App) Discover(ctx context.Context) (*Discovered, error) {
	return Discover(ctx, a.Paths.Workspace, a.Config.Scan, a.LanguageFor)
}

// ExtractPath extracts one file, by absolute path or workspace-relative ID.
// A file that is filtered out yields a zero result and ok=false.
func (a *App) ExtractPath(ctx context.Context, path string) (res orchestrator.FileResult, ok bool, err error) {
	src, ok, err := ReadSource(a.Paths.Workspace, path, a.Config.Scan, a.LanguageFor)
	if err != nil || !ok {
		return res, ok, err
	}
	res = a.Engine.ExtractFile(ctx, orchestrator.Request{
		FileID:   src.FileID,
		Content:  src.Content,
		Language: src.Language,
	})
	return res, true, nil
}

// Close releases the persister. Safe to call once.
func (a *App) Close() error {
	if a.persister == nil {
		return nil
	}
	return a.persister.Close()
}
