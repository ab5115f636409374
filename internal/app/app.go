// Package app wires config, storage, and services into one handle shared by
// the CLI and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"impactline/internal/audit"
	"impactline/internal/config"
	"impactline/internal/db"
	"impactline/internal/engine"
	"impactline/internal/ids"
	"impactline/internal/knowledge"
	"impactline/internal/migrate"
	"impactline/internal/store"
	badgerstore "impactline/internal/store/badger"
	"impactline/internal/store/memory"
	"impactline/internal/store/sqlite"
)

type App struct {
	Config     *config.Config
	Store      store.Store
	Engine     engine.Engine
	Knowledge  knowledge.Service
	Reconciler engine.Reconciler
	Log        *slog.Logger

	closers []func() error
}

// Open builds an App for workspace. A nil cfg loads impactline.yml.
func Open(ctx context.Context, workspace string, cfg *config.Config, log *slog.Logger) (*App, error) {
	if cfg == nil {
		var err error
		if cfg, err = config.Load(workspace); err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = slog.Default()
	}
	a := &App{Config: cfg, Log: log}
	s, err := a.openStore(ctx, workspace)
	if err != nil {
		return nil, err
	}
	a.Store = s

	gen, err := ids.New(cfg.IDs.Kind)
	if err != nil {
		a.Close()
		return nil, err
	}
	opts := engine.DefaultOptions()
	opts.Limits = cfg.Limits()
	opts.Transactional = cfg.Store.Transactional
	opts.AutoCreateObjectives = cfg.Ontology.AutoCreateObjectives
	opts.Logger = log
	a.Engine = engine.New(s, gen, opts)
	a.Engine.Audit.ReadLimit = cfg.Audit.ReadLimit
	a.Knowledge = knowledge.New(s, gen, a.Engine.Validator, knowledge.Options{
		Transactional: cfg.Store.Transactional,
		Logger:        log,
	})
	a.Reconciler = engine.NewReconciler(a.Engine, a.Knowledge.CheckVersions)
	return a, nil
}

func (a *App) openStore(ctx context.Context, workspace string) (store.Store, error) {
	switch a.Config.Store.Driver {
	case "", "sqlite":
		conn, err := db.Open(db.Config{Workspace: workspace, Path: a.Config.Store.Path})
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, conn.Close)
		from, err := migrate.Version(ctx, conn)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		to, err := migrate.Migrate(ctx, conn)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		if to != from {
			a.Log.Info("sqlite schema migrated", "from", from, "to", to)
		}
		return sqlite.New(conn), nil
	case "badger":
		path := a.Config.Store.Path
		if path == "" {
			dir, err := db.EnsureWorkspace(workspace)
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, "badger")
		}
		bdb, err := badgerstore.Open(badgerstore.Config{Path: path, SyncWrites: true, Logger: a.Log})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, bdb.Close)
		return badgerstore.New(bdb), nil
	case "memory":
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", a.Config.Store.Driver)
}

// Audit returns the audit logger bound to the app store.
func (a *App) Audit() audit.Logger {
	return a.Engine.Audit
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
