package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/trogers1052/trade-ledger/internal/accounting"
	"github.com/trogers1052/trade-ledger/internal/cache"
	"github.com/trogers1052/trade-ledger/internal/config"
	"github.com/trogers1052/trade-ledger/internal/database"
	"github.com/trogers1052/trade-ledger/internal/ledger"
	"github.com/trogers1052/trade-ledger/internal/logger"
	"github.com/trogers1052/trade-ledger/internal/service"
)

// app carries what every command needs: config, logger and the opened
// backends
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	db      *database.DB
	cache   *cache.ReportCache
	closers []func() error
}

func (o *rootOptions) load(logOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	log := logger.NewWithWriter(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}, logOut)
	logger.SetGlobalLogger(log)

	return &app{cfg: cfg, log: log}, nil
}

// openDatabase connects to PostgreSQL and applies pending migrations
func (a *app) openDatabase() (*database.DB, error) {
	db, err := database.New(a.cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	if err := db.Migrate(a.cfg.Database.MigrationsPath); err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

// openCache connects to Redis. The cache is optional: failures are logged
// and the app runs without it.
func (a *app) openCache(ctx context.Context) {
	if !a.cfg.Redis.Enabled {
		return
	}
	policy, err := a.cfg.Accounting.CostPolicy()
	if err != nil {
		a.log.Warn().Err(err).Msg("Report cache disabled")
		return
	}
	c, err := cache.New(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB, a.cfg.Redis.TTL, policy, a.log)
	if err != nil {
		a.log.Warn().Err(err).Msg("Report cache unavailable, continuing without it")
		return
	}
	a.closers = append(a.closers, c.Close)
	a.cache = c
}

// store returns the file ledger in offline mode, PostgreSQL otherwise
func (a *app) store(ledgerFile string) (service.TradeStore, error) {
	if ledgerFile != "" {
		return ledger.NewFileStore(ledgerFile, a.log), nil
	}
	return a.openDatabase()
}

func (a *app) accountant() (*accounting.Accountant, error) {
	policy, err := a.cfg.Accounting.CostPolicy()
	if err != nil {
		return nil, err
	}
	fees, err := a.cfg.Accounting.FeeSchedule()
	if err != nil {
		return nil, err
	}
	return accounting.NewAccountant(policy, fees, a.log), nil
}

func (a *app) service(store service.TradeStore, pub service.Publisher) (*service.Service, error) {
	acct, err := a.accountant()
	if err != nil {
		return nil, err
	}

	cfg := service.Config{
		Store:      store,
		Publisher:  pub,
		Accountant: acct,
		Log:        a.log,
	}
	if a.cache != nil {
		cfg.Cache = a.cache
	}
	return service.New(cfg), nil
}

// Close releases opened backends in reverse order
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("Close failed")
		}
	}
}

// open opens the store named by --file or PostgreSQL, and the cache when
// running against the database
func (o *rootOptions) open(ctx context.Context, logOut io.Writer) (*app, *service.Service, error) {
	a, err := o.load(logOut)
	if err != nil {
		return nil, nil, err
	}

	store, err := a.store(o.ledgerFile)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	if o.ledgerFile == "" {
		a.openCache(ctx)
	}

	svc, err := a.service(store, nil)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, svc, nil
}
