package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/trogers1052/trade-ledger/internal/api"
	"github.com/trogers1052/trade-ledger/internal/kafka"
	"github.com/trogers1052/trade-ledger/internal/scheduler"
	"github.com/trogers1052/trade-ledger/internal/service"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the trade event consumer and the report refresher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, cmd)
		},
	}
}

func serve(ctx context.Context, opts *rootOptions, cmd *cobra.Command) error {
	if opts.ledgerFile != "" {
		return fmt.Errorf("serve requires PostgreSQL; --file is not supported")
	}

	a, err := opts.load(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	db, err := a.openDatabase()
	if err != nil {
		return err
	}
	a.openCache(ctx)

	var pub service.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.EventSource)
		a.closers = append(a.closers, producer.Close)
		pub = producer
	}

	svc, err := a.service(db, pub)
	if err != nil {
		return err
	}

	if cfg.Kafka.Enabled {
		var invalidator kafka.ReportInvalidator
		if a.cache != nil {
			invalidator = a.cache
		}
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.InputTopic, cfg.Kafka.GroupID, db, invalidator, a.log)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				a.log.Error().Err(err).Msg("Kafka consumer stopped")
			}
		}()
	}

	sched := scheduler.New(a.log)
	refresh := scheduler.FuncJob{JobName: "report_refresh", Fn: func() error {
		n, err := svc.WarmCache(ctx)
		if err != nil {
			return err
		}
		a.log.Debug().Int("reports", n).Msg("Refreshed cached reports")
		return nil
	}}
	if err := sched.AddJob(cfg.RefreshSchedule, refresh); err != nil {
		return fmt.Errorf("invalid refresh schedule: %w", err)
	}
	if err := sched.RunNow(refresh); err != nil {
		a.log.Warn().Err(err).Msg("Initial report refresh failed")
	}
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.SetupRoutes(api.NewHandler(svc, db, a.log)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	a.log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
