package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/xraph/credits"
	"github.com/xraph/credits/api"
	audithook "github.com/xraph/credits/audit_hook"
	"github.com/xraph/credits/observability"
	"github.com/xraph/credits/store/memory"
	"github.com/xraph/credits/transaction"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides [server].addr)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the credits HTTP API on an in-memory ledger",
	Long: `Run the credits HTTP API backed by an in-memory store.
The price list and any [[accounts]] from the config file are loaded at
startup. Prometheus metrics are served at /metrics unless disabled.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfigFlag(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	logger := newLogger(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	engine := credits.New(memory.New(),
		credits.WithLogger(logger),
		credits.WithPricingCacheTTL(cfg.Engine.PricingCacheTTL),
		credits.WithPluginTimeout(cfg.Engine.PluginTimeout),
		credits.WithDefaultBalance(cfg.Engine.DefaultBalance),
		credits.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))),
		credits.WithPlugin(audithook.New(audithook.RecorderFunc(logAudit(logger)))),
	)
	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Stop() //nolint:errcheck // memory store close cannot fail

	if err := bootstrap(ctx, engine, cfg); err != nil {
		return err
	}

	opts := []api.Option{api.WithLogger(logger), api.WithTimeout(cfg.Server.RequestTimeout)}
	if cfg.Server.Metrics {
		opts = append(opts, api.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewServer(engine, opts...).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("creditctl listening", "addr", cfg.Server.Addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("creditctl shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// bootstrap loads the price list and opens the configured accounts.
func bootstrap(ctx context.Context, engine *credits.Engine, cfg *Config) error {
	if err := engine.SeedPricing(ctx, cfg.PricingEntries()); err != nil {
		return fmt.Errorf("seed pricing: %w", err)
	}

	for _, acct := range cfg.Accounts {
		if _, err := engine.OpenAccount(ctx, acct.UserID); err != nil && !errors.Is(err, credits.ErrAlreadyExists) {
			return fmt.Errorf("open account %s: %w", acct.UserID, err)
		}
		if acct.TestAccount {
			if err := engine.SetTestAccount(ctx, acct.UserID, true); err != nil {
				return fmt.Errorf("flag test account %s: %w", acct.UserID, err)
			}
		}
		if acct.Credits > 0 {
			res := engine.GrantCredits(ctx, credits.GrantRequest{
				UserID:      acct.UserID,
				Amount:      acct.Credits,
				Source:      transaction.SourceAdjustment,
				ReferenceID: "bootstrap:" + acct.UserID,
				Description: "Bootstrap credits",
			})
			if res.Err != nil {
				return fmt.Errorf("grant %s: %w", acct.UserID, res.Err)
			}
		}
	}
	return nil
}

func logAudit(logger *slog.Logger) func(context.Context, *audithook.AuditEvent) error {
	return func(ctx context.Context, evt *audithook.AuditEvent) error {
		logger.InfoContext(ctx, "audit",
			"action", evt.Action,
			"resource", evt.Resource,
			"resource_id", evt.ResourceID,
			"outcome", evt.Outcome,
			"severity", evt.Severity,
		)
		return nil
	}
}
