package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"token-alerts/internal/alerting"
	"token-alerts/internal/api"
	"token-alerts/internal/balance"
	"token-alerts/internal/chain"
	"token-alerts/internal/config"
	"token-alerts/internal/observability"
	"token-alerts/internal/scheduler"
	"token-alerts/internal/secrets"
	"token-alerts/internal/service"
	"token-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives command output.
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

// stores bundles the KV backend with the optional alert audit store.
type stores struct {
	kv     storage.KV
	alerts storage.AlertStore
	close  func()
}

func (a *App) openStore(ctx context.Context) (*stores, error) {
	switch a.Config.Storage.Backend {
	case config.BackendPostgres:
		store, err := a.openPostgres(ctx)
		if err != nil {
			return nil, err
		}
		return &stores{kv: store, alerts: store, close: store.Close}, nil

	case config.BackendRedis:
		kv, err := storage.NewRedisKV(ctx, a.Config.Redis)
		if err != nil {
			return nil, err
		}
		st := &stores{kv: kv, close: func() { _ = kv.Close() }}
		if a.Config.Database.DSN == "" {
			a.Logger.Warn().Msg("database.dsn not configured; alert audit disabled")
			return st, nil
		}
		pg, err := a.openPostgres(ctx)
		if err != nil {
			st.close()
			return nil, err
		}
		st.alerts = pg
		st.close = func() {
			pg.Close()
			_ = kv.Close()
		}
		return st, nil

	default:
		a.Logger.Warn().Msg("using in-memory storage; thresholds and heartbeat are lost on exit")
		mem := storage.NewMemoryStore()
		return &stores{kv: mem, alerts: mem, close: func() {}}, nil
	}
}

func (a *App) openPostgres(ctx context.Context) (*storage.Store, error) {
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, err
	}
	if a.Config.Database.AutoMigrate {
		if err := storage.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return storage.NewStore(pool), nil
}

func (a *App) newMetrics() *observability.Metrics {
	if !a.Config.Metrics.Enabled {
		return nil
	}
	return observability.NewMetrics(a.Config.Metrics.Namespace)
}

func (a *App) newPool(metrics *observability.Metrics) (*balance.Pool, error) {
	overrides := make(map[chain.ID]string, len(a.Config.Ethereum.RPCOverrides))
	for raw, url := range a.Config.Ethereum.RPCOverrides {
		id, err := chain.ParseID(raw)
		if err != nil {
			return nil, fmt.Errorf("ethereum.rpc_overrides: %w", err)
		}
		overrides[id] = url
	}

	opts := balance.PoolOptions{
		Timeout:   a.Config.Ethereum.RequestTimeout,
		Overrides: overrides,
	}
	if metrics != nil {
		opts.Observer = metrics
	}
	return balance.NewPool(opts, a.Logger), nil
}

func (a *App) newNotifier(webhookURL string) alerting.Notifier {
	return alerting.NewSlackNotifier(webhookURL, a.Config.Slack.Timeout, a.Logger)
}

func (a *App) secretStore() secrets.Store {
	return secrets.Map(a.Config.Secrets)
}

// newService wires a service over st. The returned pool must be closed by the caller.
func (a *App) newService(st *stores, metrics *observability.Metrics) (*service.Service, *balance.Pool, error) {
	pool, err := a.newPool(metrics)
	if err != nil {
		return nil, nil, err
	}

	var recorder service.Recorder
	if metrics != nil {
		recorder = metrics
	}

	svc := service.New(
		a.Config.Heartbeat.Cadence,
		st.kv,
		st.alerts,
		a.secretStore(),
		service.PoolSource{Pool: pool},
		a.newNotifier,
		recorder,
		a.Logger,
	)
	return svc, pool, nil
}

// Run serves the event intake API until SIGINT or SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	metrics := a.newMetrics()
	svc, pool, err := a.newService(st, metrics)
	if err != nil {
		return err
	}
	defer pool.Close()

	var metricsHandler http.Handler
	if metrics != nil {
		metricsHandler = metrics.Handler()
	}
	handlers := api.NewHandlers(svc, a.Config.Server.HandlerTimeout, a.Logger)
	server := &http.Server{
		Addr:              a.Config.Server.Addr,
		Handler:           api.NewRouter(handlers, metricsHandler, a.Logger),
		ReadHeaderTimeout: a.Config.Server.ReadTimeout,
		ReadTimeout:       a.Config.Server.ReadTimeout,
	}

	stopRetention := a.startRetention(ctx, st)
	defer stopRetention()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", server.Addr).Msg("starting event intake server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.Logger.Error().Err(err).Msg("server terminated with error")
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}

	a.Logger.Info().Msg("event intake server stopped")
	return nil
}

// startRetention prunes old audit records in the background. The returned
// func cancels the job and waits for it to exit.
func (a *App) startRetention(ctx context.Context, st *stores) func() {
	if !a.Config.Retention.Enabled || st.alerts == nil {
		return func() {}
	}
	sched, err := scheduler.New(scheduler.Options{
		Name:      "alert-retention",
		Interval:  a.Config.Retention.Interval,
		Immediate: true,
	}, a.Logger)
	if err != nil {
		a.Logger.Error().Err(err).Msg("alert retention disabled")
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sched.Run(ctx, scheduler.PruneAlerts(st.alerts, a.Config.Retention.MaxAge))
	}()
	return func() {
		cancel()
		<-done
	}
}

// HandleOptions configure the handle command.
type HandleOptions struct {
	// EventPath is a JSON file, or "-" for stdin.
	EventPath string
}

// ExportOptions hold parameters for exporting alert history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// SimulateOptions describe a synthetic balance alert.
type SimulateOptions struct {
	Chain     chain.ID
	Label     string
	Symbol    string
	Balance   string
	Threshold string
}
