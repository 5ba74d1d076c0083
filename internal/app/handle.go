package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"token-alerts/internal/service"
	"token-alerts/internal/storage"
	"token-alerts/internal/watchlist"
)

// Handle processes a single transaction event read from a file or stdin and
// prints the result as JSON.
func (a *App) Handle(ctx context.Context, opts HandleOptions) error {
	ev, err := readEvent(opts.EventPath)
	if err != nil {
		return err
	}

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

	res, err := svc.HandleTransaction(ctx, ev)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func readEvent(path string) (service.Event, error) {
	var (
		data []byte
		err  error
	)
	switch path {
	case "", "-":
		data, err = io.ReadAll(os.Stdin)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return service.Event{}, fmt.Errorf("read event: %w", err)
	}

	var ev service.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return service.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

// SetThresholds validates the watch list at path and stores it.
func (a *App) SetThresholds(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read thresholds: %w", err)
	}

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	svc, pool, err := a.newService(st, nil)
	if err != nil {
		return err
	}
	defer pool.Close()

	cfg, err := svc.SetThresholds(ctx, data)
	if err != nil {
		return err
	}

	watches := 0
	for _, id := range cfg.Chains() {
		watches += len(cfg.ForChain(id))
	}
	a.Logger.Info().Int("chains", len(cfg.Chains())).Int("watches", watches).Msg("threshold config stored")
	return nil
}

// ShowThresholds prints the stored watch list in its canonical JSON form.
func (a *App) ShowThresholds(ctx context.Context) error {
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	svc, pool, err := a.newService(st, nil)
	if err != nil {
		return err
	}
	defer pool.Close()

	cfg, err := svc.Thresholds(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Fprintln(a.Out, "no threshold config stored")
		return nil
	}
	if err != nil {
		return err
	}

	data, err := watchlist.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.Out, string(data))
	return err
}

// Heartbeat prints the current heartbeat counter.
func (a *App) Heartbeat(ctx context.Context) error {
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	svc, pool, err := a.newService(st, nil)
	if err != nil {
		return err
	}
	defer pool.Close()

	count, err := svc.HeartbeatCount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "heartbeat: %d (next liveness alert at %d)\n", count, nextBeat(count, a.Config.Heartbeat.Cadence))
	return nil
}

func nextBeat(count, cadence uint64) uint64 {
	if cadence == 0 {
		return 0
	}
	return (count/cadence + 1) * cadence
}
