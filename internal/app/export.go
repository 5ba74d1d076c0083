package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"token-alerts/internal/storage"
)

const defaultExportWindow = 30 * 24 * time.Hour

// Export renders alert history as CSV and/or a PNG chart of daily alert counts.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}
	from := to.Add(-defaultExportWindow)
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	if st.alerts == nil {
		return errors.New("alert audit store not configured; cannot export")
	}

	alerts, err := st.alerts.ListAlertsBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		a.Logger.Info().Msg("no alerts found for export window")
		return nil
	}

	downsampled := downsampleAlerts(alerts, opts.MaxPoints)
	a.Logger.Info().Int("total", len(alerts)).Int("exported", len(downsampled)).Msg("exporting alerts")

	if opts.CSVPath != "" {
		if err := writeAlertsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeAlertsPNG(opts.PNGPath, alerts); err != nil {
			return err
		}
	}

	return nil
}

func downsampleAlerts(alerts []storage.AlertRecord, max int) []storage.AlertRecord {
	if max <= 0 || len(alerts) <= max {
		return alerts
	}
	if max == 1 {
		return alerts[len(alerts)-1:]
	}

	result := make([]storage.AlertRecord, 0, max)
	step := float64(len(alerts)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(alerts) {
			idx = len(alerts) - 1
		}
		result = append(result, alerts[idx])
	}
	return result
}

func writeAlertsCSV(path string, alerts []storage.AlertRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"created_at", "chain_id", "label", "account", "token", "symbol", "balance", "threshold", "delivered", "tx_hash"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, alert := range alerts {
		record := []string{
			alert.CreatedAt.UTC().Format(time.RFC3339),
			strconv.FormatUint(alert.ChainID, 10),
			alert.Label,
			alert.Account,
			alert.Token,
			alert.Symbol,
			alert.Balance.String(),
			alert.Threshold.String(),
			strconv.FormatBool(alert.Delivered),
			alert.TxHash,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// dailyCounts buckets alerts per UTC day, filling empty days with zero.
func dailyCounts(alerts []storage.AlertRecord) ([]time.Time, []float64, []float64) {
	if len(alerts) == 0 {
		return nil, nil, nil
	}

	first := alerts[0].CreatedAt.UTC().Truncate(24 * time.Hour)
	last := alerts[len(alerts)-1].CreatedAt.UTC().Truncate(24 * time.Hour)
	days := int(last.Sub(first)/(24*time.Hour)) + 1

	x := make([]time.Time, days)
	raised := make([]float64, days)
	failed := make([]float64, days)
	for i := range x {
		x[i] = first.Add(time.Duration(i) * 24 * time.Hour)
	}
	for _, alert := range alerts {
		idx := int(alert.CreatedAt.UTC().Truncate(24*time.Hour).Sub(first) / (24 * time.Hour))
		raised[idx]++
		if !alert.Delivered {
			failed[idx]++
		}
	}
	return x, raised, failed
}

func writeAlertsPNG(path string, alerts []storage.AlertRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x, raised, failed := dailyCounts(alerts)
	if len(x) == 1 {
		// go-chart needs two points to draw a range.
		x = append(x, x[0].Add(24*time.Hour))
		raised = append(raised, 0)
		failed = append(failed, 0)
	}

	countFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Alerts per day",
			ValueFormatter: countFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Raised",
				XValues: x,
				YValues: raised,
			},
			chart.TimeSeries{
				Name:    "Undelivered",
				XValues: x,
				YValues: failed,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
