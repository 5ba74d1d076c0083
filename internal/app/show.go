package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Show prints recent alert records.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	if st.alerts == nil {
		return errors.New("alert audit store not configured; cannot show alerts")
	}

	alerts, err := st.alerts.ListRecentAlerts(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(a.Out, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tChain\tLabel\tAsset\tBalance\tThreshold\tDelivered\tTx")

	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%d\t%s\t%s\t%s\t%s\t%t\t%s\n",
			alert.CreatedAt.UTC().Format(time.RFC3339),
			alert.ChainID,
			sanitizeInline(alert.Label),
			alert.Symbol,
			formatDecimal(alert.Balance, 6),
			formatDecimal(alert.Threshold, 6),
			alert.Delivered,
			alert.TxHash,
		)
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	return cleaned
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
