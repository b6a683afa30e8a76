package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints recent evaluations from the history store.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show evaluations")
	}
	if closeStore != nil {
		defer closeStore()
	}

	evals, err := store.ListRecentEvaluations(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(evals) == 0 {
		fmt.Fprintln(os.Stdout, "no evaluations found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tMetric\tMode\tDirection\tChange%\tThreshold%\tOutcome\tReason")

	for _, eval := range evals {
		change := "-"
		if eval.ChangePct != nil {
			change = eval.ChangePct.StringFixed(2)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			eval.CreatedAt.UTC().Format(time.RFC3339),
			eval.Metric,
			eval.Mode,
			eval.Direction,
			change,
			eval.ThresholdPct.StringFixed(2),
			eval.Outcome,
			sanitizeInline(eval.Reason),
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
