package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"metric-alerts/internal/storage"
)

// Export renders one metric's evaluation history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.Metric == "" {
		return errors.New("--metric must be provided")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	evals, err := store.ListMetricEvaluationsBetween(ctx, opts.Metric, from, to)
	if err != nil {
		return err
	}
	if len(evals) == 0 {
		a.Logger.Info().Str("metric", opts.Metric).Msg("no evaluations found for export window")
		return nil
	}

	downsampled := downsampleEvaluations(evals, opts.MaxPoints)
	a.Logger.Info().Int("total", len(evals)).Int("exported", len(downsampled)).Msg("exporting evaluations")

	if opts.CSVPath != "" {
		if err := writeEvaluationsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeEvaluationsPNG(opts.PNGPath, opts.Metric, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleEvaluations(evals []storage.EvaluationRecord, max int) []storage.EvaluationRecord {
	if max <= 0 || len(evals) <= max {
		return evals
	}

	result := make([]storage.EvaluationRecord, 0, max)
	step := float64(len(evals)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(evals) {
			idx = len(evals) - 1
		}
		result = append(result, evals[idx])
	}
	return result
}

func writeEvaluationsCSV(path string, evals []storage.EvaluationRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"created_at", "run_id", "metric", "mode", "direction", "change_pct", "threshold_pct", "outcome", "reason"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, eval := range evals {
		change := ""
		if eval.ChangePct != nil {
			change = eval.ChangePct.String()
		}
		record := []string{
			eval.CreatedAt.Format(time.RFC3339),
			eval.RunID,
			eval.Metric,
			eval.Mode,
			eval.Direction,
			change,
			eval.ThresholdPct.String(),
			eval.Outcome,
			eval.Reason,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeEvaluationsPNG(path, metric string, evals []storage.EvaluationRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	// 图上只画有变化值的评估；skipped 没有数据点。
	x := make([]time.Time, 0, len(evals))
	change := make([]float64, 0, len(evals))
	threshold := make([]float64, 0, len(evals))

	for _, eval := range evals {
		if eval.ChangePct == nil {
			continue
		}
		x = append(x, eval.CreatedAt)
		change = append(change, eval.ChangePct.InexactFloat64())
		threshold = append(threshold, eval.ThresholdPct.InexactFloat64())
	}
	if len(x) == 0 {
		return errors.New("no computed changes in export window")
	}

	pctFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Title:  metric,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Change (%)",
			ValueFormatter: pctFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Change %",
				XValues: x,
				YValues: change,
			},
			chart.TimeSeries{
				Name:    "Threshold %",
				XValues: x,
				YValues: threshold,
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
