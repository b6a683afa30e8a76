package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"metric-alerts/internal/alerting"
	"metric-alerts/internal/rules"
)

// SimulateAlert 用给定的当前值/基线值构造一条合成规则并完整走一遍告警流程。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	mode, err := rules.ParseMode(opts.Mode)
	if err != nil {
		return err
	}
	direction, err := rules.ParseDirection(opts.Direction)
	if err != nil {
		return err
	}

	metric := opts.Metric
	if metric == "" {
		metric = "simulated"
	}

	prior := decimal.NewFromFloat(opts.Prior)
	row := rules.MetricRow{
		Name:    metric,
		Month:   time.Now().UTC().Format("2006-01"),
		Current: decimal.NewFromFloat(opts.Current),
	}
	if mode == rules.ModeYoY {
		row.PriorYoY = &prior
	} else {
		row.PriorMoM = &prior
	}

	rule := rules.RuleDefinition{
		Metric:       metric,
		Mode:         mode,
		Direction:    direction,
		ThresholdPct: decimal.NewFromFloat(opts.Threshold),
		Recipients:   []string{opts.Recipient},
		Enabled:      true,
	}

	rowSet := rules.NewRowSet([]rules.MetricRow{row})
	res := rules.Evaluate(rowSet, rule)

	a.Logger.Info().
		Str("metric", metric).
		Str("outcome", string(res.Outcome)).
		Str("reason", res.Reason).
		Msg("simulated evaluation")

	if !res.Triggered() {
		fmt.Fprintf(os.Stdout, "not triggered: %s\n", res.Reason)
		return nil
	}

	digests := alerting.GroupTriggers([]rules.EvaluationResult{res}, rowSet,
		a.Config.Alerting.SubjectPrefix, time.Now().UTC())
	if len(digests) == 0 {
		return errors.New("触发结果未生成 digest")
	}

	if opts.DryRun {
		fmt.Fprintf(os.Stdout, "--- DRY RUN ---\nWould email: %s\nSubject: %s\n%s--- END DRY RUN ---\n",
			digests[0].Recipient, digests[0].Subject, alerting.RenderText(digests[0]))
		return nil
	}

	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	return notifier.Notify(ctx, digests[0])
}
