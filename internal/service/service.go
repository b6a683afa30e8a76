package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"metric-alerts/internal/alerting"
	"metric-alerts/internal/rules"
	"metric-alerts/internal/source"
	"metric-alerts/internal/storage"
)

// Options gate the run's side effects. They never alter how rules evaluate.
type Options struct {
	DryRun        bool
	NoEmail       bool
	NoSheetLog    bool
	SubjectPrefix string
	Verbose       bool
}

// Summary aggregates one run's outcome counts.
type Summary struct {
	RunID           string
	RulesTotal      int
	Triggered       int
	NotTriggered    int
	Skipped         int
	Problems        int
	EmailsSent      int
	EmailFailures   int
	AuditFailures   int
	StorageFailures int
}

// CollaboratorFailed reports whether any best-effort sink call failed.
// Evaluation-layer conditions (skips, config problems) never count.
func (s Summary) CollaboratorFailed() bool {
	return s.EmailFailures > 0 || s.AuditFailures > 0 || s.StorageFailures > 0
}

// Runner sequences one evaluation cycle: snapshot, evaluate, dispatch, audit.
type Runner struct {
	src      source.RowSource
	notifier alerting.Notifier
	audit    alerting.AuditSink
	store    storage.RunStore
	opts     Options
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRunner wires the run controller. notifier, audit, and store may be nil
// when the corresponding surface is disabled.
func NewRunner(src source.RowSource, notifier alerting.Notifier, audit alerting.AuditSink, store storage.RunStore, opts Options, logger zerolog.Logger) *Runner {
	if opts.SubjectPrefix == "" {
		opts.SubjectPrefix = "[Metric Alert]"
	}
	return &Runner{
		src:      src,
		notifier: notifier,
		audit:    audit,
		store:    store,
		opts:     opts,
		logger:   logger.With().Str("component", "runner").Logger(),
		now:      time.Now,
	}
}

// RunOnce executes one full cycle over a fresh snapshot. The returned error is
// non-nil only when the snapshot itself cannot be fetched; collaborator
// failures are counted in the summary and left to the caller's exit policy.
func (r *Runner) RunOnce(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	startedAt := r.now().UTC()
	logger := r.logger.With().Str("run_id", runID).Logger()
	logger.Info().Msg("run started")

	summary := Summary{RunID: runID}

	metricRows, err := r.src.FetchMetricRows(ctx)
	if err != nil {
		return summary, fmt.Errorf("fetch metric rows: %w", err)
	}

	defs, problems, err := r.src.FetchRuleDefinitions(ctx)
	if err != nil {
		return summary, fmt.Errorf("fetch rule definitions: %w", err)
	}

	// 坏行逐条上报，其余规则继续评估。
	summary.Problems = len(problems)
	for _, problem := range problems {
		logger.Warn().Int("row", problem.Row).Err(problem.Err).Msg("malformed rule skipped")
	}

	rowSet := rules.NewRowSet(metricRows)
	results := rules.EvaluateAll(rowSet, defs)
	summary.RulesTotal = len(results)

	for _, res := range results {
		switch res.Outcome {
		case rules.OutcomeTriggered:
			summary.Triggered++
		case rules.OutcomeNotTriggered:
			summary.NotTriggered++
		case rules.OutcomeSkipped:
			summary.Skipped++
		}
		if r.opts.Verbose {
			logger.Debug().
				Str("metric", res.Rule.Metric).
				Str("outcome", string(res.Outcome)).
				Str("reason", res.Reason).
				Msg("rule evaluated")
		}
	}

	now := r.now().UTC()
	r.persist(ctx, logger, &summary, startedAt, now, results)

	digests := alerting.GroupTriggers(results, rowSet, r.opts.SubjectPrefix, now)
	r.dispatch(ctx, logger, &summary, digests)
	r.recordAudit(ctx, logger, &summary, results, now)

	logger.Info().
		Int("rules", summary.RulesTotal).
		Int("triggered", summary.Triggered).
		Int("not_triggered", summary.NotTriggered).
		Int("skipped", summary.Skipped).
		Int("problems", summary.Problems).
		Int("emails_sent", summary.EmailsSent).
		Int("email_failures", summary.EmailFailures).
		Int("audit_failures", summary.AuditFailures).
		Msg("run finished")

	return summary, nil
}

func (r *Runner) dispatch(ctx context.Context, logger zerolog.Logger, summary *Summary, digests []alerting.Digest) {
	if len(digests) == 0 {
		logger.Info().Msg("no alerts triggered")
		return
	}

	for _, digest := range digests {
		if r.opts.DryRun {
			logger.Info().
				Str("recipient", digest.Recipient).
				Str("subject", digest.Subject).
				Str("triggers", alerting.Summary(digest)).
				Msg("[dry run] would send email")
			continue
		}
		if r.opts.NoEmail || r.notifier == nil {
			logger.Info().Str("recipient", digest.Recipient).Msg("email disabled; would have sent")
			continue
		}

		if err := r.notifier.Notify(ctx, digest); err != nil {
			summary.EmailFailures++
			logger.Error().Err(err).Str("recipient", digest.Recipient).Msg("failed to send alert email")
			continue
		}
		summary.EmailsSent++
	}
}

func (r *Runner) recordAudit(ctx context.Context, logger zerolog.Logger, summary *Summary, results []rules.EvaluationResult, ts time.Time) {
	if r.opts.DryRun || r.opts.NoSheetLog || r.audit == nil {
		return
	}

	for _, res := range results {
		if !res.Triggered() {
			continue
		}
		if err := r.audit.Record(ctx, summary.RunID, res, ts); err != nil {
			summary.AuditFailures++
			logger.Error().Err(err).Str("metric", res.Rule.Metric).Msg("failed to append audit row")
		}
	}
}

func (r *Runner) persist(ctx context.Context, logger zerolog.Logger, summary *Summary, startedAt, finishedAt time.Time, results []rules.EvaluationResult) {
	if r.store == nil || r.opts.DryRun {
		return
	}

	run := storage.RunRecord{
		ID:           summary.RunID,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		RulesTotal:   summary.RulesTotal,
		Triggered:    summary.Triggered,
		NotTriggered: summary.NotTriggered,
		Skipped:      summary.Skipped,
		Problems:     summary.Problems,
		Status:       "complete",
	}
	if err := r.store.InsertRun(ctx, run); err != nil {
		summary.StorageFailures++
		logger.Error().Err(err).Msg("failed to persist run")
		return
	}

	evals := make([]storage.EvaluationRecord, 0, len(results))
	for _, res := range results {
		evals = append(evals, storage.EvaluationRecord{
			RunID:        summary.RunID,
			Metric:       res.Rule.Metric,
			Mode:         string(res.Rule.Mode),
			Direction:    string(res.Rule.Direction),
			ThresholdPct: res.Rule.ThresholdPct,
			ChangePct:    res.ChangePct,
			Outcome:      string(res.Outcome),
			Reason:       res.Reason,
		})
	}
	if err := r.store.InsertEvaluations(ctx, summary.RunID, evals); err != nil {
		summary.StorageFailures++
		logger.Error().Err(err).Msg("failed to persist evaluations")
	}
}
