package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertRunSQL = `INSERT INTO runs (
        id,
        started_at,
        finished_at,
        rules_total,
        triggered,
        not_triggered,
        skipped,
        problems,
        status
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    );`

	insertEvaluationSQL = `INSERT INTO evaluations (
        run_id,
        metric,
        mode,
        direction,
        threshold_pct,
        change_pct,
        outcome,
        reason
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    );`

	listRecentEvaluationsSQL = `SELECT
        id,
        run_id,
        metric,
        mode,
        direction,
        threshold_pct,
        change_pct,
        outcome,
        reason,
        created_at
    FROM evaluations
    ORDER BY created_at DESC, id DESC
    LIMIT $1;`

	listMetricEvaluationsBetweenSQL = `SELECT
        id,
        run_id,
        metric,
        mode,
        direction,
        threshold_pct,
        change_pct,
        outcome,
        reason,
        created_at
    FROM evaluations
    WHERE metric = $1
      AND created_at >= $2
      AND created_at < $3
    ORDER BY created_at;`

	countEvaluationsSQL = `SELECT COUNT(*) FROM evaluations;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// RunStore persists run summaries and their evaluations.
type RunStore interface {
	InsertRun(ctx context.Context, run RunRecord) error
	InsertEvaluations(ctx context.Context, runID string, evals []EvaluationRecord) error
}

// EvaluationHistory exposes read access for the show/export commands.
type EvaluationHistory interface {
	ListRecentEvaluations(ctx context.Context, limit int) ([]EvaluationRecord, error)
	ListMetricEvaluationsBetween(ctx context.Context, metric string, from, to time.Time) ([]EvaluationRecord, error)
	CountEvaluations(ctx context.Context) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to runs and evaluations.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// 解锁失败时连接释放后锁也会随之失效。
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// InsertRun persists one run summary.
func (s *Store) InsertRun(ctx context.Context, run RunRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertRunSQL,
		run.ID,
		run.StartedAt,
		run.FinishedAt,
		run.RulesTotal,
		run.Triggered,
		run.NotTriggered,
		run.Skipped,
		run.Problems,
		run.Status,
	)
	if execErr != nil {
		return fmt.Errorf("insert run: %w", execErr)
	}
	return nil
}

// InsertEvaluations persists every evaluation of a run in input order.
func (s *Store) InsertEvaluations(ctx context.Context, runID string, evals []EvaluationRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, eval := range evals {
		var change interface{}
		if eval.ChangePct != nil {
			change = eval.ChangePct.String()
		}

		if _, execErr := pool.Exec(ctx, insertEvaluationSQL,
			runID,
			eval.Metric,
			eval.Mode,
			eval.Direction,
			eval.ThresholdPct.String(),
			change,
			eval.Outcome,
			eval.Reason,
		); execErr != nil {
			return fmt.Errorf("insert evaluation (%s): %w", eval.Metric, execErr)
		}
	}
	return nil
}

// ListRecentEvaluations lists the most recent evaluations.
func (s *Store) ListRecentEvaluations(ctx context.Context, limit int) ([]EvaluationRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentEvaluationsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent evaluations: %w", queryErr)
	}
	defer rows.Close()

	return collectEvaluations(rows, limit)
}

// ListMetricEvaluationsBetween lists a metric's evaluations within a window.
func (s *Store) ListMetricEvaluationsBetween(ctx context.Context, metric string, from, to time.Time) ([]EvaluationRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listMetricEvaluationsBetweenSQL, metric, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list metric evaluations: %w", queryErr)
	}
	defer rows.Close()

	return collectEvaluations(rows, 0)
}

// CountEvaluations counts stored evaluations.
func (s *Store) CountEvaluations(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countEvaluationsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count evaluations: %w", scanErr)
	}
	return count, nil
}

func collectEvaluations(rows pgx.Rows, sizeHint int) ([]EvaluationRecord, error) {
	evals := make([]EvaluationRecord, 0, sizeHint)
	for rows.Next() {
		eval, scanErr := scanEvaluation(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		evals = append(evals, eval)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return evals, nil
}

func scanEvaluation(rows pgx.Rows) (EvaluationRecord, error) {
	var (
		rec    EvaluationRecord
		change decimal.NullDecimal
	)

	if err := rows.Scan(
		&rec.ID,
		&rec.RunID,
		&rec.Metric,
		&rec.Mode,
		&rec.Direction,
		&rec.ThresholdPct,
		&change,
		&rec.Outcome,
		&rec.Reason,
		&rec.CreatedAt,
	); err != nil {
		return EvaluationRecord{}, err
	}

	if change.Valid {
		rec.ChangePct = &change.Decimal
	}

	return rec, nil
}
