package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"metric-alerts/internal/scheduler"
	"metric-alerts/internal/service"
	"metric-alerts/internal/storage"
)

// Run executes a single evaluation cycle and maps collaborator failures to a
// non-zero exit.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	runner, _, cleanup, err := a.newRunner(ctx, opts)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	summary, err := runner.RunOnce(ctx)
	if err != nil {
		return err
	}
	if summary.CollaboratorFailed() {
		return fmt.Errorf("run %s completed with %d email, %d audit, %d storage failure(s)",
			summary.RunID, summary.EmailFailures, summary.AuditFailures, summary.StorageFailures)
	}
	return nil
}

// Watch repeats evaluation runs on the configured interval until interrupted.
func (a *App) Watch(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner, store, cleanup, err := a.newRunner(ctx, opts)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	var locker storage.AdvisoryLocker
	if store != nil {
		locker = store
	}
	lockKey := a.Config.Scheduler.AdvisoryLockKey

	sched := scheduler.New(scheduler.Options{
		Interval:        a.Config.Scheduler.Interval,
		AlignToInterval: a.Config.Scheduler.AlignToInterval,
		StartupDelay:    a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting watch mode")
	err = sched.Run(ctx, func(ctx context.Context, at time.Time) error {
		if locker != nil && lockKey != 0 {
			unlock, acquired, err := locker.TryAdvisoryLock(ctx, lockKey)
			if err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !acquired {
				a.Logger.Debug().Time("tick", at).Msg("skip run; advisory lock held elsewhere")
				return nil
			}
			defer unlock()
		}

		if _, err := runner.RunOnce(ctx); err != nil {
			return err
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch terminated with error")
		return err
	}

	a.Logger.Info().Msg("watch stopped")
	return nil
}

func (a *App) newRunner(ctx context.Context, opts RunOptions) (*service.Runner, *storage.Store, func(), error) {
	src, err := a.newRowSource(ctx, opts.Tabs)
	if err != nil {
		return nil, nil, nil, err
	}

	audit, err := a.newAuditSink(ctx, opts.Tabs)
	if err != nil {
		return nil, nil, nil, err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	if store == nil {
		a.Logger.Debug().Msg("database.dsn not configured; run history disabled")
	}

	var runStore storage.RunStore
	if store != nil {
		runStore = store
	}

	runner := service.NewRunner(src, a.newNotifier(), audit, runStore, service.Options{
		DryRun:        opts.DryRun,
		NoEmail:       opts.NoEmail,
		NoSheetLog:    opts.NoSheetLog,
		SubjectPrefix: a.resolveSubjectPrefix(opts.SubjectPrefix),
		Verbose:       opts.Verbose,
	}, a.Logger)

	return runner, store, closeStore, nil
}

func (a *App) resolveSubjectPrefix(override string) string {
	if override != "" {
		return override
	}
	return a.Config.Alerting.SubjectPrefix
}
