package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// BatchFunc writes one batch. n counts batches from 1.
type BatchFunc func(ctx context.Context, n int) error

// Runner runs batches on the configured schedule until the context is
// canceled, a batch fails, or MaxBatches batches have run.
type Runner struct {
	Params *Parameters
	Logger *slog.Logger
	// MaxBatches stops the run after that many batches. Zero runs until canceled.
	MaxBatches int
}

// Spec returns the cron spec of the run.
func (r *Runner) Spec() string {
	if r.Params.Schedule != "" {
		return r.Params.Schedule
	}
	return fmt.Sprintf("@every %ds", r.Params.BatchInterval)
}

// Run executes the first batch immediately and the following ones on
// schedule. Batches never overlap; a tick that fires while a batch is still
// running is skipped. Cancellation of ctx is a normal stop and returns nil.
func (r *Runner) Run(ctx context.Context, fn BatchFunc) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	sched, err := cron.ParseStandard(r.Spec())
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", r.Spec(), err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu     sync.Mutex
		count  int
		runErr error
	)
	batch := func() {
		mu.Lock()
		if runCtx.Err() != nil || (r.MaxBatches > 0 && count >= r.MaxBatches) {
			mu.Unlock()
			return
		}
		count++
		n := count
		mu.Unlock()

		logger.Debug("simulation batch", "batch", n)
		if err := fn(runCtx, n); err != nil {
			mu.Lock()
			if runErr == nil {
				runErr = fmt.Errorf("batch %d: %w", n, err)
			}
			mu.Unlock()
			cancel()
			return
		}
		if r.MaxBatches > 0 && n >= r.MaxBatches {
			cancel()
		}
	}

	cronLogger := slogCronLogger{logger}
	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger)).Then(cron.FuncJob(batch))

	c := cron.New(cron.WithLogger(cronLogger))
	c.Schedule(sched, job)

	var first sync.WaitGroup
	first.Add(1)
	go func() {
		defer first.Done()
		job.Run()
	}()

	c.Start()
	logger.Info("simulation started", "schedule", r.Spec())

	<-runCtx.Done()
	<-c.Stop().Done()
	first.Wait()

	mu.Lock()
	defer mu.Unlock()
	logger.Info("simulation stopped", "batches", count)
	return runErr
}

// slogCronLogger adapts slog to cron.Logger.
type slogCronLogger struct {
	logger *slog.Logger
}

func (l slogCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l slogCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
