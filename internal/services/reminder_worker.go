package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"classreminder/internal/runlog"

	"github.com/robfig/cron/v3"
)

// Trigger names recorded in the run log
const (
	TriggerCron   = "cron"
	TriggerManual = "manual"
)

// Runner is one reminder pass
type Runner interface {
	Run(ctx context.Context) (RunStats, error)
}

// Purger deletes reminder records whose window has elapsed
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// WorkerConfig controls the worker's cron entries
type WorkerConfig struct {
	// Schedule is the dispatcher cron expression, "* * * * *" by default.
	Schedule      string
	PurgeSchedule string
	Retention     time.Duration
	Location      *time.Location
}

// ReminderWorker fires the dispatcher on a cron schedule. The overlap guard
// drops a tick while the previous run is still going; the running pass is
// never interrupted.
type ReminderWorker struct {
	runner  Runner
	guard   *OverlapGuard
	sink    runlog.Sink
	purger  Purger
	cfg     WorkerConfig
	logger  *log.Logger
	metrics *Metrics

	mu      sync.Mutex
	cron    *cron.Cron
	baseCtx context.Context
	async   sync.WaitGroup
	now     func() time.Time
}

// NewReminderWorker creates a worker writing one run-log entry per tick to sink
func NewReminderWorker(runner Runner, sink runlog.Sink, cfg WorkerConfig, logger *log.Logger) *ReminderWorker {
	if cfg.Schedule == "" {
		cfg.Schedule = "* * * * *"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 48 * time.Hour
	}
	return &ReminderWorker{
		runner:  runner,
		guard:   &OverlapGuard{},
		sink:    sink,
		cfg:     cfg,
		logger:  logger,
		baseCtx: context.Background(),
		now:     time.Now,
	}
}

// WithPurger enables the record garbage-collection entry
func (w *ReminderWorker) WithPurger(p Purger) *ReminderWorker {
	w.purger = p
	return w
}

// WithMetrics attaches Prometheus collectors
func (w *ReminderWorker) WithMetrics(m *Metrics) *ReminderWorker {
	w.metrics = m
	return w
}

// Guard exposes the overlap guard for status reporting
func (w *ReminderWorker) Guard() *OverlapGuard {
	return w.guard
}

// Start registers the cron entries and starts the scheduler
func (w *ReminderWorker) Start(ctx context.Context) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(w.cfg.Location),
		cron.WithChain(cron.Recover(cron.PrintfLogger(w.logger))),
	)

	if _, err := c.AddFunc(w.cfg.Schedule, func() { w.Tick(ctx, TriggerCron) }); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", w.cfg.Schedule, err)
	}
	if w.purger != nil && w.cfg.PurgeSchedule != "" {
		if _, err := c.AddFunc(w.cfg.PurgeSchedule, func() { w.Purge(ctx) }); err != nil {
			return fmt.Errorf("invalid purge schedule %q: %w", w.cfg.PurgeSchedule, err)
		}
	}

	w.mu.Lock()
	w.cron = c
	w.baseCtx = ctx
	w.mu.Unlock()

	c.Start()
	w.logger.Printf("Reminder worker started (schedule=%s, tz=%s)", w.cfg.Schedule, w.cfg.Location)
	return nil
}

// Stop stops scheduling and waits for in-flight runs to finish
func (w *ReminderWorker) Stop() {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	w.async.Wait()
	w.logger.Println("Reminder worker stopped")
}

// Tick runs the dispatcher once unless a run is already in flight.
// It reports whether the dispatcher was invoked.
func (w *ReminderWorker) Tick(ctx context.Context, trigger string) bool {
	if !w.acquire(trigger) {
		return false
	}
	w.runAcquired(ctx, trigger)
	return true
}

// TriggerAsync is Tick for callers that cannot wait, such as HTTP handlers.
// The guard is taken before returning; the run itself uses the worker's context.
func (w *ReminderWorker) TriggerAsync(trigger string) bool {
	if !w.acquire(trigger) {
		return false
	}
	w.mu.Lock()
	ctx := w.baseCtx
	w.mu.Unlock()

	w.async.Add(1)
	go func() {
		defer w.async.Done()
		w.runAcquired(ctx, trigger)
	}()
	return true
}

func (w *ReminderWorker) acquire(trigger string) bool {
	if w.guard.TryAcquire() {
		return true
	}
	w.logger.Printf("Skipped %s reminder run: previous run still in progress", trigger)
	w.record(runlog.Entry{Trigger: trigger, Outcome: runlog.OutcomeSkipped, Reason: "overlap"})
	w.metrics.observeRun(string(runlog.OutcomeSkipped), 0)
	return false
}

func (w *ReminderWorker) runAcquired(ctx context.Context, trigger string) {
	defer w.guard.Release()

	start := w.now()
	var (
		stats RunStats
		err   error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		stats, err = w.runner.Run(ctx)
	}()
	elapsed := w.now().Sub(start)

	entry := runlog.Entry{
		Trigger:  trigger,
		Counts:   stats.Counts(),
		Duration: elapsed.Round(time.Millisecond).String(),
	}
	if !stats.Window.IsZero() {
		window := stats.Window
		entry.Window = &window
	}

	if err != nil {
		entry.Outcome = runlog.OutcomeFailed
		entry.Reason = err.Error()
		var storeErr *StoreError
		if errors.As(err, &storeErr) {
			w.logger.Printf("Reminder run aborted (%s): %v", storeErr.Op, storeErr.Err)
		} else {
			w.logger.Printf("Reminder run failed: %v", err)
		}
	} else {
		entry.Outcome = runlog.OutcomeSuccess
		if stats.Pairs > 0 {
			w.logger.Printf("Sent %d class reminders for %s (%d skipped, %d failed)",
				stats.Sent, stats.Window.Format("Mon 15:04"), stats.Skipped,
				stats.Invalid+stats.DeliveryFailed+stats.StoreFailed)
		}
	}
	w.record(entry)
	w.metrics.observeRun(string(entry.Outcome), elapsed)
}

func (w *ReminderWorker) record(e runlog.Entry) {
	if e.Time.IsZero() {
		e.Time = w.now().UTC()
	}
	if err := w.sink.Append(e); err != nil {
		w.logger.Printf("Failed to append run log entry: %v", err)
	}
}

// Purge deletes reminder records older than the retention period
func (w *ReminderWorker) Purge(ctx context.Context) {
	if w.purger == nil {
		return
	}
	cutoff := w.now().Add(-w.cfg.Retention)
	n, err := w.purger.PurgeBefore(ctx, cutoff)
	if err != nil {
		w.logger.Printf("Failed to purge reminder records: %v", err)
		return
	}
	w.metrics.observePurge(n)
	if n > 0 {
		w.logger.Printf("Purged %d reminder records older than %s", n, cutoff.UTC().Format(time.RFC3339))
	}
}
