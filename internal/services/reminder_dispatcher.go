package services

import (
	"context"
	"log"
	"sync"
	"time"

	"classreminder/internal/models"

	"golang.org/x/sync/errgroup"
)

// OccurrenceSource finds due class occurrences and their students
type OccurrenceSource interface {
	DueOccurrences(ctx context.Context, weekday, date, startTime string) ([]models.ClassOccurrence, error)
	EnrolledStudents(ctx context.Context, batchID uint) ([]models.Student, error)
}

// ReminderLedger records which reminders were already sent
type ReminderLedger interface {
	Exists(ctx context.Context, occurrenceID, studentID uint, window time.Time) (bool, error)
	CreateIfAbsent(ctx context.Context, occurrenceID, studentID uint, window time.Time) (bool, error)
}

// DispatcherConfig controls which window is targeted and how pairs are fanned out
type DispatcherConfig struct {
	Location    *time.Location
	Lead        time.Duration
	Concurrency int
	Channel     Channel
}

// RunStats summarises one dispatcher run
type RunStats struct {
	Window         time.Time
	Occurrences    int
	Pairs          int
	Sent           int
	Skipped        int
	Invalid        int
	DeliveryFailed int
	StoreFailed    int
	Duplicates     int
}

// Counts returns the stats as a flat map for logging
func (s RunStats) Counts() map[string]int {
	return map[string]int{
		"occurrences":     s.Occurrences,
		"pairs":           s.Pairs,
		"sent":            s.Sent,
		"skipped":         s.Skipped,
		"invalid":         s.Invalid,
		"delivery_failed": s.DeliveryFailed,
		"store_failed":    s.StoreFailed,
		"duplicates":      s.Duplicates,
	}
}

// Dispatcher sends one reminder per enrolled student for every class
// starting a lead time from now.
type Dispatcher struct {
	occurrences OccurrenceSource
	reminders   ReminderLedger
	queue       MailQueue
	links       JoinLinkResolver
	cfg         DispatcherConfig
	logger      *log.Logger
	metrics     *Metrics
	now         func() time.Time
}

// NewDispatcher creates a Dispatcher. Zero config values get defaults:
// UTC, a 30 minute lead, concurrency 1 and the email channel.
func NewDispatcher(occurrences OccurrenceSource, reminders ReminderLedger, queue MailQueue, cfg DispatcherConfig, logger *log.Logger) *Dispatcher {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Lead <= 0 {
		cfg.Lead = 30 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Channel == "" {
		cfg.Channel = ChannelEmail
	}
	return &Dispatcher{
		occurrences: occurrences,
		reminders:   reminders,
		queue:       queue,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// WithJoinLinks enables join link lookup for occurrences without a stored link
func (d *Dispatcher) WithJoinLinks(links JoinLinkResolver) *Dispatcher {
	d.links = links
	return d
}

// WithMetrics attaches Prometheus collectors
func (d *Dispatcher) WithMetrics(m *Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// TargetWindow is the minute a reminder run is looking for: now plus the lead,
// in the display timezone, rounded to the nearest minute so a tick that fires
// a few seconds early or late still lands on the intended minute.
func TargetWindow(now time.Time, loc *time.Location, lead time.Duration) time.Time {
	return now.In(loc).Add(lead).Round(time.Minute)
}

// slotKey is the dedupe key for a window: its wall-clock date and minute in
// the display timezone, stored as UTC. A local slot that occurs twice when
// clocks go back maps to one key.
func slotKey(window time.Time) time.Time {
	return time.Date(window.Year(), window.Month(), window.Day(), window.Hour(), window.Minute(), 0, 0, time.UTC)
}

// Run dispatches reminders for the window derived from the current time
func (d *Dispatcher) Run(ctx context.Context) (RunStats, error) {
	return d.RunAt(ctx, d.now())
}

type reminderPair struct {
	occurrence models.ClassOccurrence
	student    models.Student
}

// RunAt dispatches reminders for the window derived from now.
//
// A store failure while loading occurrences or students aborts the run
// before anything is sent. Per-student failures are counted and leave that
// student unrecorded so a later run can retry.
func (d *Dispatcher) RunAt(ctx context.Context, now time.Time) (RunStats, error) {
	window := TargetWindow(now, d.cfg.Location, d.cfg.Lead)
	stats := RunStats{Window: window}

	occurrences, err := d.occurrences.DueOccurrences(ctx,
		window.Weekday().String(), window.Format(models.DateLayout), window.Format(models.ClockLayout))
	if err != nil {
		return stats, &StoreError{Op: "fetch occurrences", Err: err}
	}
	stats.Occurrences = len(occurrences)
	if len(occurrences) == 0 {
		return stats, nil
	}

	var pairs []reminderPair
	for _, occ := range occurrences {
		if occ.BatchID == nil {
			stats.Invalid++
			d.logger.Printf("Skipping occurrence %d: no batch to load students from", occ.ID)
			continue
		}
		students, err := d.occurrences.EnrolledStudents(ctx, *occ.BatchID)
		if err != nil {
			return stats, &StoreError{Op: "fetch students", Err: err}
		}
		occ = d.withJoinLink(ctx, occ)
		for _, student := range students {
			pairs = append(pairs, reminderPair{occurrence: occ, student: student})
		}
	}
	stats.Pairs = len(pairs)

	key := slotKey(window)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for _, p := range pairs {
		p := p
		g.Go(func() error {
			result := d.dispatchPair(gctx, p, key)
			mu.Lock()
			defer mu.Unlock()
			result.apply(&stats)
			return nil
		})
	}
	_ = g.Wait()

	d.metrics.observeStats(stats)
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (d *Dispatcher) withJoinLink(ctx context.Context, occ models.ClassOccurrence) models.ClassOccurrence {
	if d.links == nil || occ.JoinURL != "" || occ.ZoomMeetingID == "" {
		return occ
	}
	link, err := d.links.JoinURL(ctx, occ.ZoomMeetingID)
	if err != nil {
		d.logger.Printf("Failed to resolve join link for occurrence %d: %v", occ.ID, err)
		return occ
	}
	occ.JoinURL = link
	return occ
}

type pairResult int

const (
	pairCancelled pairResult = iota
	pairSent
	pairSkipped
	pairInvalid
	pairDeliveryFailed
	pairStoreFailed
	pairSentUnrecorded
	pairDuplicate
)

func (r pairResult) apply(s *RunStats) {
	switch r {
	case pairSent:
		s.Sent++
	case pairSkipped:
		s.Skipped++
	case pairInvalid:
		s.Invalid++
	case pairDeliveryFailed:
		s.DeliveryFailed++
	case pairStoreFailed:
		s.StoreFailed++
	case pairSentUnrecorded:
		s.Sent++
		s.StoreFailed++
	case pairDuplicate:
		s.Sent++
		s.Duplicates++
	}
}

func (d *Dispatcher) dispatchPair(ctx context.Context, p reminderPair, window time.Time) pairResult {
	if ctx.Err() != nil {
		return pairCancelled
	}
	occID, studentID := p.occurrence.ID, p.student.ID

	exists, err := d.reminders.Exists(ctx, occID, studentID, window)
	if err != nil {
		d.logger.Printf("Failed to check reminder for occurrence %d student %d: %v", occID, studentID, err)
		return pairStoreFailed
	}
	if exists {
		return pairSkipped
	}

	msg, err := RenderReminder(p.occurrence, p.student)
	if err != nil {
		d.logger.Printf("Skipping reminder for occurrence %d student %d: %v", occID, studentID, err)
		return pairInvalid
	}

	receipt, err := d.queue.Enqueue(ctx, msg, d.cfg.Channel)
	if err != nil {
		d.logger.Printf("Failed to enqueue reminder for occurrence %d student %d: %v", occID, studentID, err)
		return pairDeliveryFailed
	}

	created, err := d.reminders.CreateIfAbsent(ctx, occID, studentID, window)
	if err != nil {
		// The message is already queued; the next pass for this window may send it again.
		d.logger.Printf("Enqueued reminder %s for occurrence %d student %d but failed to record it: %v",
			receipt.ID, occID, studentID, err)
		return pairSentUnrecorded
	}
	if !created {
		d.logger.Printf("Reminder for occurrence %d student %d was recorded by another writer; message %s may be a duplicate",
			occID, studentID, receipt.ID)
		return pairDuplicate
	}
	return pairSent
}
