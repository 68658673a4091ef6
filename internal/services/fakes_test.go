package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"classreminder/internal/models"
	"classreminder/internal/runlog"
)

var discardLogger = log.New(io.Discard, "", 0)

type fakeOccurrences struct {
	mu          sync.Mutex
	byDay       map[string][]models.ClassOccurrence // key: day + " " + start
	students    map[uint][]models.Student
	occErr      error
	studentsErr error
	queries     []string
}

func newFakeOccurrences() *fakeOccurrences {
	return &fakeOccurrences{
		byDay:    make(map[string][]models.ClassOccurrence),
		students: make(map[uint][]models.Student),
	}
}

func (f *fakeOccurrences) add(occ models.ClassOccurrence, students ...models.Student) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := occ.Day + " " + occ.StartTime
	f.byDay[key] = append(f.byDay[key], occ)
	if occ.BatchID != nil {
		f.students[*occ.BatchID] = append(f.students[*occ.BatchID], students...)
	}
}

func (f *fakeOccurrences) DueOccurrences(_ context.Context, weekday, date, startTime string) ([]models.ClassOccurrence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, fmt.Sprintf("%s|%s|%s", weekday, date, startTime))
	if f.occErr != nil {
		return nil, f.occErr
	}
	var out []models.ClassOccurrence
	out = append(out, f.byDay[weekday+" "+startTime]...)
	out = append(out, f.byDay[date+" "+startTime]...)
	return out, nil
}

func (f *fakeOccurrences) EnrolledStudents(_ context.Context, batchID uint) ([]models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.studentsErr != nil {
		return nil, f.studentsErr
	}
	return f.students[batchID], nil
}

type ledgerKey struct {
	occ, student uint
	window       time.Time
}

// memLedger implements ReminderLedger with an atomic check-and-set under a mutex.
type memLedger struct {
	mu        sync.Mutex
	records   map[ledgerKey]time.Time
	createErr error
}

func newMemLedger() *memLedger {
	return &memLedger{records: make(map[ledgerKey]time.Time)}
}

func (l *memLedger) Exists(_ context.Context, occ, student uint, window time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.records[ledgerKey{occ, student, window.UTC()}]
	return ok, nil
}

func (l *memLedger) CreateIfAbsent(_ context.Context, occ, student uint, window time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.createErr != nil {
		return false, l.createErr
	}
	key := ledgerKey{occ, student, window.UTC()}
	if _, ok := l.records[key]; ok {
		return false, nil
	}
	l.records[key] = time.Now()
	return true, nil
}

func (l *memLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

type fakeQueue struct {
	mu       sync.Mutex
	messages []ReminderMessage
	failFor  map[string]bool
}

func (q *fakeQueue) Enqueue(_ context.Context, msg ReminderMessage, channel Channel) (Receipt, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failFor[msg.RecipientEmail] {
		return Receipt{}, &DeliveryError{Recipient: msg.RecipientEmail, Err: errors.New("queue unavailable")}
	}
	q.messages = append(q.messages, msg)
	return Receipt{ID: fmt.Sprintf("m-%d", len(q.messages)), Channel: channel, AcceptedAt: time.Now()}, nil
}

func (q *fakeQueue) sent() []ReminderMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]ReminderMessage, len(q.messages))
	copy(out, q.messages)
	return out
}

type memorySink struct {
	mu      sync.Mutex
	entries []runlog.Entry
}

func (s *memorySink) Append(e runlog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *memorySink) all() []runlog.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]runlog.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
