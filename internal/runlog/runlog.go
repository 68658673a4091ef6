// Package runlog records the outcome of every reminder trigger invocation.
package runlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Outcome classifies a trigger invocation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Entry is one line of the run log.
type Entry struct {
	Time     time.Time      `json:"time"`
	Trigger  string         `json:"trigger"`
	Outcome  Outcome        `json:"outcome"`
	Reason   string         `json:"reason,omitempty"`
	Window   *time.Time     `json:"window,omitempty"`
	Counts   map[string]int `json:"counts,omitempty"`
	Duration string         `json:"duration,omitempty"`
}

// Sink accepts run log entries.
type Sink interface {
	Append(Entry) error
}

// FileSink appends JSON lines to a file opened in append mode.
type FileSink struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// OpenFile opens (or creates) path for appending.
func OpenFile(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log %s: %w", path, err)
	}
	return &FileSink{w: f}, nil
}

// Append writes one line and syncs it when the writer is a file.
func (s *FileSink) Append(e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode run log entry: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(line); err != nil {
		return fmt.Errorf("write run log: %w", err)
	}
	if f, ok := s.w.(*os.File); ok {
		return f.Sync()
	}
	return nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Close()
}

// History keeps a bounded list of recent entries for the ops API.
type History struct {
	mu       sync.RWMutex
	capacity int
	entries  []Entry
}

// NewHistory constructs a history with the provided capacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 100
	}
	return &History{capacity: capacity}
}

// Append records an entry, dropping the oldest past capacity.
func (h *History) Append(e Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[len(h.entries)-h.capacity:]
	}
	return nil
}

// Recent returns the stored entries, newest first.
func (h *History) Recent() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Entry, len(h.entries))
	for i, e := range h.entries {
		out[len(h.entries)-1-i] = e
	}
	return out
}

// Tee fans an entry out to several sinks and returns the first error.
type Tee []Sink

// Append implements Sink.
func (t Tee) Append(e Entry) error {
	var first error
	for _, s := range t {
		if err := s.Append(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
