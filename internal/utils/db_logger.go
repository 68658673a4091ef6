package utils

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"gorm.io/gorm/logger"
)

// CustomGormLogger wraps a gorm logger and drops the SQL trace of polling
// queries. Slow or failing polling queries are still logged.
type CustomGormLogger struct {
	logger.Interface
	ignoredQueryPatterns []string
	slowThreshold        time.Duration
	suppressed           *atomic.Int64
}

// NewCustomGormLogger creates a logger that hides queries containing any of the patterns
func NewCustomGormLogger(l logger.Interface, ignoredPatterns ...string) *CustomGormLogger {
	return &CustomGormLogger{
		Interface:            l,
		ignoredQueryPatterns: ignoredPatterns,
		slowThreshold:        time.Second,
		suppressed:           new(atomic.Int64),
	}
}

// LogMode implements logger.Interface
func (l *CustomGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &CustomGormLogger{
		Interface:            l.Interface.LogMode(level),
		ignoredQueryPatterns: l.ignoredQueryPatterns,
		slowThreshold:        l.slowThreshold,
		suppressed:           l.suppressed,
	}
}

// Suppressed returns how many traces were dropped so far
func (l *CustomGormLogger) Suppressed() int64 {
	return l.suppressed.Load()
}

// Trace implements logger.Interface
func (l *CustomGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	sql, rows := fc()

	if err == nil && time.Since(begin) < l.slowThreshold && l.ignored(sql) {
		l.suppressed.Add(1)
		return
	}

	callerInfo := findCaller()
	l.Interface.Trace(ctx, begin, func() (string, int64) {
		if callerInfo != "" {
			return fmt.Sprintf("[Caller: %s] %s", callerInfo, sql), rows
		}
		return sql, rows
	}, err)
}

func (l *CustomGormLogger) ignored(sql string) bool {
	for _, pattern := range l.ignoredQueryPatterns {
		if strings.Contains(sql, pattern) {
			return true
		}
	}
	return false
}

// findCaller returns the first frame outside gorm and the database package
func findCaller() string {
	for i := 3; i < 15; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(file, "gorm.io") || strings.Contains(file, "internal/utils/") {
			continue
		}

		if fn := runtime.FuncForPC(pc); fn != nil {
			name := fn.Name()
			if idx := strings.LastIndexByte(name, '/'); idx != -1 {
				name = name[idx+1:]
			}
			return fmt.Sprintf("%s() at %s:%d", name, file, line)
		}
		return fmt.Sprintf("%s:%d", file, line)
	}
	return ""
}
