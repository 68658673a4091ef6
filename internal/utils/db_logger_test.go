package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

type recordingLogger struct {
	logger.Interface
	traced []string
}

func (r *recordingLogger) LogMode(logger.LogLevel) logger.Interface { return r }

func (r *recordingLogger) Trace(_ context.Context, _ time.Time, fc func() (string, int64), _ error) {
	sql, _ := fc()
	r.traced = append(r.traced, sql)
}

func TestCustomGormLoggerFiltersPolling(t *testing.T) {
	rec := &recordingLogger{}
	l := NewCustomGormLogger(rec, `FROM "class_occurrence"`)

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `SELECT * FROM "class_occurrence" WHERE start_time = '10:00'`, 0
	}, nil)
	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `INSERT INTO "reminder_record" VALUES (1)`, 1
	}, nil)

	assert.Len(t, rec.traced, 1)
	assert.Contains(t, rec.traced[0], "reminder_record")
	assert.Equal(t, int64(1), l.Suppressed())
}

func TestCustomGormLoggerKeepsFailingPolling(t *testing.T) {
	rec := &recordingLogger{}
	l := NewCustomGormLogger(rec, `FROM "class_occurrence"`)

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `SELECT * FROM "class_occurrence"`, 0
	}, errors.New("connection reset"))
	l.Trace(context.Background(), time.Now().Add(-2*time.Second), func() (string, int64) {
		return `SELECT * FROM "class_occurrence"`, 0
	}, nil)

	assert.Len(t, rec.traced, 2)
	assert.Equal(t, int64(0), l.Suppressed())
}

func TestLogModeSharesCounter(t *testing.T) {
	rec := &recordingLogger{}
	l := NewCustomGormLogger(rec, "poll")
	quiet := l.LogMode(logger.Silent).(*CustomGormLogger)

	quiet.Trace(context.Background(), time.Now(), func() (string, int64) { return "poll", 0 }, nil)
	assert.Equal(t, int64(1), l.Suppressed())
}
