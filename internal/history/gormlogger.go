package history

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm/logger"

	"checkin/internal/logging"
)

// slowQuery is the threshold above which a statement is logged as slow.
const slowQuery = time.Second

// gormLogger routes GORM's output through logging.Logger.
type gormLogger struct {
	log   logging.Logger
	level logger.LogLevel
}

func newGormLogger(l logging.Logger) *gormLogger {
	return &gormLogger{log: l, level: logger.Warn}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		l.log.Info(msg, "data", data)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		l.log.Warn(msg, "data", data)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		l.log.Error(msg, "data", data)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []any{
		"sql", sql,
		"rows", rows,
		"timeMs", float64(elapsed.Nanoseconds()) / 1e6,
	}

	switch {
	case err != nil && !errors.Is(err, logger.ErrRecordNotFound) && l.level >= logger.Error:
		l.log.Error("sql failed", append(fields, "error", err)...)
	case elapsed > slowQuery && l.level >= logger.Warn:
		l.log.Warn("slow sql", append(fields, "threshold", slowQuery)...)
	case l.level == logger.Info:
		l.log.Debug("sql", fields...)
	}
}
