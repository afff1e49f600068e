package pool

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lmittmann/tint"
	"github.com/pitabwire/util"
	glogger "gorm.io/gorm/logger"

	"github.com/pitabwire/modeltranslation/config"
	"github.com/pitabwire/modeltranslation/data"
)

const (
	tintAttrCodeDuration = 214
	tintAttrCodeRows     = 12
	tintAttrCodeQuery    = 2
)

func datastoreLogger(ctx context.Context, cfg config.ConfigurationDatabaseTracing) glogger.Interface {
	l := &queryLogger{
		slowThreshold: config.DefaultSlowQueryThreshold,
		baseLogger:    util.Log(ctx).WithField("component", "datastore"),
	}

	if cfg != nil {
		l.slowThreshold = cfg.GetDatabaseSlowQueryLogThreshold()
		l.logQueries = cfg.CanDatabaseTraceQueries()
	}
	return l
}

// queryLogger routes gorm output to the structured logger. Errors are always logged, slow
// queries at warn, every query when tracing is on or the logger runs at debug.
type queryLogger struct {
	baseLogger    *util.LogEntry
	logQueries    bool
	slowThreshold time.Duration
}

func (l *queryLogger) LogMode(_ glogger.LogLevel) glogger.Interface {
	return l
}

func (l *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	l.baseLogger.WithContext(ctx).Info(msg, args...)
}

func (l *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.baseLogger.WithContext(ctx).Warn(msg, args...)
}

func (l *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	l.baseLogger.WithContext(ctx).Error(msg, args...)
}

func (l *queryLogger) isSlow(elapsed time.Duration) bool {
	return l.slowThreshold != 0 && elapsed > l.slowThreshold
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	log := l.baseLogger.WithContext(ctx)

	slow := l.isSlow(elapsed)
	failed := err != nil && !data.ErrorIsNoRows(err)
	debug := log.Enabled(ctx, slog.LevelDebug)

	var level slog.Level
	switch {
	case failed:
		level = slog.LevelError
	case debug:
		level = slog.LevelDebug
	case l.logQueries && log.Enabled(ctx, slog.LevelInfo):
		level = slog.LevelInfo
	case slow && log.Enabled(ctx, slog.LevelWarn):
		level = slog.LevelWarn
	default:
		return
	}

	sql, rows := fc()
	entry := log.With(
		tint.Attr(tintAttrCodeDuration, slog.Any("duration", elapsed.String())),
		tint.Attr(tintAttrCodeRows, slog.Any("rows", strconv.FormatInt(rows, 10))),
		tint.Attr(tintAttrCodeQuery, slog.Any("query", sql)),
	)
	defer entry.Release()

	if slow {
		entry = entry.WithField("slow_query", fmt.Sprintf(">= %v", l.slowThreshold))
	}

	switch level {
	case slog.LevelError:
		entry.WithError(err).Error("query failed")
	case slog.LevelWarn:
		entry.Warn("query is slow")
	case slog.LevelInfo:
		entry.Info("query executed")
	default:
		entry.Debug("query executed")
	}
}
