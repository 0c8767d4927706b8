package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Queries slower than this are logged at warn level.
const slowQueryThreshold = time.Second

// Stored playlists are inserted as blobs, so logged SQL is cut short.
const maxSQLLogLength = 200

// gormLogLevel maps configured level names to GORM logger levels.
func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// gormSlog adapts GORM's logger.Interface to slog. Statement traces go to
// debug, slow statements to warn and failures to error.
type gormSlog struct {
	logger *slog.Logger
	level  logger.LogLevel
}

func newGormLogger(level string, log *slog.Logger) *gormSlog {
	return &gormSlog{logger: log.With(slog.String("component", "gorm")), level: gormLogLevel(level)}
}

func (l *gormSlog) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormSlog) Info(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, logger.Info, slog.LevelInfo, msg, args)
}

func (l *gormSlog) Warn(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, logger.Warn, slog.LevelWarn, msg, args)
}

func (l *gormSlog) Error(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, logger.Error, slog.LevelError, msg, args)
}

func (l *gormSlog) printf(ctx context.Context, min logger.LogLevel, level slog.Level, msg string, args []any) {
	if l.level >= min {
		l.logger.Log(ctx, level, fmt.Sprintf(msg, args...))
	}
}

func truncateSQL(sql string) string {
	if len(sql) <= maxSQLLogLength {
		return sql
	}
	return sql[:maxSQLLogLength] + "... (truncated)"
}

// Trace logs a finished statement. fc interpolates values into the SQL, so
// it only runs once a record will actually be emitted.
func (l *gormSlog) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var (
		level slog.Level
		msg   string
	)
	switch {
	// Not-found is the normal outcome for an unknown fix id.
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		level, msg = slog.LevelError, "database error"
	case elapsed > slowQueryThreshold && l.level >= logger.Warn:
		level, msg = slog.LevelWarn, "slow query"
	case l.level >= logger.Info:
		level, msg = slog.LevelDebug, "database query"
	default:
		return
	}
	if !l.logger.Enabled(ctx, level) {
		return
	}

	sqlStr, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", truncateSQL(sqlStr)),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}
	if level == slog.LevelError {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.logger.LogAttrs(ctx, level, msg, attrs...)
}
