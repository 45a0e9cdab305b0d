package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tellowai/admin-api-sub001/pkg/logger"
)

const maxLoggedSQL = 512

// gormLogger forwards GORM traces to the service logger so slow ledger
// queries carry the request and generation fields already on ctx.
type gormLogger struct {
	logg      *logger.Logger
	slow      time.Duration
	threshold gormlogger.LogLevel
}

func newGormLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return &gormLogger{logg: logg, slow: slow, threshold: gormlogger.Warn}
}

func (g *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *g
	clone.threshold = level
	return &clone
}

func (g *gormLogger) Info(ctx context.Context, msg string, args ...any) {
	if g.threshold >= gormlogger.Info {
		g.logg.Debug(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g *gormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if g.threshold >= gormlogger.Warn {
		g.logg.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (g *gormLogger) Error(ctx context.Context, msg string, args ...any) {
	if g.threshold >= gormlogger.Error {
		g.logg.Error(ctx, "gorm error", fmt.Errorf(msg, args...))
	}
}

// Trace reports slow statements. Statement errors are returned to and logged
// by callers, so they are only traced at debug.
func (g *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.threshold <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	slow := g.slow > 0 && elapsed > g.slow
	if !slow && (err == nil || errors.Is(err, gorm.ErrRecordNotFound)) {
		return
	}

	statement, rows := fc()
	if len(statement) > maxLoggedSQL {
		statement = statement[:maxLoggedSQL] + "..."
	}
	ctx = g.logg.WithFields(ctx, map[string]any{
		"sql":        statement,
		"rows":       rows,
		"elapsed_ms": elapsed.Milliseconds(),
	})
	if slow {
		g.logg.Warn(ctx, "db.slow_query")
		return
	}
	g.logg.Debug(g.logg.WithField(ctx, "error", err.Error()), "db.query_failed")
}
