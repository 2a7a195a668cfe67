package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"gorm.io/gorm/logger"
)

var (
	_ logger.Interface = Logger{}

	SlowThresholdMilliseconds int64 = 500
)

type Logger struct {
	log log.Logger
}

func NewLogger(log log.Logger) Logger {
	return Logger{log.New("module", "db")}
}

func (l Logger) LogMode(lvl logger.LogLevel) logger.Interface {
	return l
}

func (l Logger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.log.Info(fmt.Sprintf(msg, data...))
}

func (l Logger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.log.Warn(fmt.Sprintf(msg, data...))
}

func (l Logger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.log.Error(fmt.Sprintf(msg, data...))
}

func (l Logger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsedMs := time.Since(begin).Milliseconds()

	// omit any values for batch insertion
	sql, rows := fc()
	if rows == -1 {
		l.log.Debug("database operation", "duration_ms", elapsedMs, "sql", sql)
	} else {
		l.log.Debug("database operation", "duration_ms", elapsedMs, "rows_affected", rows, "sql", sql)
	}

	if elapsedMs > SlowThresholdMilliseconds {
		l.log.Warn("database operation... SLOW!", "duration_ms", elapsedMs, "sql", sql)
	}
}
