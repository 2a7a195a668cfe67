// Database module defines the DB struct which wraps the per-table ledger
// interfaces for deposits, withdrawals, daily totals and scan checkpoints.
package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ethereum/go-ethereum/log"

	"github.com/lordbasilaiassistant-sudo/thryx-chain/common/retry"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/config"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/database/bridge"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/database/utils"
	_ "github.com/lordbasilaiassistant-sudo/thryx-chain/database/utils/serializers"
)

type DB struct {
	gorm *gorm.DB

	Deposits    bridge.DepositsDB
	Withdrawals bridge.WithdrawalsDB
	DailyTotals bridge.DailyTotalsDB
	Checkpoints bridge.CheckpointsDB
}

func NewDB(ctx context.Context, log log.Logger, dbConfig config.DBConfig) (*DB, error) {
	log = log.New("module", "db")

	dsn := fmt.Sprintf("host=%s dbname=%s sslmode=disable", dbConfig.Host, dbConfig.Name)
	if dbConfig.Port != 0 {
		dsn += fmt.Sprintf(" port=%d", dbConfig.Port)
	}
	if dbConfig.User != "" {
		dsn += fmt.Sprintf(" user=%s", dbConfig.User)
	}
	if dbConfig.Password != "" {
		dsn += fmt.Sprintf(" password=%s", dbConfig.Password)
	}

	gormConfig := gorm.Config{
		Logger:                 utils.NewLogger(log),
		SkipDefaultTransaction: true,
		CreateBatchSize:        3_000,
	}

	retryStrategy := retry.Exponential()
	gorm, err := retry.Do[*gorm.DB](ctx, 10, retryStrategy, func() (*gorm.DB, error) {
		gorm, err := gorm.Open(postgres.Open(dsn), &gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return gorm, nil
	})
	if err != nil {
		return nil, err
	}

	return NewDBWithGorm(gorm), nil
}

// NewDBWithGorm wires the per-table interfaces over an already-open gorm
// handle. Tests use this with an in-memory SQLite handle.
func NewDBWithGorm(gorm *gorm.DB) *DB {
	return &DB{
		gorm:        gorm,
		Deposits:    bridge.NewDepositsDB(gorm),
		Withdrawals: bridge.NewWithdrawalsDB(gorm),
		DailyTotals: bridge.NewDailyTotalsDB(gorm),
		Checkpoints: bridge.NewCheckpointsDB(gorm),
	}
}

// Transaction executes all operations conducted with the supplied database in a single
// transaction. If the supplied function errors, the transaction is rolled back.
func (db *DB) Transaction(fn func(db *DB) error) error {
	return db.gorm.Transaction(func(tx *gorm.DB) error {
		return fn(NewDBWithGorm(tx))
	})
}

func (db *DB) Close() error {
	sql, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sql.Close()
}

func (db *DB) ExecuteSQLMigration(migrationsFolder string) error {
	err := filepath.Walk(migrationsFolder, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("Failed to process migration file: %s", path))
		}
		if info.IsDir() {
			return nil
		}
		fileContent, readErr := os.ReadFile(path)
		if readErr != nil {
			return errors.Wrap(readErr, fmt.Sprintf("Error reading SQL file: %s", path))
		}

		execErr := db.gorm.Exec(string(fileContent)).Error
		if execErr != nil {
			return errors.Wrap(execErr, fmt.Sprintf("Error executing SQL script: %s", path))
		}
		return nil
	})
	return err
}
