package bridge

import (
	"errors"

	"gorm.io/gorm"
)

// ScanCheckpoint holds the last fully-scanned Base block number per scan
// source. The watcher advances it only after every transaction in the batch
// has a terminal decision, so a crash mid-batch re-scans rather than skips.
type ScanCheckpoint struct {
	Name        string `gorm:"column:name;primaryKey"`
	BlockNumber uint64 `gorm:"column:block_number"`
	Timestamp   uint64 `gorm:"column:timestamp"`
}

func (ScanCheckpoint) TableName() string {
	return "scan_checkpoints"
}

type CheckpointsDB interface {
	CheckpointsView
	SetCheckpoint(name string, blockNumber uint64, timestamp uint64) error
}

type CheckpointsView interface {
	GetCheckpoint(name string) (uint64, error)
}

type checkpointsDB struct {
	gorm *gorm.DB
}

func NewCheckpointsDB(db *gorm.DB) CheckpointsDB {
	return &checkpointsDB{gorm: db}
}

// GetCheckpoint returns 0 when no checkpoint has been stored yet; the
// watcher treats that as "first start" and applies its lookback window.
func (c checkpointsDB) GetCheckpoint(name string) (uint64, error) {
	var checkpoint ScanCheckpoint
	result := c.gorm.Where("name = ?", name).Take(&checkpoint)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, result.Error
	}
	return checkpoint.BlockNumber, nil
}

func (c checkpointsDB) SetCheckpoint(name string, blockNumber uint64, timestamp uint64) error {
	var checkpoint ScanCheckpoint
	result := c.gorm.Where("name = ?", name).Take(&checkpoint)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}
		checkpoint = ScanCheckpoint{Name: name, BlockNumber: blockNumber, Timestamp: timestamp}
		return c.gorm.Create(&checkpoint).Error
	}
	checkpoint.BlockNumber = blockNumber
	checkpoint.Timestamp = timestamp
	return c.gorm.Save(&checkpoint).Error
}
