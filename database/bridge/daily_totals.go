package bridge

import (
	"errors"
	"math/big"
	"time"

	"gorm.io/gorm"

	"github.com/ethereum/go-ethereum/common"
)

const (
	TotalKindDeposit int16 = iota
	TotalKindWithdrawal
)

// DayKey formats a calendar-day bucket key. Day keys are UTC so the rollover
// instant does not depend on the host timezone.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DailyTotal accumulates admitted amounts per (address, day, direction).
// Old day keys are never queried again after rollover.
type DailyTotal struct {
	Address common.Address `gorm:"column:address;serializer:bytes;primaryKey" json:"address"`
	Day     string         `gorm:"column:day;primaryKey" json:"day"`
	Kind    int16          `gorm:"column:kind;primaryKey" json:"kind"`
	Amount  *big.Int       `gorm:"column:amount;serializer:u256" json:"amount"`
}

func (DailyTotal) TableName() string {
	return "daily_totals"
}

// WithdrawalCooldown records the unix time of the last released withdrawal
// per recipient, for the cooldown rule.
type WithdrawalCooldown struct {
	Address        common.Address `gorm:"column:address;serializer:bytes;primaryKey"`
	LastWithdrawal uint64         `gorm:"column:last_withdrawal"`
}

func (WithdrawalCooldown) TableName() string {
	return "withdrawal_cooldowns"
}

type DailyTotalsDB interface {
	DailyTotalsView
	AddToDailyTotal(kind int16, address common.Address, day string, amount *big.Int) error
	SetLastWithdrawal(address common.Address, timestamp uint64) error
}

type DailyTotalsView interface {
	DailyTotal(kind int16, address common.Address, day string) (*big.Int, error)
	LastWithdrawal(address common.Address) (uint64, error)
}

type dailyTotalsDB struct {
	gorm *gorm.DB
}

func NewDailyTotalsDB(db *gorm.DB) DailyTotalsDB {
	return &dailyTotalsDB{gorm: db}
}

func (dt dailyTotalsDB) DailyTotal(kind int16, address common.Address, day string) (*big.Int, error) {
	var total DailyTotal
	result := dt.gorm.Where(&DailyTotal{Address: address, Day: day}).Where("kind = ?", kind).Take(&total)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return new(big.Int), nil
		}
		return nil, result.Error
	}
	return total.Amount, nil
}

func (dt dailyTotalsDB) AddToDailyTotal(kind int16, address common.Address, day string, amount *big.Int) error {
	var total DailyTotal
	result := dt.gorm.Where(&DailyTotal{Address: address, Day: day}).Where("kind = ?", kind).Take(&total)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}
		total = DailyTotal{Address: address, Day: day, Kind: kind, Amount: new(big.Int).Set(amount)}
		return dt.gorm.Create(&total).Error
	}
	total.Amount = new(big.Int).Add(total.Amount, amount)
	return dt.gorm.Save(&total).Error
}

func (dt dailyTotalsDB) LastWithdrawal(address common.Address) (uint64, error) {
	var cooldown WithdrawalCooldown
	result := dt.gorm.Where(&WithdrawalCooldown{Address: address}).Take(&cooldown)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, result.Error
	}
	return cooldown.LastWithdrawal, nil
}

func (dt dailyTotalsDB) SetLastWithdrawal(address common.Address, timestamp uint64) error {
	var cooldown WithdrawalCooldown
	result := dt.gorm.Where(&WithdrawalCooldown{Address: address}).Take(&cooldown)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}
		cooldown = WithdrawalCooldown{Address: address, LastWithdrawal: timestamp}
		return dt.gorm.Create(&cooldown).Error
	}
	cooldown.LastWithdrawal = timestamp
	return dt.gorm.Save(&cooldown).Error
}
