package bridge

import (
	"errors"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

const (
	WithdrawalBurnPending int16 = iota
	WithdrawalBurnConfirmed
	WithdrawalQueuedForDelay
	WithdrawalReleased
	WithdrawalBurnFailed
	WithdrawalManualRecovery
	WithdrawalReleaseSubmitted
)

// Withdrawal tracks the burn-then-release protocol for a single request.
// The release hash may only ever be set on a record whose burn hash is
// confirmed; WithdrawalManualRecovery is terminal and is never retried by
// the processor.
type Withdrawal struct {
	GUID          uuid.UUID      `gorm:"primaryKey" json:"guid"`
	Recipient     common.Address `gorm:"column:recipient;serializer:bytes" json:"recipient"`
	Amount        *big.Int       `gorm:"column:amount;serializer:u256" json:"amount"`
	BurnTxHash    common.Hash    `gorm:"column:burn_tx_hash;serializer:bytes" json:"burnTxHash"`
	ReleaseTxHash common.Hash    `gorm:"column:release_tx_hash;serializer:bytes" json:"releaseTxHash"`
	Status        int16          `gorm:"column:status" json:"status"`
	Timestamp     uint64         `gorm:"column:timestamp" json:"timestamp"`
	ReleaseAfter  uint64         `gorm:"column:release_after" json:"releaseAfter"`
}

type Withdrawals []*Withdrawal

func (Withdrawal) TableName() string {
	return "withdrawals"
}

type WithdrawalsDB interface {
	WithdrawalsView
	StoreWithdrawal(Withdrawal) error
	UpdateWithdrawalBurnSubmitted(guid uuid.UUID, burnTxHash common.Hash) error
	MarkWithdrawalBurnConfirmed(guid uuid.UUID) error
	MarkWithdrawalBurnFailed(guid uuid.UUID) error
	MarkWithdrawalQueued(guid uuid.UUID, releaseAfter uint64) error
	MarkWithdrawalReleaseSubmitted(guid uuid.UUID) error
	UpdateWithdrawalReleaseTx(guid uuid.UUID, releaseTxHash common.Hash) error
	MarkWithdrawalReleased(guid uuid.UUID, releaseTxHash common.Hash) error
	MarkWithdrawalManualRecovery(guid uuid.UUID) error
}

type WithdrawalsView interface {
	WithdrawalByGUID(guid uuid.UUID) (*Withdrawal, error)
	QueuedWithdrawalsReadyBefore(timestamp uint64) ([]Withdrawal, error)
	InFlightWithdrawals() ([]Withdrawal, error)
	InterruptedReleaseWithdrawals() ([]Withdrawal, error)
	OutstandingAmount() (*big.Int, error)
	ManualRecoveryWithdrawals() ([]Withdrawal, error)
	WithdrawalList(address string, page int, pageSize int, order string) ([]Withdrawal, int64)
}

type withdrawalsDB struct {
	gorm *gorm.DB
}

func NewWithdrawalsDB(db *gorm.DB) WithdrawalsDB {
	return &withdrawalsDB{gorm: db}
}

func (w withdrawalsDB) StoreWithdrawal(withdrawal Withdrawal) error {
	result := w.gorm.Create(&withdrawal)
	return result.Error
}

func (w withdrawalsDB) WithdrawalByGUID(guid uuid.UUID) (*Withdrawal, error) {
	var withdrawal Withdrawal
	result := w.gorm.Where("guid = ?", guid).Take(&withdrawal)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &withdrawal, nil
}

// QueuedWithdrawalsReadyBefore returns delayed withdrawals whose maturity
// time has elapsed, oldest maturity first. Maturity is taken from the stored
// record, so a restarted scheduler sees exactly what a continuously running
// one would have.
func (w withdrawalsDB) QueuedWithdrawalsReadyBefore(timestamp uint64) ([]Withdrawal, error) {
	var withdrawals []Withdrawal
	result := w.gorm.Where("status = ? AND release_after <= ?", WithdrawalQueuedForDelay, timestamp).
		Order("release_after asc").Find(&withdrawals)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return withdrawals, nil
}

// InFlightWithdrawals returns records whose burn was submitted but not
// resolved before the process stopped.
func (w withdrawalsDB) InFlightWithdrawals() ([]Withdrawal, error) {
	var withdrawals []Withdrawal
	result := w.gorm.Where("status = ?", WithdrawalBurnPending).Order("timestamp asc").Find(&withdrawals)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return withdrawals, nil
}

// InterruptedReleaseWithdrawals returns records whose burn is confirmed but
// whose release phase never reached a terminal decision: still in
// WithdrawalBurnConfirmed, or in WithdrawalReleaseSubmitted with the release
// outcome unknown. Both only exist at startup when a crash cut the protocol
// short, since a running processor always drives them to queued, released or
// manual recovery within the same call.
func (w withdrawalsDB) InterruptedReleaseWithdrawals() ([]Withdrawal, error) {
	var withdrawals []Withdrawal
	result := w.gorm.Where("status IN ?", []int16{WithdrawalBurnConfirmed, WithdrawalReleaseSubmitted}).
		Order("timestamp asc").Find(&withdrawals)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return withdrawals, nil
}

// OutstandingAmount sums withdrawals that are burned but not yet released.
// The liquidity check nets this against the Base wallet balance so queued
// releases are never promised the same funds twice.
func (w withdrawalsDB) OutstandingAmount() (*big.Int, error) {
	var withdrawals []Withdrawal
	result := w.gorm.Where("status IN ?", []int16{WithdrawalBurnConfirmed, WithdrawalQueuedForDelay}).Find(&withdrawals)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return new(big.Int), nil
		}
		return nil, result.Error
	}
	outstanding := new(big.Int)
	for i := range withdrawals {
		outstanding.Add(outstanding, withdrawals[i].Amount)
	}
	return outstanding, nil
}

func (w withdrawalsDB) ManualRecoveryWithdrawals() ([]Withdrawal, error) {
	var withdrawals []Withdrawal
	result := w.gorm.Where("status = ?", WithdrawalManualRecovery).Order("timestamp asc").Find(&withdrawals)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return withdrawals, nil
}

func (w withdrawalsDB) UpdateWithdrawalBurnSubmitted(guid uuid.UUID, burnTxHash common.Hash) error {
	return w.updateWithdrawal(guid, func(withdrawal *Withdrawal) {
		withdrawal.BurnTxHash = burnTxHash
	})
}

func (w withdrawalsDB) MarkWithdrawalBurnConfirmed(guid uuid.UUID) error {
	return w.updateWithdrawal(guid, func(withdrawal *Withdrawal) {
		withdrawal.Status = WithdrawalBurnConfirmed
	})
}

func (w withdrawalsDB) MarkWithdrawalBurnFailed(guid uuid.UUID) error {
	return w.updateWithdrawal(guid, func(withdrawal *Withdrawal) {
		withdrawal.Status = WithdrawalBurnFailed
	})
}

func (w withdrawalsDB) MarkWithdrawalQueued(guid uuid.UUID, releaseAfter uint64) error {
	return w.updateWithdrawal(guid, func(withdrawal *Withdrawal) {
		withdrawal.Status = WithdrawalQueuedForDelay
		withdrawal.ReleaseAfter = releaseAfter
	})
}

func (w withdrawalsDB) MarkWithdrawalReleaseSubmitted(guid uuid.UUID) error {
	return w.updateWithdrawal(guid, func(withdrawal *Withdrawal) {
		withdrawal.Status = WithdrawalReleaseSubmitted
	})
}

func (w withdrawalsDB) UpdateWithdrawalReleaseTx(guid uuid.UUID, releaseTxHash common.Hash) error {
	return w.updateWithdrawal(guid, func(withdrawal *Withdrawal) {
		withdrawal.ReleaseTxHash = releaseTxHash
	})
}

func (w withdrawalsDB) MarkWithdrawalReleased(guid uuid.UUID, releaseTxHash common.Hash) error {
	return w.updateWithdrawal(guid, func(withdrawal *Withdrawal) {
		withdrawal.Status = WithdrawalReleased
		withdrawal.ReleaseTxHash = releaseTxHash
	})
}

func (w withdrawalsDB) MarkWithdrawalManualRecovery(guid uuid.UUID) error {
	return w.updateWithdrawal(guid, func(withdrawal *Withdrawal) {
		withdrawal.Status = WithdrawalManualRecovery
	})
}

func (w withdrawalsDB) updateWithdrawal(guid uuid.UUID, apply func(*Withdrawal)) error {
	var withdrawal Withdrawal
	result := w.gorm.Where("guid = ?", guid).Take(&withdrawal)
	if result.Error != nil {
		return result.Error
	}
	apply(&withdrawal)
	return w.gorm.Save(&withdrawal).Error
}

func (w withdrawalsDB) WithdrawalList(address string, page int, pageSize int, order string) (withdrawalList []Withdrawal, total int64) {
	var totalRecord int64
	query := w.gorm.Table("withdrawals")
	if address != "0x00" {
		err := w.gorm.Table("withdrawals").Select("guid").Where("recipient = ?", address).Count(&totalRecord).Error
		if err != nil {
			log.Error("get withdrawal list by address count fail", "err", err)
		}
		query.Where("recipient = ?", address).Offset((page - 1) * pageSize).Limit(pageSize)
	} else {
		err := w.gorm.Table("withdrawals").Select("guid").Count(&totalRecord).Error
		if err != nil {
			log.Error("get withdrawal list count fail", "err", err)
		}
		query.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	if strings.ToLower(order) == "asc" {
		query.Order("timestamp asc")
	} else {
		query.Order("timestamp desc")
	}
	qErr := query.Find(&withdrawalList).Error
	if qErr != nil {
		log.Error("get withdrawal list fail", "err", qErr)
	}
	return withdrawalList, totalRecord
}
