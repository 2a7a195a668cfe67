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
	DepositPending int16 = iota
	DepositCredited
	DepositRejected
)

// Deposit is the append-only record of a value transfer observed on Base
// addressed to the bridge wallet. A transaction hash is recorded at most
// once; re-observation of the same hash during a re-scan is a no-op.
type Deposit struct {
	GUID         uuid.UUID      `gorm:"primaryKey" json:"guid"`
	TxHash       common.Hash    `gorm:"column:tx_hash;serializer:bytes;uniqueIndex" json:"txHash"`
	FromAddress  common.Address `gorm:"column:from_address;serializer:bytes" json:"fromAddress"`
	TokenAddress common.Address `gorm:"column:token_address;serializer:bytes" json:"tokenAddress"`
	Amount       *big.Int       `gorm:"column:amount;serializer:u256" json:"amount"`
	BlockNumber  *big.Int       `gorm:"column:block_number;serializer:u256" json:"blockNumber"`
	Status       int16          `gorm:"column:status" json:"status"`
	RejectReason string         `gorm:"column:reject_reason" json:"rejectReason"`
	MintTxHash   common.Hash    `gorm:"column:mint_tx_hash;serializer:bytes" json:"mintTxHash"`
	Timestamp    uint64         `gorm:"column:timestamp" json:"timestamp"`
}

type Deposits []*Deposit

func (Deposit) TableName() string {
	return "deposits"
}

type DepositsDB interface {
	DepositsView
	StoreDeposits([]Deposit) error
	MarkDepositCredited(txHash common.Hash, mintTxHash common.Hash) error
}

type DepositsView interface {
	IsProcessed(txHash common.Hash) (bool, error)
	DepositByTxHash(txHash common.Hash) (*Deposit, error)
	PendingDeposits() ([]Deposit, error)
	DepositList(address string, page int, pageSize int, order string) ([]Deposit, int64)
}

type depositsDB struct {
	gorm *gorm.DB
}

func NewDepositsDB(db *gorm.DB) DepositsDB {
	return &depositsDB{gorm: db}
}

func (d depositsDB) StoreDeposits(depositList []Deposit) error {
	result := d.gorm.CreateInBatches(&depositList, len(depositList))
	return result.Error
}

func (d depositsDB) IsProcessed(txHash common.Hash) (bool, error) {
	deposit, err := d.DepositByTxHash(txHash)
	if err != nil {
		return false, err
	}
	return deposit != nil, nil
}

func (d depositsDB) DepositByTxHash(txHash common.Hash) (*Deposit, error) {
	var deposit Deposit
	result := d.gorm.Where(&Deposit{TxHash: txHash}).Take(&deposit)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &deposit, nil
}

// PendingDeposits returns admitted deposits that have not been credited on
// Thryx yet, oldest first. These are revisited every watcher cycle until the
// mint confirms.
func (d depositsDB) PendingDeposits() ([]Deposit, error) {
	var deposits []Deposit
	result := d.gorm.Where("status = ?", DepositPending).Order("timestamp asc").Find(&deposits)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return deposits, nil
}

func (d depositsDB) MarkDepositCredited(txHash common.Hash, mintTxHash common.Hash) error {
	var deposit Deposit
	result := d.gorm.Where(&Deposit{TxHash: txHash}).Take(&deposit)
	if result.Error != nil {
		return result.Error
	}
	deposit.Status = DepositCredited
	deposit.MintTxHash = mintTxHash
	return d.gorm.Save(&deposit).Error
}

func (d depositsDB) DepositList(address string, page int, pageSize int, order string) (depositList []Deposit, total int64) {
	var totalRecord int64
	query := d.gorm.Table("deposits")
	if address != "0x00" {
		err := d.gorm.Table("deposits").Select("guid").Where("from_address = ?", address).Count(&totalRecord).Error
		if err != nil {
			log.Error("get deposit list by address count fail", "err", err)
		}
		query.Where("from_address = ?", address).Offset((page - 1) * pageSize).Limit(pageSize)
	} else {
		err := d.gorm.Table("deposits").Select("guid").Count(&totalRecord).Error
		if err != nil {
			log.Error("get deposit list count fail", "err", err)
		}
		query.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	if strings.ToLower(order) == "asc" {
		query.Order("timestamp asc")
	} else {
		query.Order("timestamp desc")
	}
	qErr := query.Find(&depositList).Error
	if qErr != nil {
		log.Error("get deposit list fail", "err", qErr)
	}
	return depositList, totalRecord
}
