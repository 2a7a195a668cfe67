package service

import (
	"math/big"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ethereum/go-ethereum/common"
)

type Validator struct{}

func (v *Validator) ParseValidateAddress(addr string) (common.Address, error) {
	if !common.IsHexAddress(addr) {
		return common.Address{}, errors.New("address must be a valid hex address")
	}
	parsedAddr := common.HexToAddress(addr)
	if parsedAddr == common.HexToAddress("0x0") {
		return common.Address{}, errors.New("address cannot be the zero address")
	}
	return parsedAddr, nil
}

func (v *Validator) ParseValidateGuid(guid string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(guid)
	if err != nil {
		return uuid.Nil, errors.New("guid must be a valid uuid")
	}
	return parsed, nil
}

// ParseValidateAmount parses a positive decimal wei amount.
func (v *Validator) ParseValidateAmount(amount string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, errors.New("amount must be a decimal wei value")
	}
	if value.Sign() <= 0 {
		return nil, errors.New("amount must be positive")
	}
	return value, nil
}

func (v *Validator) ValidatePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func (v *Validator) ValidatePageSize(pageSize int) int {
	if pageSize < 1 {
		return 10
	}
	if pageSize > 100 {
		return 100
	}
	return pageSize
}

func (v *Validator) ValidateOrder(order string) string {
	if order == "asc" {
		return "asc"
	}
	return "desc"
}
