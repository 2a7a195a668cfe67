package executor

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/lordbasilaiassistant-sudo/thryx-chain/database/bridge"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/metrics"
)

// mintSelector is the 4-byte selector of mint(address,uint256).
var mintSelector = crypto.Keccak256([]byte("mint(address,uint256)"))[:4]

// Sender is the signing wallet surface the executor needs.
type Sender interface {
	Address() common.Address
	SendTransaction(to common.Address, value *big.Int, data []byte) (common.Hash, error)
	WaitForReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error)
}

// Minter credits admitted deposits on the Thryx chain: native deposits are
// mirrored 1:1 with a value transfer from the minter wallet, token deposits
// with a mint call on the Thryx token contract. A deposit is only marked
// credited after the Thryx transaction confirms; any failure leaves it
// pending so the next sweep retries it.
type Minter struct {
	log      log.Logger
	wallet   Sender
	deposits bridge.DepositsDB
	metrics  metrics.WatcherMetricer

	thryxUSDC          common.Address
	confirmationWindow time.Duration
}

func NewMinter(logger log.Logger, wallet Sender, deposits bridge.DepositsDB, m metrics.WatcherMetricer,
	thryxUSDC common.Address, confirmationWindow time.Duration) *Minter {
	return &Minter{
		log:                logger.New("module", "executor"),
		wallet:             wallet,
		deposits:           deposits,
		metrics:            m,
		thryxUSDC:          thryxUSDC,
		confirmationWindow: confirmationWindow,
	}
}

// Credit issues the Thryx-side credit for the given deposit and blocks until
// it is confirmed. The deposit record must be in the pending status.
func (m *Minter) Credit(ctx context.Context, deposit *bridge.Deposit) (common.Hash, error) {
	var mintTxHash common.Hash
	var err error
	if deposit.TokenAddress == (common.Address{}) {
		mintTxHash, err = m.wallet.SendTransaction(deposit.FromAddress, deposit.Amount, nil)
	} else {
		mintTxHash, err = m.wallet.SendTransaction(m.thryxUSDC, new(big.Int), mintCalldata(deposit.FromAddress, deposit.Amount))
	}
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to submit credit transaction")
	}

	if _, err := m.wallet.WaitForReceipt(ctx, mintTxHash, m.confirmationWindow); err != nil {
		return common.Hash{}, errors.Wrapf(err, "credit transaction %s not confirmed", mintTxHash)
	}

	if err := m.deposits.MarkDepositCredited(deposit.TxHash, mintTxHash); err != nil {
		return common.Hash{}, err
	}

	m.metrics.RecordDepositCredited(tokenLabel(deposit.TokenAddress))
	m.log.Info("deposit credited", "tx_hash", deposit.TxHash, "mint_tx_hash", mintTxHash,
		"from", deposit.FromAddress, "amount", deposit.Amount)
	return mintTxHash, nil
}

func mintCalldata(to common.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, mintSelector...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}

func tokenLabel(token common.Address) string {
	if token == (common.Address{}) {
		return "native"
	}
	return "usdc"
}
