package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/lordbasilaiassistant-sudo/thryx-chain/synchronizer/node"
)

var ErrReceiptTimeout = errors.New("timed out waiting for transaction receipt")

const receiptPollInterval = 2 * time.Second

// Wallet signs and submits transactions for a single key on a single chain.
// Nonces are fetched per send; the bridge serializes sends per wallet so
// there is no in-process nonce race.
type Wallet struct {
	log     log.Logger
	client  node.EthClient
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	signer  types.Signer
}

func NewWallet(logger log.Logger, client node.EthClient, hexKey string, chainID uint) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid wallet key")
	}
	id := new(big.Int).SetUint64(uint64(chainID))
	address := crypto.PubkeyToAddress(key.PublicKey)
	return &Wallet{
		log:     logger.New("wallet", address, "chain_id", chainID),
		client:  client,
		key:     key,
		address: address,
		chainID: id,
		signer:  types.LatestSignerForChainID(id),
	}, nil
}

func (w *Wallet) Address() common.Address {
	return w.address
}

// Balance returns the wallet's native balance at the latest block.
func (w *Wallet) Balance() (*big.Int, error) {
	return w.client.GetBalance(w.address)
}

// SendTransaction signs and broadcasts a transaction to the given recipient
// and returns its hash. A nil data payload with a nonzero value is a plain
// native transfer; calldata sends use the fixed contract call gas limit.
func (w *Wallet) SendTransaction(to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	nonce, err := w.client.NonceAt(w.address)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to fetch nonce")
	}
	gasPrice, err := w.client.SuggestGasPrice()
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to fetch gas price")
	}

	gasLimit := uint64(21_000)
	if len(data) > 0 {
		gasLimit = 100_000
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signedTx, err := types.SignTx(tx, w.signer, w.key)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to sign transaction")
	}
	if err := w.client.SendRawTransaction(signedTx); err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to broadcast transaction")
	}

	w.log.Debug("transaction broadcast", "tx_hash", signedTx.Hash(), "to", to, "value", value, "nonce", nonce)
	return signedTx.Hash(), nil
}

// WaitForReceipt polls for the receipt of the given transaction until it is
// mined or the timeout elapses. A mined transaction with a failed status is
// returned as an error alongside the receipt.
func (w *Wallet) WaitForReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	ctxwt, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.client.TxReceiptByHash(txHash)
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			w.log.Warn("error querying receipt", "tx_hash", txHash, "err", err)
		}
		if receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("transaction %s reverted", txHash)
			}
			return receipt, nil
		}

		select {
		case <-ctxwt.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrReceiptTimeout
		case <-ticker.C:
		}
	}
}
