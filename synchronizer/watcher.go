package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/lordbasilaiassistant-sudo/thryx-chain/common/tasks"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/config"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/database"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/database/bridge"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/metrics"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/ratelimit"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/synchronizer/node"
)

// CheckpointName keys the watcher's scan checkpoint row.
const CheckpointName = "deposit_watcher"

// transferTopic is the topic hash of Transfer(address,address,uint256).
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// Crediter issues the Thryx-side credit for an admitted deposit.
type Crediter interface {
	Credit(ctx context.Context, deposit *bridge.Deposit) (common.Hash, error)
}

// Watcher polls Base for deposits addressed to the bridge wallet: native
// transfers in block bodies and USDC Transfer logs over the same block
// range, sharing a single checkpoint. The checkpoint only advances once
// every candidate in the range has a durable record, so a crash mid-batch
// re-scans the same range and the unique transaction hash absorbs the
// duplicates.
type Watcher struct {
	log     log.Logger
	metrics metrics.WatcherMetricer
	db      *database.DB
	client  node.EthClient
	limiter *ratelimit.Limiter
	minter  Crediter

	depositAddress common.Address
	baseUSDC       common.Address
	batchSize      uint64
	lookback       uint64
	pollInterval   time.Duration
	signer         types.Signer

	resourceCtx    context.Context
	resourceCancel context.CancelFunc
	tasks          tasks.Group
}

func NewWatcher(logger log.Logger, m metrics.WatcherMetricer, db *database.DB, client node.EthClient,
	limiter *ratelimit.Limiter, minter Crediter, chainCfg config.ChainConfig, bridgeCfg config.BridgeConfig,
	shutdown context.CancelCauseFunc) (*Watcher, error) {
	resCtx, resCancel := context.WithCancel(context.Background())
	return &Watcher{
		log:            logger.New("module", "watcher"),
		metrics:        m,
		db:             db,
		client:         client,
		limiter:        limiter,
		minter:         minter,
		depositAddress: bridgeCfg.DepositAddress,
		baseUSDC:       bridgeCfg.BaseUSDC,
		batchSize:      uint64(chainCfg.ScanBatchSize),
		lookback:       uint64(chainCfg.LookbackBlocks),
		pollInterval:   chainCfg.PollingInterval,
		signer:         types.LatestSignerForChainID(new(big.Int).SetUint64(uint64(chainCfg.BaseChainID))),
		resourceCtx:    resCtx,
		resourceCancel: resCancel,
		tasks: tasks.Group{HandleCrit: func(err error) {
			shutdown(fmt.Errorf("critical error in deposit watcher: %w", err))
		}},
	}, nil
}

func (w *Watcher) Start() error {
	w.log.Info("starting deposit watcher...", "poll_interval", w.pollInterval, "batch_size", w.batchSize)
	tickerSyncer := time.NewTicker(w.pollInterval)
	w.tasks.Go(func() error {
		defer tickerSyncer.Stop()
		for {
			select {
			case <-w.resourceCtx.Done():
				w.log.Info("deposit watcher stopping")
				return nil
			case <-tickerSyncer.C:
				if err := w.ScanOnce(w.resourceCtx); err != nil {
					w.log.Error("scan cycle failed, retrying on next tick", "err", err)
				}
			}
		}
	})
	return nil
}

func (w *Watcher) Close() error {
	w.resourceCancel()
	return w.tasks.Wait()
}

// ScanOnce runs a single scan cycle: pick the next block range from the
// checkpoint, record a terminal admission decision for every new candidate
// in it, sweep pending deposits through the mint executor, then advance the
// checkpoint.
func (w *Watcher) ScanOnce(ctx context.Context) error {
	latestHeader, err := w.client.BlockHeaderByNumber(nil)
	if err != nil {
		return fmt.Errorf("failed to query latest header: %w", err)
	}
	head := latestHeader.Number.Uint64()
	w.metrics.RecordLatestHead(head)

	checkpoint, err := w.db.Checkpoints.GetCheckpoint(CheckpointName)
	if err != nil {
		return err
	}
	if checkpoint == 0 && head > w.lookback {
		checkpoint = head - w.lookback
	}
	if checkpoint >= head {
		return w.sweepPending(ctx)
	}

	end := checkpoint + w.batchSize
	if end > head {
		end = head
	}

	candidates, endTimestamp, err := w.scanRange(checkpoint+1, end)
	if err != nil {
		return err
	}

	for i := range candidates {
		if err := w.admitDeposit(&candidates[i]); err != nil {
			return err
		}
	}

	if err := w.sweepPending(ctx); err != nil {
		return err
	}

	if err := w.db.Checkpoints.SetCheckpoint(CheckpointName, end, endTimestamp); err != nil {
		return err
	}
	w.metrics.RecordCheckpoint(end)
	w.metrics.RecordScannedRange(int(end - checkpoint))
	w.log.Debug("scan cycle complete", "from", checkpoint+1, "to", end, "candidates", len(candidates))
	return nil
}

// scanRange collects deposit candidates in [from, to]: native transfers to
// the deposit address from block bodies, then USDC Transfer logs over the
// same range.
func (w *Watcher) scanRange(from, to uint64) ([]bridge.Deposit, uint64, error) {
	var candidates []bridge.Deposit
	blockTimes := make(map[uint64]uint64)

	for number := from; number <= to; number++ {
		block, err := w.client.BlockByNumber(number)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to fetch block %d: %w", number, err)
		}
		blockTimes[number] = block.Header.Time
		for _, tx := range block.Transactions {
			if tx.To() == nil || *tx.To() != w.depositAddress || tx.Value().Sign() == 0 {
				continue
			}
			sender, err := types.Sender(w.signer, tx)
			if err != nil {
				w.log.Warn("skipping transaction with unrecoverable sender", "tx_hash", tx.Hash(), "err", err)
				continue
			}
			candidates = append(candidates, bridge.Deposit{
				GUID:        uuid.New(),
				TxHash:      tx.Hash(),
				FromAddress: sender,
				Amount:      tx.Value(),
				BlockNumber: new(big.Int).SetUint64(number),
				Timestamp:   block.Header.Time,
			})
		}
	}

	logs, err := w.client.FilterLogs(ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{w.baseUSDC},
		Topics:    [][]common.Hash{{transferTopic}, nil, {w.depositAddress.Hash()}},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query transfer logs: %w", err)
	}
	for _, transferLog := range logs.Logs {
		if len(transferLog.Topics) != 3 || len(transferLog.Data) != 32 {
			continue
		}
		candidates = append(candidates, bridge.Deposit{
			GUID:         uuid.New(),
			TxHash:       transferLog.TxHash,
			FromAddress:  common.BytesToAddress(transferLog.Topics[1].Bytes()),
			TokenAddress: w.baseUSDC,
			Amount:       new(big.Int).SetBytes(transferLog.Data),
			BlockNumber:  new(big.Int).SetUint64(transferLog.BlockNumber),
			Timestamp:    blockTimes[transferLog.BlockNumber],
		})
	}

	return candidates, blockTimes[to], nil
}

// admitDeposit records a terminal admission decision for a candidate. An
// admitted deposit is stored pending together with its daily-total charge in
// one transaction; a rejected deposit is still stored so the range never
// rescans it, but is never credited and the sender must be refunded out of
// band.
func (w *Watcher) admitDeposit(candidate *bridge.Deposit) error {
	processed, err := w.db.Deposits.IsProcessed(candidate.TxHash)
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	decision, err := w.limiter.CheckDeposit(candidate.FromAddress, candidate.Amount, time.Now())
	if err != nil {
		return err
	}

	token := "native"
	if candidate.TokenAddress != (common.Address{}) {
		token = "usdc"
	}

	if !decision.Allowed {
		candidate.Status = bridge.DepositRejected
		candidate.RejectReason = decision.Reason
		if err := w.db.Deposits.StoreDeposits([]bridge.Deposit{*candidate}); err != nil {
			return err
		}
		w.metrics.RecordDepositRejected(token)
		w.log.Warn("deposit rejected, manual refund required", "tx_hash", candidate.TxHash,
			"from", candidate.FromAddress, "amount", candidate.Amount, "reason", decision.Reason)
		return nil
	}

	candidate.Status = bridge.DepositPending
	if err := w.db.Transaction(func(tx *database.DB) error {
		if err := tx.Deposits.StoreDeposits([]bridge.Deposit{*candidate}); err != nil {
			return err
		}
		return tx.DailyTotals.AddToDailyTotal(bridge.TotalKindDeposit, candidate.FromAddress,
			bridge.DayKey(time.Now()), candidate.Amount)
	}); err != nil {
		return err
	}
	w.metrics.RecordDepositDetected(token)
	w.log.Info("deposit detected", "tx_hash", candidate.TxHash, "from", candidate.FromAddress,
		"amount", candidate.Amount, "token", token)
	return nil
}

// sweepPending retries the Thryx credit for every admitted deposit that has
// not confirmed yet. Failures stay pending and come back on the next sweep.
func (w *Watcher) sweepPending(ctx context.Context) error {
	pending, err := w.db.Deposits.PendingDeposits()
	if err != nil {
		return err
	}
	for i := range pending {
		if _, err := w.minter.Credit(ctx, &pending[i]); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			w.log.Error("credit attempt failed, deposit stays pending", "tx_hash", pending[i].TxHash, "err", err)
		}
	}
	return nil
}
