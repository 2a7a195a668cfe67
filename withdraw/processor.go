package withdraw

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/lordbasilaiassistant-sudo/thryx-chain/config"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/database"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/database/bridge"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/metrics"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/ratelimit"
)

// Request outcomes surfaced to the caller. A manual-recovery failure is its
// own outcome and is never reported as a plain rejection, since value was
// already burned.
const (
	OutcomeReleased       = "released"
	OutcomeQueued         = "queued"
	OutcomeRejected       = "rejected"
	OutcomeManualRecovery = "under_recovery"
)

// Sender is the signing wallet surface the processor needs on each chain.
type Sender interface {
	Address() common.Address
	Balance() (*big.Int, error)
	SendTransaction(to common.Address, value *big.Int, data []byte) (common.Hash, error)
	WaitForReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error)
}

// Result is the caller-visible outcome of a withdrawal request.
type Result struct {
	GUID         uuid.UUID
	Outcome      string
	Reason       string
	BurnTxHash   common.Hash
	ReleaseTx    common.Hash
	ReleaseAfter uint64
}

// Processor runs the burn-then-release protocol. Value on Thryx is destroyed
// by sending it to the burn sink and must confirm before any Base funds
// move; a release failure after a confirmed burn parks the record in the
// terminal manual-recovery status, which no code path retries.
//
// A single mutex serializes requests, which keeps daily-total and cooldown
// accounting race-free without per-address locks.
type Processor struct {
	log     log.Logger
	metrics metrics.WithdrawMetricer
	db      *database.DB
	limiter *ratelimit.Limiter

	thryxWallet Sender
	baseWallet  Sender

	burnAddress        common.Address
	gasReserve         *big.Int
	delay              time.Duration
	confirmationWindow time.Duration

	mu sync.Mutex
}

func NewProcessor(logger log.Logger, m metrics.WithdrawMetricer, db *database.DB, limiter *ratelimit.Limiter,
	thryxWallet Sender, baseWallet Sender, bridgeCfg config.BridgeConfig) *Processor {
	return &Processor{
		log:                logger.New("module", "withdraw"),
		metrics:            m,
		db:                 db,
		limiter:            limiter,
		thryxWallet:        thryxWallet,
		baseWallet:         baseWallet,
		burnAddress:        bridgeCfg.BurnAddress,
		gasReserve:         bridgeCfg.GasReserve,
		delay:              bridgeCfg.Limits.WithdrawalDelay,
		confirmationWindow: bridgeCfg.Limits.ConfirmationTimeout,
	}
}

// Request runs the full protocol for a new withdrawal of amount to
// recipient. It blocks through burn confirmation and, for small amounts,
// through release confirmation.
func (p *Processor) Request(ctx context.Context, recipient common.Address, amount *big.Int) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return p.rejected(uuid.Nil, "invalid amount"), nil
	}

	now := time.Now()
	decision, err := p.limiter.CheckWithdrawal(recipient, amount, now)
	if err != nil {
		return Result{}, err
	}
	if !decision.Allowed {
		p.log.Info("withdrawal rejected", "recipient", recipient, "amount", amount, "reason", decision.Reason)
		return p.rejected(uuid.Nil, decision.Reason), nil
	}

	ok, err := p.hasLiquidity(amount)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		p.log.Warn("withdrawal rejected for insufficient liquidity", "recipient", recipient, "amount", amount)
		return p.rejected(uuid.Nil, "insufficient liquidity"), nil
	}

	withdrawal := bridge.Withdrawal{
		GUID:      uuid.New(),
		Recipient: recipient,
		Amount:    amount,
		Status:    bridge.WithdrawalBurnPending,
		Timestamp: uint64(now.Unix()),
	}
	if err := p.db.Withdrawals.StoreWithdrawal(withdrawal); err != nil {
		return Result{}, err
	}

	return p.executeBurn(ctx, &withdrawal)
}

// executeBurn submits and confirms the Thryx burn for a stored burn-pending
// record, then continues to queueing or release.
func (p *Processor) executeBurn(ctx context.Context, withdrawal *bridge.Withdrawal) (Result, error) {
	burnTxHash, err := p.thryxWallet.SendTransaction(p.burnAddress, withdrawal.Amount, nil)
	if err != nil {
		p.log.Error("burn submission failed", "guid", withdrawal.GUID, "err", err)
		if dbErr := p.db.Withdrawals.MarkWithdrawalBurnFailed(withdrawal.GUID); dbErr != nil {
			return Result{}, dbErr
		}
		return p.rejected(withdrawal.GUID, "burn failed"), nil
	}
	if err := p.db.Withdrawals.UpdateWithdrawalBurnSubmitted(withdrawal.GUID, burnTxHash); err != nil {
		return Result{}, err
	}
	withdrawal.BurnTxHash = burnTxHash

	if _, err := p.thryxWallet.WaitForReceipt(ctx, burnTxHash, p.confirmationWindow); err != nil {
		p.log.Error("burn not confirmed", "guid", withdrawal.GUID, "burn_tx_hash", burnTxHash, "err", err)
		if dbErr := p.db.Withdrawals.MarkWithdrawalBurnFailed(withdrawal.GUID); dbErr != nil {
			return Result{}, dbErr
		}
		return p.rejected(withdrawal.GUID, "burn failed"), nil
	}

	return p.afterBurnConfirmed(ctx, withdrawal)
}

// afterBurnConfirmed durably records the confirmed burn together with the
// daily-total and cooldown charge, then queues large amounts or releases
// inline. Charging here, at burn confirmation, means a queued withdrawal
// counts against the daily cap from the moment value is destroyed and a
// failed burn charges nothing.
func (p *Processor) afterBurnConfirmed(ctx context.Context, withdrawal *bridge.Withdrawal) (Result, error) {
	if err := p.db.Transaction(func(tx *database.DB) error {
		if err := tx.Withdrawals.MarkWithdrawalBurnConfirmed(withdrawal.GUID); err != nil {
			return err
		}
		if err := tx.DailyTotals.AddToDailyTotal(bridge.TotalKindWithdrawal, withdrawal.Recipient,
			bridge.DayKey(time.Unix(int64(withdrawal.Timestamp), 0)), withdrawal.Amount); err != nil {
			return err
		}
		return tx.DailyTotals.SetLastWithdrawal(withdrawal.Recipient, withdrawal.Timestamp)
	}); err != nil {
		return Result{}, err
	}
	p.metrics.RecordBurnConfirmed()
	p.log.Info("burn confirmed", "guid", withdrawal.GUID, "burn_tx_hash", withdrawal.BurnTxHash, "amount", withdrawal.Amount)

	if p.limiter.IsLarge(withdrawal.Amount) {
		// Maturity counts from the stored request time, so a recovery
		// resuming this burn after downtime does not extend the delay.
		releaseAfter := withdrawal.Timestamp + uint64(p.delay/time.Second)
		if err := p.db.Withdrawals.MarkWithdrawalQueued(withdrawal.GUID, releaseAfter); err != nil {
			return Result{}, err
		}
		p.metrics.RecordQueued()
		p.metrics.RecordRequest(OutcomeQueued)
		p.log.Info("large withdrawal queued for delay", "guid", withdrawal.GUID, "release_after", releaseAfter)
		return Result{GUID: withdrawal.GUID, Outcome: OutcomeQueued, BurnTxHash: withdrawal.BurnTxHash,
			ReleaseAfter: releaseAfter}, nil
	}

	return p.Release(ctx, withdrawal)
}

// Release submits the Base-side release for a burn-confirmed or matured
// queued withdrawal. The release-submitted status is persisted before the
// broadcast, so a crash anywhere past that point leaves a record that
// startup recovery parks for the operator rather than one the scheduler
// would pay a second time. Any failure past this point is terminal and
// requires operator action informed by the persisted burn hash.
func (p *Processor) Release(ctx context.Context, withdrawal *bridge.Withdrawal) (Result, error) {
	if err := p.db.Withdrawals.MarkWithdrawalReleaseSubmitted(withdrawal.GUID); err != nil {
		return Result{}, err
	}
	releaseTxHash, err := p.baseWallet.SendTransaction(withdrawal.Recipient, withdrawal.Amount, nil)
	if err != nil {
		return p.manualRecovery(withdrawal, err)
	}
	if err := p.db.Withdrawals.UpdateWithdrawalReleaseTx(withdrawal.GUID, releaseTxHash); err != nil {
		return Result{}, err
	}
	if _, err := p.baseWallet.WaitForReceipt(ctx, releaseTxHash, p.confirmationWindow); err != nil {
		return p.manualRecovery(withdrawal, err)
	}

	if err := p.db.Withdrawals.MarkWithdrawalReleased(withdrawal.GUID, releaseTxHash); err != nil {
		return Result{}, err
	}
	p.metrics.RecordReleased()
	p.metrics.RecordRequest(OutcomeReleased)
	p.log.Info("withdrawal released", "guid", withdrawal.GUID, "release_tx_hash", releaseTxHash,
		"recipient", withdrawal.Recipient, "amount", withdrawal.Amount)
	return Result{GUID: withdrawal.GUID, Outcome: OutcomeReleased, BurnTxHash: withdrawal.BurnTxHash,
		ReleaseTx: releaseTxHash}, nil
}

func (p *Processor) manualRecovery(withdrawal *bridge.Withdrawal, cause error) (Result, error) {
	p.log.Error("release failed after confirmed burn, manual recovery required", "guid", withdrawal.GUID,
		"burn_tx_hash", withdrawal.BurnTxHash, "amount", withdrawal.Amount, "err", cause)
	if err := p.db.Withdrawals.MarkWithdrawalManualRecovery(withdrawal.GUID); err != nil {
		return Result{}, err
	}
	p.metrics.RecordRequest(OutcomeManualRecovery)
	p.refreshRecoveryGauge()
	return Result{GUID: withdrawal.GUID, Outcome: OutcomeManualRecovery, BurnTxHash: withdrawal.BurnTxHash,
		Reason: "burned but not released, under recovery"}, nil
}

// RecoverInFlight resolves records whose protocol was cut short by a crash.
// A burn that never left the wallet is failed; a confirmed burn resumes the
// protocol; a burn that cannot be confirmed within the window is parked for
// the operator, since it may still land. Records stranded past burn
// confirmation are parked too: a release may already have been broadcast,
// so retrying could pay the recipient twice.
func (p *Processor) RecoverInFlight(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	interrupted, err := p.db.Withdrawals.InterruptedReleaseWithdrawals()
	if err != nil {
		return err
	}
	for i := range interrupted {
		withdrawal := interrupted[i]
		p.log.Error("withdrawal burned but release unresolved, parking for operator", "guid", withdrawal.GUID,
			"burn_tx_hash", withdrawal.BurnTxHash, "release_tx_hash", withdrawal.ReleaseTxHash)
		if err := p.db.Withdrawals.MarkWithdrawalManualRecovery(withdrawal.GUID); err != nil {
			return err
		}
	}

	inFlight, err := p.db.Withdrawals.InFlightWithdrawals()
	if err != nil {
		return err
	}
	for i := range inFlight {
		withdrawal := inFlight[i]
		if withdrawal.BurnTxHash == (common.Hash{}) {
			p.log.Info("in-flight withdrawal never broadcast a burn, failing it", "guid", withdrawal.GUID)
			if err := p.db.Withdrawals.MarkWithdrawalBurnFailed(withdrawal.GUID); err != nil {
				return err
			}
			continue
		}

		receipt, err := p.thryxWallet.WaitForReceipt(ctx, withdrawal.BurnTxHash, p.confirmationWindow)
		if err != nil && receipt == nil {
			p.log.Error("in-flight burn unresolved, parking for operator", "guid", withdrawal.GUID,
				"burn_tx_hash", withdrawal.BurnTxHash, "err", err)
			if dbErr := p.db.Withdrawals.MarkWithdrawalManualRecovery(withdrawal.GUID); dbErr != nil {
				return dbErr
			}
			continue
		}
		if err != nil {
			// Mined but reverted: nothing was destroyed.
			p.log.Info("in-flight burn reverted, failing it", "guid", withdrawal.GUID, "burn_tx_hash", withdrawal.BurnTxHash)
			if dbErr := p.db.Withdrawals.MarkWithdrawalBurnFailed(withdrawal.GUID); dbErr != nil {
				return dbErr
			}
			continue
		}

		p.log.Info("resuming in-flight withdrawal with confirmed burn", "guid", withdrawal.GUID,
			"burn_tx_hash", withdrawal.BurnTxHash)
		if _, err := p.afterBurnConfirmed(ctx, &withdrawal); err != nil {
			return err
		}
	}
	p.refreshRecoveryGauge()
	return nil
}

// ReleaseMatured releases every queued withdrawal whose maturity time has
// passed. Manual-recovery records are not revisited.
func (p *Processor) ReleaseMatured(ctx context.Context, now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	matured, err := p.db.Withdrawals.QueuedWithdrawalsReadyBefore(uint64(now.Unix()))
	if err != nil {
		return err
	}
	for i := range matured {
		p.log.Info("releasing matured withdrawal", "guid", matured[i].GUID, "release_after", matured[i].ReleaseAfter)
		if _, err := p.Release(ctx, &matured[i]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) hasLiquidity(amount *big.Int) (bool, error) {
	balance, err := p.baseWallet.Balance()
	if err != nil {
		return false, errors.Wrap(err, "failed to query release wallet balance")
	}
	outstanding, err := p.db.Withdrawals.OutstandingAmount()
	if err != nil {
		return false, err
	}
	available := new(big.Int).Sub(balance, p.gasReserve)
	available.Sub(available, outstanding)
	p.metrics.RecordAvailableLiquidity(available)
	return available.Cmp(amount) >= 0, nil
}

func (p *Processor) rejected(guid uuid.UUID, reason string) Result {
	p.metrics.RecordRequest(OutcomeRejected)
	return Result{GUID: guid, Outcome: OutcomeRejected, Reason: reason}
}

func (p *Processor) refreshRecoveryGauge() {
	recoveries, err := p.db.Withdrawals.ManualRecoveryWithdrawals()
	if err != nil {
		p.log.Error("failed to count manual recovery withdrawals", "err", err)
		return
	}
	p.metrics.SetManualRecoveryCount(len(recoveries))
}
