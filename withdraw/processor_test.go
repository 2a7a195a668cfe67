package withdraw

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

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

var burnSink = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

type fakeSend struct {
	to    common.Address
	value *big.Int
}

type fakeSender struct {
	balance *big.Int
	sends   []fakeSend

	sendErr    error
	receiptErr error
	onSend     func()
}

func newFakeSender(balance *big.Int) *fakeSender {
	return &fakeSender{balance: balance}
}

func (f *fakeSender) Address() common.Address {
	return common.HexToAddress("0xaa")
}

func (f *fakeSender) Balance() (*big.Int, error) {
	return f.balance, nil
}

func (f *fakeSender) SendTransaction(to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}
	if f.onSend != nil {
		f.onSend()
	}
	f.sends = append(f.sends, fakeSend{to: to, value: value})
	return common.BytesToHash([]byte(fmt.Sprintf("tx-%d", len(f.sends)))), nil
}

func (f *fakeSender) WaitForReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: txHash}, nil
}

func eth(n float64) *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(n), big.NewFloat(1e18)).Int(nil)
	return wei
}

func testDB(t *testing.T) *database.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&bridge.Deposit{}, &bridge.Withdrawal{}, &bridge.DailyTotal{},
		&bridge.WithdrawalCooldown{}, &bridge.ScanCheckpoint{}))
	return database.NewDBWithGorm(gormDB)
}

func testBridgeConfig() config.BridgeConfig {
	return config.BridgeConfig{
		BurnAddress: burnSink,
		GasReserve:  big.NewInt(200_000_000_000_000),
		Limits: config.LimitsConfig{
			MaxDepositPerTx:          eth(10),
			MaxDepositPerDay:         eth(50),
			MaxWithdrawalPerTx:       eth(1),
			MaxWithdrawalPerDay:      eth(5),
			WithdrawalCooldown:       300 * time.Second,
			LargeWithdrawalThreshold: eth(0.1),
			WithdrawalDelay:          time.Hour,
			ConfirmationTimeout:      time.Minute,
		},
	}
}

func newTestProcessor(t *testing.T, db *database.DB, thryxWallet, baseWallet Sender) *Processor {
	cfg := testBridgeConfig()
	limiter := ratelimit.NewLimiter(cfg.Limits, db.DailyTotals)
	return NewProcessor(log.New(), metrics.NewWithdrawMetrics(metrics.NewRegistry()), db, limiter,
		thryxWallet, baseWallet, cfg)
}

func TestSmallWithdrawalBurnsThenReleases(t *testing.T) {
	db := testDB(t)
	thryxWallet := newFakeSender(eth(100))
	baseWallet := newFakeSender(eth(100))
	processor := newTestProcessor(t, db, thryxWallet, baseWallet)
	recipient := common.HexToAddress("0x01")

	result, err := processor.Request(context.Background(), recipient, eth(0.05))
	require.NoError(t, err)
	require.Equal(t, OutcomeReleased, result.Outcome)

	require.Len(t, thryxWallet.sends, 1)
	require.Equal(t, burnSink, thryxWallet.sends[0].to)
	require.Len(t, baseWallet.sends, 1)
	require.Equal(t, recipient, baseWallet.sends[0].to)

	stored, err := db.Withdrawals.WithdrawalByGUID(result.GUID)
	require.NoError(t, err)
	require.Equal(t, bridge.WithdrawalReleased, stored.Status)
	require.NotEqual(t, common.Hash{}, stored.BurnTxHash)
	require.NotEqual(t, common.Hash{}, stored.ReleaseTxHash)

	total, err := db.DailyTotals.DailyTotal(bridge.TotalKindWithdrawal, recipient, bridge.DayKey(time.Now()))
	require.NoError(t, err)
	require.Zero(t, total.Cmp(eth(0.05)))
}

func TestThresholdBoundaryQueuesExactAmount(t *testing.T) {
	db := testDB(t)
	baseWallet := newFakeSender(eth(100))
	processor := newTestProcessor(t, db, newFakeSender(eth(100)), baseWallet)

	result, err := processor.Request(context.Background(), common.HexToAddress("0x02"), eth(0.1))
	require.NoError(t, err)
	require.Equal(t, OutcomeQueued, result.Outcome)
	require.NotZero(t, result.ReleaseAfter)
	require.Empty(t, baseWallet.sends)

	stored, err := db.Withdrawals.WithdrawalByGUID(result.GUID)
	require.NoError(t, err)
	require.Equal(t, bridge.WithdrawalQueuedForDelay, stored.Status)
	require.Equal(t, stored.Timestamp+3600, stored.ReleaseAfter)
}

func TestBelowThresholdReleasesInline(t *testing.T) {
	db := testDB(t)
	baseWallet := newFakeSender(eth(100))
	processor := newTestProcessor(t, db, newFakeSender(eth(100)), baseWallet)

	oneWeiBelow := new(big.Int).Sub(eth(0.1), big.NewInt(1))
	result, err := processor.Request(context.Background(), common.HexToAddress("0x03"), oneWeiBelow)
	require.NoError(t, err)
	require.Equal(t, OutcomeReleased, result.Outcome)
	require.Len(t, baseWallet.sends, 1)
}

func TestRateLimitedWithdrawalNeverTouchesChain(t *testing.T) {
	db := testDB(t)
	thryxWallet := newFakeSender(eth(100))
	baseWallet := newFakeSender(eth(100))
	processor := newTestProcessor(t, db, thryxWallet, baseWallet)

	result, err := processor.Request(context.Background(), common.HexToAddress("0x04"), eth(2))
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, result.Outcome)
	require.Equal(t, "exceeds per-transaction limit", result.Reason)
	require.Empty(t, thryxWallet.sends)
	require.Empty(t, baseWallet.sends)
}

func TestDailyCapRejectsSecondWithdrawal(t *testing.T) {
	db := testDB(t)
	processor := newTestProcessor(t, db, newFakeSender(eth(100)), newFakeSender(eth(100)))
	recipient := common.HexToAddress("0x05")

	// Already 4.5 of the 5 cap charged today; a request within the per-tx
	// cap still breaks the daily cap.
	require.NoError(t, db.DailyTotals.AddToDailyTotal(bridge.TotalKindWithdrawal, recipient,
		bridge.DayKey(time.Now()), eth(4.5)))

	result, err := processor.Request(context.Background(), recipient, eth(1))
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, result.Outcome)
	require.Equal(t, "exceeds daily limit", result.Reason)
}

func TestInsufficientLiquidityRejectsWithoutBurn(t *testing.T) {
	db := testDB(t)
	thryxWallet := newFakeSender(eth(100))
	baseWallet := newFakeSender(eth(0.5))
	processor := newTestProcessor(t, db, thryxWallet, baseWallet)

	result, err := processor.Request(context.Background(), common.HexToAddress("0x06"), eth(0.9))
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, result.Outcome)
	require.Equal(t, "insufficient liquidity", result.Reason)
	require.Empty(t, thryxWallet.sends)
}

func TestOutstandingWithdrawalsReserveLiquidity(t *testing.T) {
	db := testDB(t)
	thryxWallet := newFakeSender(eth(100))
	baseWallet := newFakeSender(eth(1))
	processor := newTestProcessor(t, db, thryxWallet, baseWallet)

	require.NoError(t, db.Withdrawals.StoreWithdrawal(bridge.Withdrawal{
		GUID:      uuid.New(),
		Recipient: common.HexToAddress("0x07"),
		Amount:    eth(0.8),
		Status:    bridge.WithdrawalQueuedForDelay,
	}))

	result, err := processor.Request(context.Background(), common.HexToAddress("0x08"), eth(0.5))
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, result.Outcome)
	require.Equal(t, "insufficient liquidity", result.Reason)
}

func TestBurnFailureIsSafeTerminal(t *testing.T) {
	db := testDB(t)
	thryxWallet := newFakeSender(eth(100))
	thryxWallet.receiptErr = errors.New("timeout")
	baseWallet := newFakeSender(eth(100))
	processor := newTestProcessor(t, db, thryxWallet, baseWallet)
	recipient := common.HexToAddress("0x09")

	result, err := processor.Request(context.Background(), recipient, eth(0.05))
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, result.Outcome)
	require.Equal(t, "burn failed", result.Reason)
	require.Empty(t, baseWallet.sends)

	stored, err := db.Withdrawals.WithdrawalByGUID(result.GUID)
	require.NoError(t, err)
	require.Equal(t, bridge.WithdrawalBurnFailed, stored.Status)

	// A failed burn charges nothing against the daily cap.
	total, err := db.DailyTotals.DailyTotal(bridge.TotalKindWithdrawal, recipient, bridge.DayKey(time.Now()))
	require.NoError(t, err)
	require.Zero(t, total.Sign())
}

func TestReleaseFailureAfterBurnIsManualRecovery(t *testing.T) {
	db := testDB(t)
	thryxWallet := newFakeSender(eth(100))
	baseWallet := newFakeSender(eth(100))
	baseWallet.receiptErr = errors.New("timeout")
	processor := newTestProcessor(t, db, thryxWallet, baseWallet)

	result, err := processor.Request(context.Background(), common.HexToAddress("0x0a"), eth(0.05))
	require.NoError(t, err)
	require.Equal(t, OutcomeManualRecovery, result.Outcome)
	require.NotEqual(t, common.Hash{}, result.BurnTxHash)

	stored, err := db.Withdrawals.WithdrawalByGUID(result.GUID)
	require.NoError(t, err)
	require.Equal(t, bridge.WithdrawalManualRecovery, stored.Status)

	// The scheduler sweep must not pick the record back up.
	baseWallet.receiptErr = nil
	sendsBefore := len(baseWallet.sends)
	require.NoError(t, processor.ReleaseMatured(context.Background(), time.Now().Add(48*time.Hour)))
	require.Len(t, baseWallet.sends, sendsBefore)

	stored, err = db.Withdrawals.WithdrawalByGUID(result.GUID)
	require.NoError(t, err)
	require.Equal(t, bridge.WithdrawalManualRecovery, stored.Status)
}

func TestCooldownBlocksBackToBackWithdrawals(t *testing.T) {
	db := testDB(t)
	processor := newTestProcessor(t, db, newFakeSender(eth(100)), newFakeSender(eth(100)))
	recipient := common.HexToAddress("0x0b")

	result, err := processor.Request(context.Background(), recipient, eth(0.05))
	require.NoError(t, err)
	require.Equal(t, OutcomeReleased, result.Outcome)

	result, err = processor.Request(context.Background(), recipient, eth(0.05))
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, result.Outcome)
	require.Equal(t, "cooldown in effect", result.Reason)
}

func TestReleaseMaturedHonorsMaturityTime(t *testing.T) {
	db := testDB(t)
	baseWallet := newFakeSender(eth(100))
	processor := newTestProcessor(t, db, newFakeSender(eth(100)), baseWallet)

	result, err := processor.Request(context.Background(), common.HexToAddress("0x0c"), eth(0.2))
	require.NoError(t, err)
	require.Equal(t, OutcomeQueued, result.Outcome)

	require.NoError(t, processor.ReleaseMatured(context.Background(), time.Now()))
	require.Empty(t, baseWallet.sends)

	require.NoError(t, processor.ReleaseMatured(context.Background(), time.Now().Add(2*time.Hour)))
	require.Len(t, baseWallet.sends, 1)

	stored, err := db.Withdrawals.WithdrawalByGUID(result.GUID)
	require.NoError(t, err)
	require.Equal(t, bridge.WithdrawalReleased, stored.Status)
}

func TestRecoverInFlightResumesConfirmedBurn(t *testing.T) {
	db := testDB(t)
	thryxWallet := newFakeSender(eth(100))
	baseWallet := newFakeSender(eth(100))
	processor := newTestProcessor(t, db, thryxWallet, baseWallet)
	recipient := common.HexToAddress("0x0d")

	// Crashed after broadcasting the burn, before recording its outcome.
	guid := uuid.New()
	require.NoError(t, db.Withdrawals.StoreWithdrawal(bridge.Withdrawal{
		GUID:       guid,
		Recipient:  recipient,
		Amount:     eth(0.05),
		BurnTxHash: common.HexToHash("0xbb"),
		Status:     bridge.WithdrawalBurnPending,
		Timestamp:  uint64(time.Now().Unix()),
	}))

	require.NoError(t, processor.RecoverInFlight(context.Background()))

	stored, err := db.Withdrawals.WithdrawalByGUID(guid)
	require.NoError(t, err)
	require.Equal(t, bridge.WithdrawalReleased, stored.Status)
	require.Len(t, baseWallet.sends, 1)
}

func TestRecoverInFlightFailsUnbroadcastBurn(t *testing.T) {
	db := testDB(t)
	processor := newTestProcessor(t, db, newFakeSender(eth(100)), newFakeSender(eth(100)))

	guid := uuid.New()
	require.NoError(t, db.Withdrawals.StoreWithdrawal(bridge.Withdrawal{
		GUID:      guid,
		Recipient: common.HexToAddress("0x0e"),
		Amount:    eth(0.05),
		Status:    bridge.WithdrawalBurnPending,
		Timestamp: uint64(time.Now().Unix()),
	}))

	require.NoError(t, processor.RecoverInFlight(context.Background()))

	stored, err := db.Withdrawals.WithdrawalByGUID(guid)
	require.NoError(t, err)
	require.Equal(t, bridge.WithdrawalBurnFailed, stored.Status)
}

func TestRecoverInFlightParksUnresolvedBurn(t *testing.T) {
	db := testDB(t)
	thryxWallet := newFakeSender(eth(100))
	thryxWallet.receiptErr = errors.New("timeout")
	baseWallet := newFakeSender(eth(100))
	processor := newTestProcessor(t, db, thryxWallet, baseWallet)

	guid := uuid.New()
	require.NoError(t, db.Withdrawals.StoreWithdrawal(bridge.Withdrawal{
		GUID:       guid,
		Recipient:  common.HexToAddress("0x0f"),
		Amount:     eth(0.05),
		BurnTxHash: common.HexToHash("0xcc"),
		Status:     bridge.WithdrawalBurnPending,
		Timestamp:  uint64(time.Now().Unix()),
	}))

	require.NoError(t, processor.RecoverInFlight(context.Background()))

	stored, err := db.Withdrawals.WithdrawalByGUID(guid)
	require.NoError(t, err)
	require.Equal(t, bridge.WithdrawalManualRecovery, stored.Status)
	require.Empty(t, baseWallet.sends)
}

func TestReleaseMarkedSubmittedBeforeBroadcast(t *testing.T) {
	db := testDB(t)
	baseWallet := newFakeSender(eth(100))
	processor := newTestProcessor(t, db, newFakeSender(eth(100)), baseWallet)

	// At broadcast time the ledger must already show the release attempt,
	// so a crash during the send cannot leave a silently retryable record.
	baseWallet.onSend = func() {
		rows, err := db.Withdrawals.InterruptedReleaseWithdrawals()
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, bridge.WithdrawalReleaseSubmitted, rows[0].Status)
	}

	result, err := processor.Request(context.Background(), common.HexToAddress("0x10"), eth(0.05))
	require.NoError(t, err)
	require.Equal(t, OutcomeReleased, result.Outcome)
	require.Len(t, baseWallet.sends, 1)
}

func TestRecoverInFlightParksStrandedConfirmedBurn(t *testing.T) {
	db := testDB(t)
	baseWallet := newFakeSender(eth(100))
	processor := newTestProcessor(t, db, newFakeSender(eth(100)), baseWallet)

	// Crashed after the burn-confirmed commit, before a queue or release
	// decision was recorded.
	guid := uuid.New()
	require.NoError(t, db.Withdrawals.StoreWithdrawal(bridge.Withdrawal{
		GUID:       guid,
		Recipient:  common.HexToAddress("0x11"),
		Amount:     eth(0.05),
		BurnTxHash: common.HexToHash("0xdd"),
		Status:     bridge.WithdrawalBurnConfirmed,
		Timestamp:  uint64(time.Now().Unix()),
	}))

	require.NoError(t, processor.RecoverInFlight(context.Background()))

	stored, err := db.Withdrawals.WithdrawalByGUID(guid)
	require.NoError(t, err)
	require.Equal(t, bridge.WithdrawalManualRecovery, stored.Status)
	require.Empty(t, baseWallet.sends)

	recoveries, err := db.Withdrawals.ManualRecoveryWithdrawals()
	require.NoError(t, err)
	require.Len(t, recoveries, 1)
	require.Equal(t, guid, recoveries[0].GUID)

	require.NoError(t, processor.ReleaseMatured(context.Background(), time.Now().Add(48*time.Hour)))
	require.Empty(t, baseWallet.sends)
}

func TestRecoverInFlightParksUnresolvedRelease(t *testing.T) {
	db := testDB(t)
	baseWallet := newFakeSender(eth(100))
	processor := newTestProcessor(t, db, newFakeSender(eth(100)), baseWallet)

	// Crashed between the release broadcast and its terminal decision; the
	// payment may already be on its way to the recipient.
	now := uint64(time.Now().Unix())
	guid := uuid.New()
	require.NoError(t, db.Withdrawals.StoreWithdrawal(bridge.Withdrawal{
		GUID:          guid,
		Recipient:     common.HexToAddress("0x12"),
		Amount:        eth(0.2),
		BurnTxHash:    common.HexToHash("0xee"),
		ReleaseTxHash: common.HexToHash("0xef"),
		Status:        bridge.WithdrawalReleaseSubmitted,
		Timestamp:     now - 7200,
		ReleaseAfter:  now - 3600,
	}))

	require.NoError(t, processor.RecoverInFlight(context.Background()))

	stored, err := db.Withdrawals.WithdrawalByGUID(guid)
	require.NoError(t, err)
	require.Equal(t, bridge.WithdrawalManualRecovery, stored.Status)
	require.Empty(t, baseWallet.sends)

	require.NoError(t, processor.ReleaseMatured(context.Background(), time.Now().Add(48*time.Hour)))
	require.Empty(t, baseWallet.sends)
}

func TestRecoverInFlightKeepsOriginalMaturity(t *testing.T) {
	db := testDB(t)
	baseWallet := newFakeSender(eth(100))
	processor := newTestProcessor(t, db, newFakeSender(eth(100)), baseWallet)

	// A large withdrawal whose burn confirmed two hours ago; the hour-long
	// delay already elapsed during the downtime.
	requestedAt := uint64(time.Now().Add(-2 * time.Hour).Unix())
	guid := uuid.New()
	require.NoError(t, db.Withdrawals.StoreWithdrawal(bridge.Withdrawal{
		GUID:       guid,
		Recipient:  common.HexToAddress("0x13"),
		Amount:     eth(0.2),
		BurnTxHash: common.HexToHash("0xff"),
		Status:     bridge.WithdrawalBurnPending,
		Timestamp:  requestedAt,
	}))

	require.NoError(t, processor.RecoverInFlight(context.Background()))

	stored, err := db.Withdrawals.WithdrawalByGUID(guid)
	require.NoError(t, err)
	require.Equal(t, bridge.WithdrawalQueuedForDelay, stored.Status)
	require.Equal(t, requestedAt+3600, stored.ReleaseAfter)

	require.NoError(t, processor.ReleaseMatured(context.Background(), time.Now()))
	require.Len(t, baseWallet.sends, 1)
}
