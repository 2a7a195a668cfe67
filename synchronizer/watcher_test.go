package synchronizer

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

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/lordbasilaiassistant-sudo/thryx-chain/config"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/database"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/database/bridge"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/metrics"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/ratelimit"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/synchronizer/node"
)

var (
	testDepositAddress = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testBaseUSDC       = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
)

type fakeClient struct {
	head   uint64
	blocks map[uint64]*node.RPCBlock
	logs   []types.Log
}

func (f *fakeClient) BlockHeaderByNumber(number *big.Int) (*types.Header, error) {
	if number == nil {
		return &types.Header{Number: new(big.Int).SetUint64(f.head), Time: f.head * 2}, nil
	}
	return &types.Header{Number: number, Time: number.Uint64() * 2}, nil
}

func (f *fakeClient) BlockByNumber(number uint64) (*node.RPCBlock, error) {
	if block, ok := f.blocks[number]; ok {
		return block, nil
	}
	return &node.RPCBlock{Header: types.Header{Number: new(big.Int).SetUint64(number), Time: number * 2}}, nil
}

func (f *fakeClient) TxReceiptByHash(common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

func (f *fakeClient) FilterLogs(query ethereum.FilterQuery) (node.Logs, error) {
	var matched []types.Log
	for _, l := range f.logs {
		if l.BlockNumber >= query.FromBlock.Uint64() && l.BlockNumber <= query.ToBlock.Uint64() {
			matched = append(matched, l)
		}
	}
	return node.Logs{Logs: matched, ToBlockHeader: &types.Header{Number: query.ToBlock}}, nil
}

func (f *fakeClient) GetBalance(common.Address) (*big.Int, error) { return new(big.Int), nil }
func (f *fakeClient) NonceAt(common.Address) (uint64, error)      { return 0, nil }
func (f *fakeClient) SuggestGasPrice() (*big.Int, error)          { return big.NewInt(1), nil }
func (f *fakeClient) SendRawTransaction(*types.Transaction) error { return nil }
func (f *fakeClient) Close()                                      {}

type fakeMinter struct {
	deposits bridge.DepositsDB
	credits  int
	fail     bool
}

func (f *fakeMinter) Credit(ctx context.Context, deposit *bridge.Deposit) (common.Hash, error) {
	if f.fail {
		return common.Hash{}, context.DeadlineExceeded
	}
	f.credits++
	mintTxHash := common.HexToHash("0xabcd")
	if err := f.deposits.MarkDepositCredited(deposit.TxHash, mintTxHash); err != nil {
		return common.Hash{}, err
	}
	return mintTxHash, nil
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

func testChainConfig() config.ChainConfig {
	return config.ChainConfig{
		BaseChainID:     8453,
		ThryxChainID:    77777,
		ScanBatchSize:   50,
		LookbackBlocks:  100,
		PollingInterval: 10 * time.Second,
	}
}

func testBridgeConfig() config.BridgeConfig {
	return config.BridgeConfig{
		DepositAddress: testDepositAddress,
		BaseUSDC:       testBaseUSDC,
		Limits: config.LimitsConfig{
			MaxDepositPerTx:          eth(10),
			MaxDepositPerDay:         eth(50),
			MaxWithdrawalPerTx:       eth(1),
			MaxWithdrawalPerDay:      eth(5),
			WithdrawalCooldown:       300 * time.Second,
			LargeWithdrawalThreshold: eth(0.1),
			WithdrawalDelay:          time.Hour,
		},
	}
}

func newTestWatcher(t *testing.T, db *database.DB, client *fakeClient, minter Crediter) *Watcher {
	limiter := ratelimit.NewLimiter(testBridgeConfig().Limits, db.DailyTotals)
	watcher, err := NewWatcher(log.New(), metrics.NewWatcherMetrics(metrics.NewRegistry()), db, client,
		limiter, minter, testChainConfig(), testBridgeConfig(), func(error) {})
	require.NoError(t, err)
	return watcher
}

func signedDeposit(t *testing.T, value *big.Int, nonce uint64) (*types.Transaction, common.Address) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := types.LatestSignerForChainID(big.NewInt(8453))
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &testDepositAddress,
		Value:    value,
		Gas:      21_000,
		GasPrice: big.NewInt(1),
	})
	signedTx, err := types.SignTx(tx, signer, key)
	require.NoError(t, err)
	return signedTx, crypto.PubkeyToAddress(key.PublicKey)
}

func TestScanCreditsNativeDeposit(t *testing.T) {
	db := testDB(t)
	tx, sender := signedDeposit(t, eth(1), 0)
	client := &fakeClient{
		head: 105,
		blocks: map[uint64]*node.RPCBlock{
			103: {Header: types.Header{Number: big.NewInt(103), Time: 206}, Transactions: types.Transactions{tx}},
		},
	}
	minter := &fakeMinter{deposits: db.Deposits}
	watcher := newTestWatcher(t, db, client, minter)

	require.NoError(t, watcher.ScanOnce(context.Background()))

	deposit, err := db.Deposits.DepositByTxHash(tx.Hash())
	require.NoError(t, err)
	require.NotNil(t, deposit)
	require.Equal(t, bridge.DepositCredited, deposit.Status)
	require.Equal(t, sender, deposit.FromAddress)
	require.Zero(t, deposit.Amount.Cmp(eth(1)))
	require.Equal(t, 1, minter.credits)

	checkpoint, err := db.Checkpoints.GetCheckpoint(CheckpointName)
	require.NoError(t, err)
	require.Equal(t, uint64(105), checkpoint)

	total, err := db.DailyTotals.DailyTotal(bridge.TotalKindDeposit, sender, bridge.DayKey(time.Now()))
	require.NoError(t, err)
	require.Zero(t, total.Cmp(eth(1)))
}

func TestRescanAfterCrashIsIdempotent(t *testing.T) {
	db := testDB(t)
	tx, _ := signedDeposit(t, eth(1), 0)
	client := &fakeClient{
		head: 105,
		blocks: map[uint64]*node.RPCBlock{
			103: {Header: types.Header{Number: big.NewInt(103), Time: 206}, Transactions: types.Transactions{tx}},
		},
	}
	minter := &fakeMinter{deposits: db.Deposits}
	watcher := newTestWatcher(t, db, client, minter)

	require.NoError(t, watcher.ScanOnce(context.Background()))

	// Roll the checkpoint back as if the process died before persisting it.
	require.NoError(t, db.Checkpoints.SetCheckpoint(CheckpointName, 100, 200))
	require.NoError(t, watcher.ScanOnce(context.Background()))

	require.Equal(t, 1, minter.credits)
	deposits, total := db.Deposits.DepositList("0x00", 1, 10, "asc")
	require.Equal(t, int64(1), total)
	require.Len(t, deposits, 1)
}

func TestOversizeDepositRejectedAndMarkedProcessed(t *testing.T) {
	db := testDB(t)
	tx, _ := signedDeposit(t, new(big.Int).Add(eth(10), big.NewInt(1)), 0)
	client := &fakeClient{
		head: 105,
		blocks: map[uint64]*node.RPCBlock{
			104: {Header: types.Header{Number: big.NewInt(104), Time: 208}, Transactions: types.Transactions{tx}},
		},
	}
	minter := &fakeMinter{deposits: db.Deposits}
	watcher := newTestWatcher(t, db, client, minter)

	require.NoError(t, watcher.ScanOnce(context.Background()))

	deposit, err := db.Deposits.DepositByTxHash(tx.Hash())
	require.NoError(t, err)
	require.NotNil(t, deposit)
	require.Equal(t, bridge.DepositRejected, deposit.Status)
	require.Equal(t, "exceeds per-transaction limit", deposit.RejectReason)
	require.Zero(t, minter.credits)

	processed, err := db.Deposits.IsProcessed(tx.Hash())
	require.NoError(t, err)
	require.True(t, processed)
}

func TestTokenDepositDetectedFromTransferLog(t *testing.T) {
	db := testDB(t)
	from := common.HexToAddress("0x22")
	amount := big.NewInt(2_000_000)
	client := &fakeClient{
		head: 105,
		logs: []types.Log{{
			Address:     testBaseUSDC,
			Topics:      []common.Hash{transferTopic, from.Hash(), testDepositAddress.Hash()},
			Data:        common.LeftPadBytes(amount.Bytes(), 32),
			BlockNumber: 102,
			TxHash:      common.HexToHash("0x77"),
		}},
	}
	minter := &fakeMinter{deposits: db.Deposits}
	watcher := newTestWatcher(t, db, client, minter)

	require.NoError(t, watcher.ScanOnce(context.Background()))

	deposit, err := db.Deposits.DepositByTxHash(common.HexToHash("0x77"))
	require.NoError(t, err)
	require.NotNil(t, deposit)
	require.Equal(t, bridge.DepositCredited, deposit.Status)
	require.Equal(t, testBaseUSDC, deposit.TokenAddress)
	require.Equal(t, from, deposit.FromAddress)
	require.Zero(t, deposit.Amount.Cmp(amount))
}

func TestCreditFailureLeavesDepositPending(t *testing.T) {
	db := testDB(t)
	tx, _ := signedDeposit(t, eth(1), 0)
	client := &fakeClient{
		head: 105,
		blocks: map[uint64]*node.RPCBlock{
			103: {Header: types.Header{Number: big.NewInt(103), Time: 206}, Transactions: types.Transactions{tx}},
		},
	}
	minter := &fakeMinter{deposits: db.Deposits, fail: true}
	watcher := newTestWatcher(t, db, client, minter)

	require.NoError(t, watcher.ScanOnce(context.Background()))

	deposit, err := db.Deposits.DepositByTxHash(tx.Hash())
	require.NoError(t, err)
	require.NotNil(t, deposit)
	require.Equal(t, bridge.DepositPending, deposit.Status)

	// The next cycle retries the pending credit.
	minter.fail = false
	require.NoError(t, watcher.ScanOnce(context.Background()))
	deposit, err = db.Deposits.DepositByTxHash(tx.Hash())
	require.NoError(t, err)
	require.Equal(t, bridge.DepositCredited, deposit.Status)
	require.Equal(t, 1, minter.credits)
}
