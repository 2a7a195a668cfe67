package ratelimit

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lordbasilaiassistant-sudo/thryx-chain/config"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/database/bridge"
)

type fakeTotals struct {
	totals map[string]*big.Int
	last   map[common.Address]uint64
}

func newFakeTotals() *fakeTotals {
	return &fakeTotals{totals: make(map[string]*big.Int), last: make(map[common.Address]uint64)}
}

func (f *fakeTotals) key(kind int16, address common.Address, day string) string {
	return string(rune(kind)) + address.Hex() + day
}

func (f *fakeTotals) DailyTotal(kind int16, address common.Address, day string) (*big.Int, error) {
	if total, ok := f.totals[f.key(kind, address, day)]; ok {
		return total, nil
	}
	return new(big.Int), nil
}

func (f *fakeTotals) LastWithdrawal(address common.Address) (uint64, error) {
	return f.last[address], nil
}

func (f *fakeTotals) add(kind int16, address common.Address, day string, amount *big.Int) {
	k := f.key(kind, address, day)
	if _, ok := f.totals[k]; !ok {
		f.totals[k] = new(big.Int)
	}
	f.totals[k].Add(f.totals[k], amount)
}

func eth(n float64) *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(n), big.NewFloat(1e18)).Int(nil)
	return wei
}

func testLimits() config.LimitsConfig {
	return config.LimitsConfig{
		MaxDepositPerTx:          eth(10),
		MaxDepositPerDay:         eth(50),
		MaxWithdrawalPerTx:       eth(1),
		MaxWithdrawalPerDay:      eth(5),
		WithdrawalCooldown:       300 * time.Second,
		LargeWithdrawalThreshold: eth(0.1),
		WithdrawalDelay:          time.Hour,
	}
}

func TestDepositPerTxLimit(t *testing.T) {
	limiter := NewLimiter(testLimits(), newFakeTotals())
	addr := common.HexToAddress("0x01")
	now := time.Now()

	decision, err := limiter.CheckDeposit(addr, eth(10), now)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = limiter.CheckDeposit(addr, new(big.Int).Add(eth(10), big.NewInt(1)), now)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, "exceeds per-transaction limit", decision.Reason)
}

func TestDepositDailyLimit(t *testing.T) {
	totals := newFakeTotals()
	limiter := NewLimiter(testLimits(), totals)
	addr := common.HexToAddress("0x01")
	now := time.Now()

	totals.add(bridge.TotalKindDeposit, addr, bridge.DayKey(now), eth(45))

	decision, err := limiter.CheckDeposit(addr, eth(5), now)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = limiter.CheckDeposit(addr, eth(6), now)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, "exceeds daily limit", decision.Reason)
}

func TestDepositDailyLimitResetsAcrossDays(t *testing.T) {
	totals := newFakeTotals()
	limiter := NewLimiter(testLimits(), totals)
	addr := common.HexToAddress("0x01")
	now := time.Now()

	totals.add(bridge.TotalKindDeposit, addr, bridge.DayKey(now), eth(50))

	decision, err := limiter.CheckDeposit(addr, eth(1), now)
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	decision, err = limiter.CheckDeposit(addr, eth(1), now.Add(24*time.Hour))
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestWithdrawalDailyLimitSecondRequest(t *testing.T) {
	totals := newFakeTotals()
	limiter := NewLimiter(testLimits(), totals)
	addr := common.HexToAddress("0x02")
	now := time.Now()

	totals.add(bridge.TotalKindWithdrawal, addr, bridge.DayKey(now), eth(3))

	decision, err := limiter.CheckWithdrawal(addr, eth(1), now)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	totals.add(bridge.TotalKindWithdrawal, addr, bridge.DayKey(now), eth(2))
	decision, err = limiter.CheckWithdrawal(addr, eth(1), now)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, "exceeds daily limit", decision.Reason)
}

func TestWithdrawalCooldown(t *testing.T) {
	totals := newFakeTotals()
	limiter := NewLimiter(testLimits(), totals)
	addr := common.HexToAddress("0x03")
	now := time.Now()

	totals.last[addr] = uint64(now.Unix()) - 100

	decision, err := limiter.CheckWithdrawal(addr, eth(0.5), now)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, "cooldown in effect", decision.Reason)

	decision, err = limiter.CheckWithdrawal(addr, eth(0.5), now.Add(201*time.Second))
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestCooldownDoesNotApplyToFirstWithdrawal(t *testing.T) {
	limiter := NewLimiter(testLimits(), newFakeTotals())

	decision, err := limiter.CheckWithdrawal(common.HexToAddress("0x04"), eth(0.5), time.Now())
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestPerTxCheckedBeforeDaily(t *testing.T) {
	totals := newFakeTotals()
	limiter := NewLimiter(testLimits(), totals)
	addr := common.HexToAddress("0x05")
	now := time.Now()

	totals.add(bridge.TotalKindWithdrawal, addr, bridge.DayKey(now), eth(5))

	decision, err := limiter.CheckWithdrawal(addr, eth(2), now)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, "exceeds per-transaction limit", decision.Reason)
}

func TestLargeWithdrawalThresholdInclusive(t *testing.T) {
	limiter := NewLimiter(testLimits(), newFakeTotals())

	require.True(t, limiter.IsLarge(eth(0.1)))
	require.True(t, limiter.IsLarge(eth(0.2)))
	require.False(t, limiter.IsLarge(new(big.Int).Sub(eth(0.1), big.NewInt(1))))
}
