package ratelimit

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lordbasilaiassistant-sudo/thryx-chain/config"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/database/bridge"
)

// Decision is the outcome of a policy check. Reason is empty when Allowed.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Limiter evaluates the bridge transfer policy against the persisted daily
// totals. Rules are checked in a fixed order and the first violation wins:
// per-transaction cap, then per-address daily cap, then (withdrawals only)
// the per-address cooldown.
type Limiter struct {
	limits config.LimitsConfig
	totals bridge.DailyTotalsView
}

func NewLimiter(limits config.LimitsConfig, totals bridge.DailyTotalsView) *Limiter {
	return &Limiter{limits: limits, totals: totals}
}

// CheckDeposit evaluates a credit of amount to address at time now.
func (l *Limiter) CheckDeposit(address common.Address, amount *big.Int, now time.Time) (Decision, error) {
	if amount.Cmp(l.limits.MaxDepositPerTx) > 0 {
		return deny("exceeds per-transaction limit"), nil
	}
	return l.checkDaily(address, amount, now, bridge.TotalKindDeposit, l.limits.MaxDepositPerDay)
}

// CheckWithdrawal evaluates a withdrawal of amount by address at time now.
func (l *Limiter) CheckWithdrawal(address common.Address, amount *big.Int, now time.Time) (Decision, error) {
	if amount.Cmp(l.limits.MaxWithdrawalPerTx) > 0 {
		return deny("exceeds per-transaction limit"), nil
	}
	decision, err := l.checkDaily(address, amount, now, bridge.TotalKindWithdrawal, l.limits.MaxWithdrawalPerDay)
	if err != nil || !decision.Allowed {
		return decision, err
	}
	last, err := l.totals.LastWithdrawal(address)
	if err != nil {
		return Decision{}, err
	}
	if last > 0 {
		elapsed := now.Unix() - int64(last)
		if elapsed < int64(l.limits.WithdrawalCooldown.Seconds()) {
			return deny("cooldown in effect"), nil
		}
	}
	return allow(), nil
}

// IsLarge reports whether a withdrawal amount is at or above the delay
// threshold. The threshold itself counts as large.
func (l *Limiter) IsLarge(amount *big.Int) bool {
	return amount.Cmp(l.limits.LargeWithdrawalThreshold) >= 0
}

func (l *Limiter) checkDaily(address common.Address, amount *big.Int, now time.Time, kind int16, limit *big.Int) (Decision, error) {
	used, err := l.totals.DailyTotal(kind, address, bridge.DayKey(now))
	if err != nil {
		return Decision{}, err
	}
	if new(big.Int).Add(used, amount).Cmp(limit) > 0 {
		return deny("exceeds daily limit"), nil
	}
	return allow(), nil
}
