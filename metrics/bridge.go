package metrics

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lordbasilaiassistant-sudo/thryx-chain/common/bigint"
)

// WatcherMetricer records deposit-side scan progress.
type WatcherMetricer interface {
	RecordScannedRange(blocks int)
	RecordCheckpoint(blockNumber uint64)
	RecordLatestHead(blockNumber uint64)
	RecordDepositDetected(token string)
	RecordDepositRejected(token string)
	RecordDepositCredited(token string)
}

type watcherMetrics struct {
	scannedBlocksTotal    prometheus.Counter
	checkpointHeight      prometheus.Gauge
	latestHeadHeight      prometheus.Gauge
	depositsDetectedTotal *prometheus.CounterVec
	depositsRejectedTotal *prometheus.CounterVec
	depositsCreditedTotal *prometheus.CounterVec
}

func NewWatcherMetrics(registry *prometheus.Registry) WatcherMetricer {
	factory := With(registry)
	return &watcherMetrics{
		scannedBlocksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "watcher",
			Name:      "scanned_blocks_total",
			Help:      "Total Base blocks scanned for deposits",
		}),
		checkpointHeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: "watcher",
			Name:      "checkpoint_height",
			Help:      "Last fully-scanned Base block number",
		}),
		latestHeadHeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: "watcher",
			Name:      "latest_head_height",
			Help:      "Latest observed Base head block number",
		}),
		depositsDetectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "watcher",
			Name:      "deposits_detected_total",
			Help:      "Total deposits observed addressed to the bridge wallet",
		}, []string{"token"}),
		depositsRejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "watcher",
			Name:      "deposits_rejected_total",
			Help:      "Total deposits rejected by admission policy",
		}, []string{"token"}),
		depositsCreditedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "watcher",
			Name:      "deposits_credited_total",
			Help:      "Total deposits credited on Thryx",
		}, []string{"token"}),
	}
}

func (m *watcherMetrics) RecordScannedRange(blocks int) {
	m.scannedBlocksTotal.Add(float64(blocks))
}

func (m *watcherMetrics) RecordCheckpoint(blockNumber uint64) {
	m.checkpointHeight.Set(float64(blockNumber))
}

func (m *watcherMetrics) RecordLatestHead(blockNumber uint64) {
	m.latestHeadHeight.Set(float64(blockNumber))
}

func (m *watcherMetrics) RecordDepositDetected(token string) {
	m.depositsDetectedTotal.WithLabelValues(token).Inc()
}

func (m *watcherMetrics) RecordDepositRejected(token string) {
	m.depositsRejectedTotal.WithLabelValues(token).Inc()
}

func (m *watcherMetrics) RecordDepositCredited(token string) {
	m.depositsCreditedTotal.WithLabelValues(token).Inc()
}

// WithdrawMetricer records withdrawal protocol outcomes. The manual-recovery
// gauge is the alerting surface for burned-but-unreleased records.
type WithdrawMetricer interface {
	RecordRequest(outcome string)
	RecordBurnConfirmed()
	RecordReleased()
	RecordQueued()
	RecordAvailableLiquidity(wei *big.Int)
	SetManualRecoveryCount(n int)
}

type withdrawMetrics struct {
	requestsTotal       *prometheus.CounterVec
	burnsConfirmedTotal prometheus.Counter
	releasedTotal       prometheus.Counter
	queuedTotal         prometheus.Counter
	availableLiquidity  prometheus.Gauge
	manualRecoveryCount prometheus.Gauge
}

func NewWithdrawMetrics(registry *prometheus.Registry) WithdrawMetricer {
	factory := With(registry)
	return &withdrawMetrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "withdraw",
			Name:      "requests_total",
			Help:      "Total withdrawal requests by outcome",
		}, []string{"outcome"}),
		burnsConfirmedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "withdraw",
			Name:      "burns_confirmed_total",
			Help:      "Total confirmed Thryx burns",
		}),
		releasedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "withdraw",
			Name:      "released_total",
			Help:      "Total confirmed Base releases",
		}),
		queuedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "withdraw",
			Name:      "queued_total",
			Help:      "Total withdrawals queued for delayed release",
		}),
		availableLiquidity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: "withdraw",
			Name:      "available_liquidity_eth",
			Help:      "Base wallet balance net of the gas reserve and outstanding releases, in ether",
		}),
		manualRecoveryCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: "withdraw",
			Name:      "manual_recovery_count",
			Help:      "Withdrawals burned but not released, awaiting operator action",
		}),
	}
}

func (m *withdrawMetrics) RecordRequest(outcome string) {
	m.requestsTotal.WithLabelValues(outcome).Inc()
}

func (m *withdrawMetrics) RecordBurnConfirmed() {
	m.burnsConfirmedTotal.Inc()
}

func (m *withdrawMetrics) RecordReleased() {
	m.releasedTotal.Inc()
}

func (m *withdrawMetrics) RecordQueued() {
	m.queuedTotal.Inc()
}

func (m *withdrawMetrics) RecordAvailableLiquidity(wei *big.Int) {
	eth, _ := bigint.WeiToETH(wei).Float64()
	m.availableLiquidity.Set(eth)
}

func (m *withdrawMetrics) SetManualRecoveryCount(n int) {
	m.manualRecoveryCount.Set(float64(n))
}
