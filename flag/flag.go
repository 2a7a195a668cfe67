package flag

import (
	"time"

	"github.com/urfave/cli/v2"
)

const envVarPrefix = "THRYX_BRIDGE"

func prefixEnvVars(name string) []string {
	return []string{envVarPrefix + "_" + name}
}

var (
	// Required flags
	MigrationsFlag = &cli.StringFlag{
		Name:    "migrations-dir",
		Value:   "./migrations",
		Usage:   "path to migrations folder",
		EnvVars: prefixEnvVars("MIGRATIONS_DIR"),
	}
	BaseEthRpcFlag = &cli.StringFlag{
		Name:     "base-eth-rpc",
		Usage:    "HTTP provider URL for Base",
		EnvVars:  prefixEnvVars("BASE_RPC"),
		Required: true,
	}
	ThryxEthRpcFlag = &cli.StringFlag{
		Name:     "thryx-eth-rpc",
		Usage:    "HTTP provider URL for Thryx",
		EnvVars:  prefixEnvVars("THRYX_RPC"),
		Required: true,
	}
	HttpHostFlag = &cli.StringFlag{
		Name:     "http-host",
		Usage:    "The host of the api",
		EnvVars:  prefixEnvVars("HTTP_HOST"),
		Required: true,
	}
	HttpPortFlag = &cli.IntFlag{
		Name:     "http-port",
		Usage:    "The port of the api",
		EnvVars:  prefixEnvVars("HTTP_PORT"),
		Value:    8987,
		Required: true,
	}
	MetricsHostFlag = &cli.StringFlag{
		Name:     "metrics-host",
		Usage:    "The host of the metrics",
		EnvVars:  prefixEnvVars("METRICS_HOST"),
		Required: true,
	}
	MetricsPortFlag = &cli.IntFlag{
		Name:     "metrics-port",
		Usage:    "The port of the metrics",
		EnvVars:  prefixEnvVars("METRICS_PORT"),
		Value:    7214,
		Required: true,
	}
	SlaveDbEnableFlag = &cli.BoolFlag{
		Name:     "slave-db-enable",
		Usage:    "Whether to use slave db",
		EnvVars:  prefixEnvVars("SLAVE_DB_ENABLE"),
		Required: true,
	}
	MasterDbHostFlag = &cli.StringFlag{
		Name:     "master-db-host",
		Usage:    "The host of the master database",
		EnvVars:  prefixEnvVars("MASTER_DB_HOST"),
		Required: true,
	}
	MasterDbPortFlag = &cli.IntFlag{
		Name:     "master-db-port",
		Usage:    "The port of the master database",
		EnvVars:  prefixEnvVars("MASTER_DB_PORT"),
		Required: true,
	}
	MasterDbUserFlag = &cli.StringFlag{
		Name:     "master-db-user",
		Usage:    "The user of the master database",
		EnvVars:  prefixEnvVars("MASTER_DB_USER"),
		Required: true,
	}
	MasterDbPasswordFlag = &cli.StringFlag{
		Name:     "master-db-password",
		Usage:    "The password of the master database",
		EnvVars:  prefixEnvVars("MASTER_DB_PASSWORD"),
		Required: true,
	}
	MasterDbNameFlag = &cli.StringFlag{
		Name:     "master-db-name",
		Usage:    "The db name of the master database",
		EnvVars:  prefixEnvVars("MASTER_DB_NAME"),
		Required: true,
	}
	DepositAddressFlag = &cli.StringFlag{
		Name:     "deposit-address",
		Usage:    "The bridge receiving wallet on Base",
		EnvVars:  prefixEnvVars("DEPOSIT_ADDRESS"),
		Required: true,
	}
	BaseWalletKeyFlag = &cli.StringFlag{
		Name:     "base-wallet-key",
		Usage:    "Hex private key of the Base release wallet",
		EnvVars:  prefixEnvVars("BASE_WALLET_KEY"),
		Required: true,
	}
	ThryxMinterKeyFlag = &cli.StringFlag{
		Name:     "thryx-minter-key",
		Usage:    "Hex private key of the Thryx minter wallet",
		EnvVars:  prefixEnvVars("THRYX_MINTER_KEY"),
		Required: true,
	}

	// Optional flags
	BaseChainIdFlag = &cli.UintFlag{
		Name:    "base-chain-id",
		Usage:   "The chain id of Base",
		EnvVars: prefixEnvVars("BASE_CHAIN_ID"),
		Value:   8453,
	}
	ThryxChainIdFlag = &cli.UintFlag{
		Name:    "thryx-chain-id",
		Usage:   "The chain id of Thryx",
		EnvVars: prefixEnvVars("THRYX_CHAIN_ID"),
		Value:   77777,
	}
	BurnAddressFlag = &cli.StringFlag{
		Name:    "burn-address",
		Usage:   "The unspendable sink address for withdrawal burns",
		EnvVars: prefixEnvVars("BURN_ADDRESS"),
		Value:   "0x000000000000000000000000000000000000dEaD",
	}
	BaseUSDCAddressFlag = &cli.StringFlag{
		Name:    "base-usdc-address",
		Usage:   "The USDC contract on Base",
		EnvVars: prefixEnvVars("BASE_USDC_ADDRESS"),
		Value:   "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
	}
	ThryxUSDCAddressFlag = &cli.StringFlag{
		Name:    "thryx-usdc-address",
		Usage:   "The mintable USDC contract on Thryx",
		EnvVars: prefixEnvVars("THRYX_USDC_ADDRESS"),
	}
	ScanBatchSizeFlag = &cli.UintFlag{
		Name:    "scan-batch-size",
		Usage:   "Max number of Base blocks scanned per watcher cycle",
		EnvVars: prefixEnvVars("SCAN_BATCH_SIZE"),
		Value:   50,
	}
	LookbackBlocksFlag = &cli.UintFlag{
		Name:    "lookback-blocks",
		Usage:   "How far behind head the first scan starts when no checkpoint exists",
		EnvVars: prefixEnvVars("LOOKBACK_BLOCKS"),
		Value:   100,
	}
	PollingIntervalFlag = &cli.DurationFlag{
		Name:    "polling-interval",
		Usage:   "The interval of the deposit scan cycle",
		EnvVars: prefixEnvVars("POLLING_INTERVAL"),
		Value:   10 * time.Second,
	}
	SchedulerIntervalFlag = &cli.DurationFlag{
		Name:    "scheduler-interval",
		Usage:   "The poll interval of the withdrawal delay scheduler",
		EnvVars: prefixEnvVars("SCHEDULER_INTERVAL"),
		Value:   30 * time.Second,
	}
	MaxDepositPerTxFlag = &cli.StringFlag{
		Name:    "max-deposit-per-tx",
		Usage:   "Max deposit amount per transaction, in wei",
		EnvVars: prefixEnvVars("MAX_DEPOSIT_PER_TX"),
		Value:   "10000000000000000000", // 10 ETH
	}
	MaxDepositPerDayFlag = &cli.StringFlag{
		Name:    "max-deposit-per-day",
		Usage:   "Max deposit amount per address per day, in wei",
		EnvVars: prefixEnvVars("MAX_DEPOSIT_PER_DAY"),
		Value:   "50000000000000000000", // 50 ETH
	}
	MaxWithdrawalPerTxFlag = &cli.StringFlag{
		Name:    "max-withdrawal-per-tx",
		Usage:   "Max withdrawal amount per transaction, in wei",
		EnvVars: prefixEnvVars("MAX_WITHDRAWAL_PER_TX"),
		Value:   "1000000000000000000", // 1 ETH
	}
	MaxWithdrawalPerDayFlag = &cli.StringFlag{
		Name:    "max-withdrawal-per-day",
		Usage:   "Max withdrawal amount per address per day, in wei",
		EnvVars: prefixEnvVars("MAX_WITHDRAWAL_PER_DAY"),
		Value:   "5000000000000000000", // 5 ETH
	}
	WithdrawalCooldownFlag = &cli.DurationFlag{
		Name:    "withdrawal-cooldown",
		Usage:   "Minimum time between withdrawals from the same address",
		EnvVars: prefixEnvVars("WITHDRAWAL_COOLDOWN"),
		Value:   300 * time.Second,
	}
	LargeWithdrawalThresholdFlag = &cli.StringFlag{
		Name:    "large-withdrawal-threshold",
		Usage:   "Withdrawals at or above this amount (wei) are delayed",
		EnvVars: prefixEnvVars("LARGE_WITHDRAWAL_THRESHOLD"),
		Value:   "100000000000000000", // 0.1 ETH
	}
	WithdrawalDelayFlag = &cli.DurationFlag{
		Name:    "withdrawal-delay",
		Usage:   "Hold time before a large withdrawal is released",
		EnvVars: prefixEnvVars("WITHDRAWAL_DELAY"),
		Value:   time.Hour,
	}
	ConfirmationTimeoutFlag = &cli.DurationFlag{
		Name:    "confirmation-timeout",
		Usage:   "Max time to wait for a submitted transaction to confirm",
		EnvVars: prefixEnvVars("CONFIRMATION_TIMEOUT"),
		Value:   60 * time.Second,
	}
	GasReserveFlag = &cli.StringFlag{
		Name:    "gas-reserve",
		Usage:   "Wei held back from the Base wallet when computing release liquidity",
		EnvVars: prefixEnvVars("GAS_RESERVE"),
		Value:   "200000000000000", // 0.0002 ETH
	}
	SlaveDbHostFlag = &cli.StringFlag{
		Name:    "slave-db-host",
		Usage:   "The host of the slave database",
		EnvVars: prefixEnvVars("SLAVE_DB_HOST"),
	}
	SlaveDbPortFlag = &cli.IntFlag{
		Name:    "slave-db-port",
		Usage:   "The port of the slave database",
		EnvVars: prefixEnvVars("SLAVE_DB_PORT"),
	}
	SlaveDbUserFlag = &cli.StringFlag{
		Name:    "slave-db-user",
		Usage:   "The user of the slave database",
		EnvVars: prefixEnvVars("SLAVE_DB_USER"),
	}
	SlaveDbPasswordFlag = &cli.StringFlag{
		Name:    "slave-db-password",
		Usage:   "The password of the slave database",
		EnvVars: prefixEnvVars("SLAVE_DB_PASSWORD"),
	}
	SlaveDbNameFlag = &cli.StringFlag{
		Name:    "slave-db-name",
		Usage:   "The db name of the slave database",
		EnvVars: prefixEnvVars("SLAVE_DB_NAME"),
	}
	ApiCacheEnableFlag = &cli.BoolFlag{
		Name:    "api-cache-enable",
		Usage:   "Whether to cache api list responses",
		EnvVars: prefixEnvVars("API_CACHE_ENABLE"),
		Value:   false,
	}
	CacheListSizeFlag = &cli.IntFlag{
		Name:    "cache-list-size",
		Usage:   "The size of list cache",
		EnvVars: prefixEnvVars("CACHE_LIST_SIZE"),
		Value:   100,
	}
	CacheListExpireTimeFlag = &cli.DurationFlag{
		Name:    "cache-list-expire-time",
		Usage:   "The expire time of list cache",
		EnvVars: prefixEnvVars("CACHE_LIST_EXPIRE_TIME"),
		Value:   time.Second * 10,
	}
	CacheDetailSizeFlag = &cli.IntFlag{
		Name:    "cache-detail-size",
		Usage:   "The size of detail cache",
		EnvVars: prefixEnvVars("CACHE_DETAIL_SIZE"),
		Value:   100,
	}
	CacheDetailExpireTimeFlag = &cli.DurationFlag{
		Name:    "cache-detail-expire-time",
		Usage:   "The expire time of detail cache",
		EnvVars: prefixEnvVars("CACHE_DETAIL_EXPIRE_TIME"),
		Value:   time.Second * 10,
	}
)

var requiredFlags = []cli.Flag{
	BaseEthRpcFlag,
	ThryxEthRpcFlag,
	HttpHostFlag,
	HttpPortFlag,
	MetricsHostFlag,
	MetricsPortFlag,
	SlaveDbEnableFlag,
	MasterDbHostFlag,
	MasterDbPortFlag,
	MasterDbUserFlag,
	MasterDbPasswordFlag,
	MasterDbNameFlag,
	DepositAddressFlag,
	BaseWalletKeyFlag,
	ThryxMinterKeyFlag,
}

var optionalFlags = []cli.Flag{
	MigrationsFlag,
	BaseChainIdFlag,
	ThryxChainIdFlag,
	BurnAddressFlag,
	BaseUSDCAddressFlag,
	ThryxUSDCAddressFlag,
	ScanBatchSizeFlag,
	LookbackBlocksFlag,
	PollingIntervalFlag,
	SchedulerIntervalFlag,
	MaxDepositPerTxFlag,
	MaxDepositPerDayFlag,
	MaxWithdrawalPerTxFlag,
	MaxWithdrawalPerDayFlag,
	WithdrawalCooldownFlag,
	LargeWithdrawalThresholdFlag,
	WithdrawalDelayFlag,
	ConfirmationTimeoutFlag,
	GasReserveFlag,
	SlaveDbHostFlag,
	SlaveDbPortFlag,
	SlaveDbUserFlag,
	SlaveDbPasswordFlag,
	SlaveDbNameFlag,
	ApiCacheEnableFlag,
	CacheListSizeFlag,
	CacheListExpireTimeFlag,
	CacheDetailSizeFlag,
	CacheDetailExpireTimeFlag,
}

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

// Flags contains the list of configuration options available to the binary.
var Flags []cli.Flag
