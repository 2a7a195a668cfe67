package config

import (
	"fmt"
	"math/big"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/lordbasilaiassistant-sudo/thryx-chain/flag"
)

type Config struct {
	Migrations     string
	Chain          ChainConfig
	RPCs           RPCsConfig
	Bridge         BridgeConfig
	MasterDB       DBConfig
	SlaveDB        DBConfig
	SlaveDbEnable  bool
	ApiCacheEnable bool
	CacheConfig    CacheConfig
	HTTPServer     ServerConfig
	MetricsServer  ServerConfig
}

type ChainConfig struct {
	BaseChainID       uint
	ThryxChainID      uint
	ScanBatchSize     uint
	LookbackBlocks    uint
	PollingInterval   time.Duration
	SchedulerInterval time.Duration
}

type RPCsConfig struct {
	BaseRPC  string
	ThryxRPC string
}

// BridgeConfig carries the bridge wallet identities, the token pair and the
// admission policy. Amount-denominated options are wei values.
type BridgeConfig struct {
	DepositAddress common.Address
	BurnAddress    common.Address
	BaseUSDC       common.Address
	ThryxUSDC      common.Address
	BaseWalletKey  string
	ThryxMinterKey string
	GasReserve     *big.Int
	Limits         LimitsConfig
}

type LimitsConfig struct {
	MaxDepositPerTx          *big.Int
	MaxDepositPerDay         *big.Int
	MaxWithdrawalPerTx       *big.Int
	MaxWithdrawalPerDay      *big.Int
	WithdrawalCooldown       time.Duration
	LargeWithdrawalThreshold *big.Int
	WithdrawalDelay          time.Duration
	ConfirmationTimeout      time.Duration
}

type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

type CacheConfig struct {
	ListSize         int
	DetailSize       int
	ListExpireTime   time.Duration
	DetailExpireTime time.Duration
}

type ServerConfig struct {
	Host string
	Port int
}

func weiAmount(ctx *cli.Context, name string) (*big.Int, error) {
	raw := ctx.String(name)
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid wei amount for %s: %q", name, raw)
	}
	return amount, nil
}

// LoadConfig assembles the full service configuration from CLI flags and
// their environment variable counterparts.
func LoadConfig(log log.Logger, ctx *cli.Context) (Config, error) {
	log.Debug("loading config")

	maxDepositPerTx, err := weiAmount(ctx, flag.MaxDepositPerTxFlag.Name)
	if err != nil {
		return Config{}, err
	}
	maxDepositPerDay, err := weiAmount(ctx, flag.MaxDepositPerDayFlag.Name)
	if err != nil {
		return Config{}, err
	}
	maxWithdrawalPerTx, err := weiAmount(ctx, flag.MaxWithdrawalPerTxFlag.Name)
	if err != nil {
		return Config{}, err
	}
	maxWithdrawalPerDay, err := weiAmount(ctx, flag.MaxWithdrawalPerDayFlag.Name)
	if err != nil {
		return Config{}, err
	}
	largeWithdrawalThreshold, err := weiAmount(ctx, flag.LargeWithdrawalThresholdFlag.Name)
	if err != nil {
		return Config{}, err
	}
	gasReserve, err := weiAmount(ctx, flag.GasReserveFlag.Name)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Migrations: ctx.String(flag.MigrationsFlag.Name),
		Chain: ChainConfig{
			BaseChainID:       ctx.Uint(flag.BaseChainIdFlag.Name),
			ThryxChainID:      ctx.Uint(flag.ThryxChainIdFlag.Name),
			ScanBatchSize:     ctx.Uint(flag.ScanBatchSizeFlag.Name),
			LookbackBlocks:    ctx.Uint(flag.LookbackBlocksFlag.Name),
			PollingInterval:   ctx.Duration(flag.PollingIntervalFlag.Name),
			SchedulerInterval: ctx.Duration(flag.SchedulerIntervalFlag.Name),
		},
		RPCs: RPCsConfig{
			BaseRPC:  ctx.String(flag.BaseEthRpcFlag.Name),
			ThryxRPC: ctx.String(flag.ThryxEthRpcFlag.Name),
		},
		Bridge: BridgeConfig{
			DepositAddress: common.HexToAddress(ctx.String(flag.DepositAddressFlag.Name)),
			BurnAddress:    common.HexToAddress(ctx.String(flag.BurnAddressFlag.Name)),
			BaseUSDC:       common.HexToAddress(ctx.String(flag.BaseUSDCAddressFlag.Name)),
			ThryxUSDC:      common.HexToAddress(ctx.String(flag.ThryxUSDCAddressFlag.Name)),
			BaseWalletKey:  ctx.String(flag.BaseWalletKeyFlag.Name),
			ThryxMinterKey: ctx.String(flag.ThryxMinterKeyFlag.Name),
			GasReserve:     gasReserve,
			Limits: LimitsConfig{
				MaxDepositPerTx:          maxDepositPerTx,
				MaxDepositPerDay:         maxDepositPerDay,
				MaxWithdrawalPerTx:       maxWithdrawalPerTx,
				MaxWithdrawalPerDay:      maxWithdrawalPerDay,
				WithdrawalCooldown:       ctx.Duration(flag.WithdrawalCooldownFlag.Name),
				LargeWithdrawalThreshold: largeWithdrawalThreshold,
				WithdrawalDelay:          ctx.Duration(flag.WithdrawalDelayFlag.Name),
				ConfirmationTimeout:      ctx.Duration(flag.ConfirmationTimeoutFlag.Name),
			},
		},
		MasterDB: DBConfig{
			Host:     ctx.String(flag.MasterDbHostFlag.Name),
			Port:     ctx.Int(flag.MasterDbPortFlag.Name),
			Name:     ctx.String(flag.MasterDbNameFlag.Name),
			User:     ctx.String(flag.MasterDbUserFlag.Name),
			Password: ctx.String(flag.MasterDbPasswordFlag.Name),
		},
		SlaveDB: DBConfig{
			Host:     ctx.String(flag.SlaveDbHostFlag.Name),
			Port:     ctx.Int(flag.SlaveDbPortFlag.Name),
			Name:     ctx.String(flag.SlaveDbNameFlag.Name),
			User:     ctx.String(flag.SlaveDbUserFlag.Name),
			Password: ctx.String(flag.SlaveDbPasswordFlag.Name),
		},
		SlaveDbEnable:  ctx.Bool(flag.SlaveDbEnableFlag.Name),
		ApiCacheEnable: ctx.Bool(flag.ApiCacheEnableFlag.Name),
		CacheConfig: CacheConfig{
			ListSize:         ctx.Int(flag.CacheListSizeFlag.Name),
			DetailSize:       ctx.Int(flag.CacheDetailSizeFlag.Name),
			ListExpireTime:   ctx.Duration(flag.CacheListExpireTimeFlag.Name),
			DetailExpireTime: ctx.Duration(flag.CacheDetailExpireTimeFlag.Name),
		},
		HTTPServer: ServerConfig{
			Host: ctx.String(flag.HttpHostFlag.Name),
			Port: ctx.Int(flag.HttpPortFlag.Name),
		},
		MetricsServer: ServerConfig{
			Host: ctx.String(flag.MetricsHostFlag.Name),
			Port: ctx.Int(flag.MetricsPortFlag.Name),
		},
	}

	log.Info("loaded config", "base_chain_id", cfg.Chain.BaseChainID, "thryx_chain_id", cfg.Chain.ThryxChainID,
		"deposit_address", cfg.Bridge.DepositAddress, "scan_batch_size", cfg.Chain.ScanBatchSize)
	return cfg, nil
}
