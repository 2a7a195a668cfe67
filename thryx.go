package thryx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ethereum/go-ethereum/log"

	"github.com/lordbasilaiassistant-sudo/thryx-chain/api"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/api/common/httputil"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/api/routes"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/api/service"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/cache"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/config"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/database"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/executor"
	metrics2 "github.com/lordbasilaiassistant-sudo/thryx-chain/metrics"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/ratelimit"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/synchronizer"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/synchronizer/node"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/wallet"
	"github.com/lordbasilaiassistant-sudo/thryx-chain/withdraw"
)

// Thryx contains the necessary resources for bridging value between the
// configured Base and Thryx chains: the deposit watcher, the mint executor,
// the withdrawal processor with its delay scheduler, and the request API.
type Thryx struct {
	log        log.Logger
	DB         *database.DB
	baseClient node.EthClient
	l2Client   node.EthClient

	baseWallet  *wallet.Wallet
	thryxWallet *wallet.Wallet

	apiServer       *httputil.HTTPServer
	metricsServer   *httputil.HTTPServer
	metricsRegistry *prometheus.Registry

	Watcher   *synchronizer.Watcher
	Processor *withdraw.Processor
	Scheduler *withdraw.Scheduler

	shutdown context.CancelCauseFunc

	stopped atomic.Bool
}

// NewThryx initializes an instance of the bridge service
func NewThryx(ctx context.Context, log log.Logger, cfg *config.Config, shutdown context.CancelCauseFunc) (*Thryx, error) {
	out := &Thryx{
		log:             log,
		metricsRegistry: metrics2.NewRegistry(),
		shutdown:        shutdown,
	}
	if err := out.initFromConfig(ctx, cfg); err != nil {
		return nil, errors.Join(err, out.Stop(ctx))
	}
	return out, nil
}

func (t *Thryx) Start(ctx context.Context) error {
	// In-flight burns are resolved before any new work is accepted; a burn
	// whose outcome was lost to the crash must reach a terminal state first.
	if err := t.Processor.RecoverInFlight(ctx); err != nil {
		return fmt.Errorf("failed to recover in-flight withdrawals: %w", err)
	}
	if err := t.Watcher.Start(); err != nil {
		return fmt.Errorf("failed to start deposit watcher: %w", err)
	}
	if err := t.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start delay scheduler: %w", err)
	}
	return nil
}

func (t *Thryx) Stop(ctx context.Context) error {
	var result error

	if t.Watcher != nil {
		if err := t.Watcher.Close(); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to close deposit watcher: %w", err))
		}
	}

	if t.Scheduler != nil {
		if err := t.Scheduler.Close(); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to close delay scheduler: %w", err))
		}
	}

	// Now that the workers are closed, we can stop the RPC clients
	if t.baseClient != nil {
		t.baseClient.Close()
	}
	if t.l2Client != nil {
		t.l2Client.Close()
	}

	if t.apiServer != nil {
		if err := t.apiServer.Close(); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to close bridge API server: %w", err))
		}
	}

	// DB connection can be closed last, after all its potential users have shut down
	if t.DB != nil {
		if err := t.DB.Close(); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to close DB: %w", err))
		}
	}

	if t.metricsServer != nil {
		if err := t.metricsServer.Close(); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to close metrics server: %w", err))
		}
	}

	t.stopped.Store(true)

	t.log.Info("bridge service stopped")

	return result
}

func (t *Thryx) Stopped() bool {
	return t.stopped.Load()
}

func (t *Thryx) initFromConfig(ctx context.Context, cfg *config.Config) error {
	if err := t.initRPCClients(ctx, cfg.RPCs); err != nil {
		return fmt.Errorf("failed to start RPC clients: %w", err)
	}
	if err := t.initDB(ctx, cfg.MasterDB); err != nil {
		return fmt.Errorf("failed to init DB: %w", err)
	}
	if err := t.initWallets(cfg); err != nil {
		return fmt.Errorf("failed to init wallets: %w", err)
	}
	if err := t.initBridge(cfg); err != nil {
		return fmt.Errorf("failed to init bridge workers: %w", err)
	}
	if err := t.startHttpServer(ctx, cfg); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := t.startMetricsServer(ctx, cfg.MetricsServer); err != nil {
		return fmt.Errorf("failed to start Metrics server: %w", err)
	}
	return nil
}

func (t *Thryx) initRPCClients(ctx context.Context, rpcsConfig config.RPCsConfig) error {
	baseClient, err := node.DialEthClient(ctx, rpcsConfig.BaseRPC, metrics2.NewNodeMetrics(t.metricsRegistry, "base"))
	if err != nil {
		return fmt.Errorf("failed to dial Base client: %w", err)
	}
	t.baseClient = baseClient

	l2Client, err := node.DialEthClient(ctx, rpcsConfig.ThryxRPC, metrics2.NewNodeMetrics(t.metricsRegistry, "thryx"))
	if err != nil {
		return fmt.Errorf("failed to dial Thryx client: %w", err)
	}
	t.l2Client = l2Client
	return nil
}

func (t *Thryx) initDB(ctx context.Context, cfg config.DBConfig) error {
	db, err := database.NewDB(ctx, t.log, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	t.DB = db
	return nil
}

func (t *Thryx) initWallets(cfg *config.Config) error {
	baseWallet, err := wallet.NewWallet(t.log, t.baseClient, cfg.Bridge.BaseWalletKey, cfg.Chain.BaseChainID)
	if err != nil {
		return fmt.Errorf("failed to init Base wallet: %w", err)
	}
	t.baseWallet = baseWallet

	thryxWallet, err := wallet.NewWallet(t.log, t.l2Client, cfg.Bridge.ThryxMinterKey, cfg.Chain.ThryxChainID)
	if err != nil {
		return fmt.Errorf("failed to init Thryx minter wallet: %w", err)
	}
	t.thryxWallet = thryxWallet
	return nil
}

func (t *Thryx) initBridge(cfg *config.Config) error {
	limiter := ratelimit.NewLimiter(cfg.Bridge.Limits, t.DB.DailyTotals)

	watcherMetrics := metrics2.NewWatcherMetrics(t.metricsRegistry)
	minter := executor.NewMinter(t.log, t.thryxWallet, t.DB.Deposits, watcherMetrics,
		cfg.Bridge.ThryxUSDC, cfg.Bridge.Limits.ConfirmationTimeout)

	watcher, err := synchronizer.NewWatcher(t.log, watcherMetrics, t.DB, t.baseClient,
		limiter, minter, cfg.Chain, cfg.Bridge, t.shutdown)
	if err != nil {
		return err
	}
	t.Watcher = watcher

	t.Processor = withdraw.NewProcessor(t.log, metrics2.NewWithdrawMetrics(t.metricsRegistry),
		t.DB, limiter, t.thryxWallet, t.baseWallet, cfg.Bridge)
	t.Scheduler = withdraw.NewScheduler(t.log, t.Processor, cfg.Chain.SchedulerInterval, t.shutdown)
	return nil
}

func (t *Thryx) startHttpServer(ctx context.Context, cfg *config.Config) error {
	t.log.Debug("starting http server...", "port", cfg.HTTPServer.Port)

	var lruCache = new(cache.LruCache)
	if cfg.ApiCacheEnable {
		lruCache = cache.NewLruCache(cfg.CacheConfig)
	}

	v := new(service.Validator)
	svc := service.New(v, t.DB.Deposits, t.DB.Withdrawals, t.log)

	r := chi.NewRouter()
	h := routes.NewBridgeRoutes(t.log, r, svc, cfg.ApiCacheEnable, lruCache, t.Processor)

	promRecorder := metrics2.NewPromHTTPRecorder(t.metricsRegistry, api.MetricsNamespace)
	r.Use(func(next http.Handler) http.Handler {
		return metrics2.NewHTTPRecordingMiddleware(promRecorder, next)
	})
	// The withdrawal route blocks through burn and release confirmation,
	// each bounded by the confirmation timeout.
	r.Use(middleware.Timeout(2*cfg.Bridge.Limits.ConfirmationTimeout + 30*time.Second))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat(api.HealthPath))

	r.Get(api.DepositsV1Path, h.DepositListHandler)
	r.Get(api.WithdrawalsV1Path, h.WithdrawalListHandler)
	r.Get(api.ManualRecoveryV1Path, h.ManualRecoveryListHandler)
	r.Get(api.WithdrawalByGuidPath+"{guid}", h.WithdrawalByGuidHandler)
	r.Post(api.WithdrawalsV1Path, h.WithdrawalRequestHandler)

	addr := net.JoinHostPort(cfg.HTTPServer.Host, strconv.Itoa(cfg.HTTPServer.Port))
	srv, err := httputil.StartHTTPServer(addr, r)
	if err != nil {
		return fmt.Errorf("http server failed to start: %w", err)
	}
	t.apiServer = srv
	t.log.Info("http server started", "addr", srv.Addr())
	return nil
}

func (t *Thryx) startMetricsServer(ctx context.Context, cfg config.ServerConfig) error {
	t.log.Debug("starting metrics server...", "port", cfg.Port)
	srv, err := metrics2.StartServer(t.metricsRegistry, cfg.Host, cfg.Port)
	if err != nil {
		return fmt.Errorf("metrics server failed to start: %w", err)
	}
	t.metricsServer = srv
	t.log.Info("metrics server started", "addr", srv.Addr())
	return nil
}
