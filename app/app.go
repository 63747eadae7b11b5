package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hamgua/alpha-arena-okx/config"
	"github.com/hamgua/alpha-arena-okx/logging"
	"github.com/hamgua/alpha-arena-okx/market"
	"github.com/hamgua/alpha-arena-okx/server"
	"github.com/hamgua/alpha-arena-okx/storage"
	"github.com/hamgua/alpha-arena-okx/trader"
)

const (
	ModeCLI = "cli"
	ModeWeb = "web"
)

// Runner 进程装配：机器人、持久化、行情流与运行模式。
type Runner struct {
	bot    *trader.Bot
	store  *storage.Store
	stream *market.Stream
}

func NewRunner() *Runner {
	return &Runner{bot: trader.NewBot()}
}

func (r *Runner) Setup() error {
	store, err := storage.Open(config.Config.DBPath)
	if err == nil {
		r.store = store
		r.bot.SetStore(store)
	} else {
		logging.L().Warn().Err(err).Msg("SQLite初始化失败，继续无持久化模式")
	}
	return r.bot.Setup()
}

func (r *Runner) Run(mode string) error {
	if r.store != nil {
		defer func() { _ = r.store.Close() }()
	}
	switch normalizeMode(mode) {
	case ModeWeb:
		return r.runWeb()
	case ModeCLI:
		return r.runCLI()
	default:
		return fmt.Errorf("unsupported mode: %s (supported: %s,%s)", mode, ModeCLI, ModeWeb)
	}
}

func (r *Runner) runCLI() error {
	cfg := r.bot.TradeConfig()
	log := logging.L()
	log.Info().
		Str("symbol", cfg.Symbol).
		Str("timeframe", cfg.Timeframe).
		Int("leverage", cfg.Leverage).
		Msg("OKX 自动交易机器人启动")

	if cfg.TestMode {
		log.Warn().Msg("当前为测试模式，不会真实下单")
	} else {
		log.Warn().Msg("实盘交易模式，请谨慎操作")
	}

	for {
		secs := trader.WaitForNextPeriod(cfg.Timeframe)
		if secs > 0 {
			log.Info().Int("seconds", secs).Msg("等待下一个周期整点")
			time.Sleep(time.Duration(secs) * time.Second)
		}

		r.bot.Run()
		time.Sleep(60 * time.Second)
	}
}

func (r *Runner) runWeb() error {
	addr := config.Config.HTTPAddr
	cfg := r.bot.TradeConfig()
	log := logging.L()

	wsEnabled := os.Getenv("ENABLE_WS_MARKET") == "true"
	if wsEnabled {
		r.stream = market.NewStream(cfg.Symbol, cfg.Timeframe)
		if err := r.stream.Start(); err != nil {
			log.Warn().Err(err).Msg("行情WebSocket启动失败，回退定时调度")
			wsEnabled = false
		} else {
			log.Info().Str("symbol", cfg.Symbol).Str("timeframe", cfg.Timeframe).Msg("OKX 行情WebSocket已启动")
			defer func() { _ = r.stream.Stop() }()
		}
	}

	svc := server.NewService(r.bot)
	if wsEnabled {
		go r.runCandleCloseLoop(svc)
	} else {
		svc.StartScheduler()
	}
	return server.Serve(addr, svc)
}

// runCandleCloseLoop K线收盘事件驱动的执行循环。
// 每收到一根收盘K线执行一次，同一根不重复执行。
func (r *Runner) runCandleCloseLoop(svc *server.Service) {
	var lastCloseTime int64
	for {
		snap := r.stream.Snapshot()
		if snap.KlineClosed && snap.KlineCloseTime > 0 && snap.KlineCloseTime != lastCloseTime {
			lastCloseTime = snap.KlineCloseTime
			svc.RunOnce()
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func normalizeMode(mode string) string {
	v := strings.TrimSpace(strings.ToLower(mode))
	if v == "" {
		return ModeCLI
	}
	return v
}
