package trader

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hamgua/alpha-arena-okx/advisor"
	"github.com/hamgua/alpha-arena-okx/analysis"
	"github.com/hamgua/alpha-arena-okx/config"
	"github.com/hamgua/alpha-arena-okx/exchange"
	"github.com/hamgua/alpha-arena-okx/indicators"
	"github.com/hamgua/alpha-arena-okx/logging"
	"github.com/hamgua/alpha-arena-okx/models"
	"github.com/hamgua/alpha-arena-okx/risk"
	"github.com/hamgua/alpha-arena-okx/signal"
	"github.com/hamgua/alpha-arena-okx/storage"
)

// RuntimeSnapshot 机器人运行状态，供 HTTP 接口查询
type RuntimeSnapshot struct {
	LastRunAt  time.Time           `json:"last_run_at"`
	RunCount   int                 `json:"run_count"`
	LastPrice  float64             `json:"last_price"`
	Regime     string              `json:"regime"`
	LastSignal *models.TradeSignal `json:"last_signal,omitempty"`
	LastAction string              `json:"last_action"`
	Balance    float64             `json:"balance"`
	Position   *models.Position    `json:"position,omitempty"`
}

// TradeSettingsUpdate 运行期可调参数，nil 字段保持不变
type TradeSettingsUpdate struct {
	BaseUSDTAmount     *float64
	Leverage           *int
	TestMode           *bool
	OscillationEnabled *bool
}

// Bot 决策主循环。每个周期拉行情、分析、问AI、验证、执行、落库。
type Bot struct {
	ex        Exchange
	aiClient  *advisor.Client
	sentiment *advisor.SentimentFetcher
	decline   *analysis.DeclineReversalDetector
	ranger    *analysis.RangeDetector
	history   *signal.History
	validator *signal.Validator
	guard     *risk.OscillationGuard
	rec       *OrderReconciler
	store     *storage.Store
	spec      models.ContractSpec
	log       zerolog.Logger

	mu       sync.RWMutex
	cfg      config.TradeConfig
	snapshot RuntimeSnapshot
}

func NewBot() *Bot {
	appCfg := config.Config
	cfg := appCfg.Trade
	ex := exchange.NewClient(appCfg)
	history := signal.NewHistory()
	log := logging.With("bot")

	return &Bot{
		ex:        ex,
		aiClient:  advisor.NewClient(appCfg),
		sentiment: advisor.NewSentimentFetcher(appCfg.SentimentAPIKey),
		decline:   analysis.NewDeclineReversalDetector(cfg.Decline),
		ranger:    analysis.NewRangeDetector(cfg.Range),
		history:   history,
		validator: signal.NewValidator(history),
		guard:     risk.NewOscillationGuard(cfg.Oscillation),
		rec:       NewOrderReconciler(ex, cfg.Symbol, logging.With("reconciler")),
		cfg:       cfg,
		log:       log,
	}
}

// SetStore 注入持久化层，可选
func (b *Bot) SetStore(store *storage.Store) { b.store = store }

// Setup 设置合约参数。逐仓持仓导致的失败是致命错误。
func (b *Bot) Setup() error {
	setter, ok := b.ex.(interface {
		Setup(symbol string, leverage int) (models.ContractSpec, error)
	})
	if !ok {
		b.spec = models.ContractSpec{ContractSize: 0.01, MinSize: 0.01}
		return nil
	}
	cfg := b.TradeConfig()
	spec, err := setter.Setup(cfg.Symbol, cfg.Leverage)
	if err != nil {
		return fmt.Errorf("交易所初始化失败: %w", err)
	}
	b.spec = spec
	b.log.Info().
		Float64("contract_size", spec.ContractSize).
		Float64("min_size", spec.MinSize).
		Msg("合约规格已加载")
	return nil
}

// TradeConfig 当前交易配置快照
func (b *Bot) TradeConfig() config.TradeConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg
}

// Snapshot 运行状态快照
func (b *Bot) Snapshot() RuntimeSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot
}

// SignalHistory 最近 limit 条信号，limit<=0 返回全部
func (b *Bot) SignalHistory(limit int) []models.TradeSignal {
	if limit <= 0 {
		limit = signal.HistoryCapacity
	}
	return b.history.Recent(limit)
}

// FetchBalance 透传余额查询
func (b *Bot) FetchBalance() (float64, error) { return b.ex.FetchBalance() }

// FetchPosition 透传持仓查询
func (b *Bot) FetchPosition() (*models.Position, error) {
	return b.ex.FetchPosition(b.TradeConfig().Symbol)
}

// Store 持久化层，可能为 nil
func (b *Bot) Store() *storage.Store { return b.store }

// UpdateTradeSettings 更新运行期参数并返回新配置
func (b *Bot) UpdateTradeSettings(upd TradeSettingsUpdate) (config.TradeConfig, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if upd.Leverage != nil {
		if *upd.Leverage < 1 || *upd.Leverage > 100 {
			return b.cfg, fmt.Errorf("杠杆必须在1-100之间: %d", *upd.Leverage)
		}
		b.cfg.Leverage = *upd.Leverage
	}
	if upd.BaseUSDTAmount != nil {
		if *upd.BaseUSDTAmount <= 0 {
			return b.cfg, fmt.Errorf("基础仓位金额必须为正: %.2f", *upd.BaseUSDTAmount)
		}
		b.cfg.Position.BaseUSDTAmount = *upd.BaseUSDTAmount
	}
	if upd.TestMode != nil {
		b.cfg.TestMode = *upd.TestMode
	}
	if upd.OscillationEnabled != nil {
		b.cfg.Oscillation.Enabled = *upd.OscillationEnabled
	}
	return b.cfg, nil
}

// Run 执行一个完整决策周期。任何异常只中断本周期，不中断进程。
func (b *Bot) Run() {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Msg("决策周期发生异常，已恢复")
		}
	}()

	cfg := b.TradeConfig()
	now := time.Now()

	md, err := b.fetchMarketData(cfg)
	if err != nil {
		b.log.Error().Err(err).Msg("获取行情失败，跳过本周期")
		return
	}

	regime := analysis.ClassifyRegime(md.Candles, md.Technical)
	decline := b.decline.Detect(md.Candles)
	rng := b.ranger.Detect(md.Candles, md.Price)
	pricePos := analysis.PricePosition(md.Candles, md.Price)

	b.log.Info().
		Float64("price", md.Price).
		Str("regime", string(regime.Kind)).
		Str("trend", regime.TrendStrength).
		Int("declines", decline.ConsecutiveDeclines).
		Float64("rsi", md.Technical.RSI).
		Msg("市场分析完成")

	pos, err := b.ex.FetchPosition(cfg.Symbol)
	if err != nil {
		b.log.Warn().Err(err).Msg("获取持仓失败，按无持仓继续本周期")
		pos = nil
	}
	balance, err := b.ex.FetchBalance()
	if err != nil {
		b.log.Warn().Err(err).Msg("获取余额失败，按0处理")
		balance = 0
	}

	calc := risk.NewCalculator(b.spec)
	pos = b.maybeForceClose(regime, pos, now)

	sig := b.aiClient.Analyze(advisor.Context{
		Market:      md,
		Regime:      regime,
		Decline:     decline,
		Range:       rng,
		PricePos:    pricePos,
		Position:    pos,
		LastSignals: b.history.Recent(5),
		Sentiment:   b.sentiment.Fetch(),
		BracketHint: calc.Brackets("HOLD", md.Price, regime, pos),
	})

	validated := b.validator.Validate(sig, md, now)
	validated = b.sanitizeBrackets(validated, md.Price, regime, pos, calc)
	validated = b.applyOscillationLimit(validated, regime, pos, now)

	sizer := risk.NewSizer(cfg, b.spec)
	target := sizer.Contracts(risk.SizerContext{
		Signal:   validated,
		Market:   md,
		Regime:   regime,
		Decline:  decline,
		PricePos: pricePos,
	}, balance)

	bracket := models.Bracket{StopLoss: validated.StopLoss, TakeProfit: validated.TakeProfit}
	exec := NewTradeExecutor(b.ex, b.rec, b.history, cfg, b.spec, logging.With("executor"))
	result, execErr := exec.Execute(validated, md.Price, pos, target, bracket, balance)
	if execErr != nil {
		b.log.Error().Err(execErr).Str("action", result.Action).Msg("交易执行失败")
		_ = b.store.SaveRiskEvent("execution_failure", execErr.Error())
	}
	if result.Executed && (result.Action == "open" || result.Action == "flip") {
		b.guard.RecordTrade(now)
	}

	b.recordSignal(validated)

	finalPos, err := b.ex.FetchPosition(cfg.Symbol)
	if err != nil {
		b.log.Warn().Err(err).Msg("周期收尾时查询持仓失败")
		finalPos = pos
	}
	b.journal(now, validated, md.Price, regime, target, result, finalPos, balance)
	b.updateSnapshot(md.Price, regime, validated, result.Action, balance, finalPos)
}

// fetchMarketData 拉K线并计算指标，组装周期行情快照。
func (b *Bot) fetchMarketData(cfg config.TradeConfig) (models.MarketData, error) {
	candles, err := b.ex.FetchOHLCV(cfg.Symbol, cfg.Timeframe, cfg.DataPoints)
	if err != nil {
		return models.MarketData{}, err
	}
	if len(candles) < 2 {
		return models.MarketData{}, fmt.Errorf("K线数据不足: %d", len(candles))
	}

	ind := indicators.Calculate(candles)
	trend := indicators.AnalyzeTrend(candles, ind)

	cur := candles[len(candles)-1]
	prev := candles[len(candles)-2]
	priceChange := 0.0
	if prev.Close > 0 {
		priceChange = (cur.Close - prev.Close) / prev.Close * 100
	}

	return models.MarketData{
		Price:       cur.Close,
		Timestamp:   cur.Timestamp,
		High:        cur.High,
		Low:         cur.Low,
		Volume:      cur.Volume,
		Timeframe:   cfg.Timeframe,
		PriceChange: priceChange,
		Candles:     candles,
		Technical:   ind,
		Trend:       trend,
	}, nil
}

// maybeForceClose 震荡市持仓达到限制条件时强制平仓，返回平仓后的持仓。
func (b *Bot) maybeForceClose(regime models.Regime, pos *models.Position, now time.Time) *models.Position {
	if pos == nil || pos.Size <= 0 {
		return pos
	}
	profitPct := 0.0
	if notional := pos.EntryPrice * pos.Size * b.contractSize(); notional > 0 {
		profitPct = pos.UnrealizedPnL / notional * 100
	}
	force, reason := b.guard.ShouldForceClose(regime, pos, profitPct, now)
	if !force {
		return pos
	}

	b.log.Warn().Str("reason", reason).Float64("profit_pct", profitPct).Msg("震荡市强制平仓")
	if err := b.rec.CancelAll(); err != nil {
		b.log.Warn().Err(err).Msg("强制平仓前撤单失败")
	}
	closeSide := "sell"
	if pos.Side == "short" {
		closeSide = "buy"
	}
	if _, err := b.ex.PlaceMarketOrder(b.TradeConfig().Symbol, closeSide, pos.Size, true); err != nil {
		b.log.Error().Err(err).Msg("强制平仓失败")
		_ = b.store.SaveRiskEvent("force_close_failure", err.Error())
		return pos
	}
	_ = b.store.SaveRiskEvent("force_close", reason)
	return nil
}

// sanitizeBrackets 校验AI给出的止盈止损是否在可信区间，
// 越界时整体换成动态计算值。
func (b *Bot) sanitizeBrackets(sig models.TradeSignal, price float64, regime models.Regime, pos *models.Position, calc *risk.Calculator) models.TradeSignal {
	var ok bool
	switch sig.Signal {
	case "BUY":
		ok = sig.StopLoss >= price*0.95 && sig.StopLoss < price &&
			sig.TakeProfit > price && sig.TakeProfit <= price*1.10
	case "SELL":
		ok = sig.StopLoss > price && sig.StopLoss <= price*1.05 &&
			sig.TakeProfit < price && sig.TakeProfit >= price*0.90
	default:
		return sig
	}
	if ok {
		return sig
	}

	br := calc.Brackets(sig.Signal, price, regime, pos)
	b.log.Warn().
		Float64("ai_sl", sig.StopLoss).Float64("ai_tp", sig.TakeProfit).
		Float64("calc_sl", br.StopLoss).Float64("calc_tp", br.TakeProfit).
		Msg("AI止盈止损越界，改用动态计算值")
	sig.StopLoss = br.StopLoss
	sig.TakeProfit = br.TakeProfit
	return sig
}

// applyOscillationLimit 震荡市新开仓受每日交易次数限制。
func (b *Bot) applyOscillationLimit(sig models.TradeSignal, regime models.Regime, pos *models.Position, now time.Time) models.TradeSignal {
	if sig.Signal == "HOLD" {
		return sig
	}
	newTrade := pos == nil || pos.Size == 0 ||
		(pos.Side == "long" && sig.Signal == "SELL") ||
		(pos.Side == "short" && sig.Signal == "BUY")
	if !newTrade {
		return sig
	}
	if allowed, reason := b.guard.AllowNewTrade(regime, now); !allowed {
		b.log.Info().Str("reason", reason).Msg("震荡市交易受限，信号降级为HOLD")
		sig.Signal = "HOLD"
		sig.Confidence = "LOW"
		sig.Reason = reason
	}
	return sig
}

// recordSignal 写入信号历史并输出信号统计，连续3次同向时告警。
func (b *Bot) recordSignal(sig models.TradeSignal) {
	b.history.Append(sig)
	b.log.Info().
		Str("signal", sig.Signal).
		Int("history", b.history.Len()).
		Int("same_direction", b.history.CountOf(sig.Signal)).
		Msg("信号统计")
	if dir, ok := b.history.RepeatedThrice(); ok {
		b.log.Warn().Str("signal", dir).Msg("连续3次同向信号")
	}
}

func (b *Bot) journal(now time.Time, sig models.TradeSignal, price float64, regime models.Regime, target float64, result ExecutionResult, pos *models.Position, balance float64) {
	if b.store == nil {
		return
	}
	if err := b.store.SaveDecision(now, sig, price, string(regime.Kind), target, result.Action, result.Executed); err != nil {
		b.log.Warn().Err(err).Msg("决策落库失败")
	}
	_ = b.store.SavePositionSnapshot(pos)
	upl := 0.0
	if pos != nil {
		upl = pos.UnrealizedPnL
	}
	_ = b.store.SaveEquity(balance, upl)
}

func (b *Bot) updateSnapshot(price float64, regime models.Regime, sig models.TradeSignal, action string, balance float64, pos *models.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot.LastRunAt = time.Now()
	b.snapshot.RunCount++
	b.snapshot.LastPrice = price
	b.snapshot.Regime = string(regime.Kind)
	b.snapshot.LastSignal = &sig
	b.snapshot.LastAction = action
	b.snapshot.Balance = balance
	b.snapshot.Position = pos
}

func (b *Bot) contractSize() float64 {
	if b.spec.ContractSize > 0 {
		return b.spec.ContractSize
	}
	return 0.01
}
