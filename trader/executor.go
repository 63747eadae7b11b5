package trader

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/hamgua/alpha-arena-okx/config"
	"github.com/hamgua/alpha-arena-okx/models"
	"github.com/hamgua/alpha-arena-okx/signal"
)

const (
	scaleThreshold = 0.01 // 张，低于此差额不调仓
	marginBuffer   = 0.8  // 保证金占可用余额上限
)

// ExecutionResult 单周期执行结果，供日志与状态查询使用
type ExecutionResult struct {
	Action   string // open/flip/scale_up/scale_down/hold/skip
	Executed bool
	Size     float64
	Reason   string
}

// TradeExecutor 把验证后的信号落实为交易所操作。
// 同向只调差额，反向需要高信心且非重复信号才允许翻仓。
type TradeExecutor struct {
	ex         Exchange
	rec        *OrderReconciler
	history    *signal.History
	cfg        config.TradeConfig
	spec       models.ContractSpec
	log        zerolog.Logger
	settleWait time.Duration // 平仓后建仓前的结算等待
}

func NewTradeExecutor(ex Exchange, rec *OrderReconciler, history *signal.History, cfg config.TradeConfig, spec models.ContractSpec, log zerolog.Logger) *TradeExecutor {
	return &TradeExecutor{
		ex:         ex,
		rec:        rec,
		history:    history,
		cfg:        cfg,
		spec:       spec,
		log:        log,
		settleWait: time.Second,
	}
}

// Execute 根据信号和当前持仓决定动作并执行，返回执行结果。
// HOLD 信号只做止盈止损对账，不动仓位。
func (e *TradeExecutor) Execute(sig models.TradeSignal, price float64, pos *models.Position, target float64, bracket models.Bracket, balance float64) (ExecutionResult, error) {
	if sig.Signal == "HOLD" {
		if pos != nil && pos.Size > 0 {
			if err := e.rec.Sync(pos, bracket, false); err != nil {
				return ExecutionResult{Action: "hold"}, err
			}
		}
		return ExecutionResult{Action: "hold", Reason: "持有观望"}, nil
	}

	if sig.Confidence == "LOW" && !e.cfg.TestMode {
		e.log.Info().Str("signal", sig.Signal).Msg("低信心信号，跳过执行")
		return ExecutionResult{Action: "skip", Reason: "低信心信号"}, nil
	}

	wantSide := "long"
	orderSide := "buy"
	if sig.Signal == "SELL" {
		wantSide = "short"
		orderSide = "sell"
	}

	switch {
	case pos == nil || (pos.Size == 0 && pos.Side == ""):
		return e.open(orderSide, target, price, bracket, balance)

	case pos.Side == wantSide:
		return e.scale(pos, orderSide, target, bracket)

	default:
		return e.flip(sig, pos, wantSide, orderSide, target, price, bracket, balance)
	}
}

func (e *TradeExecutor) open(orderSide string, target, price float64, bracket models.Bracket, balance float64) (ExecutionResult, error) {
	if target <= 0 {
		return ExecutionResult{Action: "skip", Reason: "目标仓位为0"}, nil
	}
	if !e.marginOK(target, price, balance) {
		e.log.Warn().Float64("target", target).Float64("balance", balance).Msg("保证金不足，放弃开仓")
		return ExecutionResult{Action: "skip", Reason: "保证金不足"}, nil
	}
	if e.cfg.TestMode {
		e.log.Info().Str("side", orderSide).Float64("size", target).Msg("测试模式：模拟开仓")
		return ExecutionResult{Action: "open", Size: target, Reason: "测试模式模拟"}, nil
	}

	res, err := e.ex.PlaceMarketOrder(e.cfg.Symbol, orderSide, target, false)
	if err != nil {
		return ExecutionResult{Action: "open"}, fmt.Errorf("开仓失败: %w", err)
	}
	e.log.Info().Str("order_id", res.OrderID).Str("side", orderSide).Float64("size", target).Msg("开仓成功")

	e.syncBrackets(bracket)
	return ExecutionResult{Action: "open", Executed: true, Size: target}, nil
}

func (e *TradeExecutor) scale(pos *models.Position, orderSide string, target float64, bracket models.Bracket) (ExecutionResult, error) {
	delta := target - pos.Size
	if math.Abs(delta) < scaleThreshold {
		e.log.Info().Float64("size", pos.Size).Msg("仓位已达目标，仅核对止盈止损")
		if err := e.rec.Sync(pos, bracket, false); err != nil {
			return ExecutionResult{Action: "hold"}, err
		}
		return ExecutionResult{Action: "hold", Reason: "仓位无需调整"}, nil
	}

	if e.cfg.TestMode {
		e.log.Info().Float64("delta", delta).Msg("测试模式：模拟调仓")
		action := "scale_up"
		if delta < 0 {
			action = "scale_down"
		}
		return ExecutionResult{Action: action, Size: math.Abs(delta), Reason: "测试模式模拟"}, nil
	}

	var (
		res models.OrderResult
		err error
	)
	action := "scale_up"
	if delta > 0 {
		res, err = e.ex.PlaceMarketOrder(e.cfg.Symbol, orderSide, delta, false)
	} else {
		action = "scale_down"
		reduceSide := "sell"
		if pos.Side == "short" {
			reduceSide = "buy"
		}
		res, err = e.ex.PlaceMarketOrder(e.cfg.Symbol, reduceSide, -delta, true)
	}
	if err != nil {
		return ExecutionResult{Action: action}, fmt.Errorf("调仓失败: %w", err)
	}
	e.log.Info().Str("order_id", res.OrderID).Float64("delta", delta).Msg("调仓成功")

	e.syncBrackets(bracket)
	return ExecutionResult{Action: action, Executed: true, Size: math.Abs(delta)}, nil
}

func (e *TradeExecutor) flip(sig models.TradeSignal, pos *models.Position, wantSide, orderSide string, target, price float64, bracket models.Bracket, balance float64) (ExecutionResult, error) {
	if sig.Confidence != "HIGH" {
		e.log.Info().Str("held", pos.Side).Str("signal", sig.Signal).Msg("非高信心反转信号，保持现有仓位")
		if err := e.rec.Sync(pos, bracket, false); err != nil {
			return ExecutionResult{Action: "hold"}, err
		}
		return ExecutionResult{Action: "hold", Reason: "非高信心反转信号"}, nil
	}
	if e.history.ContainsInLast(2, sig.Signal) {
		e.log.Info().Str("signal", sig.Signal).Msg("近期已有同向信号，避免反复翻仓")
		if err := e.rec.Sync(pos, bracket, false); err != nil {
			return ExecutionResult{Action: "hold"}, err
		}
		return ExecutionResult{Action: "hold", Reason: "近期重复反转信号"}, nil
	}

	if target <= 0 {
		return ExecutionResult{Action: "skip", Reason: "目标仓位为0"}, nil
	}
	if !e.marginOK(target, price, balance) {
		e.log.Warn().Float64("target", target).Msg("保证金不足，放弃翻仓")
		return ExecutionResult{Action: "skip", Reason: "保证金不足"}, nil
	}

	if e.cfg.TestMode {
		e.log.Info().Str("from", pos.Side).Str("to", wantSide).Float64("size", target).Msg("测试模式：模拟翻仓")
		return ExecutionResult{Action: "flip", Size: target, Reason: "测试模式模拟"}, nil
	}

	if err := e.rec.CancelAll(); err != nil {
		e.log.Warn().Err(err).Msg("翻仓前撤单失败，继续执行")
	}

	if pos.Size > 0 {
		closeSide := "sell"
		if pos.Side == "short" {
			closeSide = "buy"
		}
		if _, err := e.ex.PlaceMarketOrder(e.cfg.Symbol, closeSide, pos.Size, true); err != nil {
			return ExecutionResult{Action: "flip"}, fmt.Errorf("平仓失败: %w", err)
		}
		e.log.Info().Str("side", pos.Side).Float64("size", pos.Size).Msg("反向信号，已平掉旧仓")
		time.Sleep(e.settleWait)
	} else {
		e.log.Warn().Str("side", pos.Side).Msg("检测到持仓但数量为0，直接开新仓")
	}

	res, err := e.ex.PlaceMarketOrder(e.cfg.Symbol, orderSide, target, false)
	if err != nil {
		return ExecutionResult{Action: "flip"}, fmt.Errorf("翻仓开新仓失败: %w", err)
	}
	e.log.Info().Str("order_id", res.OrderID).Str("side", wantSide).Float64("size", target).Msg("翻仓完成")

	e.syncBrackets(bracket)
	return ExecutionResult{Action: "flip", Executed: true, Size: target}, nil
}

// syncBrackets 在仓位变化后拉取最新持仓并强制重挂止盈止损。
// 挂单失败记录风险日志，不打断主流程。
func (e *TradeExecutor) syncBrackets(bracket models.Bracket) {
	pos, err := e.ex.FetchPosition(e.cfg.Symbol)
	if err != nil {
		e.log.Error().Err(err).Msg("成交后查询持仓失败，止盈止损未设置")
		return
	}
	if err := e.rec.Sync(pos, bracket, true); err != nil {
		e.log.Error().Err(err).Msg("成交后止盈止损设置不完整")
	}
}

func (e *TradeExecutor) marginOK(target, price, balance float64) bool {
	if e.cfg.Leverage <= 0 || balance <= 0 {
		return false
	}
	required := price * target * e.spec.ContractSize / float64(e.cfg.Leverage)
	return required <= balance*marginBuffer
}
