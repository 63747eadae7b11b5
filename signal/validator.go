package signal

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hamgua/alpha-arena-okx/logging"
	"github.com/hamgua/alpha-arena-okx/models"
)

const cooldownMinutes = 5.0

// Validator 对AI信号做量化审计：冷却期、K线状态、RSI极端值、止盈止损合理性
// 只会降级信心或改写方向为HOLD，绝不升级，也绝不吞掉信号
type Validator struct {
	history *History
	log     zerolog.Logger
}

// NewValidator 创建验证器
func NewValidator(history *History) *Validator {
	return &Validator{history: history, log: logging.With("validator")}
}

// Validate 按固定顺序执行各条规则，原样返回修正后的信号
func (v *Validator) Validate(sig models.TradeSignal, md models.MarketData, now time.Time) models.TradeSignal {
	v.log.Info().Str("signal", sig.Signal).Str("confidence", sig.Confidence).Msg("AI原始信号")

	// 规则0: 交易冷却期
	if !v.cooldownOK(now) {
		sig.Signal = "HOLD"
		sig.Reason = "交易冷却期不足，避免频繁交易"
		v.log.Warn().Msg("冷却期不足，改为HOLD")
		return v.fixBrackets(sig, md.Price)
	}

	rsi := md.Technical.RSI
	var last models.Candle
	if len(md.Candles) > 0 {
		last = md.Candles[len(md.Candles)-1]
	}
	change := last.ChangePct()

	// 规则1: K线状态验证，防止阳线高位追多 / 阴线低位杀跌
	switch sig.Signal {
	case "BUY":
		switch {
		case last.IsBullish() && change > 0.5:
			if rsi < 25 {
				v.log.Info().Float64("rsi", rsi).Float64("change", change).Msg("超卖反弹，阳线视为反弹信号")
			} else {
				sig.Confidence = "LOW"
				sig.Reason += fmt.Sprintf(" [阳线上涨%.2f%%]", change)
				v.log.Warn().Float64("change", change).Msg("阳线追高风险，信号降级")
			}
		case last.IsBearish() || change < -0.2:
			v.log.Info().Float64("change", change).Msg("阴线或下跌，适合抄底")
		default:
			if rsi < 30 {
				v.log.Info().Float64("rsi", rsi).Msg("低位小幅阳线可接受")
			} else {
				sig.Confidence = "LOW"
				v.log.Warn().Float64("change", change).Msg("K线状态不明确，信号降级")
			}
		}
	case "SELL":
		if last.IsBearish() && change < -0.5 {
			if rsi > 75 {
				v.log.Info().Float64("rsi", rsi).Float64("change", change).Msg("超买回调，阴线视为回调信号")
			} else {
				sig.Confidence = "LOW"
				sig.Reason += fmt.Sprintf(" [阴线下跌%.2f%%]", change)
				v.log.Warn().Float64("change", change).Msg("阴线杀跌风险，信号降级")
			}
		}
	}

	// 规则2: RSI极端值
	if rsi > 80 && sig.Signal == "BUY" {
		sig.Confidence = "LOW"
		sig.Reason += " [RSI超买警告]"
		v.log.Warn().Float64("rsi", rsi).Msg("RSI超买，BUY信号降级")
	}
	if rsi < 20 && sig.Signal == "SELL" {
		sig.Confidence = "LOW"
		sig.Reason += " [RSI超卖警告]"
		v.log.Warn().Float64("rsi", rsi).Msg("RSI超卖，SELL信号降级")
	}

	// 规则3: 止盈止损合理性
	sig = v.fixBrackets(sig, md.Price)

	v.log.Info().Str("signal", sig.Signal).Str("confidence", sig.Confidence).Msg("验证后信号")
	return sig
}

func (v *Validator) cooldownOK(now time.Time) bool {
	if v.history.Len() < 2 {
		return true
	}
	minutes, ok := v.history.MinutesSinceLast(now)
	if !ok {
		return true
	}
	return minutes >= cooldownMinutes
}

// fixBrackets 止损止盈必须在当前价的正确一侧，越界则用保守默认值改写
func (v *Validator) fixBrackets(sig models.TradeSignal, price float64) models.TradeSignal {
	switch sig.Signal {
	case "BUY":
		if sig.StopLoss >= price {
			v.log.Warn().Float64("old", sig.StopLoss).Float64("new", price*0.98).Msg("修正止损")
			sig.StopLoss = price * 0.98
		}
		if sig.TakeProfit <= price {
			v.log.Warn().Float64("old", sig.TakeProfit).Float64("new", price*1.03).Msg("修正止盈")
			sig.TakeProfit = price * 1.03
		}
	case "SELL":
		if sig.StopLoss <= price {
			v.log.Warn().Float64("old", sig.StopLoss).Float64("new", price*1.02).Msg("修正止损")
			sig.StopLoss = price * 1.02
		}
		if sig.TakeProfit >= price {
			v.log.Warn().Float64("old", sig.TakeProfit).Float64("new", price*0.97).Msg("修正止盈")
			sig.TakeProfit = price * 0.97
		}
	}
	return sig
}
