package risk

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/hamgua/alpha-arena-okx/logging"
	"github.com/hamgua/alpha-arena-okx/models"
)

// Calculator 基于波动率与持仓盈亏的动态止盈止损计算
// 每周期从零重算，不保存上一轮结果；止损只会向锁盈方向收紧由调用方保证
type Calculator struct {
	spec models.ContractSpec
	log  zerolog.Logger
}

// NewCalculator 创建计算器
func NewCalculator(spec models.ContractSpec) *Calculator {
	return &Calculator{spec: spec, log: logging.With("risk")}
}

// Brackets 按信号方向计算止盈止损绝对价格
func (c *Calculator) Brackets(signal string, price float64, regime models.Regime, pos *models.Position) models.Bracket {
	slPct, tpPct := c.basePcts(regime.ATRPct)

	// 持仓盈利后放宽止盈，先检查更强的档位
	profitPct := c.profitFraction(pos)
	if profitPct > 0.05 {
		tpPct *= 1.5
		c.log.Info().Float64("profit_pct", profitPct*100).Msg("盈利超5%，止盈放大50%")
	} else if profitPct > 0.03 {
		tpPct *= 1.2
		c.log.Info().Float64("profit_pct", profitPct*100).Msg("盈利超3%，止盈放大20%")
	}

	// 趋势强度调整
	if regime.StronglyUp() {
		tpPct *= 1.3
	} else if regime.StronglyDown() {
		slPct *= 0.8
	}

	var stopLoss, takeProfit float64
	switch signal {
	case "BUY":
		stopLoss = price * (1 - slPct)
		takeProfit = price * (1 + tpPct)
	case "SELL":
		stopLoss = price * (1 + slPct)
		takeProfit = price * (1 - tpPct)
	default:
		stopLoss = price * 0.98
		takeProfit = price * 1.02
	}

	stopLoss = c.lockInProfit(stopLoss, profitPct, pos)

	return models.Bracket{
		StopLoss:   math.Round(stopLoss*100) / 100,
		TakeProfit: math.Round(takeProfit*100) / 100,
		SLPct:      slPct,
		TPPct:      tpPct,
	}
}

// basePcts 波动率分档的基础止损/止盈百分比
func (c *Calculator) basePcts(atrPct float64) (float64, float64) {
	switch {
	case atrPct > 2.5:
		return 0.003, 0.08
	case atrPct < 1.0:
		return 0.0015, 0.05
	default:
		return 0.002, 0.065
	}
}

// profitFraction 未实现盈利相对持仓名义价值的比例，无持仓或亏损时为0
func (c *Calculator) profitFraction(pos *models.Position) float64 {
	if pos == nil || pos.UnrealizedPnL <= 0 || pos.EntryPrice <= 0 || pos.Size <= 0 {
		return 0
	}
	contractSize := c.spec.ContractSize
	if contractSize <= 0 {
		contractSize = 0.01
	}
	return pos.UnrealizedPnL / (pos.EntryPrice * pos.Size * contractSize)
}

// lockInProfit 微盈利即移动止损保护利润，多空对称，先检查更强的档位
func (c *Calculator) lockInProfit(stopLoss, profitPct float64, pos *models.Position) float64 {
	if pos == nil || profitPct <= 0 {
		return stopLoss
	}
	switch pos.Side {
	case "long":
		if profitPct > 0.02 {
			locked := math.Max(stopLoss, pos.EntryPrice*1.008)
			c.log.Info().Float64("profit_pct", profitPct*100).Float64("stop_loss", locked).Msg("盈利超2%，加强保护")
			return locked
		}
		if profitPct > 0.008 {
			locked := math.Max(stopLoss, pos.EntryPrice*1.003)
			c.log.Info().Float64("profit_pct", profitPct*100).Float64("stop_loss", locked).Msg("微盈利，超早移动止损")
			return locked
		}
	case "short":
		if profitPct > 0.02 {
			locked := math.Min(stopLoss, pos.EntryPrice*0.992)
			c.log.Info().Float64("profit_pct", profitPct*100).Float64("stop_loss", locked).Msg("盈利超2%，加强保护")
			return locked
		}
		if profitPct > 0.008 {
			locked := math.Min(stopLoss, pos.EntryPrice*0.997)
			c.log.Info().Float64("profit_pct", profitPct*100).Float64("stop_loss", locked).Msg("微盈利，超早移动止损")
			return locked
		}
	}
	return stopLoss
}
