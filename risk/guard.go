package risk

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hamgua/alpha-arena-okx/config"
	"github.com/hamgua/alpha-arena-okx/logging"
	"github.com/hamgua/alpha-arena-okx/models"
)

// OscillationGuard 震荡市风控：限制每日交易次数，盈利够了就走，亏了快跑，超时强平
type OscillationGuard struct {
	cfg config.OscillationStrategy
	log zerolog.Logger

	tradeDay   string
	tradeCount int
	openedAt   time.Time
}

// NewOscillationGuard 创建震荡市风控
func NewOscillationGuard(cfg config.OscillationStrategy) *OscillationGuard {
	return &OscillationGuard{cfg: cfg, log: logging.With("guard")}
}

// AllowNewTrade 震荡市中是否还允许开新仓
func (g *OscillationGuard) AllowNewTrade(regime models.Regime, now time.Time) (bool, string) {
	if !g.cfg.Enabled || regime.Kind != models.RegimeOscillation {
		return true, ""
	}
	if g.cfg.VolatilityFilter > 0 && regime.ATRPct > g.cfg.VolatilityFilter {
		return false, fmt.Sprintf("震荡市波动率%.2f%%超过阈值(%.2f%%)，暂停开仓", regime.ATRPct, g.cfg.VolatilityFilter)
	}
	day := now.Format("2006-01-02")
	if day != g.tradeDay {
		g.tradeDay = day
		g.tradeCount = 0
	}
	if g.tradeCount >= g.cfg.MaxDailyTrades {
		return false, fmt.Sprintf("震荡市当日交易已达上限(%d次)", g.cfg.MaxDailyTrades)
	}
	return true, ""
}

// RecordTrade 记录一次开仓
func (g *OscillationGuard) RecordTrade(now time.Time) {
	day := now.Format("2006-01-02")
	if day != g.tradeDay {
		g.tradeDay = day
		g.tradeCount = 0
	}
	g.tradeCount++
	g.openedAt = now
}

// ShouldForceClose 震荡市持仓是否该立即离场
// profitPct 为未实现盈亏相对名义价值的百分比，正为盈
func (g *OscillationGuard) ShouldForceClose(regime models.Regime, pos *models.Position, profitPct float64, now time.Time) (bool, string) {
	if !g.cfg.Enabled || regime.Kind != models.RegimeOscillation || pos == nil || pos.Size <= 0 {
		return false, ""
	}
	if profitPct >= g.cfg.MinProfitThreshold {
		return true, fmt.Sprintf("震荡市盈利%.2f%%达到目标(%.2f%%)，立即止盈", profitPct, g.cfg.MinProfitThreshold)
	}
	if -profitPct >= g.cfg.MaxLossThreshold {
		return true, fmt.Sprintf("震荡市亏损%.2f%%达到上限(%.2f%%)，立即止损", -profitPct, g.cfg.MaxLossThreshold)
	}
	if !g.openedAt.IsZero() {
		held := now.Sub(g.openedAt).Minutes()
		if held >= float64(g.cfg.HoldTimeLimitMinutes) {
			return true, fmt.Sprintf("震荡市持仓%.0f分钟超过上限(%d分钟)，强制离场", held, g.cfg.HoldTimeLimitMinutes)
		}
	}
	return false, ""
}
