package analysis

import (
	"github.com/hamgua/alpha-arena-okx/config"
	"github.com/hamgua/alpha-arena-okx/models"
)

// DeclineReversalDetector 连续下跌与反转信号检测
type DeclineReversalDetector struct {
	cfg config.DeclineDetection
}

// NewDeclineReversalDetector 创建检测器
func NewDeclineReversalDetector(cfg config.DeclineDetection) *DeclineReversalDetector {
	return &DeclineReversalDetector{cfg: cfg}
}

// Detect 扫描窗口内的连续阴线序列并检查反转确认
// K线数量不足时返回零值结果
func (d *DeclineReversalDetector) Detect(candles []models.Candle) models.DeclinePattern {
	var pattern models.DeclinePattern
	if len(candles) < d.cfg.DataWindow {
		return pattern
	}

	recent := candles[len(candles)-d.cfg.DataWindow:]

	// 从最新一根向前数连续阴线
	streak := 0
	totalDecline := 0.0
	for i := len(recent) - 1; i >= 0; i-- {
		c := recent[i]
		if !c.IsBearish() {
			break
		}
		streak++
		if c.Open > 0 {
			totalDecline += (c.Open - c.Close) / c.Open * 100
		}
	}
	pattern.ConsecutiveDeclines = streak
	pattern.TotalDeclinePct = totalDecline
	pattern.DeclineDurationMin = streak * 15

	// 反转确认：连续3根阴线后出现阳线
	if len(recent) >= 4 {
		last4 := recent[len(recent)-4:]
		if last4[0].IsBearish() && last4[1].IsBearish() && last4[2].IsBearish() && last4[3].IsBullish() {
			pattern.IsReversal = true
			pattern.ConfirmationStrength = 3
		}

		// 锤子线：长下影线且上影线很短
		for _, c := range last4[2:] {
			body := c.Close - c.Open
			if body < 0 {
				body = -body
			}
			lower := minOf(c.Open, c.Close) - c.Low
			upper := c.High - maxOf(c.Open, c.Close)
			if lower > body*2 && upper < body*0.5 {
				pattern.IsReversal = true
				pattern.ConfirmationStrength = 2
			}
		}
	}

	// 成交量确认：最新一根放量超过前4根均量的1.5倍
	if len(recent) >= 5 {
		last5 := recent[len(recent)-5:]
		sum := 0.0
		for _, c := range last5[:4] {
			sum += c.Volume
		}
		avg := sum / 4
		if last5[4].Volume > avg*1.5 {
			pattern.VolumeConfirmed = true
		}
	}

	return pattern
}

func minOf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxOf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
