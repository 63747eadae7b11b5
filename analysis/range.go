package analysis

import (
	"math"

	"github.com/hamgua/alpha-arena-okx/config"
	"github.com/hamgua/alpha-arena-okx/models"
)

// RangeDetector 支撑阻力区间检测
type RangeDetector struct {
	cfg config.RangeTrading
}

// NewRangeDetector 创建区间检测器
func NewRangeDetector(cfg config.RangeTrading) *RangeDetector {
	return &RangeDetector{cfg: cfg}
}

// Detect 在最近的K线窗口内识别被多次测试的支撑阻力位
// 没有形成有效区间时返回 Valid=false
func (r *RangeDetector) Detect(candles []models.Candle, price float64) models.RangeBand {
	periods := r.cfg.RangeDetectionPeriods
	if len(candles) < periods {
		return models.RangeBand{}
	}

	recent := candles[len(candles)-periods:]
	highs := make([]float64, len(recent))
	lows := make([]float64, len(recent))
	for i, c := range recent {
		highs[i] = c.High
		lows[i] = c.Low
	}

	// 阻力位：被多次测试的高点，取最严格（最低）的一个
	resistance := 0.0
	hasResistance := false
	for i, h := range highs {
		if touchCount(highs, i, h) >= r.cfg.SupportResistanceHits {
			if !hasResistance || h < resistance {
				resistance = h
				hasResistance = true
			}
		}
	}

	// 支撑位：被多次测试的低点，取最严格（最高）的一个
	support := 0.0
	hasSupport := false
	for i, l := range lows {
		if touchCount(lows, i, l) >= r.cfg.SupportResistanceHits {
			if !hasSupport || l > support {
				support = l
				hasSupport = true
			}
		}
	}

	if !hasResistance || !hasSupport || resistance <= support {
		return models.RangeBand{}
	}

	heightPct := (resistance - support) / support * 100
	if heightPct < 0.5 || heightPct > 4.0 {
		return models.RangeBand{}
	}

	pos := (price - support) / (resistance - support) * 100

	return models.RangeBand{
		Valid:          true,
		Support:        support,
		Resistance:     resistance,
		Midpoint:       (support + resistance) / 2,
		HeightPct:      heightPct,
		PositionInPct:  pos,
		NearSupport:    pos < 25,
		NearResistance: pos > 75,
		NearMidpoint:   pos >= 40 && pos <= 60,
		BuyEntry:       support * (1 + r.cfg.EntryBufferPct/100),
		SellEntry:      resistance * (1 - r.cfg.EntryBufferPct/100),
		BreakStopPct:   r.cfg.RangeBreakStopPct,
	}
}

// touchCount 统计±5根K线内落在0.2%容差里的样本数
func touchCount(levels []float64, i int, level float64) int {
	start := i - 5
	if start < 0 {
		start = 0
	}
	end := i + 5
	if end > len(levels) {
		end = len(levels)
	}
	count := 0
	for _, v := range levels[start:end] {
		if math.Abs(v-level) < level*0.002 {
			count++
		}
	}
	return count
}
