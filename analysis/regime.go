package analysis

import (
	"math"

	"github.com/hamgua/alpha-arena-okx/indicators"
	"github.com/hamgua/alpha-arena-okx/models"
)

const regimeWindow = 30

// ClassifyRegime 量化识别市场状态（震荡市/趋势市/正常市）
// 同一份K线输入永远得到同一个结果
func ClassifyRegime(candles []models.Candle, ind models.IndicatorSnapshot) models.Regime {
	if len(candles) < regimeWindow {
		return models.Regime{
			Kind:          models.RegimeNormal,
			Confidence:    0.5,
			ATRPct:        2.0,
			TrendStrength: "未知",
		}
	}

	recent := candles[len(candles)-regimeWindow:]

	// 价格波动范围
	highest := recent[0].High
	lowest := recent[0].Low
	for _, c := range recent {
		if c.High > highest {
			highest = c.High
		}
		if c.Low < lowest {
			lowest = c.Low
		}
	}
	priceRange := 0.0
	if lowest > 0 {
		priceRange = (highest - lowest) / lowest * 100
	}

	// 平均真实波幅ATR
	trSum := 0.0
	for i := 1; i < len(recent); i++ {
		trSum += indicators.TrueRange(recent[i-1], recent[i])
	}
	avgATR := trSum / float64(len(recent)-1)
	lastClose := recent[len(recent)-1].Close
	atrPct := 0.0
	if lastClose > 0 {
		atrPct = avgATR / lastClose * 100
	}

	// 趋势强度：10/20均线偏离度
	closes := make([]float64, len(recent))
	for i, c := range recent {
		closes[i] = c.Close
	}
	sma10 := tailMean(closes, 10)
	sma20 := tailMean(closes, 20)
	trendStrength := 0.0
	if sma20 != 0 {
		trendStrength = math.Abs((sma10-sma20)/sma20) * 100
	}

	kind := models.RegimeNormal
	if priceRange < 4.0 && atrPct < 1.5 && trendStrength < 0.5 {
		kind = models.RegimeOscillation
	} else if trendStrength > 2.0 {
		kind = models.RegimeTrending
	}

	label, confidence := trendLabel(ind)

	return models.Regime{
		Kind:          kind,
		Confidence:    confidence,
		ATRPct:        atrPct,
		TrendStrength: label,
	}
}

// trendLabel 均线排列判断趋势强度
func trendLabel(ind models.IndicatorSnapshot) (string, float64) {
	switch {
	case ind.SMA5 > ind.SMA20 && ind.SMA20 > ind.SMA50:
		return "强上涨", 0.9
	case ind.SMA5 < ind.SMA20 && ind.SMA20 < ind.SMA50:
		return "强下跌", 0.9
	case ind.SMA20 != 0 && math.Abs(ind.SMA5-ind.SMA20)/ind.SMA20 < 0.005:
		return "震荡", 0.7
	default:
		return "弱趋势", 0.5
	}
}

func tailMean(data []float64, n int) float64 {
	if len(data) == 0 {
		return 0
	}
	if n > len(data) {
		n = len(data)
	}
	sum := 0.0
	for _, v := range data[len(data)-n:] {
		sum += v
	}
	return sum / float64(n)
}
