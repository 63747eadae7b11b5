package indicators

import (
	"math"

	"github.com/hamgua/alpha-arena-okx/models"
)

// Calculate 计算最新一根K线对应的全套技术指标
func Calculate(candles []models.Candle) models.IndicatorSnapshot {
	n := len(candles)
	if n == 0 {
		return models.IndicatorSnapshot{}
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	sma5 := SMA(closes, 5)
	sma20 := SMA(closes, 20)
	sma50 := SMA(closes, 50)

	ema12 := EMA(closes, 12)
	ema26 := EMA(closes, 26)
	macdSeries := make([]float64, n)
	for i := range closes {
		macdSeries[i] = ema12[i] - ema26[i]
	}
	macdSignalSeries := EMA(macdSeries, 9)
	macdLine := macdSeries[n-1]
	macdSignal := macdSignalSeries[n-1]

	bbMid := sma20[n-1]
	bbStd := RollingStd(closes, 20)
	bbUpper := bbMid + bbStd*2
	bbLower := bbMid - bbStd*2
	bbPos := 0.0
	if bbUpper-bbLower != 0 {
		bbPos = (closes[n-1] - bbLower) / (bbUpper - bbLower)
	}

	volMA := SMA(volumes, 20)
	volRatio := 0.0
	if volMA[n-1] != 0 {
		volRatio = volumes[n-1] / volMA[n-1]
	}

	return models.IndicatorSnapshot{
		SMA5:        sma5[n-1],
		SMA20:       sma20[n-1],
		SMA50:       sma50[n-1],
		EMA12:       ema12[n-1],
		EMA26:       ema26[n-1],
		MACD:        macdLine,
		MACDSignal:  macdSignal,
		MACDHist:    macdLine - macdSignal,
		RSI:         RSI(closes, 14),
		BBUpper:     bbUpper,
		BBMiddle:    bbMid,
		BBLower:     bbLower,
		BBPosition:  bbPos,
		VolumeMA:    volMA[n-1],
		VolumeRatio: volRatio,
		Resistance:  windowMax(highs, 20),
		Support:     windowMin(lows, 20),
	}
}

// AnalyzeTrend 多周期均线 + MACD 综合趋势
func AnalyzeTrend(candles []models.Candle, ind models.IndicatorSnapshot) models.TrendAnalysis {
	price := candles[len(candles)-1].Close

	shortTerm := "下跌"
	if price > ind.SMA20 {
		shortTerm = "上涨"
	}
	mediumTerm := "下跌"
	if price > ind.SMA50 {
		mediumTerm = "上涨"
	}

	macdDir := "bearish"
	if ind.MACD > ind.MACDSignal {
		macdDir = "bullish"
	}

	overall := "震荡整理"
	if shortTerm == "上涨" && mediumTerm == "上涨" {
		overall = "强势上涨"
	} else if shortTerm == "下跌" && mediumTerm == "下跌" {
		overall = "强势下跌"
	}

	return models.TrendAnalysis{
		ShortTerm:  shortTerm,
		MediumTerm: mediumTerm,
		MACD:       macdDir,
		Overall:    overall,
		RSILevel:   ind.RSI,
	}
}

// SMA 简单移动平均序列（窗口不足时用已有数据）
func SMA(data []float64, period int) []float64 {
	result := make([]float64, len(data))
	for i := range data {
		start := i - period + 1
		if start < 0 {
			start = 0
		}
		sum := 0.0
		for _, v := range data[start : i+1] {
			sum += v
		}
		result[i] = sum / float64(i-start+1)
	}
	return result
}

// EMA 指数移动平均序列
func EMA(data []float64, period int) []float64 {
	result := make([]float64, len(data))
	if len(data) == 0 {
		return result
	}
	k := 2.0 / float64(period+1)
	result[0] = data[0]
	for i := 1; i < len(data); i++ {
		result[i] = data[i]*k + result[i-1]*(1-k)
	}
	return result
}

// RSI Wilder 平滑相对强弱指数，数据不足时返回中性值 50
func RSI(data []float64, period int) float64 {
	if len(data) < period+1 {
		return 50
	}
	gains, losses := 0.0, 0.0
	for i := 1; i <= period; i++ {
		diff := data[i] - data[i-1]
		if diff > 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	for i := period + 1; i < len(data); i++ {
		diff := data[i] - data[i-1]
		if diff > 0 {
			avgGain = (avgGain*float64(period-1) + diff) / float64(period)
			avgLoss = (avgLoss * float64(period-1)) / float64(period)
		} else {
			avgGain = (avgGain * float64(period-1)) / float64(period)
			avgLoss = (avgLoss*float64(period-1) - diff) / float64(period)
		}
	}
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// RollingStd 末尾窗口的总体标准差
func RollingStd(data []float64, period int) float64 {
	n := len(data)
	start := n - period
	if start < 0 {
		start = 0
	}
	window := data[start:]
	if len(window) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(len(window))
	variance := 0.0
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(window))
	return math.Sqrt(variance)
}

// TrueRange 单根K线真实波幅（含上一根收盘跳空）
func TrueRange(prev, cur models.Candle) float64 {
	tr := cur.High - cur.Low
	if d := math.Abs(cur.High - prev.Close); d > tr {
		tr = d
	}
	if d := math.Abs(cur.Low - prev.Close); d > tr {
		tr = d
	}
	return tr
}

func windowMax(data []float64, period int) float64 {
	n := len(data)
	start := n - period
	if start < 0 {
		start = 0
	}
	m := data[start]
	for _, v := range data[start:] {
		if v > m {
			m = v
		}
	}
	return m
}

func windowMin(data []float64, period int) float64 {
	n := len(data)
	start := n - period
	if start < 0 {
		start = 0
	}
	m := data[start]
	for _, v := range data[start:] {
		if v < m {
			m = v
		}
	}
	return m
}
