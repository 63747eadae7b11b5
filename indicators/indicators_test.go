package indicators

import (
	"math"
	"testing"

	"github.com/hamgua/alpha-arena-okx/models"
)

func almostEqual(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func closesToCandles(closes []float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{Open: c, High: c * 1.001, Low: c * 0.999, Close: c, Volume: 100}
	}
	return out
}

func TestSMAUsesAvailableWindow(t *testing.T) {
	data := []float64{2, 4, 6, 8}
	got := SMA(data, 3)
	want := []float64{2, 3, 4, 6}
	for i := range want {
		if !almostEqual(got[i], want[i], 1e-9) {
			t.Errorf("SMA[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEMAConvergesTowardConstant(t *testing.T) {
	data := make([]float64, 100)
	data[0] = 0
	for i := 1; i < len(data); i++ {
		data[i] = 10
	}
	got := EMA(data, 12)
	if !almostEqual(got[len(got)-1], 10, 1e-3) {
		t.Errorf("EMA of constant tail = %v, want ~10", got[len(got)-1])
	}
}

func TestRSIBounds(t *testing.T) {
	short := []float64{1, 2, 3}
	if got := RSI(short, 14); got != 50 {
		t.Errorf("RSI with short history = %v, want neutral 50", got)
	}

	rising := make([]float64, 30)
	for i := range rising {
		rising[i] = float64(100 + i)
	}
	if got := RSI(rising, 14); got != 100 {
		t.Errorf("RSI of monotonic rise = %v, want 100", got)
	}

	falling := make([]float64, 30)
	for i := range falling {
		falling[i] = float64(200 - i)
	}
	if got := RSI(falling, 14); got > 1 {
		t.Errorf("RSI of monotonic fall = %v, want ~0", got)
	}
}

func TestRSIMixedSeriesInRange(t *testing.T) {
	data := make([]float64, 40)
	for i := range data {
		data[i] = 100 + 3*math.Sin(float64(i))
	}
	got := RSI(data, 14)
	if got <= 0 || got >= 100 {
		t.Errorf("RSI of oscillating series = %v, want inside (0,100)", got)
	}
}

func TestRollingStd(t *testing.T) {
	data := []float64{5, 5, 5, 5}
	if got := RollingStd(data, 4); got != 0 {
		t.Errorf("std of constant series = %v, want 0", got)
	}
	// 样本 {2,4,4,4,5,5,7,9} 总体标准差为 2
	data = []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if got := RollingStd(data, 8); !almostEqual(got, 2, 1e-9) {
		t.Errorf("std = %v, want 2", got)
	}
}

func TestTrueRangeIncludesGap(t *testing.T) {
	prev := models.Candle{Close: 100}
	cur := models.Candle{High: 103, Low: 102}
	// 跳空高开：TR = |103-100| = 3，而非 103-102
	if got := TrueRange(prev, cur); !almostEqual(got, 3, 1e-9) {
		t.Errorf("TrueRange with gap up = %v, want 3", got)
	}

	cur = models.Candle{High: 99, Low: 96}
	if got := TrueRange(prev, cur); !almostEqual(got, 4, 1e-9) {
		t.Errorf("TrueRange with gap down = %v, want 4", got)
	}
}

func TestCalculateBollingerPosition(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 100
		} else {
			closes[i] = 102
		}
	}
	ind := Calculate(closesToCandles(closes))
	if ind.BBUpper <= ind.BBMiddle || ind.BBMiddle <= ind.BBLower {
		t.Fatalf("bollinger band order violated: %v / %v / %v", ind.BBUpper, ind.BBMiddle, ind.BBLower)
	}
	if ind.BBPosition < 0 || ind.BBPosition > 1 {
		t.Errorf("BBPosition = %v, want within [0,1] for in-band close", ind.BBPosition)
	}
}

func TestCalculateEmptyInput(t *testing.T) {
	if got := Calculate(nil); got != (models.IndicatorSnapshot{}) {
		t.Errorf("Calculate(nil) = %+v, want zero snapshot", got)
	}
}

func TestAnalyzeTrendOverall(t *testing.T) {
	up := make([]float64, 80)
	for i := range up {
		up[i] = 100 * math.Pow(1.005, float64(i))
	}
	candles := closesToCandles(up)
	ind := Calculate(candles)
	trend := AnalyzeTrend(candles, ind)
	if trend.Overall != "强势上涨" {
		t.Errorf("uptrend overall = %s, want 强势上涨", trend.Overall)
	}
	if trend.MACD != "bullish" {
		t.Errorf("uptrend MACD = %s, want bullish", trend.MACD)
	}

	down := make([]float64, 80)
	for i := range down {
		down[i] = 100 * math.Pow(0.995, float64(i))
	}
	candles = closesToCandles(down)
	ind = Calculate(candles)
	trend = AnalyzeTrend(candles, ind)
	if trend.Overall != "强势下跌" {
		t.Errorf("downtrend overall = %s, want 强势下跌", trend.Overall)
	}
}

func TestVolumeRatio(t *testing.T) {
	candles := closesToCandles(make([]float64, 40))
	for i := range candles {
		candles[i].Close = 100
		candles[i].Open = 100
		candles[i].High = 100.1
		candles[i].Low = 99.9
		candles[i].Volume = 100
	}
	candles[len(candles)-1].Volume = 250
	ind := Calculate(candles)
	// 窗口均量 (19×100+250)/20 = 107.5，比值 250/107.5
	if !almostEqual(ind.VolumeRatio, 250.0/107.5, 1e-9) {
		t.Errorf("VolumeRatio = %v, want %v", ind.VolumeRatio, 250.0/107.5)
	}
}
