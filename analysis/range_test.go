package analysis

import (
	"math"
	"testing"

	"github.com/hamgua/alpha-arena-okx/config"
	"github.com/hamgua/alpha-arena-okx/models"
)

func rangeConfig() config.RangeTrading {
	return config.RangeTrading{
		Enabled:               true,
		RangeDetectionPeriods: 36,
		SupportResistanceHits: 3,
		EntryBufferPct:        0.2,
		RangeBreakStopPct:     0.3,
	}
}

// flat band: highs pinned at resistance, lows pinned at support
func bandSeries(n int, support, resistance float64) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		candles[i] = models.Candle{
			Open: support, Close: resistance,
			High: resistance, Low: support,
			Volume: 10,
		}
	}
	return candles
}

func TestRangeDetectTooFewCandles(t *testing.T) {
	r := NewRangeDetector(rangeConfig())
	if got := r.Detect(bandSeries(10, 100, 101), 100.5); got.Valid {
		t.Error("expected invalid band with short history")
	}
}

func TestRangeDetectValidBand(t *testing.T) {
	r := NewRangeDetector(rangeConfig())
	got := r.Detect(bandSeries(36, 100, 101), 100.5)
	if !got.Valid {
		t.Fatal("expected valid band")
	}
	if got.Support != 100 || got.Resistance != 101 {
		t.Errorf("band = [%.2f, %.2f], want [100, 101]", got.Support, got.Resistance)
	}
	if math.Abs(got.HeightPct-1.0) > 0.001 {
		t.Errorf("height = %.3f%%, want 1%%", got.HeightPct)
	}
	if math.Abs(got.PositionInPct-50) > 0.001 {
		t.Errorf("position = %.1f%%, want 50%%", got.PositionInPct)
	}
	if !got.NearMidpoint || got.NearSupport || got.NearResistance {
		t.Errorf("location flags wrong: %+v", got)
	}
}

func TestRangeDetectEntryPrices(t *testing.T) {
	r := NewRangeDetector(rangeConfig())
	got := r.Detect(bandSeries(36, 100, 101), 100.5)
	if !got.Valid {
		t.Fatal("expected valid band")
	}
	// 0.2% buffer off each edge
	if math.Abs(got.BuyEntry-100.2) > 0.001 {
		t.Errorf("buy entry = %.3f, want 100.200", got.BuyEntry)
	}
	if math.Abs(got.SellEntry-100.798) > 0.001 {
		t.Errorf("sell entry = %.3f, want 100.798", got.SellEntry)
	}
	if got.BreakStopPct != 0.3 {
		t.Errorf("break stop = %.2f%%, want 0.30%%", got.BreakStopPct)
	}
}

func TestRangeDetectLocationFlags(t *testing.T) {
	r := NewRangeDetector(rangeConfig())
	candles := bandSeries(36, 100, 101)

	nearSupport := r.Detect(candles, 100.1)
	if !nearSupport.NearSupport {
		t.Errorf("position %.1f%% should be near support", nearSupport.PositionInPct)
	}
	nearResistance := r.Detect(candles, 100.9)
	if !nearResistance.NearResistance {
		t.Errorf("position %.1f%% should be near resistance", nearResistance.PositionInPct)
	}
}

func TestRangeDetectRejectsBandHeight(t *testing.T) {
	r := NewRangeDetector(rangeConfig())

	// 0.2% band: too narrow
	if got := r.Detect(bandSeries(36, 100, 100.2), 100.1); got.Valid {
		t.Error("0.2%% band should be rejected as too narrow")
	}
	// 6% band: too wide
	if got := r.Detect(bandSeries(36, 100, 106), 103); got.Valid {
		t.Error("6%% band should be rejected as too wide")
	}
}

func TestRangeDetectNoQualifyingLevels(t *testing.T) {
	r := NewRangeDetector(rangeConfig())

	// spread the highs and lows so no level gets 3 touches within 0.2%
	candles := make([]models.Candle, 36)
	px := 100.0
	for i := range candles {
		candles[i] = models.Candle{Open: px, Close: px, High: px + 5, Low: px - 5, Volume: 10}
		px *= 1.02
	}
	if got := r.Detect(candles, px); got.Valid {
		t.Errorf("expected no band, got %+v", got)
	}
}
