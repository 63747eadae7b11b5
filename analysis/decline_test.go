package analysis

import (
	"math/rand"
	"testing"

	"github.com/hamgua/alpha-arena-okx/config"
	"github.com/hamgua/alpha-arena-okx/models"
)

func declineConfig() config.DeclineDetection {
	return config.DeclineDetection{
		DataWindow:            30,
		MinDeclineDuration:    8,
		StrongDeclineDuration: 12,
		MinTotalDecline:       2.5,
		StrongTotalDecline:    6.0,
		VolumeConfirmation:    true,
		RequireReversalSignal: true,
	}
}

// bearish/bullish candle helpers with a fixed 1% body
func bearCandle(open float64) models.Candle {
	close := open * 0.99
	return models.Candle{Open: open, High: open, Low: close, Close: close, Volume: 100}
}

func bullCandle(open float64) models.Candle {
	close := open * 1.01
	return models.Candle{Open: open, High: close, Low: open, Close: close, Volume: 100}
}

func flatSeries(n int) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		candles[i] = bullCandle(100)
	}
	return candles
}

func TestDetectTooFewCandles(t *testing.T) {
	d := NewDeclineReversalDetector(declineConfig())
	got := d.Detect(flatSeries(10))
	if got.ConsecutiveDeclines != 0 || got.IsReversal || got.ConfirmationStrength != 0 {
		t.Errorf("expected zero pattern, got %+v", got)
	}
}

func TestDetectStreakCount(t *testing.T) {
	d := NewDeclineReversalDetector(declineConfig())
	candles := flatSeries(25)
	for i := 0; i < 5; i++ {
		candles = append(candles, bearCandle(100))
	}
	got := d.Detect(candles)
	if got.ConsecutiveDeclines != 5 {
		t.Errorf("streak = %d, want 5", got.ConsecutiveDeclines)
	}
	if got.TotalDeclinePct < 4.9 || got.TotalDeclinePct > 5.1 {
		t.Errorf("total decline = %.2f, want ~5.0", got.TotalDeclinePct)
	}
	if got.DeclineDurationMin != 75 {
		t.Errorf("duration = %d, want 75", got.DeclineDurationMin)
	}
}

// streak count must match a naive backward scan for arbitrary sequences
func TestDetectStreakMatchesNaiveScan(t *testing.T) {
	d := NewDeclineReversalDetector(declineConfig())
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 200; trial++ {
		candles := make([]models.Candle, 30)
		for i := range candles {
			if rng.Intn(2) == 0 {
				candles[i] = bearCandle(100 + rng.Float64()*50)
			} else {
				candles[i] = bullCandle(100 + rng.Float64()*50)
			}
		}

		want := 0
		for i := len(candles) - 1; i >= 0; i-- {
			if !candles[i].IsBearish() {
				break
			}
			want++
		}

		got := d.Detect(candles)
		if got.ConsecutiveDeclines != want {
			t.Fatalf("trial %d: streak = %d, naive scan = %d", trial, got.ConsecutiveDeclines, want)
		}
	}
}

func TestDetectBullishFlipReversal(t *testing.T) {
	d := NewDeclineReversalDetector(declineConfig())
	candles := flatSeries(26)
	candles = append(candles, bearCandle(100), bearCandle(99), bearCandle(98), bullCandle(97))

	got := d.Detect(candles)
	if !got.IsReversal {
		t.Fatal("expected reversal")
	}
	if got.ConfirmationStrength != 3 {
		t.Errorf("strength = %d, want 3", got.ConfirmationStrength)
	}
	if got.ConsecutiveDeclines != 0 {
		t.Errorf("streak = %d, want 0 (last candle bullish)", got.ConsecutiveDeclines)
	}
}

func TestDetectHammerReversal(t *testing.T) {
	d := NewDeclineReversalDetector(declineConfig())
	candles := flatSeries(29)
	// long lower shadow, tiny upper shadow
	hammer := models.Candle{Open: 100, Close: 99.5, High: 100.1, Low: 97, Volume: 100}
	candles = append(candles, hammer)

	got := d.Detect(candles)
	if !got.IsReversal || got.ConfirmationStrength != 2 {
		t.Errorf("expected hammer reversal strength 2, got %+v", got)
	}
}

// hammer in the last two candles takes the later evaluation slot
func TestDetectHammerOverridesFlipStrength(t *testing.T) {
	d := NewDeclineReversalDetector(declineConfig())
	candles := flatSeries(26)
	hammerBull := models.Candle{Open: 97, Close: 97.3, High: 97.4, Low: 96, Volume: 100}
	candles = append(candles, bearCandle(100), bearCandle(99), bearCandle(98), hammerBull)

	got := d.Detect(candles)
	if !got.IsReversal {
		t.Fatal("expected reversal")
	}
	if got.ConfirmationStrength != 2 {
		t.Errorf("strength = %d, want 2 (hammer evaluated after flip)", got.ConfirmationStrength)
	}
}

func TestDetectVolumeConfirmation(t *testing.T) {
	d := NewDeclineReversalDetector(declineConfig())

	candles := flatSeries(29)
	spike := bearCandle(100)
	spike.Volume = 200 // 2x the 100 average
	candles = append(candles, spike)
	if got := d.Detect(candles); !got.VolumeConfirmed {
		t.Error("expected volume confirmation at 2x average")
	}

	candles = flatSeries(29)
	mild := bearCandle(100)
	mild.Volume = 120
	candles = append(candles, mild)
	if got := d.Detect(candles); got.VolumeConfirmed {
		t.Error("1.2x average should not confirm")
	}
}

// zero volume and zero open must not panic
func TestDetectDegenerateCandles(t *testing.T) {
	d := NewDeclineReversalDetector(declineConfig())
	candles := make([]models.Candle, 30)
	for i := range candles {
		candles[i] = models.Candle{Open: 0, High: 0, Low: 0, Close: 0, Volume: 0}
	}
	got := d.Detect(candles)
	if got.TotalDeclinePct != 0 {
		t.Errorf("total decline = %.2f, want 0", got.TotalDeclinePct)
	}
}
