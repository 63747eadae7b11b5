package signal

import (
	"strings"
	"testing"
	"time"

	"github.com/hamgua/alpha-arena-okx/models"
)

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// bearish last candle so the candle-direction rule accepts BUY
func marketWith(rsi, price float64) models.MarketData {
	return models.MarketData{
		Price: price,
		Candles: []models.Candle{
			{Open: price * 1.004, Close: price, High: price * 1.005, Low: price * 0.999},
		},
		Technical: models.IndicatorSnapshot{RSI: rsi},
	}
}

func buySignal(sl, tp float64) models.TradeSignal {
	return models.TradeSignal{
		Signal: "BUY", Reason: "抄底", StopLoss: sl, TakeProfit: tp,
		Confidence: "HIGH", Timestamp: baseTime,
	}
}

func historyAt(ts time.Time) *History {
	h := NewHistory()
	h.Append(models.TradeSignal{Signal: "HOLD", Timestamp: ts.Add(-time.Hour)})
	h.Append(models.TradeSignal{Signal: "BUY", Timestamp: ts})
	return h
}

func TestValidateCooldownBlocks(t *testing.T) {
	v := NewValidator(historyAt(baseTime))
	got := v.Validate(buySignal(59000, 62000), marketWith(40, 60000), baseTime.Add(4*time.Minute))
	if got.Signal != "HOLD" {
		t.Errorf("signal = %s, want HOLD inside cooldown", got.Signal)
	}
	if !strings.Contains(got.Reason, "冷却") {
		t.Errorf("reason should mention cooldown, got %q", got.Reason)
	}
}

func TestValidateCooldownExpires(t *testing.T) {
	v := NewValidator(historyAt(baseTime))
	got := v.Validate(buySignal(59000, 62000), marketWith(40, 60000), baseTime.Add(5*time.Minute))
	if got.Signal != "BUY" {
		t.Errorf("signal = %s, want BUY at exactly 5 minutes", got.Signal)
	}
}

func TestValidateCooldownSkippedWithThinHistory(t *testing.T) {
	h := NewHistory()
	h.Append(models.TradeSignal{Signal: "BUY", Timestamp: baseTime})
	v := NewValidator(h)
	got := v.Validate(buySignal(59000, 62000), marketWith(40, 60000), baseTime.Add(time.Minute))
	if got.Signal != "BUY" {
		t.Errorf("single history entry must not trigger cooldown, got %s", got.Signal)
	}
}

func TestValidateBuyChasingGreenCandle(t *testing.T) {
	md := marketWith(50, 60000)
	md.Candles = []models.Candle{{Open: 59000, Close: 60000, High: 60100, Low: 58900}} // +1.7%
	v := NewValidator(NewHistory())

	got := v.Validate(buySignal(59000, 62000), md, baseTime)
	if got.Confidence != "LOW" {
		t.Errorf("confidence = %s, want LOW when chasing a green candle", got.Confidence)
	}
	if !strings.Contains(got.Reason, "阳线上涨") {
		t.Errorf("reason trail missing rejection note: %q", got.Reason)
	}
}

func TestValidateBuyOversoldOverride(t *testing.T) {
	md := marketWith(20, 60000)
	md.Candles = []models.Candle{{Open: 59000, Close: 60000, High: 60100, Low: 58900}}
	v := NewValidator(NewHistory())

	got := v.Validate(buySignal(59000, 62000), md, baseTime)
	if got.Confidence != "HIGH" {
		t.Errorf("RSI<25 should allow buying the bounce, confidence = %s", got.Confidence)
	}
}

func TestValidateSellPanicRedCandle(t *testing.T) {
	md := marketWith(50, 60000)
	md.Candles = []models.Candle{{Open: 60700, Close: 60000, High: 60800, Low: 59900}} // -1.15%
	sig := models.TradeSignal{Signal: "SELL", Reason: "破位", StopLoss: 61000, TakeProfit: 58000, Confidence: "HIGH"}
	v := NewValidator(NewHistory())

	got := v.Validate(sig, md, baseTime)
	if got.Confidence != "LOW" {
		t.Errorf("confidence = %s, want LOW when selling into a sharp red candle", got.Confidence)
	}
}

func TestValidateRSIExtremes(t *testing.T) {
	v := NewValidator(NewHistory())

	overbought := v.Validate(buySignal(59000, 62000), marketWith(85, 60000), baseTime)
	if overbought.Confidence != "LOW" || !strings.Contains(overbought.Reason, "RSI超买") {
		t.Errorf("RSI>80 BUY should downgrade: %+v", overbought)
	}
	if overbought.Signal != "BUY" {
		t.Error("RSI extremity downgrades, it must not flip the direction")
	}

	sell := models.TradeSignal{Signal: "SELL", Reason: "x", StopLoss: 61000, TakeProfit: 58000, Confidence: "MEDIUM"}
	md := marketWith(15, 60000)
	md.Candles = []models.Candle{{Open: 59990, Close: 60000, High: 60010, Low: 59980}}
	oversold := v.Validate(sell, md, baseTime)
	if oversold.Confidence != "LOW" || !strings.Contains(oversold.Reason, "RSI超卖") {
		t.Errorf("RSI<20 SELL should downgrade: %+v", oversold)
	}
}

func TestValidateBracketCorrection(t *testing.T) {
	v := NewValidator(NewHistory())

	// BUY with stop loss above price and take profit below price
	got := v.Validate(buySignal(61000, 59000), marketWith(40, 60000), baseTime)
	if got.StopLoss != 60000*0.98 {
		t.Errorf("stop loss = %.2f, want %.2f", got.StopLoss, 60000*0.98)
	}
	if got.TakeProfit != 60000*1.03 {
		t.Errorf("take profit = %.2f, want %.2f", got.TakeProfit, 60000*1.03)
	}

	sell := models.TradeSignal{Signal: "SELL", Reason: "x", StopLoss: 59000, TakeProfit: 61000, Confidence: "MEDIUM"}
	md := marketWith(50, 60000)
	md.Candles = []models.Candle{{Open: 60010, Close: 60000, High: 60020, Low: 59990}}
	gotSell := v.Validate(sell, md, baseTime)
	if gotSell.StopLoss != 60000*1.02 || gotSell.TakeProfit != 60000*0.97 {
		t.Errorf("sell brackets = (%.2f, %.2f), want (%.2f, %.2f)",
			gotSell.StopLoss, gotSell.TakeProfit, 60000*1.02, 60000*0.97)
	}
}

func TestValidateNeverUpgradesConfidence(t *testing.T) {
	v := NewValidator(NewHistory())
	sig := buySignal(59000, 62000)
	sig.Confidence = "LOW"
	got := v.Validate(sig, marketWith(40, 60000), baseTime)
	if got.Confidence != "LOW" {
		t.Errorf("confidence = %s, must stay LOW", got.Confidence)
	}
}
