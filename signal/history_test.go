package signal

import (
	"fmt"
	"testing"
	"time"

	"github.com/hamgua/alpha-arena-okx/models"
)

func TestHistoryEviction(t *testing.T) {
	h := NewHistory()
	for i := 0; i < HistoryCapacity+5; i++ {
		h.Append(models.TradeSignal{Signal: "HOLD", Reason: fmt.Sprintf("n%d", i)})
	}
	if h.Len() != HistoryCapacity {
		t.Fatalf("len = %d, want %d", h.Len(), HistoryCapacity)
	}
	last, ok := h.Last()
	if !ok || last.Reason != fmt.Sprintf("n%d", HistoryCapacity+4) {
		t.Errorf("last = %+v, want newest entry", last)
	}
	// oldest five evicted
	recent := h.Recent(HistoryCapacity)
	if recent[0].Reason != "n5" {
		t.Errorf("oldest surviving entry = %s, want n5", recent[0].Reason)
	}
}

func TestHistoryCountOf(t *testing.T) {
	h := NewHistory()
	h.Append(models.TradeSignal{Signal: "BUY"})
	h.Append(models.TradeSignal{Signal: "SELL"})
	h.Append(models.TradeSignal{Signal: "BUY"})
	if got := h.CountOf("BUY"); got != 2 {
		t.Errorf("CountOf(BUY) = %d, want 2", got)
	}
	if got := h.CountOf("HOLD"); got != 0 {
		t.Errorf("CountOf(HOLD) = %d, want 0", got)
	}
}

func TestHistoryRepeatedThrice(t *testing.T) {
	h := NewHistory()
	h.Append(models.TradeSignal{Signal: "BUY"})
	h.Append(models.TradeSignal{Signal: "BUY"})
	if _, ok := h.RepeatedThrice(); ok {
		t.Error("two entries should not report repetition")
	}
	h.Append(models.TradeSignal{Signal: "BUY"})
	if dir, ok := h.RepeatedThrice(); !ok || dir != "BUY" {
		t.Errorf("RepeatedThrice = (%s, %v), want (BUY, true)", dir, ok)
	}
	h.Append(models.TradeSignal{Signal: "SELL"})
	if _, ok := h.RepeatedThrice(); ok {
		t.Error("mixed tail should not report repetition")
	}
}

func TestHistoryContainsInLast(t *testing.T) {
	h := NewHistory()
	h.Append(models.TradeSignal{Signal: "SELL"})
	h.Append(models.TradeSignal{Signal: "HOLD"})
	h.Append(models.TradeSignal{Signal: "HOLD"})
	if h.ContainsInLast(2, "SELL") {
		t.Error("SELL is three entries back, not in last 2")
	}
	if !h.ContainsInLast(3, "SELL") {
		t.Error("SELL should be found in last 3")
	}
}

func TestHistoryMinutesSinceLast(t *testing.T) {
	h := NewHistory()
	if _, ok := h.MinutesSinceLast(time.Now()); ok {
		t.Error("empty history should report no timestamp")
	}
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	h.Append(models.TradeSignal{Signal: "BUY", Timestamp: base})
	got, ok := h.MinutesSinceLast(base.Add(7 * time.Minute))
	if !ok || got != 7 {
		t.Errorf("MinutesSinceLast = (%.1f, %v), want (7, true)", got, ok)
	}
}
