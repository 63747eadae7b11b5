package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hamgua/alpha-arena-okx/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "trade.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *Store
	if err := s.SaveDecision(time.Now(), models.TradeSignal{}, 0, "", 0, "", false); err != nil {
		t.Errorf("nil store SaveDecision: %v", err)
	}
	if err := s.SaveEquity(0, 0); err != nil {
		t.Errorf("nil store SaveEquity: %v", err)
	}
	if err := s.SaveRiskEvent("x", "y"); err != nil {
		t.Errorf("nil store SaveRiskEvent: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("nil store Close: %v", err)
	}
	if recs, err := s.RecentDecisions(10); err != nil || recs != nil {
		t.Errorf("nil store RecentDecisions = %v, %v", recs, err)
	}
}

func TestDecisionRoundTrip(t *testing.T) {
	store := openTestStore(t)

	sig := models.TradeSignal{
		Signal:     "BUY",
		Confidence: "HIGH",
		Reason:     "连续下跌后出现锤子线反转",
		StopLoss:   58800,
		TakeProfit: 61800,
	}
	ts := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	if err := store.SaveDecision(ts, sig, 60000, "oscillation", 0.42, "open", true); err != nil {
		t.Fatalf("SaveDecision: %v", err)
	}

	recs, err := store.RecentDecisions(10)
	if err != nil {
		t.Fatalf("RecentDecisions: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	r := recs[0]
	if r.Signal != "BUY" || r.Confidence != "HIGH" {
		t.Errorf("signal round trip = %s/%s", r.Signal, r.Confidence)
	}
	if r.Price != 60000 || r.StopLoss != 58800 || r.TakeProfit != 61800 {
		t.Errorf("price fields = %v/%v/%v", r.Price, r.StopLoss, r.TakeProfit)
	}
	if r.Regime != "oscillation" || r.Action != "open" || !r.Executed {
		t.Errorf("decision metadata = %s/%s/%v", r.Regime, r.Action, r.Executed)
	}
	if r.TargetSize != 0.42 {
		t.Errorf("target size = %v, want 0.42", r.TargetSize)
	}
}

func TestRecentDecisionsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	for i := 0; i < 5; i++ {
		sig := models.TradeSignal{Signal: "HOLD", Confidence: "LOW"}
		ts := time.Date(2026, 3, 1, 10, i, 0, 0, time.UTC)
		if err := store.SaveDecision(ts, sig, float64(60000+i), "normal", 0, "hold", false); err != nil {
			t.Fatalf("SaveDecision #%d: %v", i, err)
		}
	}
	recs, err := store.RecentDecisions(3)
	if err != nil {
		t.Fatalf("RecentDecisions: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].Price != 60004 {
		t.Errorf("first record price = %v, want newest 60004", recs[0].Price)
	}
}

func TestOrderUpsertKeepsSingleRow(t *testing.T) {
	store := openTestStore(t)
	if err := store.SaveOrder("ord-1", "BTC-USDT-SWAP", "buy", 0.5, false, "live"); err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}
	if err := store.SaveOrder("ord-1", "BTC-USDT-SWAP", "buy", 0.5, false, "filled"); err != nil {
		t.Fatalf("SaveOrder update: %v", err)
	}

	var count int
	var status string
	err := store.db.QueryRow(`SELECT COUNT(*), MAX(status) FROM orders WHERE order_id = 'ord-1'`).Scan(&count, &status)
	if err != nil {
		t.Fatalf("query orders: %v", err)
	}
	if count != 1 {
		t.Errorf("order rows = %d, want 1", count)
	}
	if status != "filled" {
		t.Errorf("order status = %s, want filled", status)
	}
}

func TestEquityCurveChronological(t *testing.T) {
	store := openTestStore(t)
	for i := 0; i < 4; i++ {
		if err := store.SaveEquity(float64(1000+i*10), 5); err != nil {
			t.Fatalf("SaveEquity #%d: %v", i, err)
		}
	}
	points, err := store.EquityCurve(3)
	if err != nil {
		t.Fatalf("EquityCurve: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("got %d points, want 3", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].Equity < points[i-1].Equity {
			t.Errorf("equity points out of order: %v before %v", points[i-1].Equity, points[i].Equity)
		}
	}
	if points[len(points)-1].Equity != 1035 {
		t.Errorf("last equity = %v, want 1035", points[len(points)-1].Equity)
	}
}

func TestPositionSnapshotNilPosition(t *testing.T) {
	store := openTestStore(t)
	if err := store.SavePositionSnapshot(nil); err != nil {
		t.Errorf("nil position snapshot: %v", err)
	}
	var count int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM position_snapshots`).Scan(&count); err != nil {
		t.Fatalf("query snapshots: %v", err)
	}
	if count != 0 {
		t.Errorf("nil position must not be persisted, rows = %d", count)
	}
}
