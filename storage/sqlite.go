package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hamgua/alpha-arena-okx/models"
)

// Store SQLite 持久化层。所有写方法对 nil 接收者安全，
// 数据库不可用时机器人可以无持久化运行。
type Store struct {
	db *sql.DB
}

// DecisionRecord 单周期决策记录
type DecisionRecord struct {
	ID         int64   `json:"id"`
	Ts         string  `json:"ts"`
	Signal     string  `json:"signal"`
	Confidence string  `json:"confidence"`
	Reason     string  `json:"reason"`
	Price      float64 `json:"price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Regime     string  `json:"regime"`
	TargetSize float64 `json:"target_size"`
	Action     string  `json:"action"`
	Executed   bool    `json:"executed"`
	IsFallback bool    `json:"is_fallback"`
}

// EquityPoint 权益曲线采样点
type EquityPoint struct {
	Ts     string  `json:"ts"`
	Equity float64 `json:"equity"`
}

func Open(path string) (*Store, error) {
	if path == "" {
		path = "data/trade.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := configureSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func configureSQLite(db *sql.DB) error {
	pragmas := []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA synchronous = NORMAL;`,
		`PRAGMA temp_store = MEMORY;`,
		`PRAGMA busy_timeout = 5000;`,
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply sqlite pragma failed: %s: %w", stmt, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS ai_decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			signal TEXT,
			confidence TEXT,
			reason TEXT,
			price REAL,
			stop_loss REAL,
			take_profit REAL,
			regime TEXT,
			target_size REAL,
			action TEXT,
			executed INTEGER,
			is_fallback INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT UNIQUE,
			symbol TEXT,
			side TEXT,
			size REAL,
			reduce_only INTEGER,
			status TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS position_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			symbol TEXT,
			side TEXT,
			size REAL,
			entry_price REAL,
			unrealized_pnl REAL,
			leverage REAL
		);`,
		`CREATE TABLE IF NOT EXISTS equity_curve (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			balance REAL,
			unrealized_pnl REAL,
			equity REAL
		);`,
		`CREATE TABLE IF NOT EXISTS risk_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			event_type TEXT,
			details TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ai_decisions_ts ON ai_decisions(ts);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_position_snapshots_ts ON position_snapshots(ts);`,
		`CREATE INDEX IF NOT EXISTS idx_equity_curve_ts ON equity_curve(ts);`,
		`CREATE INDEX IF NOT EXISTS idx_risk_events_ts ON risk_events(ts);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveDecision 记录一个周期的最终决策，含执行动作。
func (s *Store) SaveDecision(ts time.Time, sig models.TradeSignal, price float64, regime string, targetSize float64, action string, executed bool) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO ai_decisions (ts, signal, confidence, reason, price, stop_loss, take_profit, regime, target_size, action, executed, is_fallback)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.Format(time.RFC3339),
		sig.Signal, sig.Confidence, sig.Reason,
		price, sig.StopLoss, sig.TakeProfit,
		regime, targetSize, action,
		boolToInt(executed), boolToInt(sig.IsFallback),
	)
	return err
}

func (s *Store) SaveOrder(orderID, symbol, side string, size float64, reduceOnly bool, status string) error {
	if s == nil || orderID == "" {
		return nil
	}
	now := time.Now().Format(time.RFC3339)
	_, err := s.db.Exec(
		`INSERT INTO orders (order_id, symbol, side, size, reduce_only, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(order_id) DO UPDATE SET
		 	status=excluded.status,
		 	updated_at=excluded.updated_at`,
		orderID, symbol, side, size, boolToInt(reduceOnly), status, now, now,
	)
	return err
}

func (s *Store) SavePositionSnapshot(pos *models.Position) error {
	if s == nil || pos == nil {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO position_snapshots (ts, symbol, side, size, entry_price, unrealized_pnl, leverage)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().Format(time.RFC3339),
		pos.Symbol, pos.Side, pos.Size, pos.EntryPrice, pos.UnrealizedPnL, pos.Leverage,
	)
	return err
}

func (s *Store) SaveEquity(balance, upl float64) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO equity_curve (ts, balance, unrealized_pnl, equity) VALUES (?, ?, ?, ?)`,
		time.Now().Format(time.RFC3339), balance, upl, balance+upl,
	)
	return err
}

// SaveRiskEvent 记录风险事件（保证金不足、止盈止损挂单失败等）。
func (s *Store) SaveRiskEvent(eventType, details string) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO risk_events (ts, event_type, details) VALUES (?, ?, ?)`,
		time.Now().Format(time.RFC3339), eventType, details,
	)
	return err
}

// RecentDecisions 倒序返回最近 limit 条决策。
func (s *Store) RecentDecisions(limit int) ([]DecisionRecord, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, ts, signal, confidence, reason, price, stop_loss, take_profit, regime, target_size, action, executed, is_fallback
		 FROM ai_decisions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var r DecisionRecord
		var executed, fallback int
		if err := rows.Scan(&r.ID, &r.Ts, &r.Signal, &r.Confidence, &r.Reason,
			&r.Price, &r.StopLoss, &r.TakeProfit, &r.Regime, &r.TargetSize,
			&r.Action, &executed, &fallback); err != nil {
			return nil, err
		}
		r.Executed = executed != 0
		r.IsFallback = fallback != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// EquityCurve 返回最近 limit 个权益采样点，时间正序。
func (s *Store) EquityCurve(limit int) ([]EquityPoint, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 2000 {
		limit = 500
	}
	rows, err := s.db.Query(
		`SELECT ts, equity FROM (
			SELECT id, ts, equity FROM equity_curve ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityPoint
	for rows.Next() {
		var p EquityPoint
		if err := rows.Scan(&p.Ts, &p.Equity); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
