package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hamgua/alpha-arena-okx/logging"
	"github.com/hamgua/alpha-arena-okx/trader"
)

// Service HTTP 服务层，包装机器人并提供调度控制。
type Service struct {
	bot *trader.Bot

	runMu sync.Mutex
	mu    sync.RWMutex

	schedulerRunning bool
	nextRunAt        time.Time
	cancelScheduler  context.CancelFunc
}

func NewService(bot *trader.Bot) *Service {
	return &Service{bot: bot}
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/account", s.handleAccount)
	mux.HandleFunc("/api/signals", s.handleSignals)
	mux.HandleFunc("/api/decisions", s.handleDecisions)
	mux.HandleFunc("/api/equity", s.handleEquity)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/run", s.handleRunNow)
	mux.HandleFunc("/api/scheduler/start", s.handleStartScheduler)
	mux.HandleFunc("/api/scheduler/stop", s.handleStopScheduler)
}

func (s *Service) StartScheduler() {
	s.mu.Lock()
	if s.schedulerRunning {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelScheduler = cancel
	s.schedulerRunning = true
	s.mu.Unlock()

	go s.loop(ctx)
}

func (s *Service) StopScheduler() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelScheduler != nil {
		s.cancelScheduler()
	}
	s.schedulerRunning = false
	s.nextRunAt = time.Time{}
}

func (s *Service) loop(ctx context.Context) {
	for {
		waitSec := trader.WaitForNextPeriod(s.bot.TradeConfig().Timeframe)
		next := time.Now().Add(time.Duration(waitSec) * time.Second)

		s.mu.Lock()
		s.nextRunAt = next
		s.mu.Unlock()

		timer := time.NewTimer(time.Duration(waitSec) * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.runCycle()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(60 * time.Second):
		}
	}
}

func (s *Service) runCycle() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.bot.Run()
}

// RunOnce 串行执行一个周期，供外部触发
func (s *Service) RunOnce() {
	s.runCycle()
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap := s.bot.Snapshot()
	cfg := s.bot.TradeConfig()

	s.mu.RLock()
	resp := map[string]any{
		"trade_config": map[string]any{
			"symbol":           cfg.Symbol,
			"leverage":         cfg.Leverage,
			"timeframe":        cfg.Timeframe,
			"test_mode":        cfg.TestMode,
			"data_points":      cfg.DataPoints,
			"base_usdt_amount": cfg.Position.BaseUSDTAmount,
			"oscillation": map[string]any{
				"enabled":                 cfg.Oscillation.Enabled,
				"max_daily_trades":        cfg.Oscillation.MaxDailyTrades,
				"hold_time_limit_minutes": cfg.Oscillation.HoldTimeLimitMinutes,
			},
		},
		"scheduler_running": s.schedulerRunning,
		"next_run_at":       s.nextRunAt,
		"runtime":           snap,
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	balance, balanceErr := s.bot.FetchBalance()
	position, posErr := s.bot.FetchPosition()

	resp := map[string]any{
		"balance":  balance,
		"position": position,
	}
	if balanceErr != nil {
		resp["balance_error"] = balanceErr.Error()
	}
	if posErr != nil {
		resp["position_error"] = posErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleSignals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	signals := s.bot.SignalHistory(queryLimit(r, 20, 100))
	writeJSON(w, http.StatusOK, map[string]any{"signals": signals})
}

func (s *Service) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	decisions, err := s.bot.Store().RecentDecisions(queryLimit(r, 20, 200))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": decisions})
}

func (s *Service) handleEquity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	points, err := s.bot.Store().EquityCurve(queryLimit(r, 500, 2000))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"equity": points})
}

func (s *Service) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		BaseUSDTAmount     *float64 `json:"base_usdt_amount"`
		Leverage           *int     `json:"leverage"`
		TestMode           *bool    `json:"test_mode"`
		OscillationEnabled *bool    `json:"oscillation_enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	cfg, err := s.bot.UpdateTradeSettings(trader.TradeSettingsUpdate{
		BaseUSDTAmount:     req.BaseUSDTAmount,
		Leverage:           req.Leverage,
		TestMode:           req.TestMode,
		OscillationEnabled: req.OscillationEnabled,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "settings updated",
		"trade_config": map[string]any{
			"symbol":              cfg.Symbol,
			"leverage":            cfg.Leverage,
			"timeframe":           cfg.Timeframe,
			"test_mode":           cfg.TestMode,
			"base_usdt_amount":    cfg.Position.BaseUSDTAmount,
			"oscillation_enabled": cfg.Oscillation.Enabled,
		},
	})
}

func (s *Service) handleRunNow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.runCycle()
	writeJSON(w, http.StatusOK, map[string]any{"message": "run completed"})
}

func (s *Service) handleStartScheduler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.StartScheduler()
	writeJSON(w, http.StatusOK, map[string]string{"message": "scheduler started"})
}

func (s *Service) handleStopScheduler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.StopScheduler()
	writeJSON(w, http.StatusOK, map[string]string{"message": "scheduler stopped"})
}

func queryLimit(r *http.Request, def, max int) int {
	limit := def
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= max {
			limit = n
		}
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func Serve(addr string, service *Service) error {
	mux := http.NewServeMux()
	service.RegisterRoutes(mux)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": "alpha-arena-okx api",
			"hint":    "frontend should request /api/* endpoints",
		})
	})

	handler := withCORS(mux)
	logging.L().Info().Str("addr", addr).Msg("HTTP 服务已启动")
	return http.ListenAndServe(addr, handler)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
