package market

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsEndpoint   = "wss://ws.okx.com:8443/ws/v5/business"
	pingInterval = 20 * time.Second
)

// StreamSnapshot 最近一次推送的K线快照
type StreamSnapshot struct {
	LastPrice      string    `json:"last_price"`
	Kline          []string  `json:"kline"`
	KlineClosed    bool      `json:"kline_closed"`
	KlineCloseTime int64     `json:"kline_close_time"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Stream OKX 业务线 WebSocket K线订阅。
// 只维护最新快照，消费方轮询 Snapshot 判断K线是否收盘。
type Stream struct {
	symbol  string
	channel string

	mu   sync.RWMutex
	conn *websocket.Conn
	done chan struct{}
	last StreamSnapshot
}

func NewStream(symbol, timeframe string) *Stream {
	return &Stream{symbol: symbol, channel: candleChannel(timeframe)}
}

// candleChannel 周期转OKX频道名：15m → candle15m，1h → candle1H
func candleChannel(timeframe string) string {
	tf := strings.TrimSpace(timeframe)
	if tf == "" {
		tf = "15m"
	}
	if strings.HasSuffix(strings.ToLower(tf), "h") {
		tf = strings.ToUpper(tf)
	}
	return "candle" + tf
}

func (s *Stream) Start() error {
	c, _, err := websocket.DefaultDialer.Dial(wsEndpoint, nil)
	if err != nil {
		return fmt.Errorf("连接行情WebSocket失败: %w", err)
	}

	sub := map[string]any{
		"op": "subscribe",
		"args": []map[string]string{
			{"channel": s.channel, "instId": s.symbol},
		},
	}
	if err := c.WriteJSON(sub); err != nil {
		_ = c.Close()
		return fmt.Errorf("订阅K线频道失败: %w", err)
	}

	s.mu.Lock()
	s.conn = c
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.readLoop(c)
	go s.pingLoop(c)
	return nil
}

func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

func (s *Stream) Snapshot() StreamSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// pingLoop OKX 要求30秒内有心跳，否则断连
func (s *Stream) pingLoop(c *websocket.Conn) {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	if done == nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}

func (s *Stream) readLoop(c *websocket.Conn) {
	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		if string(msg) == "pong" {
			continue
		}

		var payload struct {
			Arg struct {
				Channel string `json:"channel"`
				InstID  string `json:"instId"`
			} `json:"arg"`
			Data [][]string `json:"data"`
		}
		if err := json.Unmarshal(msg, &payload); err != nil {
			continue
		}
		if !strings.HasPrefix(payload.Arg.Channel, "candle") || len(payload.Data) == 0 {
			continue
		}

		// [ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm]
		row := payload.Data[len(payload.Data)-1]
		if len(row) < 9 {
			continue
		}
		openTime, _ := strconv.ParseInt(row[0], 10, 64)

		s.mu.Lock()
		s.last.Kline = row[:6]
		s.last.LastPrice = row[4]
		s.last.KlineClosed = row[8] == "1"
		s.last.KlineCloseTime = openTime
		s.last.UpdatedAt = time.Now()
		s.mu.Unlock()
	}
}
