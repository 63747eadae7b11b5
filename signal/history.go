package signal

import (
	"time"

	"github.com/hamgua/alpha-arena-okx/models"
)

// HistoryCapacity 信号历史保留条数
const HistoryCapacity = 30

// History 有界信号历史环形缓冲，只追加，满了淘汰最旧一条
// 仅用于冷却期与重复度检查，不是持仓的权威状态
type History struct {
	entries []models.TradeSignal
	cap     int
}

// NewHistory 创建容量为 HistoryCapacity 的历史缓冲
func NewHistory() *History {
	return &History{cap: HistoryCapacity}
}

// Append 追加一条信号，超出容量时淘汰最旧的
func (h *History) Append(sig models.TradeSignal) {
	h.entries = append(h.entries, sig)
	if len(h.entries) > h.cap {
		h.entries = h.entries[len(h.entries)-h.cap:]
	}
}

// Len 当前条数
func (h *History) Len() int { return len(h.entries) }

// Last 最近一条信号
func (h *History) Last() (models.TradeSignal, bool) {
	if len(h.entries) == 0 {
		return models.TradeSignal{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Recent 最近 n 条（不足 n 时返回全部），新的在后
func (h *History) Recent(n int) []models.TradeSignal {
	if n >= len(h.entries) {
		n = len(h.entries)
	}
	out := make([]models.TradeSignal, n)
	copy(out, h.entries[len(h.entries)-n:])
	return out
}

// MinutesSinceLast 距最近一条信号的分钟数，无历史时返回 false
func (h *History) MinutesSinceLast(now time.Time) (float64, bool) {
	last, ok := h.Last()
	if !ok || last.Timestamp.IsZero() {
		return 0, false
	}
	return now.Sub(last.Timestamp).Minutes(), true
}

// CountOf 统计某方向信号在缓冲内出现的次数
func (h *History) CountOf(direction string) int {
	count := 0
	for _, s := range h.entries {
		if s.Signal == direction {
			count++
		}
	}
	return count
}

// RepeatedThrice 最近3条是否为连续同方向信号
func (h *History) RepeatedThrice() (string, bool) {
	if len(h.entries) < 3 {
		return "", false
	}
	last3 := h.entries[len(h.entries)-3:]
	if last3[0].Signal == last3[1].Signal && last3[1].Signal == last3[2].Signal {
		return last3[0].Signal, true
	}
	return "", false
}

// ContainsInLast 最近 n 条中是否出现过某方向
func (h *History) ContainsInLast(n int, direction string) bool {
	for _, s := range h.Recent(n) {
		if s.Signal == direction {
			return true
		}
	}
	return false
}
