package analysis

import (
	"math"

	"github.com/hamgua/alpha-arena-okx/models"
)

// PricePosition 计算当前价格在20周期布林带中的相对位置（0-100）
// 数据不足或带宽为零时返回中性值50
func PricePosition(candles []models.Candle, price float64) float64 {
	if len(candles) < 20 {
		return 50
	}

	closes := candles[len(candles)-20:]
	mean := 0.0
	for _, c := range closes {
		mean += c.Close
	}
	mean /= float64(len(closes))

	variance := 0.0
	for _, c := range closes {
		d := c.Close - mean
		variance += d * d
	}
	variance /= float64(len(closes))
	std := math.Sqrt(variance)

	upper := mean + 2*std
	lower := mean - 2*std
	if upper == lower {
		return 50
	}

	pos := (price - lower) / (upper - lower) * 100
	if pos < 0 {
		return 0
	}
	if pos > 100 {
		return 100
	}
	return pos
}
