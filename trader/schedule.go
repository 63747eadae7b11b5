package trader

import (
	"strconv"
	"strings"
	"time"
)

// PeriodMinutes 解析周期字符串（15m、1h、4h），非法输入回落到15分钟。
func PeriodMinutes(timeframe string) int {
	tf := strings.ToLower(strings.TrimSpace(timeframe))
	if tf == "" {
		return 15
	}
	unit := tf[len(tf)-1]
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 15
	}
	switch unit {
	case 'm':
		return n
	case 'h':
		return n * 60
	default:
		return 15
	}
}

// WaitForNextPeriod 返回距离下一个周期整点边界的秒数。
// 周期能整除60分钟时按分钟边界对齐，整小时周期按小时边界对齐。
func WaitForNextPeriod(timeframe string) int {
	return secondsUntilBoundary(time.Now(), PeriodMinutes(timeframe))
}

func secondsUntilBoundary(now time.Time, period int) int {
	var next time.Time
	if period >= 60 && period%60 == 0 {
		hours := period / 60
		nextHour := ((now.Hour() / hours) + 1) * hours
		next = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
			Add(time.Duration(nextHour) * time.Hour)
	} else {
		if period <= 0 || 60%period != 0 {
			period = 15
		}
		nextMin := ((now.Minute() / period) + 1) * period
		next = time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location()).
			Add(time.Duration(nextMin) * time.Minute)
	}
	secs := int(next.Sub(now).Seconds())
	if secs < 0 {
		secs = 0
	}
	return secs
}
