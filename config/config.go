package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// PositionManagement 仓位管理参数
type PositionManagement struct {
	BaseUSDTAmount           float64
	HighConfidenceMultiplier float64
	MediumConfidenceMult     float64
	LowConfidenceMultiplier  float64
	MaxPositionRatio         float64
	TrendStrengthMultiplier  float64
	MicroMovementMultiplier  float64
}

// DeclineDetection 连续下跌识别参数
type DeclineDetection struct {
	DataWindow            int
	MinDeclineDuration    int     // 中期抄底所需阴线根数
	StrongDeclineDuration int     // 强力抄底所需阴线根数
	MinTotalDecline       float64 // 中度跌幅阈值（%）
	StrongTotalDecline    float64 // 深度跌幅阈值（%）
	VolumeConfirmation    bool
	RequireReversalSignal bool
}

// OscillationStrategy 震荡市专用策略参数
type OscillationStrategy struct {
	Enabled               bool
	MaxDailyTrades        int
	MinProfitThreshold    float64 // 止盈目标（%）
	MaxLossThreshold      float64 // 止损目标（%）
	PositionSizeReduction float64
	HoldTimeLimitMinutes  int
	VolatilityFilter      float64
}

// RangeTrading 区间交易参数
type RangeTrading struct {
	Enabled               bool
	RangeDetectionPeriods int
	SupportResistanceHits int
	EntryBufferPct        float64
	RangeBreakStopPct     float64
}

// TradeConfig 交易主配置
type TradeConfig struct {
	Symbol     string
	Leverage   int
	Timeframe  string
	TestMode   bool
	DataPoints int
	MinLot     float64 // 下限保护，取 max(交易所最小张数, MinLot)

	Position    PositionManagement
	Decline     DeclineDetection
	Oscillation OscillationStrategy
	Range       RangeTrading
}

// AppConfig 应用配置
type AppConfig struct {
	AIAPIKey        string
	AIBaseURL       string
	AIModel         string
	SentimentAPIKey string
	OKXAPIKey       string
	OKXSecret       string
	OKXPassword     string
	HTTPAddr        string
	DBPath          string
	LogLevel        string
	LogFormat       string
	Trade           TradeConfig
}

var Config *AppConfig

// Load 读取 .env 与系统环境变量，未设置的键落到文档化默认值
func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}

	Config = &AppConfig{
		AIAPIKey:        getEnv("AI_API_KEY", ""),
		AIBaseURL:       getEnv("AI_BASE_URL", "https://api.deepseek.com"),
		AIModel:         getEnv("AI_MODEL", "deepseek-chat"),
		SentimentAPIKey: getEnv("CRYPTO_ORACLE_API_KEY", ""),
		OKXAPIKey:       getEnv("OKX_API_KEY", ""),
		OKXSecret:       getEnv("OKX_SECRET", ""),
		OKXPassword:     getEnv("OKX_PASSWORD", ""),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DBPath:          getEnv("TRADE_DB_PATH", "data/trade.db"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "console"),
		Trade:           defaultTradeConfig(),
	}
}

func defaultTradeConfig() TradeConfig {
	return TradeConfig{
		Symbol:     getEnv("SYMBOL", "BTC-USDT-SWAP"),
		Leverage:   getEnvInt("LEVERAGE", 10),
		Timeframe:  getEnv("TIMEFRAME", "15m"),
		TestMode:   getEnvBool("TEST_MODE", false),
		DataPoints: getEnvInt("DATA_POINTS", 96),
		MinLot:     0.05,
		Position: PositionManagement{
			BaseUSDTAmount:           getEnvFloat("BASE_USDT_AMOUNT", 25),
			HighConfidenceMultiplier: 5.0,
			MediumConfidenceMult:     3.0,
			LowConfidenceMultiplier:  2.0,
			MaxPositionRatio:         0.9,
			TrendStrengthMultiplier:  2.0,
			MicroMovementMultiplier:  3.0,
		},
		Decline: DeclineDetection{
			DataWindow:            30,
			MinDeclineDuration:    8,
			StrongDeclineDuration: 12,
			MinTotalDecline:       2.5,
			StrongTotalDecline:    6.0,
			VolumeConfirmation:    true,
			RequireReversalSignal: true,
		},
		Oscillation: OscillationStrategy{
			Enabled:               getEnvBool("OSCILLATION_ENABLED", true),
			MaxDailyTrades:        2,
			MinProfitThreshold:    0.8,
			MaxLossThreshold:      0.5,
			PositionSizeReduction: 0.6,
			HoldTimeLimitMinutes:  120,
			VolatilityFilter:      1.5,
		},
		Range: RangeTrading{
			Enabled:               true,
			RangeDetectionPeriods: 36,
			SupportResistanceHits: 3,
			EntryBufferPct:        0.2,
			RangeBreakStopPct:     0.3,
		},
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
