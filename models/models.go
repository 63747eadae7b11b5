package models

import "time"

// Candle K线数据（最旧在前，最新在后）
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// IsBearish 阴线
func (c Candle) IsBearish() bool { return c.Close < c.Open }

// IsBullish 阳线
func (c Candle) IsBullish() bool { return c.Close > c.Open }

// ChangePct 单根K线涨跌幅（相对开盘价，百分比）
func (c Candle) ChangePct() float64 {
	if c.Open == 0 {
		return 0
	}
	return (c.Close - c.Open) / c.Open * 100
}

// IndicatorSnapshot 最新一根K线对应的技术指标
type IndicatorSnapshot struct {
	SMA5        float64
	SMA20       float64
	SMA50       float64
	EMA12       float64
	EMA26       float64
	MACD        float64
	MACDSignal  float64
	MACDHist    float64
	RSI         float64
	BBUpper     float64
	BBMiddle    float64
	BBLower     float64
	BBPosition  float64
	VolumeMA    float64
	VolumeRatio float64
	Resistance  float64
	Support     float64
}

// TrendAnalysis 趋势分析
type TrendAnalysis struct {
	ShortTerm  string // 上涨/下跌
	MediumTerm string
	MACD       string // bullish/bearish
	Overall    string // 强势上涨/强势下跌/震荡整理
	RSILevel   float64
}

// RegimeKind 市场状态分类
type RegimeKind string

const (
	RegimeOscillation RegimeKind = "oscillation" // 震荡市
	RegimeTrending    RegimeKind = "trending"    // 趋势市
	RegimeNormal      RegimeKind = "normal"      // 正常市
)

// Regime 市场状态，仅在产生它的周期内有效
type Regime struct {
	Kind          RegimeKind
	Confidence    float64
	ATRPct        float64
	TrendStrength string // 强上涨/强下跌/震荡/弱趋势
}

// StronglyUp 均线多头排列
func (r Regime) StronglyUp() bool { return r.TrendStrength == "强上涨" }

// StronglyDown 均线空头排列
func (r Regime) StronglyDown() bool { return r.TrendStrength == "强下跌" }

// DeclinePattern 连续下跌与反转确认结果
// 不变式：ConfirmationStrength > 0 时 IsReversal 必为 true
type DeclinePattern struct {
	ConsecutiveDeclines  int
	TotalDeclinePct      float64
	DeclineDurationMin   int
	IsReversal           bool
	ConfirmationStrength int // 0 / 2 / 3
	VolumeConfirmed      bool
}

// RangeBand 交易区间；Valid 为 false 表示未形成有效区间
type RangeBand struct {
	Valid          bool
	Support        float64
	Resistance     float64
	Midpoint       float64
	HeightPct      float64
	PositionInPct  float64
	NearSupport    bool // <25%
	NearResistance bool // >75%
	NearMidpoint   bool // 40-60%
	BuyEntry       float64 // 支撑位上浮缓冲后的多单入场价
	SellEntry      float64 // 阻力位下浮缓冲后的空单入场价
	BreakStopPct   float64 // 区间破位止损幅度（%）
}

// TradeSignal AI 返回的交易信号（经验证后字段可能被修正）
type TradeSignal struct {
	Signal     string  `json:"signal"` // BUY/SELL/HOLD
	Reason     string  `json:"reason"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Confidence string  `json:"confidence"` // HIGH/MEDIUM/LOW
	Timestamp  time.Time
	IsFallback bool
}

// MarketData 单个周期的完整行情快照
type MarketData struct {
	Price       float64
	Timestamp   time.Time
	High        float64
	Low         float64
	Volume      float64
	Timeframe   string
	PriceChange float64 // 相对上一根收盘的百分比
	Candles     []Candle
	Technical   IndicatorSnapshot
	Trend       TrendAnalysis
}

// Position 交易所持仓（只读快照，每周期重新拉取）
type Position struct {
	Side          string // long/short
	Size          float64
	EntryPrice    float64
	UnrealizedPnL float64
	Leverage      float64
	MarginMode    string // cross/isolated
	Symbol        string
}

// Bracket 止盈止损目标价（按信号方向计算后的绝对价格）
type Bracket struct {
	StopLoss   float64
	TakeProfit float64
	SLPct      float64
	TPPct      float64
}

// AlgoOrderKind 条件单类型
type AlgoOrderKind string

const (
	AlgoStopLoss   AlgoOrderKind = "stop_loss"
	AlgoTakeProfit AlgoOrderKind = "take_profit"
)

// AlgoOrder 交易所侧的条件单（止盈/止损）
type AlgoOrder struct {
	AlgoID       string
	Kind         AlgoOrderKind
	TriggerPrice float64
	Size         float64
	Side         string // buy/sell
	State        string
}

// ContractSpec 合约规格
type ContractSpec struct {
	ContractSize float64 // 1张对应的标的数量
	MinSize      float64 // 最小下单张数
}

// OrderResult 市价单回执
type OrderResult struct {
	OrderID    string  `json:"order_id"`
	ClientID   string  `json:"client_id"`
	State      string  `json:"state"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Size       float64 `json:"size"`
	ReduceOnly bool    `json:"reduce_only"`
}

// Sentiment 市场情绪指标（可选数据源）
type Sentiment struct {
	PositiveRatio    float64
	NegativeRatio    float64
	NetSentiment     float64
	DataTime         string
	DataDelayMinutes int
}
