package risk

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/hamgua/alpha-arena-okx/config"
	"github.com/hamgua/alpha-arena-okx/logging"
	"github.com/hamgua/alpha-arena-okx/models"
)

// SizerContext 仓位计算所需的全部市场上下文
type SizerContext struct {
	Signal   models.TradeSignal
	Market   models.MarketData
	Regime   models.Regime
	Decline  models.DeclinePattern
	PricePos float64 // 布林带相对位置 0-100
}

// adjustmentRule 单条命名仓位调整规则，返回乘数
type adjustmentRule struct {
	name  string
	apply func(s *Sizer, ctx SizerContext) float64
}

// Sizer 信心加权仓位计算器
// 最终张数 = min(基数 × Π规则乘数, 余额×最大仓位比例) / (价格 × 合约乘数)
type Sizer struct {
	cfg  config.TradeConfig
	spec models.ContractSpec
	log  zerolog.Logger
}

// NewSizer 创建仓位计算器
func NewSizer(cfg config.TradeConfig, spec models.ContractSpec) *Sizer {
	return &Sizer{cfg: cfg, spec: spec, log: logging.With("sizer")}
}

// rules 按固定顺序排列的调整规则，逐条相乘
func (s *Sizer) rules() []adjustmentRule {
	return []adjustmentRule{
		{"confidence", (*Sizer).confidenceMultiplier},
		{"trend", (*Sizer).trendMultiplier},
		{"decline", (*Sizer).declineMultiplier},
		{"position_weight", (*Sizer).positionWeight},
		{"micro_movement", (*Sizer).microMultiplier},
		{"rsi", (*Sizer).rsiMultiplier},
	}
}

// Contracts 计算目标合约张数
// balance 或价格无效时走紧急兜底公式，本方法永不失败
func (s *Sizer) Contracts(ctx SizerContext, freeBalance float64) float64 {
	price := ctx.Market.Price
	if freeBalance <= 0 || price <= 0 {
		s.log.Warn().Float64("balance", freeBalance).Float64("price", price).
			Msg("余额或价格无效，使用紧急兜底仓位")
		return s.EmergencyContracts(price)
	}

	// 震荡市硬性门槛：下跌不够深直接跳过
	if ctx.Regime.Kind == models.RegimeOscillation && s.cfg.Oscillation.Enabled &&
		ctx.Decline.ConsecutiveDeclines < 6 {
		s.log.Info().Int("declines", ctx.Decline.ConsecutiveDeclines).
			Msg("震荡市下跌不够深，跳过抄底")
		return 0
	}

	base := math.Min(s.cfg.Position.BaseUSDTAmount, freeBalance*0.85)

	product := 1.0
	for _, r := range s.rules() {
		m := r.apply(s, ctx)
		if m != 1.0 {
			s.log.Info().Str("rule", r.name).Float64("multiplier", m).Msg("仓位调整")
		}
		product *= m
	}

	suggested := base * product
	maxUSDT := freeBalance * s.cfg.Position.MaxPositionRatio
	final := math.Min(suggested, maxUSDT)

	contracts := final / (price * s.spec.ContractSize)
	contracts = math.Round(contracts*100) / 100

	minContracts := math.Max(s.spec.MinSize, s.cfg.MinLot)
	if contracts < minContracts {
		s.log.Info().Float64("contracts", contracts).Float64("min", minContracts).
			Msg("仓位小于最小值，调整为最小张数")
		contracts = minContracts
	}

	s.log.Info().
		Float64("base_usdt", base).
		Float64("suggested_usdt", suggested).
		Float64("final_usdt", final).
		Float64("contracts", contracts).
		Msg("仓位计算完成")
	return contracts
}

// EmergencyContracts 紧急兜底：固定杠杆公式，只依赖配置默认值
func (s *Sizer) EmergencyContracts(price float64) float64 {
	if price <= 0 {
		return math.Max(s.spec.MinSize, s.cfg.MinLot)
	}
	contractSize := s.spec.ContractSize
	if contractSize <= 0 {
		contractSize = 0.01
	}
	contracts := s.cfg.Position.BaseUSDTAmount * float64(s.cfg.Leverage) / (price * contractSize)
	contracts = math.Round(contracts*100) / 100
	return math.Max(contracts, math.Max(s.spec.MinSize, s.cfg.MinLot))
}

func (s *Sizer) confidenceMultiplier(ctx SizerContext) float64 {
	switch ctx.Signal.Confidence {
	case "HIGH":
		return s.cfg.Position.HighConfidenceMultiplier
	case "MEDIUM":
		return s.cfg.Position.MediumConfidenceMult
	case "LOW":
		return s.cfg.Position.LowConfidenceMultiplier
	default:
		return 1.0
	}
}

func (s *Sizer) trendMultiplier(ctx SizerContext) float64 {
	overall := ctx.Market.Trend.Overall
	if overall == "强势上涨" || overall == "强势下跌" {
		return s.cfg.Position.TrendStrengthMultiplier
	}
	return 1.0
}

// declineMultiplier 抄底权重：反转确认优先于连续下跌时长，跌幅深度独立叠加
// 震荡市下整体再乘以仓位缩减系数
func (s *Sizer) declineMultiplier(ctx SizerContext) float64 {
	dc := s.cfg.Decline
	d := ctx.Decline
	m := 1.0

	if dc.RequireReversalSignal && d.IsReversal {
		if d.ConfirmationStrength >= 3 {
			m *= 2.5
		} else if d.ConfirmationStrength >= 2 {
			m *= 1.8
		}
	} else if d.ConsecutiveDeclines >= dc.StrongDeclineDuration {
		if dc.VolumeConfirmation && d.VolumeConfirmed {
			m *= 2.0
		} else {
			m *= 1.6
		}
	} else if d.ConsecutiveDeclines >= dc.MinDeclineDuration {
		m *= 1.3
	}

	if d.TotalDeclinePct > dc.StrongTotalDecline {
		m *= 1.2
	} else if d.TotalDeclinePct > dc.MinTotalDecline {
		m *= 1.1
	}

	if ctx.Regime.Kind == models.RegimeOscillation && s.cfg.Oscillation.Enabled {
		m *= s.cfg.Oscillation.PositionSizeReduction
	}
	return m
}

// positionWeight 震荡市专用：低位+连续下跌加仓，高位减仓
func (s *Sizer) positionWeight(ctx SizerContext) float64 {
	if ctx.Regime.Kind != models.RegimeOscillation || !s.cfg.Oscillation.Enabled {
		return 1.0
	}
	pos := ctx.PricePos
	declines := ctx.Decline.ConsecutiveDeclines
	switch {
	case pos < 30 && declines >= 2:
		return 2.2
	case pos < 40 && declines >= 2:
		return 1.8
	case pos < 30:
		return 1.5
	case pos > 70:
		return 0.7
	default:
		return 1.0
	}
}

// microMultiplier 波动越小权重越大，捕捉微小波动行情
func (s *Sizer) microMultiplier(ctx SizerContext) float64 {
	change := math.Abs(ctx.Market.PriceChange)
	switch {
	case change < 0.02:
		return s.cfg.Position.MicroMovementMultiplier
	case change < 0.05:
		return 2.0
	case change < 0.1:
		return 1.5
	default:
		return 1.0
	}
}

func (s *Sizer) rsiMultiplier(ctx SizerContext) float64 {
	rsi := ctx.Market.Technical.RSI
	if rsi < 35 {
		return 1.4
	}
	if rsi > 70 {
		return 0.6
	}
	return 1.0
}
