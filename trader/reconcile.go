package trader

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/hamgua/alpha-arena-okx/models"
)

const (
	sizeMatchTolerance    = 0.01 // 张
	triggerMatchTolerance = 1.0  // USD
)

// OrderReconciler 负责把交易所侧的条件单调整到期望的止盈止损状态。
// 同一目标重复调用不会产生重复挂单。
type OrderReconciler struct {
	ex     Exchange
	symbol string
	log    zerolog.Logger
}

func NewOrderReconciler(ex Exchange, symbol string, log zerolog.Logger) *OrderReconciler {
	return &OrderReconciler{ex: ex, symbol: symbol, log: log}
}

// Sync 使交易所侧条件单与 bracket 一致。force 为 true 时跳过现状检查，
// 直接撤掉全部旧单重新挂。
func (r *OrderReconciler) Sync(pos *models.Position, bracket models.Bracket, force bool) error {
	if pos == nil || pos.Size <= 0 {
		return r.CancelAll()
	}

	closeSide := "sell"
	if pos.Side == "short" {
		closeSide = "buy"
	}

	if !force {
		orders, err := r.ex.FetchAlgoOrders(r.symbol)
		if err != nil {
			r.log.Warn().Err(err).Msg("查询现有止盈止损单失败，按无挂单处理")
		} else if r.matched(orders, closeSide, pos.Size, bracket) {
			r.log.Info().
				Float64("stop_loss", bracket.StopLoss).
				Float64("take_profit", bracket.TakeProfit).
				Msg("现有止盈止损单已匹配，无需更新")
			return nil
		}
	}

	if err := r.CancelAll(); err != nil {
		r.log.Warn().Err(err).Msg("撤销旧止盈止损单失败，继续尝试挂新单")
	}

	slID, slErr := r.ex.PlaceAlgoOrder(r.symbol, models.AlgoStopLoss, closeSide, pos.Size, bracket.StopLoss)
	if slErr != nil {
		r.log.Error().Err(slErr).Float64("trigger", bracket.StopLoss).Msg("止损单设置失败")
	} else {
		r.log.Info().Str("algo_id", slID).Float64("trigger", bracket.StopLoss).Msg("止损单已设置")
	}

	tpID, tpErr := r.ex.PlaceAlgoOrder(r.symbol, models.AlgoTakeProfit, closeSide, pos.Size, bracket.TakeProfit)
	if tpErr != nil {
		r.log.Error().Err(tpErr).Float64("trigger", bracket.TakeProfit).Msg("止盈单设置失败")
	} else {
		r.log.Info().Str("algo_id", tpID).Float64("trigger", bracket.TakeProfit).Msg("止盈单已设置")
	}

	if slErr != nil || tpErr != nil {
		return fmt.Errorf("止盈止损单未完整设置: sl=%v tp=%v", slErr, tpErr)
	}
	return nil
}

// CancelAll 撤销该合约下全部未触发的条件单。无单时不报错。
func (r *OrderReconciler) CancelAll() error {
	orders, err := r.ex.FetchAlgoOrders(r.symbol)
	if err != nil {
		return fmt.Errorf("查询待撤条件单失败: %w", err)
	}
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.AlgoID)
	}
	if err := r.ex.CancelAlgoOrders(r.symbol, ids); err != nil {
		return fmt.Errorf("撤销条件单失败: %w", err)
	}
	r.log.Info().Int("count", len(ids)).Msg("已撤销旧止盈止损单")
	return nil
}

// matched 判断现有挂单是否已经覆盖期望的止盈和止损两腿。
func (r *OrderReconciler) matched(orders []models.AlgoOrder, closeSide string, size float64, bracket models.Bracket) bool {
	hasSL, hasTP := false, false
	for _, o := range orders {
		if o.Side != closeSide {
			continue
		}
		if math.Abs(o.Size-size) >= sizeMatchTolerance {
			continue
		}
		switch o.Kind {
		case models.AlgoStopLoss:
			if math.Abs(o.TriggerPrice-bracket.StopLoss) < triggerMatchTolerance {
				hasSL = true
			}
		case models.AlgoTakeProfit:
			if math.Abs(o.TriggerPrice-bracket.TakeProfit) < triggerMatchTolerance {
				hasTP = true
			}
		}
	}
	return hasSL && hasTP
}
