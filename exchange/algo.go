package exchange

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/hamgua/alpha-arena-okx/models"
)

const algoOrderTag = "alphaArena"

// FetchAlgoOrders 查询当前挂着的条件单（止盈/止损）
// 按触发价字段归类：slTriggerPx 有值为止损，tpTriggerPx 有值为止盈
func (c *Client) FetchAlgoOrders(symbol string) ([]models.AlgoOrder, error) {
	vals := url.Values{}
	vals.Set("instId", symbol)
	vals.Set("ordType", "conditional")
	data, err := c.get("/api/v5/trade/orders-algo-pending", vals, true)
	if err != nil {
		return nil, fmt.Errorf("查询条件单失败: %w", err)
	}

	var rows []struct {
		AlgoID      string `json:"algoId"`
		SLTriggerPx string `json:"slTriggerPx"`
		TPTriggerPx string `json:"tpTriggerPx"`
		Sz          string `json:"sz"`
		Side        string `json:"side"`
		State       string `json:"state"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}

	orders := make([]models.AlgoOrder, 0, len(rows))
	for _, row := range rows {
		order := models.AlgoOrder{
			AlgoID: row.AlgoID,
			Size:   parseFloat(row.Sz),
			Side:   strings.ToLower(row.Side),
			State:  row.State,
		}
		switch {
		case row.SLTriggerPx != "":
			order.Kind = models.AlgoStopLoss
			order.TriggerPrice = parseFloat(row.SLTriggerPx)
		case row.TPTriggerPx != "":
			order.Kind = models.AlgoTakeProfit
			order.TriggerPrice = parseFloat(row.TPTriggerPx)
		default:
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// PlaceAlgoOrder 挂条件单：触发后市价执行，只减仓
func (c *Client) PlaceAlgoOrder(symbol string, kind models.AlgoOrderKind, side string, size, triggerPrice float64) (string, error) {
	reqBody := map[string]interface{}{
		"instId":     symbol,
		"tdMode":     "cross",
		"side":       strings.ToLower(side),
		"ordType":    "conditional",
		"sz":         formatSize(size),
		"reduceOnly": "true",
		"tag":        algoOrderTag,
	}
	switch kind {
	case models.AlgoStopLoss:
		reqBody["slTriggerPx"] = formatPrice(triggerPrice)
		reqBody["slOrdPx"] = "-1" // 市价
	case models.AlgoTakeProfit:
		reqBody["tpTriggerPx"] = formatPrice(triggerPrice)
		reqBody["tpOrdPx"] = "-1"
	default:
		return "", fmt.Errorf("未知条件单类型: %s", kind)
	}

	data, err := c.post("/api/v5/trade/order-algo", reqBody)
	if err != nil {
		return "", fmt.Errorf("挂条件单失败: %w", err)
	}
	var rows []struct {
		AlgoID string `json:"algoId"`
		SCode  string `json:"sCode"`
		SMsg   string `json:"sMsg"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("条件单回执为空")
	}
	if rows[0].SCode != "0" {
		return "", fmt.Errorf("条件单被拒 sCode=%s: %s", rows[0].SCode, rows[0].SMsg)
	}
	c.log.Info().Str("algo_id", rows[0].AlgoID).Str("kind", string(kind)).
		Float64("trigger", triggerPrice).Float64("size", size).Msg("条件单已挂出")
	return rows[0].AlgoID, nil
}

// CancelAlgoOrders 批量撤销条件单
func (c *Client) CancelAlgoOrders(symbol string, algoIDs []string) error {
	if len(algoIDs) == 0 {
		return nil
	}
	reqBody := make([]map[string]string, 0, len(algoIDs))
	for _, id := range algoIDs {
		reqBody = append(reqBody, map[string]string{"instId": symbol, "algoId": id})
	}
	if _, err := c.post("/api/v5/trade/cancel-algos", reqBody); err != nil {
		return fmt.Errorf("撤销条件单失败: %w", err)
	}
	c.log.Info().Int("count", len(algoIDs)).Msg("条件单已撤销")
	return nil
}

func formatPrice(price float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", price), "0"), ".")
}
