package exchange

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/hamgua/alpha-arena-okx/models"
)

// SetupError 启动期致命错误：在解决之前禁止进入交易循环
type SetupError struct {
	Reason string
}

func (e *SetupError) Error() string { return "交易所设置失败: " + e.Reason }

// FetchContractSpec 获取合约规格（单张面值与最小下单张数）
func (c *Client) FetchContractSpec(symbol string) (models.ContractSpec, error) {
	vals := url.Values{}
	vals.Set("instType", "SWAP")
	vals.Set("instId", symbol)
	data, err := c.get("/api/v5/public/instruments", vals, false)
	if err != nil {
		return models.ContractSpec{}, fmt.Errorf("获取合约规格失败: %w", err)
	}
	var rows []struct {
		CtVal string `json:"ctVal"`
		MinSz string `json:"minSz"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return models.ContractSpec{}, err
	}
	if len(rows) == 0 {
		return models.ContractSpec{}, fmt.Errorf("合约 %s 不存在", symbol)
	}
	spec := models.ContractSpec{
		ContractSize: parseFloat(rows[0].CtVal),
		MinSize:      parseFloat(rows[0].MinSz),
	}
	if spec.ContractSize <= 0 {
		spec.ContractSize = 0.01
	}
	if spec.MinSize <= 0 {
		spec.MinSize = 0.01
	}
	return spec, nil
}

// SetPositionMode 设置买卖模式（net）
func (c *Client) SetPositionMode() error {
	_, err := c.post("/api/v5/account/set-position-mode", map[string]string{
		"posMode": "net_mode",
	})
	if err != nil {
		return fmt.Errorf("设置持仓模式失败: %w", err)
	}
	return nil
}

// SetLeverage 设置全仓杠杆
func (c *Client) SetLeverage(symbol string, leverage int) error {
	_, err := c.post("/api/v5/account/set-leverage", map[string]string{
		"instId":  symbol,
		"lever":   fmt.Sprintf("%d", leverage),
		"mgnMode": "cross",
	})
	if err != nil {
		return fmt.Errorf("设置杠杆失败: %w", err)
	}
	return nil
}

// Setup 启动期交易所初始化
// 存在逐仓持仓时返回 SetupError，换仓位模式会影响现有仓位，必须人工处理
func (c *Client) Setup(symbol string, leverage int) (models.ContractSpec, error) {
	spec, err := c.FetchContractSpec(symbol)
	if err != nil {
		return models.ContractSpec{}, err
	}
	c.log.Info().Float64("ct_val", spec.ContractSize).Float64("min_sz", spec.MinSize).
		Msg("合约规格")

	pos, err := c.FetchPosition(symbol)
	if err != nil {
		return models.ContractSpec{}, fmt.Errorf("启动检查持仓失败: %w", err)
	}
	if pos != nil && pos.MarginMode == "isolated" {
		return models.ContractSpec{}, &SetupError{
			Reason: fmt.Sprintf("检测到逐仓持仓(%s %.2f张)，请先平仓或切换为全仓", pos.Side, pos.Size),
		}
	}

	if err := c.SetPositionMode(); err != nil {
		// 有持仓时交易所会拒绝切换，持仓已是全仓则继续
		c.log.Warn().Err(err).Msg("持仓模式设置失败，沿用当前模式")
	}
	if err := c.SetLeverage(symbol, leverage); err != nil {
		c.log.Warn().Err(err).Msg("杠杆设置失败，沿用当前杠杆")
	}

	c.log.Info().Str("symbol", symbol).Int("leverage", leverage).Msg("交易所设置完成")
	return spec, nil
}
