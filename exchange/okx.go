package exchange

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hamgua/alpha-arena-okx/config"
	"github.com/hamgua/alpha-arena-okx/logging"
	"github.com/hamgua/alpha-arena-okx/models"
)

const baseURL = "https://www.okx.com"

// Client OKX v5 REST 客户端（USDT本位永续，全仓模式）
type Client struct {
	apiKey     string
	secret     string
	passphrase string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient 创建客户端
func NewClient(cfg *config.AppConfig) *Client {
	return &Client{
		apiKey:     cfg.OKXAPIKey,
		secret:     cfg.OKXSecret,
		passphrase: cfg.OKXPassword,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        logging.With("exchange"),
	}
}

type apiResponse struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// sign OKX v5 签名：Base64(HMAC-SHA256(secret, timestamp+method+path+body))
func (c *Client) sign(timestamp, method, requestPath, body string) string {
	h := hmac.New(sha256.New, []byte(c.secret))
	h.Write([]byte(timestamp + method + requestPath + body))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (c *Client) request(method, path string, values url.Values, reqBody interface{}, signed bool) (json.RawMessage, error) {
	requestPath := path
	if len(values) > 0 {
		requestPath += "?" + values.Encode()
	}

	var bodyStr string
	var bodyReader io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return nil, err
		}
		bodyStr = string(b)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+requestPath, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if signed {
		ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
		req.Header.Set("OK-ACCESS-KEY", c.apiKey)
		req.Header.Set("OK-ACCESS-SIGN", c.sign(ts, method, requestPath, bodyStr))
		req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
		req.Header.Set("OK-ACCESS-PASSPHRASE", c.passphrase)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("okx http %d: %s", resp.StatusCode, string(body))
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("okx 响应解析失败: %w", err)
	}
	if envelope.Code != "0" {
		return nil, fmt.Errorf("okx code %s: %s (%s)", envelope.Code, envelope.Msg, string(envelope.Data))
	}
	return envelope.Data, nil
}

func (c *Client) get(path string, values url.Values, signed bool) (json.RawMessage, error) {
	return c.request(http.MethodGet, path, values, nil, signed)
}

func (c *Client) post(path string, reqBody interface{}) (json.RawMessage, error) {
	return c.request(http.MethodPost, path, nil, reqBody, true)
}

// FetchOHLCV 获取K线，返回最旧在前最新在后
func (c *Client) FetchOHLCV(symbol, timeframe string, limit int) ([]models.Candle, error) {
	vals := url.Values{}
	vals.Set("instId", symbol)
	vals.Set("bar", timeframe)
	vals.Set("limit", strconv.Itoa(limit))
	data, err := c.get("/api/v5/market/candles", vals, false)
	if err != nil {
		return nil, fmt.Errorf("获取K线失败: %w", err)
	}

	var rows [][]string
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}

	// OKX 返回最新在前，倒序成时间正序
	candles := make([]models.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 6 {
			continue
		}
		tsMs, _ := strconv.ParseInt(row[0], 10, 64)
		candles = append(candles, models.Candle{
			Timestamp: time.UnixMilli(tsMs),
			Open:      parseFloat(row[1]),
			High:      parseFloat(row[2]),
			Low:       parseFloat(row[3]),
			Close:     parseFloat(row[4]),
			Volume:    parseFloat(row[5]),
		})
	}
	return candles, nil
}

// FetchBalance 获取USDT可用余额
func (c *Client) FetchBalance() (float64, error) {
	data, err := c.get("/api/v5/account/balance", url.Values{"ccy": {"USDT"}}, true)
	if err != nil {
		return 0, fmt.Errorf("获取余额失败: %w", err)
	}
	var rows []struct {
		Details []struct {
			Ccy      string `json:"ccy"`
			AvailBal string `json:"availBal"`
		} `json:"details"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, err
	}
	for _, row := range rows {
		for _, d := range row.Details {
			if strings.EqualFold(d.Ccy, "USDT") {
				return parseFloat(d.AvailBal), nil
			}
		}
	}
	return 0, nil
}

// FetchPosition 获取当前持仓，无持仓或零仓返回 nil
func (c *Client) FetchPosition(symbol string) (*models.Position, error) {
	vals := url.Values{}
	vals.Set("instType", "SWAP")
	vals.Set("instId", symbol)
	data, err := c.get("/api/v5/account/positions", vals, true)
	if err != nil {
		return nil, fmt.Errorf("获取持仓失败: %w", err)
	}
	var rows []struct {
		InstID  string `json:"instId"`
		Pos     string `json:"pos"`
		AvgPx   string `json:"avgPx"`
		Upl     string `json:"upl"`
		Lever   string `json:"lever"`
		MgnMode string `json:"mgnMode"`
		PosSide string `json:"posSide"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		size := parseFloat(row.Pos)
		if size == 0 {
			continue
		}
		side := "long"
		if size < 0 {
			side = "short"
			size = -size
		}
		return &models.Position{
			Side:          side,
			Size:          size,
			EntryPrice:    parseFloat(row.AvgPx),
			UnrealizedPnL: parseFloat(row.Upl),
			Leverage:      parseFloat(row.Lever),
			MarginMode:    row.MgnMode,
			Symbol:        row.InstID,
		}, nil
	}
	return nil, nil
}

// PlaceMarketOrder 全仓市价单
func (c *Client) PlaceMarketOrder(symbol, side string, size float64, reduceOnly bool) (models.OrderResult, error) {
	clOrdID := newClientOrderID()
	reqBody := map[string]interface{}{
		"instId":  symbol,
		"tdMode":  "cross",
		"side":    strings.ToLower(side),
		"ordType": "market",
		"sz":      formatSize(size),
		"clOrdId": clOrdID,
	}
	if reduceOnly {
		reqBody["reduceOnly"] = "true"
	}

	data, err := c.post("/api/v5/trade/order", reqBody)
	if err != nil {
		return models.OrderResult{}, fmt.Errorf("下单失败: %w", err)
	}
	var rows []struct {
		OrdID   string `json:"ordId"`
		ClOrdID string `json:"clOrdId"`
		SCode   string `json:"sCode"`
		SMsg    string `json:"sMsg"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return models.OrderResult{}, err
	}
	if len(rows) == 0 {
		return models.OrderResult{}, fmt.Errorf("下单回执为空")
	}
	row := rows[0]
	if row.SCode != "0" {
		return models.OrderResult{}, fmt.Errorf("下单被拒 sCode=%s: %s", row.SCode, row.SMsg)
	}
	c.log.Info().Str("ord_id", row.OrdID).Str("side", side).Float64("size", size).
		Bool("reduce_only", reduceOnly).Msg("市价单已提交")
	return models.OrderResult{
		OrderID:    row.OrdID,
		ClientID:   row.ClOrdID,
		State:      "live",
		Symbol:     symbol,
		Side:       strings.ToLower(side),
		Size:       size,
		ReduceOnly: reduceOnly,
	}, nil
}

// newClientOrderID OKX 要求字母数字且不超过32位
func newClientOrderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func formatSize(size float64) string {
	return strconv.FormatFloat(size, 'f', 2, 64)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
