package advisor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hamgua/alpha-arena-okx/config"
	"github.com/hamgua/alpha-arena-okx/logging"
	"github.com/hamgua/alpha-arena-okx/models"
)

const (
	maxRetries   = 2
	retryBackoff = time.Second
)

// Context 喂给AI的单周期市场上下文
type Context struct {
	Market      models.MarketData
	Regime      models.Regime
	Decline     models.DeclinePattern
	Range       models.RangeBand
	PricePos    float64 // 布林带相对位置 0-100
	Position    *models.Position
	LastSignals []models.TradeSignal
	Sentiment   *models.Sentiment
	BracketHint models.Bracket // 动态止盈止损建议，写进提示词
}

// Client OpenAI兼容聊天接口的信号客户端
type Client struct {
	apiKey     string
	endpoint   string
	model      string
	symbol     string
	timeframe  string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient 根据配置创建客户端；base URL 非法时端点留空，Analyze 直接走兜底信号
func NewClient(cfg *config.AppConfig) *Client {
	c := &Client{
		apiKey:     cfg.AIAPIKey,
		model:      strings.TrimSpace(cfg.AIModel),
		symbol:     cfg.Trade.Symbol,
		timeframe:  cfg.Trade.Timeframe,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        logging.With("advisor"),
	}
	if c.model == "" {
		c.model = "deepseek-chat"
	}
	endpoint, err := ResolveChatEndpoint(cfg.AIBaseURL)
	if err != nil {
		c.log.Warn().Err(err).Str("base_url", cfg.AIBaseURL).Msg("AI base_url 无效，将使用兜底信号")
	} else {
		c.endpoint = endpoint
	}
	return c
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze 请求AI给出方向建议，失败重试后落到保守HOLD兜底
// 本方法不把AI侧错误上抛，调用方拿到的永远是可用信号
func (c *Client) Analyze(ctx Context) models.TradeSignal {
	if c.apiKey == "" || c.endpoint == "" {
		return FallbackSignal(ctx.Market.Price)
	}

	prompt := buildPrompt(c.symbol, c.timeframe, ctx)
	sysMsg := fmt.Sprintf("您是专业交易员，专注%s周期趋势分析。严格输出JSON格式，不要添加任何解释文字。", c.timeframe)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryBackoff)
		}
		signal, err := c.chat(sysMsg, prompt)
		if err == nil {
			signal.Timestamp = ctx.Market.Timestamp
			return signal
		}
		lastErr = err
		c.log.Warn().Err(err).Int("attempt", attempt+1).Msg("AI分析失败")
	}

	c.log.Error().Err(lastErr).Msg("AI重试耗尽，使用兜底信号")
	return FallbackSignal(ctx.Market.Price)
}

func (c *Client) chat(sysMsg, prompt string) (models.TradeSignal, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: sysMsg},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
		Stream:      false,
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return models.TradeSignal{}, err
	}
	req, err := http.NewRequest("POST", c.endpoint, bytes.NewReader(b))
	if err != nil {
		return models.TradeSignal{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.TradeSignal{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return models.TradeSignal{}, fmt.Errorf("AI接口 http %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return models.TradeSignal{}, fmt.Errorf("解析响应失败: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return models.TradeSignal{}, fmt.Errorf("AI 返回空响应")
	}

	content := chatResp.Choices[0].Message.Content
	c.log.Debug().Str("content", truncate(content, 200)).Msg("AI 原始回复")

	return ParseSignal(content)
}

// ParseSignal 从回复文本中截取JSON并校验必需字段
func ParseSignal(content string) (models.TradeSignal, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}") + 1
	if start == -1 || end <= start {
		return models.TradeSignal{}, fmt.Errorf("未找到 JSON")
	}
	jsonStr := content[start:end]

	var sig models.TradeSignal
	if err := json.Unmarshal([]byte(jsonStr), &sig); err != nil {
		return models.TradeSignal{}, fmt.Errorf("信号JSON解析失败: %w", err)
	}

	sig.Signal = strings.ToUpper(strings.TrimSpace(sig.Signal))
	sig.Confidence = strings.ToUpper(strings.TrimSpace(sig.Confidence))

	switch sig.Signal {
	case "BUY", "SELL", "HOLD":
	default:
		return models.TradeSignal{}, fmt.Errorf("非法信号方向: %q", sig.Signal)
	}
	if sig.Reason == "" || sig.StopLoss == 0 || sig.TakeProfit == 0 || sig.Confidence == "" {
		return models.TradeSignal{}, fmt.Errorf("信号字段不完整")
	}
	return sig, nil
}

// FallbackSignal 保守兜底：HOLD + ±2% 区间 + LOW 信心
func FallbackSignal(price float64) models.TradeSignal {
	return models.TradeSignal{
		Signal:     "HOLD",
		Reason:     "因技术分析暂时不可用，采取保守策略",
		StopLoss:   price * 0.98,
		TakeProfit: price * 1.02,
		Confidence: "LOW",
		IsFallback: true,
		Timestamp:  time.Now(),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
