package advisor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hamgua/alpha-arena-okx/logging"
	"github.com/hamgua/alpha-arena-okx/models"
)

const (
	sentimentURL      = "https://service.cryptoracle.network/openapi/v2/endpoint"
	endpointPositive  = "CO-A-02-01"
	endpointNegative  = "CO-A-02-02"
	sentimentLookback = 4 * time.Hour
)

// SentimentFetcher 可选的市场情绪数据源（CryptoOracle）
// 无 key 或接口失败时返回 nil，调用方按"情绪不可用"降级
type SentimentFetcher struct {
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewSentimentFetcher 创建情绪数据客户端
func NewSentimentFetcher(apiKey string) *SentimentFetcher {
	return &SentimentFetcher{
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        logging.With("sentiment"),
	}
}

type sentimentRequest struct {
	APIKey    string   `json:"apiKey"`
	Endpoints []string `json:"endpoints"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
	TimeType  string   `json:"timeType"`
	Token     []string `json:"token"`
}

type sentimentResponse struct {
	Code int `json:"code"`
	Data []struct {
		TimePeriods []struct {
			StartTime string `json:"startTime"`
			Data      []struct {
				Endpoint string `json:"endpoint"`
				Value    string `json:"value"`
			} `json:"data"`
		} `json:"timePeriods"`
	} `json:"data"`
}

// Fetch 拉取最近4小时的多空情绪比例，取第一个有有效数据的时间段
func (s *SentimentFetcher) Fetch() *models.Sentiment {
	if s.apiKey == "" {
		return nil
	}

	now := time.Now()
	reqBody := sentimentRequest{
		APIKey:    s.apiKey,
		Endpoints: []string{endpointPositive, endpointNegative},
		StartTime: now.Add(-sentimentLookback).Format("2006-01-02 15:04:05"),
		EndTime:   now.Format("2006-01-02 15:04:05"),
		TimeType:  "15m",
		Token:     []string{"BTC"},
	}

	result, err := s.query(reqBody)
	if err != nil {
		s.log.Warn().Err(err).Msg("情绪数据获取失败")
		return nil
	}
	return result
}

func (s *SentimentFetcher) query(reqBody sentimentRequest) (*models.Sentiment, error) {
	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest("POST", sentimentURL, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("情绪接口 http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var parsed sentimentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("解析情绪响应失败: %w", err)
	}
	if parsed.Code != 200 || len(parsed.Data) == 0 {
		return nil, fmt.Errorf("情绪接口返回码 %d", parsed.Code)
	}

	for _, period := range parsed.Data[0].TimePeriods {
		values := map[string]float64{}
		for _, item := range period.Data {
			v := strings.TrimSpace(item.Value)
			if v == "" {
				continue
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			values[item.Endpoint] = f
		}

		positive, okP := values[endpointPositive]
		negative, okN := values[endpointNegative]
		if !okP || !okN {
			continue
		}

		delay := 0
		if t, err := time.ParseInLocation("2006-01-02 15:04:05", period.StartTime, time.Local); err == nil {
			delay = int(time.Since(t).Minutes())
		}
		s.log.Info().Str("data_time", period.StartTime).Int("delay_min", delay).Msg("使用情绪数据")

		return &models.Sentiment{
			PositiveRatio:    positive,
			NegativeRatio:    negative,
			NetSentiment:     positive - negative,
			DataTime:         period.StartTime,
			DataDelayMinutes: delay,
		}, nil
	}
	return nil, fmt.Errorf("情绪数据无有效时间段")
}
