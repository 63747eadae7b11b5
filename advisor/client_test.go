package advisor

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hamgua/alpha-arena-okx/logging"
	"github.com/hamgua/alpha-arena-okx/models"
)

func TestResolveChatEndpoint(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions", false},
		{"https://api.deepseek.com", "https://api.deepseek.com/chat/completions", false},
		{"https://api.deepseek.com/", "https://api.deepseek.com/chat/completions", false},
		{"https://x.ai/v1/chat/completions", "https://x.ai/v1/chat/completions", false},
		{"https://gw.example.com/llm/", "https://gw.example.com/llm/chat/completions", false},
		{"", "", true},
		{"not a url", "", true},
	}
	for _, tt := range tests {
		got, err := ResolveChatEndpoint(tt.base)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ResolveChatEndpoint(%q): expected error", tt.base)
			}
			continue
		}
		if err != nil {
			t.Errorf("ResolveChatEndpoint(%q): %v", tt.base, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveChatEndpoint(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestParseSignal(t *testing.T) {
	raw := `市场分析如下 {"signal":"buy","reason":"超卖反弹","stop_loss":58800,"take_profit":61800,"confidence":"high"} 完毕`
	sig, err := ParseSignal(raw)
	if err != nil {
		t.Fatalf("ParseSignal: %v", err)
	}
	if sig.Signal != "BUY" || sig.Confidence != "HIGH" {
		t.Errorf("normalization failed: %+v", sig)
	}
	if sig.StopLoss != 58800 || sig.TakeProfit != 61800 {
		t.Errorf("brackets wrong: %+v", sig)
	}
}

func TestParseSignalRejectsBadPayloads(t *testing.T) {
	cases := []string{
		"no json here",
		`{"signal":"BUY","reason":"x","stop_loss":0,"take_profit":61800,"confidence":"HIGH"}`,
		`{"signal":"LONG","reason":"x","stop_loss":58800,"take_profit":61800,"confidence":"HIGH"}`,
		`{"signal":"BUY","stop_loss":58800,"take_profit":61800,"confidence":"HIGH"}`,
	}
	for _, raw := range cases {
		if _, err := ParseSignal(raw); err == nil {
			t.Errorf("ParseSignal(%q): expected error", raw)
		}
	}
}

func TestFallbackSignal(t *testing.T) {
	sig := FallbackSignal(60000)
	if sig.Signal != "HOLD" || sig.Confidence != "LOW" || !sig.IsFallback {
		t.Errorf("fallback shape wrong: %+v", sig)
	}
	if sig.StopLoss != 60000*0.98 || sig.TakeProfit != 60000*1.02 {
		t.Errorf("fallback brackets wrong: sl=%.2f tp=%.2f", sig.StopLoss, sig.TakeProfit)
	}
}

func testClient(endpoint string) *Client {
	return &Client{
		apiKey:     "test-key",
		endpoint:   endpoint,
		model:      "deepseek-chat",
		symbol:     "BTC-USDT-SWAP",
		timeframe:  "15m",
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        logging.With("advisor-test"),
	}
}

func testContext() Context {
	return Context{
		Market: models.MarketData{
			Price:     60000,
			Timestamp: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
			Candles: []models.Candle{
				{Open: 60100, Close: 60000, High: 60200, Low: 59900, Volume: 5},
			},
		},
		PricePos: 42,
	}
}

func TestAnalyzeParsesChatResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		content := `{"signal":"SELL","reason":"阻力位承压","stop_loss":60600,"take_profit":58500,"confidence":"MEDIUM"}`
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, content)
	}))
	defer srv.Close()

	sig := testClient(srv.URL).Analyze(testContext())
	if sig.Signal != "SELL" || sig.Confidence != "MEDIUM" || sig.IsFallback {
		t.Errorf("unexpected signal: %+v", sig)
	}
	if !sig.Timestamp.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp should come from market snapshot, got %v", sig.Timestamp)
	}
}

func TestAnalyzeFallsBackAfterRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sig := testClient(srv.URL).Analyze(testContext())
	if !sig.IsFallback || sig.Signal != "HOLD" {
		t.Errorf("expected fallback, got %+v", sig)
	}
	if calls != maxRetries+1 {
		t.Errorf("calls = %d, want %d", calls, maxRetries+1)
	}
}

func TestAnalyzeWithoutCredentialsUsesFallback(t *testing.T) {
	c := testClient("")
	c.apiKey = ""
	sig := c.Analyze(testContext())
	if !sig.IsFallback {
		t.Errorf("expected fallback without credentials, got %+v", sig)
	}
}
