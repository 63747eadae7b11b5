package advisor

import (
	"strings"
	"testing"

	"github.com/hamgua/alpha-arena-okx/models"
)

func TestBuildPromptIncludesRangeEntries(t *testing.T) {
	ctx := testContext()
	ctx.Range = models.RangeBand{
		Valid: true, Support: 100, Resistance: 101,
		HeightPct: 1.0, PositionInPct: 50,
		BuyEntry: 100.2, SellEntry: 100.798, BreakStopPct: 0.3,
	}

	prompt := buildPrompt("BTC-USDT-SWAP", "15m", ctx)
	for _, want := range []string{"多单入场100.20", "空单入场100.80", "破位止损0.30%"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPromptWithoutRange(t *testing.T) {
	prompt := buildPrompt("BTC-USDT-SWAP", "15m", testContext())
	if !strings.Contains(prompt, "无明确区间形成") {
		t.Error("prompt should note the absence of a range")
	}
}
