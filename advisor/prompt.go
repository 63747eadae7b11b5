package advisor

import (
	"fmt"
	"strings"
)

// buildPrompt 组装市场上下文提示词：K线摘要、市场状态、下跌/区间形态、持仓与情绪
func buildPrompt(symbol, timeframe string, ctx Context) string {
	md := ctx.Market

	var klines strings.Builder
	klines.WriteString(fmt.Sprintf("【最近5根%s K线数据】\n", timeframe))
	last5 := md.Candles
	if len(last5) > 5 {
		last5 = last5[len(last5)-5:]
	}
	for i, k := range last5 {
		name := "阴线"
		if k.IsBullish() {
			name = "阳线"
		}
		klines.WriteString(fmt.Sprintf("K线%d: %s 开盘:%.2f 收盘:%.2f 涨跌:%+.2f%%\n",
			i+1, name, k.Open, k.Close, k.ChangePct()))
	}

	rsi := md.Technical.RSI
	rsiText := "正常"
	if rsi < 35 {
		rsiText = "超卖"
	} else if rsi >= 70 {
		rsiText = "超买"
	}

	declineText := "无连续下跌"
	if ctx.Decline.ConsecutiveDeclines > 0 {
		declineText = fmt.Sprintf("连续%d根阴线，累计跌幅%.2f%%",
			ctx.Decline.ConsecutiveDeclines, ctx.Decline.TotalDeclinePct)
		if ctx.Decline.IsReversal {
			declineText += fmt.Sprintf("，检测到反转信号(强度%d)", ctx.Decline.ConfirmationStrength)
		}
		if ctx.Decline.VolumeConfirmed {
			declineText += "，放量确认"
		}
	}

	rangeText := "无明确区间形成"
	if ctx.Range.Valid {
		rangeText = fmt.Sprintf("支撑%.2f / 阻力%.2f，区间高度%.2f%%，当前位置%.1f%%，参考多单入场%.2f / 空单入场%.2f，破位止损%.2f%%",
			ctx.Range.Support, ctx.Range.Resistance, ctx.Range.HeightPct, ctx.Range.PositionInPct,
			ctx.Range.BuyEntry, ctx.Range.SellEntry, ctx.Range.BreakStopPct)
	}

	posText := "无持仓"
	if ctx.Position != nil {
		posText = fmt.Sprintf("%s仓, 数量: %.4f, 盈亏: %.2fUSDT",
			ctx.Position.Side, ctx.Position.Size, ctx.Position.UnrealizedPnL)
	}

	lastSigText := ""
	if n := len(ctx.LastSignals); n > 0 {
		ls := ctx.LastSignals[n-1]
		lastSigText = fmt.Sprintf("\n【上次信号】%s (信心: %s)", ls.Signal, ls.Confidence)
	}

	sentimentText := "【市场情绪】数据暂不可用"
	if s := ctx.Sentiment; s != nil {
		sign := ""
		if s.NetSentiment >= 0 {
			sign = "+"
		}
		sentimentText = fmt.Sprintf("【市场情绪】乐观%.1f%% 悲观%.1f%% 净值%s%.3f",
			s.PositiveRatio*100, s.NegativeRatio*100, sign, s.NetSentiment)
	}

	return fmt.Sprintf(`你是专业的%s波段交易大师，专注精准抄底。%s周期分析：

【🎯 核心价格分析】
当前价格: $%.2f
相对位置: %.1f%% (0%%=底部,100%%=顶部)
价格变化: %+.2f%%
波动率: %.2f%%
市场状态: %s (%s)

%s
【📊 技术状态】
RSI: %.1f (%s)
MACD: %s
均线状态: %s

【📉 下跌形态】
%s

【🔄 交易区间】
%s

【🎯 震荡市专用策略】
震荡市识别条件：价格波动<4%%，ATR<1.5%%，趋势强度<0.5%%
1. 靠近支撑位（<25%%）+ 反转信号 → HIGH信心BUY
2. 靠近阻力位（>75%%）+ 反转信号 → HIGH信心SELL
3. 区间中点（40-60%%）+ 明确信号 → MEDIUM信心交易
4. 区间突破立即止损

🚫 禁止交易：
- 波动率<1.5%%（无行情）
- 无明确区间形成
- 区间太窄（<0.5%%）或太宽（>4%%）

【⚠️ 风险控制】
建议止损±%.1f%%, 止盈±%.1f%%
止损设置: 严格止损，确保小亏大盈

【持仓状态】
%s%s

%s

【输出格式】
严格JSON格式：
{"signal":"BUY|SELL|HOLD","reason":"买入理由(如:超卖反弹/低位抄底/震荡底部)","stop_loss":具体价格数字,"take_profit":具体价格数字,"confidence":"HIGH|MEDIUM|LOW"}`,
		symbol, timeframe,
		md.Price, ctx.PricePos, md.PriceChange, ctx.Regime.ATRPct,
		ctx.Regime.Kind, ctx.Regime.TrendStrength,
		klines.String(),
		rsi, rsiText,
		md.Trend.MACD, md.Trend.Overall,
		declineText,
		rangeText,
		ctx.BracketHint.SLPct*100, ctx.BracketHint.TPPct*100,
		posText, lastSigText,
		sentimentText,
	)
}
