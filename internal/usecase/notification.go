package usecase

import (
	"fmt"

	"github.com/wyuan/futures_settle_arb/internal/domain"
)

// Notification templates for the outbound channels. Messages follow the
// production wording: plain text for logs, HTML for Telegram.

func RenderSignal(sig *domain.Signal) *domain.NotifyEvent {
	var title, body, html string
	drop := sig.DropPct * 100

	switch sig.Type {
	case domain.SignalBuyLevel1, domain.SignalBuyLevel2:
		level := 1
		if sig.Type == domain.SignalBuyLevel2 {
			level = 2
		}
		title = fmt.Sprintf("📈 买入信号 - %s", sig.Symbol)
		body = fmt.Sprintf("合约: %s\n档位: %d\n触发价: %.2f\n基准价: %.2f\n跌幅: %.2f%%\n数量: %d手",
			sig.Symbol, level, sig.TriggerPrice, sig.BasePrice, drop, sig.Quantity)
		html = fmt.Sprintf("<b>📈 买入信号 - %s</b>\n合约: <code>%s</code>\n档位: %d\n触发价: <b>%.2f</b>\n基准价: %.2f\n跌幅: <b>%.2f%%</b>\n数量: %d手",
			sig.Symbol, sig.Symbol, level, sig.TriggerPrice, sig.BasePrice, drop, sig.Quantity)

	case domain.SignalSellClose:
		title = fmt.Sprintf("📉 卖出平仓 - %s", sig.Symbol)
		body = fmt.Sprintf("合约: %s\n平仓价: %.2f\n数量: %d手",
			sig.Symbol, sig.TriggerPrice, sig.Quantity)
		html = fmt.Sprintf("<b>📉 卖出平仓 - %s</b>\n合约: <code>%s</code>\n平仓价: <b>%.2f</b>\n数量: %d手",
			sig.Symbol, sig.Symbol, sig.TriggerPrice, sig.Quantity)

	case domain.SignalAlert:
		title = fmt.Sprintf("⚠️ 价格提醒 - %s", sig.Symbol)
		body = fmt.Sprintf("合约: %s\n当前价: %.2f\n基准价: %.2f\n跌幅: %.2f%% 接近买入阈值",
			sig.Symbol, sig.TriggerPrice, sig.BasePrice, drop)
		html = fmt.Sprintf("<b>⚠️ 价格提醒 - %s</b>\n合约: <code>%s</code>\n当前价: <b>%.2f</b>\n基准价: %.2f\n跌幅: <b>%.2f%%</b> 接近买入阈值",
			sig.Symbol, sig.Symbol, sig.TriggerPrice, sig.BasePrice, drop)
	}

	return &domain.NotifyEvent{
		Kind:    string(sig.Type),
		Symbol:  sig.Symbol,
		Title:   title,
		Message: body,
		HTML:    html,
		Time:    sig.Time,
	}
}

func RenderRiskEvent(ev *domain.RiskEvent) *domain.NotifyEvent {
	body := fmt.Sprintf("原因: %s\n当日盈亏: %.2f\n回撤: %.2f%%", ev.Reason, ev.DailyPnl, ev.Drawdown*100)
	return &domain.NotifyEvent{
		Kind:    "risk_breach",
		Title:   "🛑 风控强制平仓",
		Message: body,
		HTML:    fmt.Sprintf("<b>🛑 风控强制平仓</b>\n%s", body),
		Time:    ev.Time,
	}
}

func RenderPnlReport(snap domain.RiskSnapshot) *domain.NotifyEvent {
	body := fmt.Sprintf("当日盈亏: %.2f\n账户权益: %.2f\n峰值权益: %.2f\n回撤: %.2f%%",
		snap.DailyPnl, snap.Equity, snap.PeakEquity, snap.Drawdown*100)
	return &domain.NotifyEvent{
		Kind:    "pnl_report",
		Title:   "📊 盈亏日报",
		Message: body,
		HTML:    fmt.Sprintf("<b>📊 盈亏日报</b>\n%s", body),
		Time:    snap.SessionStarted,
	}
}
