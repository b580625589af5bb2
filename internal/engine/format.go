package engine

import (
	"fmt"
	"html"

	"pricealert_go/internal/domain"

	"github.com/shopspring/decimal"
)

// FormatAlert renders one alert as the HTML message delivered to the chat.
func FormatAlert(a domain.Alert) string {
	circle, arrow, verb := "🔴", "📉", "down"
	if a.Direction == domain.DirectionUp {
		circle, arrow, verb = "🟢", "📈", "up"
	}

	return fmt.Sprintf(
		"%s %s <b>%s</b> is %s <b>%s%%</b>\n"+
			"%s Price: <b>$%s</b> (was $%s)\n"+
			"🕐 %s",
		circle, arrow, html.EscapeString(a.DisplayName), verb, a.ChangePct.StringFixed(2),
		priceIcon(a.Direction), formatPrice(a.CurrentPrice), formatPrice(a.PreviousPrice),
		a.At.UTC().Format("2006-01-02 15:04:05 UTC"),
	)
}

func priceIcon(d domain.Direction) string {
	if d == domain.DirectionUp {
		return "💰"
	}
	return "💸"
}

// formatPrice keeps two decimals for ordinary prices and enough precision
// for sub-dollar assets to stay meaningful.
func formatPrice(p decimal.Decimal) string {
	if p.Abs().GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return p.StringFixed(2)
	}
	return p.Round(8).String()
}
