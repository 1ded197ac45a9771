package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeOrg renders a TradeRecord as an Org-mode block suitable for pasting into a journal.
// Structured facts go in a PROPERTIES drawer; the narrative headings are left empty.
func FormatTradeOrg(t TradeRecord) string {
	heading := fmt.Sprintf("** Trade: %s %s (%s)", t.Instrument, t.Side, shortID(t.TradeID))
	open := t.OpenTime.UTC().Format(time.RFC3339)
	close := t.CloseTime.UTC().Format(time.RFC3339)

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.TradeID)
	fmt.Fprintf(&b, ":INSTRUMENT: %s\n", t.Instrument)
	fmt.Fprintf(&b, ":SIDE: %s\n", t.Side)
	fmt.Fprintf(&b, ":UNITS: %s\n", t.Units)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %s\n", t.EntryPrice.StringFixed(5))
	fmt.Fprintf(&b, ":EXIT_PRICE: %s\n", t.ExitPrice.StringFixed(5))
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", open)
	fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", close)
	fmt.Fprintf(&b, ":COMMISSION: %s\n", t.Commission().StringFixed(2))
	fmt.Fprintf(&b, ":REALIZED_PL: %s\n", t.RealizedPL.StringFixed(2))
	fmt.Fprintf(&b, ":REASON: %s\n", t.Reason)
	if t.SignalSource != "" {
		fmt.Fprintf(&b, ":SIGNAL: %s (%.2f)\n", t.SignalSource, t.Confidence)
	}
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
