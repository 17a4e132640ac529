package exchange

import (
	"strings"
)

const symbolSeparator = " - "

func sanitizeTicker(ticker string) string {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(ticker))
	for _, r := range ticker {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if r >= 'a' && r <= 'z' {
				r -= 32
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// composeSymbol builds a Primary instrument symbol such as "MERV - XMEV - S17A6 - 24hs".
func composeSymbol(prefix, ticker, settlement string) string {
	ticker = sanitizeTicker(ticker)
	parts := make([]string, 0, 3)
	if p := strings.TrimSpace(prefix); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, ticker)
	if s := strings.TrimSpace(settlement); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, symbolSeparator)
}

// tickerFromSymbol extracts the bare ticker from a Primary symbol. Plain tickers pass through.
func tickerFromSymbol(symbol string) string {
	parts := strings.Split(symbol, symbolSeparator)
	switch len(parts) {
	case 4: // market - segment - ticker - settlement
		return sanitizeTicker(parts[2])
	case 3: // prefix - ticker - settlement
		return sanitizeTicker(parts[1])
	case 2: // ticker - settlement
		return sanitizeTicker(parts[0])
	default:
		return sanitizeTicker(symbol)
	}
}
