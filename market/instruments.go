package market

import "strings"

// AssetClass groups symbols for concentration limits.
type AssetClass string

const (
	Forex  AssetClass = "forex"
	Crypto AssetClass = "crypto"
	Equity AssetClass = "equity"
)

var currencies = map[string]bool{
	"USD": true, "EUR": true, "JPY": true, "GBP": true, "CHF": true,
	"AUD": true, "NZD": true, "CAD": true, "SEK": true, "NOK": true,
	"DKK": true, "HKD": true, "SGD": true, "CNH": true, "MXN": true,
	"ZAR": true, "TRY": true, "PLN": true,
}

var cryptoAssets = map[string]bool{
	"BTC": true, "ETH": true, "SOL": true, "XRP": true, "ADA": true,
	"DOGE": true, "BNB": true, "LTC": true, "DOT": true, "AVAX": true,
	"LINK": true, "MATIC": true,
}

var stableQuotes = []string{"USDT", "USDC", "BUSD"}

// ClassifyAsset guesses the asset class from the symbol text.
//
//	EUR_USD, EUR/USD, EURUSD, EURUSD=X  -> forex
//	BTC-USD, BTC/USDT, ETHUSDT          -> crypto
//	anything else (AAPL, BRK.B)         -> equity
func ClassifyAsset(symbol string) AssetClass {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.TrimSuffix(s, "=X")

	if base, quote, ok := splitPair(s); ok {
		if cryptoAssets[base] {
			return Crypto
		}
		if currencies[base] && currencies[quote] {
			return Forex
		}
	}

	for _, q := range stableQuotes {
		if strings.HasSuffix(s, q) && cryptoAssets[strings.TrimSuffix(s, q)] {
			return Crypto
		}
	}

	if len(s) == 6 && currencies[s[:3]] && currencies[s[3:]] {
		return Forex
	}
	if cryptoAssets[s] {
		return Crypto
	}
	return Equity
}

func splitPair(s string) (string, string, bool) {
	for _, sep := range []string{"_", "/", "-"} {
		if parts := strings.Split(s, sep); len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return parts[0], parts[1], true
		}
	}
	return "", "", false
}
