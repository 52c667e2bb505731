package models

// Currency codes accepted by the service (ISO 4217).
const (
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
	CurrencyGBP = "GBP"
)

func ValidCurrency(code string) bool {
	switch code {
	case CurrencyUSD, CurrencyEUR, CurrencyGBP:
		return true
	}
	return false
}
