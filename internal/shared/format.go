package shared

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var moneyPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatMoney renders a dollar amount for audit-trail descriptions and log
// lines, with thousands grouping: 1234.5 becomes $1,234.50.
func FormatMoney(v float64) string {
	return moneyPrinter.Sprintf("$%.2f", v)
}
