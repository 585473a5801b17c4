package money

import (
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// formatLocale — локаль отображения денежных сумм.
var formatLocale = language.EuropeanSpanish

// Format превращает сумму в центах в строку с символом валюты,
// например 302500 EUR -> "3.025,00 €". Функция чисто презентационная:
// её результат никогда не участвует в арифметике или сравнениях.
func Format(cents int64, currencyCode string) string {
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return fmt.Sprintf("%.2f %s", float64(cents)/100, currencyCode)
	}

	p := message.NewPrinter(formatLocale)
	return p.Sprint(currency.Symbol(unit.Amount(float64(cents) / 100)))
}
