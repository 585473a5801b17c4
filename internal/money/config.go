package money

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultTaxRate применяется, если TAX_RATE не задан или не парсится.
	DefaultTaxRate = 0.21
	// DefaultCurrency применяется, если CURRENCY не похож на ISO-4217 код.
	DefaultCurrency = "EUR"
)

var currencyPattern = regexp.MustCompile(`^[A-Za-z]{3}$`)

// Config — неизменяемая денежная конфигурация процесса.
// Читается один раз на старте и штампуется на каждый создаваемый заказ:
// смена конфигурации не трогает уже записанные TaxRate/CurrencyCode.
type Config struct {
	// TaxRate — доля налога в диапазоне [0,1].
	TaxRate float64
	// CurrencyCode — валидный трёхбуквенный код в верхнем регистре.
	CurrencyCode string
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{TaxRate: DefaultTaxRate, CurrencyCode: DefaultCurrency}
}

// LoadConfig строит конфигурацию из окружения через переданный getenv.
// Невалидные значения не отклоняются, а молча приводятся к допустимым:
// TAX_RATE зажимается в [0,1], CURRENCY подменяется на DefaultCurrency.
func LoadConfig(getenv func(string) string) Config {
	cfg := DefaultConfig()

	if raw := getenv("TAX_RATE"); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(rate) {
			rate = DefaultTaxRate
		}
		cfg.TaxRate = clamp(rate, 0, 1)
	}

	if raw := getenv("CURRENCY"); currencyPattern.MatchString(raw) {
		cfg.CurrencyCode = strings.ToUpper(raw)
	}

	return cfg
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}
