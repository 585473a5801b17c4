package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func getenvFrom(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(getenvFrom(nil))

	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, DefaultMetricsAddr, cfg.MetricsAddr)
	assert.Empty(t, cfg.APIKey)
	assert.Empty(t, cfg.PostgresDSN)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 0.21, cfg.Money.TaxRate)
	assert.Equal(t, "EUR", cfg.Money.CurrencyCode)
}

func TestLoadConfigFromEnv(t *testing.T) {
	cfg := LoadConfig(getenvFrom(map[string]string{
		"PORT":           "3000",
		"METRICS_ADDR":   ":9100",
		"API_KEY":        "secret",
		"POSTGRES_DSN":   "postgres://localhost/cbs",
		"REDIS_ADDR":     "localhost:6379",
		"REDIS_PASSWORD": "pwd",
		"REDIS_DB":       "3",
		"KAFKA_BROKERS":  "localhost:9092,localhost:9093",
		"TAX_RATE":       "0.1",
		"CURRENCY":       "usd",
	}))

	assert.Equal(t, ":3000", cfg.HTTPAddr)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "postgres://localhost/cbs", cfg.PostgresDSN)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "pwd", cfg.RedisPassword)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "localhost:9092,localhost:9093", cfg.KafkaBrokers)
	assert.Equal(t, 0.1, cfg.Money.TaxRate)
	assert.Equal(t, "USD", cfg.Money.CurrencyCode)
}

func TestLoadConfigIgnoresGarbage(t *testing.T) {
	cfg := LoadConfig(getenvFrom(map[string]string{
		"REDIS_DB": "not-a-number",
		"TAX_RATE": "5",
		"CURRENCY": "EURO",
	}))

	assert.Equal(t, 0, cfg.RedisDB)
	// TAX_RATE зажимается в [0,1], невалидная валюта заменяется дефолтной.
	assert.Equal(t, 1.0, cfg.Money.TaxRate)
	assert.Equal(t, "EUR", cfg.Money.CurrencyCode)
}
