package app

import (
	"strconv"

	"github.com/vladislavdragonenkov/cbs/internal/money"
)

// Значения по умолчанию для адресов и подключений.
const (
	DefaultHTTPAddr    = ":8080"
	DefaultMetricsAddr = ":9090"
)

// Config описывает настройки запуска приложения. Всё читается из
// окружения один раз на старте; пустые значения означают, что
// соответствующая подсистема не используется (postgres, redis, kafka).
type Config struct {
	HTTPAddr    string
	MetricsAddr string
	APIKey      string

	PostgresDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers string

	Money money.Config
}

// DefaultConfig возвращает конфигурацию in-memory режима без
// внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    DefaultHTTPAddr,
		MetricsAddr: DefaultMetricsAddr,
		Money:       money.DefaultConfig(),
	}
}

// LoadConfig строит конфигурацию из окружения через переданный getenv.
// getenv передаётся параметром, чтобы тесты не трогали процессное
// окружение.
func LoadConfig(getenv func(string) string) Config {
	cfg := DefaultConfig()

	if port := getenv("PORT"); port != "" {
		cfg.HTTPAddr = ":" + port
	}
	if addr := getenv("METRICS_ADDR"); addr != "" {
		cfg.MetricsAddr = addr
	}

	cfg.APIKey = getenv("API_KEY")
	cfg.PostgresDSN = getenv("POSTGRES_DSN")
	cfg.RedisAddr = getenv("REDIS_ADDR")
	cfg.RedisPassword = getenv("REDIS_PASSWORD")
	if raw := getenv("REDIS_DB"); raw != "" {
		if db, err := strconv.Atoi(raw); err == nil && db >= 0 {
			cfg.RedisDB = db
		}
	}
	cfg.KafkaBrokers = getenv("KAFKA_BROKERS")

	cfg.Money = money.LoadConfig(getenv)

	return cfg
}
