package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config описывает настройки процесса, читаемые из окружения.
// Пустые строковые поля означают «подсистема не настроена»: без DSN
// используется in-memory хранилище, без брокеров события пишутся в лог,
// без адреса шлюза платежи обслуживает встроенная заглушка.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	PostgresDSN  string
	KafkaBrokers []string

	GatewayBaseURL string
	GatewayToken   string

	WebhookSecret     string
	WebhookSkipVerify bool

	ReservationTTL time.Duration
	SweepInterval  time.Duration
}

// Load собирает конфигурацию из переменных окружения с префиксом SHOP_.
func Load() Config {
	return Config{
		HTTPAddr:    getenv("SHOP_HTTP_ADDR", ":8080"),
		MetricsAddr: getenv("SHOP_METRICS_ADDR", ":9090"),

		PostgresDSN:  getenv("SHOP_POSTGRES_DSN", ""),
		KafkaBrokers: splitCSV(getenv("SHOP_KAFKA_BROKERS", "")),

		GatewayBaseURL: getenv("SHOP_GATEWAY_BASE_URL", ""),
		GatewayToken:   getenv("SHOP_GATEWAY_TOKEN", ""),

		WebhookSecret:     getenv("SHOP_WEBHOOK_SECRET", ""),
		WebhookSkipVerify: getenvBool("SHOP_WEBHOOK_SKIP_VERIFY", false),

		ReservationTTL: getenvDuration("SHOP_RESERVATION_TTL", 30*time.Minute),
		SweepInterval:  getenvDuration("SHOP_SWEEP_INTERVAL", time.Minute),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
