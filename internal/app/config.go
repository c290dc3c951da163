package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Подхватываем .env, если файл существует.
	_ = godotenv.Load()
}

// Config описывает настройки запуска витрины, читаемые из окружения.
type Config struct {
	HTTPAddr        string        `envconfig:"VERDORA_HTTP_ADDR" default:":8080"`
	MetricsAddr     string        `envconfig:"VERDORA_METRICS_ADDR" default:":9090"`
	ReadTimeout     time.Duration `envconfig:"VERDORA_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"VERDORA_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"VERDORA_SHUTDOWN_TIMEOUT" default:"5s"`
	AllowOrigins    []string      `envconfig:"VERDORA_ALLOW_ORIGINS" default:"*"`
	LogLevel        string        `envconfig:"VERDORA_LOG_LEVEL" default:"info"`

	// Пустой DSN переключает хранилище на in-memory реализацию.
	PostgresDSN string `envconfig:"VERDORA_POSTGRES_DSN" default:""`

	// Пустой адрес переключает кэш каталога на in-memory реализацию.
	RedisAddr     string        `envconfig:"VERDORA_REDIS_ADDR" default:""`
	RedisPassword string        `envconfig:"VERDORA_REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"VERDORA_REDIS_DB" default:"0"`
	CacheTTL      time.Duration `envconfig:"VERDORA_CACHE_TTL" default:"5m"`

	// Пустой список брокеров отключает публикацию событий в Kafka.
	KafkaBrokers string `envconfig:"VERDORA_KAFKA_BROKERS" default:""`

	// Пустой BaseURL переключает шлюз на mock-реализацию.
	GatewayBaseURL    string        `envconfig:"VERDORA_GATEWAY_BASE_URL" default:""`
	GatewaySecretKey  string        `envconfig:"VERDORA_GATEWAY_SECRET_KEY" default:""`
	GatewayReturnURL  string        `envconfig:"VERDORA_GATEWAY_RETURN_URL" default:""`
	GatewayWebsiteURL string        `envconfig:"VERDORA_GATEWAY_WEBSITE_URL" default:""`
	GatewayTimeout    time.Duration `envconfig:"VERDORA_GATEWAY_TIMEOUT" default:"10s"`

	CheckoutPollInterval       time.Duration `envconfig:"VERDORA_CHECKOUT_POLL_INTERVAL" default:"2s"`
	IdempotencyCleanupInterval time.Duration `envconfig:"VERDORA_IDEMPOTENCY_CLEANUP_INTERVAL" default:"1h"`

	// Статические токены в формате "token=userID,token2=userID2".
	StaticTokens string `envconfig:"VERDORA_STATIC_TOKENS" default:""`
	// Пользователи с правами администратора, через запятую.
	AdminUsers string `envconfig:"VERDORA_ADMIN_USERS" default:""`
}

// LoadConfig читает конфигурацию из переменных окружения.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if cfg.GatewayBaseURL != "" && cfg.GatewaySecretKey == "" {
		return Config{}, fmt.Errorf("VERDORA_GATEWAY_SECRET_KEY is required when gateway base url is set")
	}
	return cfg, nil
}

// Brokers возвращает список Kafka-брокеров из конфигурации.
func (c Config) Brokers() []string {
	return splitAndTrim(c.KafkaBrokers)
}

// AdminUserIDs возвращает список администраторов из конфигурации.
func (c Config) AdminUserIDs() []string {
	return splitAndTrim(c.AdminUsers)
}

// StaticTokenPairs разбирает статические токены вида "token=userID".
func (c Config) StaticTokenPairs() map[string]string {
	pairs := make(map[string]string)
	for _, chunk := range splitAndTrim(c.StaticTokens) {
		token, userID, ok := strings.Cut(chunk, "=")
		if !ok {
			continue
		}
		token = strings.TrimSpace(token)
		userID = strings.TrimSpace(userID)
		if token == "" || userID == "" {
			continue
		}
		pairs[token] = userID
	}
	return pairs
}

func splitAndTrim(raw string) []string {
	chunks := strings.Split(raw, ",")
	values := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		value := strings.TrimSpace(chunk)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	return values
}
