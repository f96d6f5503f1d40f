package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config - полная конфигурация системы. Загружается из окружения,
// .env подхватывается если присутствует.
type Config struct {
	// LLM настройки
	OpenAIAPIKey     string
	OpenAIAPIBase    string
	ModelNameManager string
	ModelNameWorker  string

	// Прокси-перехватчик
	MITMProxyPort int

	// Управление сканированием
	ScanProxy          string // опциональный upstream-прокси для проб
	ScanMaxTasks       int64  // параллельные сканы
	ScanMaxConcurrency int64  // параллельные пробы внутри одного пакета
	ScanMaxRetries     int
	ScanTimeout        time.Duration

	// Белый список целей (подстрочное совпадение по хосту)
	TargetWhitelist []string

	// Хранилища
	RedisURL    string
	PostgresURL string

	// Логи
	LogLevel             string
	LogPromptInteraction bool

	// Web-поверхность (findings API + WebSocket)
	APIListenAddr string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", key, raw, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	raw := strings.ToLower(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	return raw == "1" || raw == "true" || raw == "yes"
}

// ParseWhitelist принимает либо JSON-список, либо строку с запятыми.
// Пустой ввод означает пустой список (и, как следствие, запрет всего).
func ParseWhitelist(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			return list
		}
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Load читает конфигурацию из окружения. Ошибки здесь - единственные
// фатальные ошибки во всей системе.
func Load() (*Config, error) {
	// .env опционален: отсутствие файла не считается ошибкой
	_ = godotenv.Load()

	proxyPort, err := getEnvInt("MITM_PROXY_PORT", 8080)
	if err != nil {
		return nil, err
	}
	maxTasks, err := getEnvInt("SCAN_MAX_TASKS", 3)
	if err != nil {
		return nil, err
	}
	maxConcurrency, err := getEnvInt("SCAN_MAX_CONCURRENCY", 5)
	if err != nil {
		return nil, err
	}
	maxRetries, err := getEnvInt("SCAN_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}

	timeout := 10.0
	if raw := os.Getenv("SCAN_TIMEOUT"); raw != "" {
		timeout, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SCAN_TIMEOUT=%q: %w", raw, err)
		}
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("SCAN_TIMEOUT must be positive, got %v", timeout)
	}

	cfg := &Config{
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIAPIBase:    getEnvOrDefault("OPENAI_API_BASE", "https://api.openai.com/v1"),
		ModelNameManager: getEnvOrDefault("MODEL_NAME_MANAGER", "gpt-4o"),
		ModelNameWorker:  getEnvOrDefault("MODEL_NAME_WORKER", "gpt-3.5-turbo"),

		MITMProxyPort: proxyPort,

		ScanProxy:          os.Getenv("SCAN_PROXY"),
		ScanMaxTasks:       int64(maxTasks),
		ScanMaxConcurrency: int64(maxConcurrency),
		ScanMaxRetries:     maxRetries,
		ScanTimeout:        time.Duration(timeout * float64(time.Second)),

		TargetWhitelist: ParseWhitelist(os.Getenv("TARGET_WHITELIST")),

		RedisURL:    getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		PostgresURL: os.Getenv("POSTGRES_URL"),

		LogLevel:             strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
		LogPromptInteraction: getEnvBool("LOG_PROMPT_INTERACTION", true),

		APIListenAddr: getEnvOrDefault("API_LISTEN_ADDR", ":8000"),
	}
	return cfg, nil
}

// DebugEnabled сообщает, включён ли подробный вывод проб.
func (c *Config) DebugEnabled() bool {
	return c.LogLevel == "DEBUG"
}

// InWhitelist - подстрочная проверка хоста. Пустой список запрещает всё.
func (c *Config) InWhitelist(host string) bool {
	if len(c.TargetWhitelist) == 0 {
		return false
	}
	for _, item := range c.TargetWhitelist {
		if strings.Contains(host, item) {
			return true
		}
	}
	return false
}
