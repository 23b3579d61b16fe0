package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is the full configuration of the dispatch service.
type Config struct {
	Database DBConfig
	RabbitMQ MQConfig
	Service  ServiceConfig
	JWT      JWTConfig
	Dispatch DispatchConfig
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type MQConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string
}

type ServiceConfig struct {
	HTTPPort int
	WSPath   string
}

type JWTConfig struct {
	Secret        string
	ExpiryMinutes int
}

type DispatchConfig struct {
	// StaleAfter is the heartbeat staleness window: riders whose last_seen is
	// older than this are treated as offline.
	StaleAfter time.Duration
}

// Load reads CONFIG_DIR (default ./config); ENV always overrides file values.
func Load() Config {
	configDir := getEnv("CONFIG_DIR", "./config")
	cfg := Config{}

	dbKV := parseYAMLOrNil(filepath.Join(configDir, "db.yaml"))
	cfg.Database.Host = getStrWithEnv("DB_HOST", dbKV, "host", "localhost")
	cfg.Database.Port = getIntWithEnv("DB_PORT", dbKV, "port", 5432)
	cfg.Database.User = getStrWithEnv("DB_USER", dbKV, "user", "pawfect_user")
	cfg.Database.Password = getStrWithEnv("DB_PASSWORD", dbKV, "password", "pawfect_pass")
	cfg.Database.Database = getStrWithEnv("DB_NAME", dbKV, "database", "pawfect_db")
	cfg.Database.SSLMode = getStrWithEnv("DB_SSLMODE", dbKV, "sslmode", "disable")

	mqKV := parseYAMLOrNil(filepath.Join(configDir, "mq.yaml"))
	cfg.RabbitMQ.Host = getStrWithEnv("RABBITMQ_HOST", mqKV, "host", "localhost")
	cfg.RabbitMQ.Port = getIntWithEnv("RABBITMQ_PORT", mqKV, "port", 5672)
	cfg.RabbitMQ.User = getStrWithEnv("RABBITMQ_USER", mqKV, "user", "guest")
	cfg.RabbitMQ.Password = getStrWithEnv("RABBITMQ_PASSWORD", mqKV, "password", "guest")
	cfg.RabbitMQ.VHost = getStrWithEnv("RABBITMQ_VHOST", mqKV, "vhost", "/")

	svcKV := parseYAMLOrNil(filepath.Join(configDir, "service.yaml"))
	cfg.Service.HTTPPort = getIntWithEnv("DISPATCH_SERVICE_PORT", svcKV, "dispatch_service", 3002)
	cfg.Service.WSPath = getStrWithEnv("DISPATCH_WS_PATH", svcKV, "ws_path", "/ws")

	jwtKV := parseYAMLOrNil(filepath.Join(configDir, "jwt.yaml"))
	cfg.JWT.Secret = getStrWithEnv("JWT_SECRET", jwtKV, "secret", "dev_secret")
	cfg.JWT.ExpiryMinutes = getIntWithEnv("JWT_EXPIRY_MINUTES", jwtKV, "expiry_minutes", 60)

	dispatchKV := parseYAMLOrNil(filepath.Join(configDir, "dispatch.yaml"))
	staleMinutes := getIntWithEnv("DISPATCH_STALE_MINUTES", dispatchKV, "stale_minutes", 10)
	cfg.Dispatch.StaleAfter = time.Duration(staleMinutes) * time.Minute

	return cfg
}

// parseYAML parses flat YAML files: "key: value" per line, comments allowed.
// Deep nesting is not supported; the config files are flat on purpose.
func parseYAML(path string) (map[string]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	result := map[string]string{}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		val = strings.Trim(val, `"'`)
		if key != "" && val != "" {
			result[key] = val
		}
	}

	return result, sc.Err()
}

func parseYAMLOrNil(path string) map[string]string {
	kv, err := parseYAML(path)
	if err != nil {
		return nil
	}
	return kv
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getStrWithEnv(envKey string, yaml map[string]string, key, def string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	if val, ok := yaml[key]; ok && val != "" {
		return val
	}
	return def
}

func getIntWithEnv(envKey string, yaml map[string]string, key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	if val, ok := yaml[key]; ok && val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return def
}

// DSN returns the Postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// AMQPURL returns the RabbitMQ connection URL.
func (c MQConfig) AMQPURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}
