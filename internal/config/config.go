package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingAIBackendURL   = errors.New("AI_BACKEND_URL is required")
	ErrMissingDatabaseDSN    = errors.New("DB_DSN is required")
	ErrMissingIdentityURL    = errors.New("IDENTITY_URL is required")
	ErrMissingIdentitySecret = errors.New("IDENTITY_JWT_SECRET is required")
	// Master keys have no fallback on purpose: a guessable default key
	// would silently void every credential the service stores.
	ErrMissingMasterKey = errors.New("at least one master key is required")
)

type Config struct {
	HTTP      HTTPConfig
	AIBackend AIBackendConfig
	Identity  IdentityConfig
	DB        DBConfig
	Redis     RedisConfig
	Rate      RateConfig
	Crypto    CryptoConfig
	Log       LogConfig
}

type HTTPConfig struct {
	ListenAddr   string
	HealthPath   string
	MetricsPath  string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AIBackendConfig points at the external service that introspects
// schemas, translates questions to SQL, and executes queries. Each
// operation carries its own timeout; execution gets the longest ceiling
// because the user's own database does the work.
type AIBackendConfig struct {
	BaseURL        string
	ProbeTimeout   time.Duration
	SQLGenTimeout  time.Duration
	ExecuteTimeout time.Duration
}

type IdentityConfig struct {
	BaseURL   string
	JWTSecret string
	Timeout   time.Duration
}

type DBConfig struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateConfig struct {
	TurnsPerHour int64
}

type CryptoConfig struct {
	CurrentKeyID string
	Keys         map[string][]byte
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			ListenAddr:   mustEnv("HTTP_LISTEN_ADDR", ":8080"),
			HealthPath:   mustEnv("HEALTH_PATH", "/healthz"),
			MetricsPath:  mustEnv("METRICS_PATH", "/metrics"),
			CORSOrigins:  splitCSV(mustEnv("CORS_ORIGINS", "")),
			ReadTimeout:  mustDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: mustDuration("HTTP_WRITE_TIMEOUT", 90*time.Second),
		},
		AIBackend: AIBackendConfig{
			BaseURL:        strings.TrimSuffix(mustEnv("AI_BACKEND_URL", ""), "/"),
			ProbeTimeout:   mustDuration("AI_PROBE_TIMEOUT", 15*time.Second),
			SQLGenTimeout:  mustDuration("AI_SQLGEN_TIMEOUT", 30*time.Second),
			ExecuteTimeout: mustDuration("AI_EXECUTE_TIMEOUT", 60*time.Second),
		},
		Identity: IdentityConfig{
			BaseURL:   strings.TrimSuffix(mustEnv("IDENTITY_URL", ""), "/"),
			JWTSecret: mustEnv("IDENTITY_JWT_SECRET", ""),
			Timeout:   mustDuration("IDENTITY_TIMEOUT", 10*time.Second),
		},
		DB: DBConfig{
			Driver:      strings.ToLower(mustEnv("DB_DRIVER", "postgres")),
			DSN:         mustEnv("DB_DSN", ""),
			AutoMigrate: mustBool("AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     mustEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: mustEnv("REDIS_PASSWORD", ""),
			DB:       mustInt("REDIS_DB", 0),
		},
		Rate: RateConfig{
			TurnsPerHour: int64(mustInt("RATE_LIMIT_TURNS_PER_HOUR", 60)),
		},
		Log: LogConfig{
			Level: strings.ToLower(mustEnv("LOG_LEVEL", "info")),
		},
	}

	if cfg.AIBackend.BaseURL == "" {
		return nil, ErrMissingAIBackendURL
	}
	if cfg.DB.DSN == "" {
		return nil, ErrMissingDatabaseDSN
	}
	if cfg.Identity.BaseURL == "" {
		return nil, ErrMissingIdentityURL
	}
	if cfg.Identity.JWTSecret == "" {
		return nil, ErrMissingIdentitySecret
	}

	cc, err := loadCryptoConfig()
	if err != nil {
		return nil, err
	}
	cfg.Crypto = cc

	return cfg, nil
}

// loadCryptoConfig collects master keys from MASTER_KEYS_JSON (id to
// base64 map), MASTER_KEY_<ID>_B64 variables, or the MASTER_KEY_B64
// singleton. Startup fails when none are present.
func loadCryptoConfig() (CryptoConfig, error) {
	keysB64 := map[string]string{}

	if raw := mustEnv("MASTER_KEYS_JSON", ""); raw != "" {
		var parsed map[string]string
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return CryptoConfig{}, fmt.Errorf("parse MASTER_KEYS_JSON: %w", err)
		}
		for id, val := range parsed {
			if strings.TrimSpace(id) == "" || strings.TrimSpace(val) == "" {
				continue
			}
			keysB64[id] = val
		}
	}

	for _, e := range os.Environ() {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) != 2 {
			continue
		}
		k, v := parts[0], parts[1]
		if !strings.HasPrefix(k, "MASTER_KEY_") || !strings.HasSuffix(k, "_B64") {
			continue
		}
		if k == "MASTER_KEY_B64" {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(k, "MASTER_KEY_"), "_B64")
		if id == "" || v == "" {
			continue
		}
		keysB64[id] = v
	}

	current := mustEnv("MASTER_KEY_CURRENT_ID", "")
	if singleton := mustEnv("MASTER_KEY_B64", ""); singleton != "" {
		if current == "" {
			current = "default"
		}
		keysB64[current] = singleton
	}

	if len(keysB64) == 0 {
		return CryptoConfig{}, ErrMissingMasterKey
	}

	keys := make(map[string][]byte, len(keysB64))
	for id, b64 := range keysB64 {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return CryptoConfig{}, fmt.Errorf("decode master key %q: %w", id, err)
		}
		if len(raw) != 32 {
			return CryptoConfig{}, fmt.Errorf("master key %q must be 32 bytes after base64 decode", id)
		}
		keys[id] = raw
	}

	if current == "" {
		for id := range keys {
			current = id
			break
		}
	}
	if _, ok := keys[current]; !ok {
		return CryptoConfig{}, fmt.Errorf("MASTER_KEY_CURRENT_ID=%q does not exist in provided keys", current)
	}

	return CryptoConfig{CurrentKeyID: current, Keys: keys}, nil
}

func mustEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func mustInt(key string, def int) int {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustBool(key string, def bool) bool {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func mustDuration(key string, def time.Duration) time.Duration {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
