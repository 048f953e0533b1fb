package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	PublicDir   string

	OTLPEndpoint string

	Backend BackendConfig
	Captcha CaptchaConfig

	DBEnabled         bool
	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	RateLimit RateLimitConfig
}

// BackendConfig is the public connection info of the hosted backend. Both
// values are handed to browsers.
type BackendConfig struct {
	URL     string
	AnonKey string
}

func (b BackendConfig) Configured() bool {
	return b.URL != "" && b.AnonKey != ""
}

type CaptchaConfig struct {
	SecretKey     string
	VerifyURL     string
	ScriptURL     string
	ReplayTTLSecs int
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled bool
	// Verify is the token bucket applied to POST /api/verify-captcha per IP.
	VerifyRate  float64
	VerifyBurst int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "petfeeder"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     httpAddr(),
		PublicDir:    getenv("PUBLIC_DIR", "public"),
		OTLPEndpoint: strings.TrimSpace(getenv("OTLP_ENDPOINT", "")),
		Backend: BackendConfig{
			URL:     strings.TrimSpace(getenv("SUPABASE_URL", "")),
			AnonKey: strings.TrimSpace(getenv("SUPABASE_ANON_KEY", "")),
		},
		Captcha: CaptchaConfig{
			SecretKey:     strings.TrimSpace(getenv("TURNSTILE_SECRET_KEY", "")),
			VerifyURL:     strings.TrimSpace(getenv("TURNSTILE_VERIFY_URL", "")),
			ScriptURL:     strings.TrimSpace(getenv("TURNSTILE_SCRIPT_URL", "")),
			ReplayTTLSecs: getenvInt("CAPTCHA_REPLAY_TTL_SECONDS", 300),
		},
		DBEnabled:         getenvBool("DATABASE_ENABLED", true),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "petfeeder"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),
		Redis: RedisConfig{
			Enabled:  getenvBool("REDIS_ENABLED", false),
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getenvBool("RATE_LIMIT_ENABLED", true),
			VerifyRate:  getenvFloat("RATE_LIMIT_VERIFY_RATE", 0.5),
			VerifyBurst: getenvInt("RATE_LIMIT_VERIFY_BURST", 10),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// httpAddr honours PORT, which hosting platforms set, before HTTP_ADDR.
func httpAddr() string {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		return ":" + port
	}
	return getenv("HTTP_ADDR", ":3000")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
