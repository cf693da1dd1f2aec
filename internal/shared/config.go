package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const DefaultScriptPrefix = "https://script.google.com"

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string

	ScriptURL     string
	ScriptPrefix  string
	SheetsRPS     int
	SheetsTimeout time.Duration
	MutationMode  string // fire-and-forget|ack

	KVBackend  string // sqlite|redis|mysql
	SQLitePath string
	RedisAddr  string
	RedisDB    int
	RedisPass  string
	MySQLDSN   string

	SyncSchedule string
	AdminToken   string
	PhoneRegion  string

	GeminiKey   string
	GeminiModel string
	GeminiBase  string

	TriageWorkers int
}

func Load() Config {
	// a missing .env is fine; real deployments use the environment
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:        env("APP_ENV", "prod"),
		HTTPAddr:      env("HTTP_ADDR", ":8080"),
		MetricsAddr:   env("METRICS_ADDR", ""),
		ScriptURL:     strings.TrimSpace(env("SCRIPT_URL", "")),
		ScriptPrefix:  env("SCRIPT_URL_PREFIX", DefaultScriptPrefix),
		SheetsRPS:     atoi("SHEETS_RPS", 5),
		SheetsTimeout: time.Duration(atoi("SHEETS_TIMEOUT_SECONDS", 30)) * time.Second,
		MutationMode:  strings.ToLower(env("MUTATION_MODE", "fire-and-forget")),
		KVBackend:     strings.ToLower(env("KV_BACKEND", "sqlite")),
		SQLitePath:    env("SQLITE_PATH", "data/rental.db"),
		RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
		RedisPass:     env("REDIS_PASSWORD", ""),
		RedisDB:       atoi("REDIS_DB", 0),
		MySQLDSN:      env("MYSQL_DSN", "root:root@tcp(localhost:3306)/rental?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		SyncSchedule:  os.Getenv("SYNC_SCHEDULE"),
		AdminToken:    env("ADMIN_TOKEN", ""),
		PhoneRegion:   env("PHONE_REGION", "TH"),
		GeminiKey:     env("GEMINI_API_KEY", ""),
		GeminiModel:   env("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBase:    env("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		TriageWorkers: atoi("TRIAGE_WORKERS", 4),
	}
	if _, set := os.LookupEnv("SYNC_SCHEDULE"); !set {
		c.SyncSchedule = "@every 5m"
	}
	if c.ScriptURL == "" {
		log.Warn().Msg("SCRIPT_URL is empty; only a saved endpoint or the snapshot can serve data")
	}
	if c.AdminToken == "" {
		log.Warn().Msg("ADMIN_TOKEN is empty; administrative routes are disabled")
	}
	if c.GeminiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is empty; task triage will fall back to manual entry")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
