package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Slot backends for carrying a selected offer across stages.
const (
	SlotRedis = "redis"
	SlotMySQL = "mysql"
	SlotNone  = "none"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	FlightAPIBase string
	FlightAPIRPS  int

	MySQLDSN  string
	RedisAddr string
	RedisDB   int
	RedisPass string

	SlotBackend string
	SlotTTL     time.Duration
	CacheTTL    time.Duration
	Debounce    time.Duration

	WarmAirports []string
	WarmWorkers  int
}

// Load reads the environment, after an optional .env in the working
// directory. Real environment variables win over .env entries.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not read .env")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not a number, using default")
		}
		return def
	}
	c := Config{
		AppEnv:        env("APP_ENV", "prod"),
		LogLevel:      env("LOG_LEVEL", "info"),
		HTTPAddr:      env("HTTP_ADDR", ":8080"),
		MetricsAddr:   env("METRICS_ADDR", ":9100"),
		FlightAPIBase: strings.TrimRight(env("FLIGHT_API_BASE", env("REACT_APP_API_BASE", "http://localhost:8081")), "/"),
		FlightAPIRPS:  atoi("FLIGHT_API_RPS", 10),
		MySQLDSN:      env("MYSQL_DSN", ""),
		RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
		RedisDB:       atoi("REDIS_DB", 0),
		RedisPass:     env("REDIS_PASSWORD", ""),
		SlotBackend:   strings.ToLower(env("SLOT_BACKEND", SlotRedis)),
		SlotTTL:       time.Duration(atoi("SLOT_TTL_SECONDS", 1800)) * time.Second,
		CacheTTL:      time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		Debounce:      time.Duration(atoi("DEBOUNCE_MS", 250)) * time.Millisecond,
		WarmAirports:  splitList(env("WARM_AIRPORTS", "")),
		WarmWorkers:   atoi("WARM_WORKERS", 4),
	}
	switch c.SlotBackend {
	case SlotRedis, SlotMySQL, SlotNone:
	default:
		log.Warn().Str("slot_backend", c.SlotBackend).Msg("unknown SLOT_BACKEND, using redis")
		c.SlotBackend = SlotRedis
	}
	if c.SlotBackend == SlotMySQL && c.MySQLDSN == "" {
		log.Warn().Msg("SLOT_BACKEND=mysql without MYSQL_DSN, slot disabled")
		c.SlotBackend = SlotNone
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// splitList parses "IAH, jfk,,LAX" into upper-cased codes.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
