package config

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPHost        string
	HTTPPort        int
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	LogLevel        string

	// DatabaseURL empty means in-memory session records only.
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration

	// BackendURL empty means no external collaborator: availability is
	// seeded locally and notifications are dropped.
	BackendURL     string
	BackendTimeout time.Duration

	AuthStaticTokens []string
	AuthJWTSecret    string

	AvailabilityWindowDays  int
	AvailabilityStartHour   int
	AvailabilityEndHour     int
	AvailabilitySlotMinutes int
}

func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCHEDMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 3010)
	v.SetDefault("http.addr", "")
	v.SetDefault("http.request_timeout", "10s")
	v.SetDefault("shutdown.timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.timeout", "10s")
	v.SetDefault("auth.static_tokens", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("availability.window_days", 14)
	v.SetDefault("availability.start_hour", 9)
	v.SetDefault("availability.end_hour", 17)
	v.SetDefault("availability.slot_minutes", 60)

	_ = v.BindEnv("http.host", "SCHEDMATCH_HTTP_HOST", "HTTP_HOST")
	_ = v.BindEnv("http.port", "SCHEDMATCH_HTTP_PORT", "HTTP_PORT", "PORT")
	_ = v.BindEnv("http.addr", "SCHEDMATCH_HTTP_ADDR", "HTTP_ADDR")
	_ = v.BindEnv("http.request_timeout", "SCHEDMATCH_HTTP_REQUEST_TIMEOUT")
	_ = v.BindEnv("shutdown.timeout", "SCHEDMATCH_SHUTDOWN_TIMEOUT", "SHUTDOWN_TIMEOUT")
	_ = v.BindEnv("log.level", "SCHEDMATCH_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("database.url", "SCHEDMATCH_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("database.max_open_conns", "SCHEDMATCH_DATABASE_MAX_OPEN_CONNS")
	_ = v.BindEnv("database.max_idle_conns", "SCHEDMATCH_DATABASE_MAX_IDLE_CONNS")
	_ = v.BindEnv("database.conn_max_lifetime", "SCHEDMATCH_DATABASE_CONN_MAX_LIFETIME")
	_ = v.BindEnv("database.conn_max_idle_time", "SCHEDMATCH_DATABASE_CONN_MAX_IDLE_TIME")
	_ = v.BindEnv("backend.url", "SCHEDMATCH_BACKEND_URL", "BACKEND_URL")
	_ = v.BindEnv("backend.timeout", "SCHEDMATCH_BACKEND_TIMEOUT")
	_ = v.BindEnv("auth.static_tokens", "SCHEDMATCH_AUTH_STATIC_TOKENS", "STATIC_TOKENS")
	_ = v.BindEnv("auth.jwt_secret", "SCHEDMATCH_AUTH_JWT_SECRET", "JWT_HMAC_SECRET")
	_ = v.BindEnv("availability.window_days", "SCHEDMATCH_AVAILABILITY_WINDOW_DAYS")
	_ = v.BindEnv("availability.start_hour", "SCHEDMATCH_AVAILABILITY_START_HOUR")
	_ = v.BindEnv("availability.end_hour", "SCHEDMATCH_AVAILABILITY_END_HOUR")
	_ = v.BindEnv("availability.slot_minutes", "SCHEDMATCH_AVAILABILITY_SLOT_MINUTES")

	shutdownTimeout, err := time.ParseDuration(v.GetString("shutdown.timeout"))
	if err != nil {
		return Config{}, err
	}
	requestTimeout, err := time.ParseDuration(v.GetString("http.request_timeout"))
	if err != nil {
		return Config{}, err
	}
	backendTimeout, err := time.ParseDuration(v.GetString("backend.timeout"))
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := time.ParseDuration(v.GetString("database.conn_max_lifetime"))
	if err != nil {
		return Config{}, err
	}
	connMaxIdleTime, err := time.ParseDuration(v.GetString("database.conn_max_idle_time"))
	if err != nil {
		return Config{}, err
	}

	if addr := strings.TrimSpace(v.GetString("http.addr")); addr != "" {
		host, portStr, err := net.SplitHostPort(addr)
		if err == nil {
			if host != "" {
				v.Set("http.host", host)
			}
			if port, err := strconv.Atoi(portStr); err == nil {
				v.Set("http.port", port)
			}
		}
	}

	return Config{
		HTTPHost:                strings.TrimSpace(v.GetString("http.host")),
		HTTPPort:                v.GetInt("http.port"),
		ShutdownTimeout:         shutdownTimeout,
		RequestTimeout:          requestTimeout,
		LogLevel:                v.GetString("log.level"),
		DatabaseURL:             strings.TrimSpace(v.GetString("database.url")),
		DBMaxOpenConns:          v.GetInt("database.max_open_conns"),
		DBMaxIdleConns:          v.GetInt("database.max_idle_conns"),
		DBConnMaxLifetime:       connMaxLifetime,
		DBConnMaxIdleTime:       connMaxIdleTime,
		BackendURL:              strings.TrimSpace(v.GetString("backend.url")),
		BackendTimeout:          backendTimeout,
		AuthStaticTokens:        splitTokens(v.GetString("auth.static_tokens")),
		AuthJWTSecret:           strings.TrimSpace(v.GetString("auth.jwt_secret")),
		AvailabilityWindowDays:  v.GetInt("availability.window_days"),
		AvailabilityStartHour:   v.GetInt("availability.start_hour"),
		AvailabilityEndHour:     v.GetInt("availability.end_hour"),
		AvailabilitySlotMinutes: v.GetInt("availability.slot_minutes"),
	}, nil
}

func splitTokens(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
