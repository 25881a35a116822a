package internal

import (
	"chat-relay/errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverBadger   = "badger"

	BusDriverRedis  = "redis"
	BusDriverNats   = "nats"
	BusDriverMemory = "memory"
)

type Config struct {
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=3000"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	StoreDriver    string `env:"STORE_DRIVER,default=postgres"`
	DatabaseURL    string `env:"DATABASE_URL"`
	DBHost         string `env:"DB_HOST"`
	DBPort         int    `env:"DB_PORT,default=5432"`
	DBName         string `env:"DB_NAME"`
	DBUser         string `env:"DB_USER"`
	DBPassword     string `env:"DB_PASSWORD"`
	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data/messages"`

	BusDriver string `env:"BUS_DRIVER,default=redis"`
	RedisHost string `env:"REDIS_HOST,default=localhost"`
	RedisPort int    `env:"REDIS_PORT,default=6379"`
	NatsURL   string `env:"NATS_URL,default=nats://localhost:4222"`

	ConnectionBufferSize int    `env:"CONNECTION_BUFFER_SIZE,default=256"`
	MaxMessageSize       int    `env:"MAX_MESSAGE_SIZE,default=4096"`
	MaxContentLength     int    `env:"MAX_CONTENT_LENGTH,default=2000"`
	AllowedOrigins       string `env:"ALLOWED_ORIGINS,default=*"`
	JwtSecret            string `env:"JWT_SECRET"`
	HistoryLimit         int    `env:"HISTORY_LIMIT,default=50"`

	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) RedisAddr() string {
	return net.JoinHostPort(c.RedisHost, strconv.Itoa(c.RedisPort))
}

// Origins splits ALLOWED_ORIGINS. A "*" entry allows every origin.
func (c Config) Origins() []string {
	origins := lo.Map(strings.Split(c.AllowedOrigins, ","), func(o string, _ int) string {
		return strings.TrimSpace(o)
	})
	return lo.Compact(origins)
}

// PostgresDSN returns DATABASE_URL, or a URL built from the DB_* variables.
func (c Config) PostgresDSN() (string, error) {
	if c.DatabaseURL != "" {
		return c.DatabaseURL, nil
	}
	if c.DBHost == "" || c.DBName == "" {
		return "", fmt.Errorf("%w: DATABASE_URL or DB_HOST and DB_NAME", errors.ErrMissingConfigItem)
	}
	dsn := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	if c.DBUser != "" {
		dsn.User = url.UserPassword(c.DBUser, c.DBPassword)
	}
	return dsn.String(), nil
}
