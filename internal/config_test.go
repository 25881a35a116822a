package internal

import (
	"chat-relay/errors"
	"testing"

	env "github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)
	var config Config

	_, err := env.UnmarshalFromEnviron(&config)

	req.NoError(err)
	req.Equal("0.0.0.0:3000", config.Addr())
	req.Equal("localhost:6379", config.RedisAddr())
	req.Equal(StoreDriverPostgres, config.StoreDriver)
	req.Equal(BusDriverRedis, config.BusDriver)
	req.Equal(256, config.ConnectionBufferSize)
	req.Equal(2000, config.MaxContentLength)
	req.Equal([]string{"*"}, config.Origins())
}

func TestConfig_Origins_Are_Trimmed(t *testing.T) {
	req := require.New(t)
	config := Config{AllowedOrigins: " https://a.example , https://b.example,"}

	req.Equal([]string{"https://a.example", "https://b.example"}, config.Origins())
}

func TestConfig_PostgresDSN(t *testing.T) {
	req := require.New(t)

	dsn, err := Config{DatabaseURL: "postgres://u:p@db/chat"}.PostgresDSN()
	req.NoError(err)
	req.Equal("postgres://u:p@db/chat", dsn)

	dsn, err = Config{DBHost: "db", DBPort: 5432, DBName: "chat", DBUser: "relay", DBPassword: "s3cr:t"}.PostgresDSN()
	req.NoError(err)
	req.Equal("postgres://relay:s3cr%3At@db:5432/chat?sslmode=disable", dsn)

	_, err = Config{}.PostgresDSN()
	req.ErrorIs(err, errors.ErrMissingConfigItem)
}
