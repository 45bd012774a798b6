package database

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time checks that both the real pool and the mock satisfy DBTX.
var _ DBTX = (*pgxpool.Pool)(nil)

func TestMockPool_SatisfiesDBTX(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	var db DBTX = mock
	assert.NotNil(t, db)
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := PostgresConfig{
		Host: "db", Port: 5433, User: "orders", Password: "p@ss/word",
		DBName: "waterquality", SSLMode: "require",
	}

	dsn := cfg.DSN()
	assert.Equal(t, "postgres://orders:p%40ss%2Fword@db:5433/waterquality?sslmode=require", dsn)

	parsed, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)
	assert.Equal(t, "p@ss/word", parsed.ConnConfig.Password)
	assert.Equal(t, uint16(5433), parsed.ConnConfig.Port)
}

func TestConnectBackoff_ExponentialWithJitter(t *testing.T) {
	for attempt := 0; attempt < 3; attempt++ {
		base := connectBaseWait << attempt
		lo := time.Duration(float64(base) * (1 - connectJitterFraction))
		hi := time.Duration(float64(base) * (1 + connectJitterFraction))

		for i := 0; i < 20; i++ {
			d := connectBackoff(attempt)
			assert.GreaterOrEqual(t, d, lo)
			assert.LessOrEqual(t, d, hi)
		}
	}
}

func TestConnectBackoff_NegativeAttempt(t *testing.T) {
	d := connectBackoff(-1)
	assert.LessOrEqual(t, d, time.Duration(float64(connectBaseWait)*(1+connectJitterFraction)))
}

func TestNewPostgresPool_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := &PostgresConfig{
		Host: "127.0.0.1", Port: 1, User: "u", Password: "p", DBName: "d",
		SSLMode: "disable", MaxConns: 1, ConnectAttempts: 2,
	}
	_, err := NewPostgresPool(ctx, cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to postgres")
}
