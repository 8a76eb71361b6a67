package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/application-intake/internal/domain"
	"github.com/jsamuelsen/application-intake/internal/platform/config"
)

func TestOpenStore_Memory(t *testing.T) {
	store, err := openStore(context.Background(), &config.StoreConfig{Driver: config.StoreDriverMemory}, 3)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	assert.Equal(t, "memory", store.Name())

	limit, err := store.ApplicationsLimit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, limit)
}

func TestOpenStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := openStore(context.Background(), &config.StoreConfig{
		Driver: config.StoreDriverRedis,
		Redis:  config.RedisConfig{Addr: mr.Addr(), Prefix: "test"},
	}, 2)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	assert.Equal(t, "redis", store.Name())
	require.NoError(t, store.Check(context.Background()))

	sub := domain.NewSubmission("sub-1", "Ada", "ada@example.com", time.Now().UTC())
	before, err := store.Create(context.Background(), sub, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, before)
}

func TestOpenStore_Errors(t *testing.T) {
	tests := map[string]*config.StoreConfig{
		"unknown driver":     {Driver: "mysql"},
		"postgres unreached": {Driver: config.StoreDriverPostgres, Postgres: config.PostgresConfig{DSN: "postgres://intake@127.0.0.1:1/intake?sslmode=disable&connect_timeout=1"}},
		"redis unreached":    {Driver: config.StoreDriverRedis, Redis: config.RedisConfig{Addr: "127.0.0.1:1"}},
	}

	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			_, err := openStore(ctx, cfg, 0)
			require.Error(t, err)
		})
	}
}

func TestNewNonce(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	configured, err := newNonce(&config.SecurityConfig{
		TokenSecret:   "0123456789abcdef0123456789abcdef",
		TokenLifetime: time.Hour,
	}, logger)
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	again, err := newNonce(&config.SecurityConfig{
		TokenSecret:   "0123456789abcdef0123456789abcdef",
		TokenLifetime: time.Hour,
	}, logger)
	require.NoError(t, err)

	ctx := context.Background()
	assert.True(t, again.Validate(ctx, configured.Issue(ctx)), "same secret shares tokens")

	generated, err := newNonce(&config.SecurityConfig{TokenLifetime: time.Hour}, logger)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "token_secret is not set")
	assert.False(t, generated.Validate(ctx, configured.Issue(ctx)))
}
