package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets map[string]map[string]string

func (f fakeSecrets) GetSecretMap(_ context.Context, name string) (map[string]string, error) {
	if m, ok := f[name]; ok {
		return m, nil
	}
	return nil, errors.New("secret not found")
}

func setDatabaseEnv(t *testing.T) {
	t.Setenv("POSTGRES_USER", "store")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "storefront")
	t.Setenv("POSTGRES_HOST", "localhost")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setDatabaseEnv(t)

	cfg, err := loadConfig(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "8085", cfg.Port)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, 15*time.Minute, cfg.ReservationTTL)
	assert.Equal(t, time.Duration(0), cfg.CleanupInterval)
	assert.True(t, cfg.CleanupCancelExpiredOrders)
	assert.False(t, cfg.ProtectAdminRoutes)
	assert.Equal(t, "NT", cfg.OrderNumberPrefix)
	assert.Equal(t, "50", cfg.ShippingFee.String())
	assert.Equal(t, "1000", cfg.FreeShippingThreshold.String())
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 100, cfg.RateLimitPerMinute)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setDatabaseEnv(t)
	t.Setenv("RESERVATION_TTL", "30m")
	t.Setenv("CLEANUP_INTERVAL", "1m")
	t.Setenv("CLEANUP_CANCEL_EXPIRED_ORDERS", "false")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("SHIPPING_FEE", "75.50")
	t.Setenv("PROTECT_ADMIN_ROUTES", "true")
	t.Setenv("CRON_SECRET", "cron")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.example.in,https://admin.example.in")

	cfg, err := loadConfig(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://shop.example.in", "https://admin.example.in"}, cfg.CORSOrigins)
	assert.Equal(t, 30*time.Minute, cfg.ReservationTTL)
	assert.Equal(t, time.Minute, cfg.CleanupInterval)
	assert.False(t, cfg.CleanupCancelExpiredOrders)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "75.5", cfg.ShippingFee.String())
	assert.True(t, cfg.ProtectAdminRoutes)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Run("missing database", func(t *testing.T) {
		t.Setenv("POSTGRES_USER", "")
		t.Setenv("POSTGRES_PASSWORD", "")
		t.Setenv("POSTGRES_DB", "")
		t.Setenv("POSTGRES_HOST", "")
		_, err := loadConfig(context.Background(), nil)
		assert.EqualError(t, err, "database config incomplete")
	})

	t.Run("bad duration", func(t *testing.T) {
		setDatabaseEnv(t)
		t.Setenv("RESERVATION_TTL", "soon")
		_, err := loadConfig(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "RESERVATION_TTL")
	})

	t.Run("negative fee", func(t *testing.T) {
		setDatabaseEnv(t)
		t.Setenv("SHIPPING_FEE", "-1")
		_, err := loadConfig(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SHIPPING_FEE")
	})

	t.Run("protected without credentials", func(t *testing.T) {
		setDatabaseEnv(t)
		t.Setenv("PROTECT_ADMIN_ROUTES", "true")
		t.Setenv("CRON_SECRET", "")
		t.Setenv("JWT_SECRET", "")
		t.Setenv("ADMIN_USERNAME", "")
		t.Setenv("ADMIN_PASSWORD", "")
		_, err := loadConfig(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PROTECT_ADMIN_ROUTES")
	})
}

func TestLoadConfig_SecretsOverride(t *testing.T) {
	t.Setenv("POSTGRES_USER", "")
	t.Setenv("POSTGRES_PASSWORD", "")
	t.Setenv("POSTGRES_DB", "storefront")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("CRON_SECRET", "env-secret")

	secrets := fakeSecrets{
		dbSecretName:    {"POSTGRES_USER": "vault-user", "POSTGRES_PASSWORD": "vault-pass"},
		adminSecretName: {"CRON_SECRET": "vault-cron"},
	}
	cfg, err := loadConfig(context.Background(), secrets)
	require.NoError(t, err)

	assert.Equal(t, "vault-user", cfg.Database.User)
	assert.Equal(t, "vault-pass", cfg.Database.Password)
	assert.Equal(t, "storefront", cfg.Database.Name)
	assert.Equal(t, "vault-cron", cfg.Admin.CronSecret)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a ,, b "))
}
