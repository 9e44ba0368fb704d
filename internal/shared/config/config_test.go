package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:             EnvProduction,
		StoreDriver:     DriverSQLite,
		SQLitePath:      "pdv.db",
		SyncInterval:    30 * time.Second,
		SyncBatchSize:   50,
		ProbeTimeout:    3 * time.Second,
		ProbeTargets:    []string{"tcp://1.1.1.1:53"},
		TransmitTimeout: 15 * time.Second,
		Transport:       TransportRedpanda,
		RedpandaBrokers: "localhost:9092",
		RelayTopic:      "fiscal-documents",
		IssuerCNPJ:      "12345678000195",
		IssuerUF:        "35",
		DocumentSeries:  1,
		SigningKey:      "key",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:   "unknown store driver",
			mutate: func(c *Config) { c.StoreDriver = "mysql" },
			errMsg: `PDV_STORE_DRIVER must be "sqlite" or "postgres", got "mysql"`,
		},
		{
			name:   "missing sqlite path",
			mutate: func(c *Config) { c.SQLitePath = "" },
			errMsg: "PDV_SQLITE_PATH is required",
		},
		{
			name: "postgres without database URL",
			mutate: func(c *Config) {
				c.StoreDriver = DriverPostgres
				c.DatabaseURL = ""
			},
			errMsg: "PDV_DATABASE_URL is required",
		},
		{
			name:   "missing Redpanda brokers",
			mutate: func(c *Config) { c.RedpandaBrokers = "" },
			errMsg: "PDV_REDPANDA_BROKERS is required",
		},
		{
			name: "http transport without authority URL",
			mutate: func(c *Config) {
				c.Transport = TransportHTTP
				c.AuthorityURL = ""
			},
			errMsg: "PDV_AUTHORITY_URL is required",
		},
		{
			name:   "zero batch size",
			mutate: func(c *Config) { c.SyncBatchSize = 0 },
			errMsg: "PDV_SYNC_BATCH_SIZE must be positive",
		},
		{
			name:   "short CNPJ",
			mutate: func(c *Config) { c.IssuerCNPJ = "1234" },
			errMsg: "PDV_ISSUER_CNPJ must be 14 digits",
		},
		{
			name:   "series out of range",
			mutate: func(c *Config) { c.DocumentSeries = 1000 },
			errMsg: "PDV_DOCUMENT_SERIES must be between 0 and 999",
		},
		{
			name:   "degraded commit in production",
			mutate: func(c *Config) { c.DegradedCommit = true },
			errMsg: "PDV_DEGRADED_COMMIT cannot be enabled in production",
		},
		{
			name: "degraded commit outside production",
			mutate: func(c *Config) {
				c.DegradedCommit = true
				c.Env = "homologation"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Equal(t, tt.errMsg, err.Error())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, EnvProduction, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, 30*time.Second, cfg.SyncInterval)
	assert.Equal(t, 50, cfg.SyncBatchSize)
	assert.Equal(t, []string{"https://www.google.com", "tcp://1.1.1.1:53"}, cfg.ProbeTargets)
	assert.Equal(t, TransportRedpanda, cfg.Transport)
	assert.False(t, cfg.DegradedCommit)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PDV_LOG_LEVEL", "debug")
	t.Setenv("PDV_PORT", "9090")
	t.Setenv("PDV_SYNC_INTERVAL", "5s")
	t.Setenv("PDV_PROBE_TARGETS", " tcp://10.0.0.1:443 , ,https://example.com ")
	t.Setenv("PDV_TRANSPORT", "http")
	t.Setenv("PDV_ENV", "homologation")
	t.Setenv("PDV_DEGRADED_COMMIT", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.SyncInterval)
	assert.Equal(t, []string{"tcp://10.0.0.1:443", "https://example.com"}, cfg.ProbeTargets)
	assert.Equal(t, TransportHTTP, cfg.Transport)
	assert.True(t, cfg.DegradedCommit)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("PDV_SYNC_BATCH_SIZE", "lots")
	t.Setenv("PDV_PROBE_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.SyncBatchSize)
	assert.Equal(t, 3*time.Second, cfg.ProbeTimeout)
}

func TestLoad_DegradedCommitRefusedInProduction(t *testing.T) {
	t.Setenv("PDV_DEGRADED_COMMIT", "true")

	_, err := Load()
	require.Error(t, err)
}
