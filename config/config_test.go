package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Default().Validate())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  dir: /var/lib/bite
snapshot:
  interval: 30s
events:
  driver: kafka-go
  brokers: [k1:9092, k2:9092]
ledger:
  require_known_service: true
log:
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/bite", cfg.Data.Dir)
	assert.Equal(t, 30*time.Second, cfg.Snapshot.Interval)
	assert.Equal(t, "kafka-go", cfg.Events.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Brokers)
	assert.True(t, cfg.Ledger.RequireKnownService)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched keys keep their defaults
	assert.Equal(t, ":50051", cfg.GRPC.Addr)
	assert.Equal(t, filepath.Join("/var/lib/bite", "wal_entry"), cfg.EntryWALDir())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BITE_GRPC_ADDR", ":6000")
	t.Setenv("BITE_EVENTS_DRIVER", "none")
	t.Setenv("BITE_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":6000", cfg.GRPC.Addr)
	assert.Equal(t, "none", cfg.Events.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"no data dir":    func(c *Config) { c.Data.Dir = "" },
		"bad segment":    func(c *Config) { c.WAL.SegmentSize = 0 },
		"bad snapshot":   func(c *Config) { c.Snapshot.Interval = 0 },
		"no grpc":        func(c *Config) { c.GRPC.Addr = "" },
		"unknown driver": func(c *Config) { c.Events.Driver = "carrier-pigeon" },
		"no brokers":     func(c *Config) { c.Events.Brokers = nil },
		"no topic":       func(c *Config) { c.Events.Topic = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	c := Default()
	c.Events.Driver = "none"
	c.Events.Brokers = nil
	assert.NoError(t, c.Validate())
}

func TestWriteThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bite.yaml")
	c := Default()
	c.HTTP.Addr = ":9999"
	require.NoError(t, c.Write(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", got.HTTP.Addr)
	assert.Equal(t, c.Events.Interval, got.Events.Interval)
}
