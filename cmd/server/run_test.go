package main

import (
	"context"
	"net"
	"testing"

	"bite/config"
	"bite/infra/kafka"
	entrywal "bite/infra/wal/entry"
	exitwal "bite/infra/wal/exit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublisher(t *testing.T) {
	cfg := config.Default().Events

	cfg.Driver = "none"
	pub, err := newPublisher(cfg)
	require.NoError(t, err)
	assert.Nil(t, pub)

	// kafka-go connects lazily, so no broker is needed here
	cfg.Driver = "kafka-go"
	pub, err = newPublisher(cfg)
	require.NoError(t, err)
	assert.IsType(t, &kafka.Producer{}, pub)
	require.NoError(t, pub.Close())

	cfg.Driver = "smoke-signals"
	_, err = newPublisher(cfg)
	assert.Error(t, err)
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Data.Dir = t.TempDir()
	cfg.GRPC.Addr = "127.0.0.1:0"
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Events.Driver = "none"
	cfg.Log.Level = "error"
	return cfg
}

// reopen fails while a previous run still holds the data dir.
func reopen(t *testing.T, cfg *config.Config) {
	t.Helper()
	out, err := exitwal.Open(cfg.OutboxDir())
	require.NoError(t, err)
	require.NoError(t, out.Close())

	w, err := entrywal.Open(entrywal.Config{Dir: cfg.EntryWALDir()})
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestRunFailsCleanlyWhenPortTaken(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := testConfig(t)
	cfg.GRPC.Addr = taken.Addr().String()

	err = run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
	reopen(t, cfg)

	cfg = testConfig(t)
	cfg.HTTP.Addr = taken.Addr().String()
	require.Error(t, run(context.Background(), cfg))
	reopen(t, cfg)
}

func TestRunFailsCleanlyOnBadDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Events.Driver = "smoke-signals"

	require.Error(t, run(context.Background(), cfg))
	reopen(t, cfg)
}

func TestRunStopsWithContext(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, run(ctx, cfg))
	reopen(t, cfg)
}
