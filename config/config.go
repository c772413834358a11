// Package config loads daemon settings from a YAML file, BITE_* environment
// variables and built-in defaults, in that order of precedence (env wins).
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "BITE"

type Config struct {
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	WAL      WALConfig      `yaml:"wal" mapstructure:"wal"`
	Snapshot SnapshotConfig `yaml:"snapshot" mapstructure:"snapshot"`
	GRPC     ListenConfig   `yaml:"grpc" mapstructure:"grpc"`
	HTTP     ListenConfig   `yaml:"http" mapstructure:"http"`
	Events   EventsConfig   `yaml:"events" mapstructure:"events"`
	Ledger   LedgerConfig   `yaml:"ledger" mapstructure:"ledger"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DataConfig holds the root directory for every persisted file.
type DataConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

type WALConfig struct {
	SegmentSize     int64 `yaml:"segment_size" mapstructure:"segment_size"`
	SyncEveryAppend bool  `yaml:"sync_every_append" mapstructure:"sync_every_append"`
}

type SnapshotConfig struct {
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

type ListenConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// EventsConfig selects how outbox events reach Kafka.
type EventsConfig struct {
	// Driver is "sarama", "kafka-go" or "none".
	Driver    string        `yaml:"driver" mapstructure:"driver"`
	Brokers   []string      `yaml:"brokers" mapstructure:"brokers"`
	Topic     string        `yaml:"topic" mapstructure:"topic"`
	Interval  time.Duration `yaml:"interval" mapstructure:"interval"`
	BatchSize int           `yaml:"batch_size" mapstructure:"batch_size"`
}

type LedgerConfig struct {
	RequireKnownService bool `yaml:"require_known_service" mapstructure:"require_known_service"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

func Default() *Config {
	return &Config{
		Data: DataConfig{Dir: "./data"},
		WAL: WALConfig{
			SegmentSize:     2 * 1024 * 1024,
			SyncEveryAppend: true,
		},
		Snapshot: SnapshotConfig{Interval: time.Minute},
		GRPC:     ListenConfig{Addr: ":50051"},
		HTTP:     ListenConfig{Addr: ":8080"},
		Events: EventsConfig{
			Driver:    "sarama",
			Brokers:   []string{"localhost:9092"},
			Topic:     "bite.marketplace.events",
			Interval:  250 * time.Millisecond,
			BatchSize: 256,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

func (c *Config) EntryWALDir() string { return filepath.Join(c.Data.Dir, "wal_entry") }
func (c *Config) OutboxDir() string   { return filepath.Join(c.Data.Dir, "wal_exit") }
func (c *Config) SnapshotDir() string { return filepath.Join(c.Data.Dir, "snapshot") }

// Load reads path (optional) over the defaults, then applies BITE_*
// environment overrides such as BITE_EVENTS_BROKERS=a:9092,b:9092.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key, which is also what lets AutomaticEnv
// reach keys that appear in no file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("data.dir", d.Data.Dir)
	v.SetDefault("wal.segment_size", d.WAL.SegmentSize)
	v.SetDefault("wal.sync_every_append", d.WAL.SyncEveryAppend)
	v.SetDefault("snapshot.interval", d.Snapshot.Interval)
	v.SetDefault("grpc.addr", d.GRPC.Addr)
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("events.driver", d.Events.Driver)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
	v.SetDefault("events.interval", d.Events.Interval)
	v.SetDefault("events.batch_size", d.Events.BatchSize)
	v.SetDefault("ledger.require_known_service", d.Ledger.RequireKnownService)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return errors.New("data.dir is required")
	}
	if c.WAL.SegmentSize <= 0 {
		return errors.Newf("wal.segment_size must be positive, got %d", c.WAL.SegmentSize)
	}
	if c.Snapshot.Interval <= 0 {
		return errors.Newf("snapshot.interval must be positive, got %s", c.Snapshot.Interval)
	}
	if c.GRPC.Addr == "" {
		return errors.New("grpc.addr is required")
	}
	switch c.Events.Driver {
	case "none":
	case "sarama", "kafka-go":
		if len(c.Events.Brokers) == 0 {
			return errors.New("events.brokers is required")
		}
		if c.Events.Topic == "" {
			return errors.New("events.topic is required")
		}
		if c.Events.Interval <= 0 {
			return errors.Newf("events.interval must be positive, got %s", c.Events.Interval)
		}
	default:
		return errors.Newf("unknown events.driver %q", c.Events.Driver)
	}
	return nil
}

// Write saves c as YAML, creating parent directories.
func (c *Config) Write(path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
