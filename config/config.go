package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"matchbook/domain/orderbook"
)

const (
	DriverSarama  = "sarama"
	DriverKafkaGo = "kafka-go"
)

// Config holds every setting of cmd/engine. Zero fields take the
// defaults of Default.
type Config struct {
	Engine struct {
		OrderPoolSize int  `yaml:"order_pool_size"`
		QueuePoolSize int  `yaml:"queue_pool_size"`
		StartHalted   bool `yaml:"start_halted"`
	} `yaml:"engine"`

	Journal struct {
		Dir             string        `yaml:"dir"`
		SegmentSize     int64         `yaml:"segment_size"`
		SegmentDuration time.Duration `yaml:"segment_duration"`
		SyncEveryWrite  bool          `yaml:"sync_every_write"`
	} `yaml:"journal"`

	Outbox struct {
		Dir    string `yaml:"dir"`
		NoSync bool   `yaml:"no_sync"`
	} `yaml:"outbox"`

	Broadcaster struct {
		Enabled      bool          `yaml:"enabled"`
		Driver       string        `yaml:"driver"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		Interval     time.Duration `yaml:"interval"`
		BatchSize    int           `yaml:"batch_size"`
		MaxRetries   uint32        `yaml:"max_retries"`
		CleanupEvery int           `yaml:"cleanup_every"`
	} `yaml:"broadcaster"`

	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// Load reads path, applies defaults and environment overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	c.applyDefaults()
	overrideWithEnv(&c)

	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Engine.OrderPoolSize == 0 {
		c.Engine.OrderPoolSize = orderbook.DefaultOrderPoolSize
	}
	if c.Engine.QueuePoolSize == 0 {
		c.Engine.QueuePoolSize = orderbook.DefaultQueuePoolSize
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = "./data/journal"
	}
	if c.Journal.SegmentSize == 0 {
		c.Journal.SegmentSize = 64 << 20
	}
	if c.Outbox.Dir == "" {
		c.Outbox.Dir = "./data/outbox"
	}
	if c.Broadcaster.Driver == "" {
		c.Broadcaster.Driver = DriverSarama
	}
	if c.Broadcaster.Topic == "" {
		c.Broadcaster.Topic = "matchbook.events"
	}
	if c.Broadcaster.Interval == 0 {
		c.Broadcaster.Interval = 250 * time.Millisecond
	}
	if c.Broadcaster.BatchSize == 0 {
		c.Broadcaster.BatchSize = 512
	}
	if c.Broadcaster.MaxRetries == 0 {
		c.Broadcaster.MaxRetries = 5
	}
	if c.Broadcaster.CleanupEvery == 0 {
		c.Broadcaster.CleanupEvery = 40
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// overrideWithEnv lets deployments point at brokers without editing the
// file.
func overrideWithEnv(c *Config) {
	if v := os.Getenv("MATCHBOOK_BROKERS"); v != "" {
		c.Broadcaster.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("MATCHBOOK_TOPIC"); v != "" {
		c.Broadcaster.Topic = v
	}
	if v := os.Getenv("MATCHBOOK_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) Validate() error {
	if c.Engine.OrderPoolSize <= 0 || c.Engine.QueuePoolSize <= 0 {
		return errors.Newf("pool sizes must be positive (orders=%d, queues=%d)",
			c.Engine.OrderPoolSize, c.Engine.QueuePoolSize)
	}
	if c.Journal.SegmentSize < 0 {
		return errors.Newf("journal segment size must not be negative: %d", c.Journal.SegmentSize)
	}
	if c.Journal.Dir == c.Outbox.Dir {
		return errors.Newf("journal and outbox need separate directories: %s", c.Journal.Dir)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Newf("unknown log level %q", c.Log.Level)
	}

	if !c.Broadcaster.Enabled {
		return nil
	}
	switch c.Broadcaster.Driver {
	case DriverSarama, DriverKafkaGo:
	default:
		return errors.Newf("unknown broadcaster driver %q", c.Broadcaster.Driver)
	}
	if len(c.Broadcaster.Brokers) == 0 {
		return errors.New("broadcaster enabled without brokers")
	}
	if c.Broadcaster.BatchSize < 0 {
		return errors.Newf("batch size must not be negative: %d", c.Broadcaster.BatchSize)
	}
	return nil
}
