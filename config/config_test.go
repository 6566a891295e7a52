package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	c, err := Parse([]byte("log:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, 16384, c.Engine.OrderPoolSize)
	assert.Equal(t, "./data/journal", c.Journal.Dir)
	assert.Equal(t, int64(64<<20), c.Journal.SegmentSize)
	assert.Equal(t, DriverSarama, c.Broadcaster.Driver)
	assert.Equal(t, 250*time.Millisecond, c.Broadcaster.Interval)
	assert.Equal(t, "debug", c.Log.Level)
	assert.False(t, c.Broadcaster.Enabled)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  order_pool_size: 1024
  start_halted: true
journal:
  dir: /var/lib/matchbook/journal
  segment_duration: 1m
  sync_every_write: true
outbox:
  dir: /var/lib/matchbook/outbox
broadcaster:
  enabled: true
  driver: kafka-go
  brokers: [kafka-1:9092, kafka-2:9092]
  interval: 100ms
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1024, c.Engine.OrderPoolSize)
	assert.Equal(t, 16384, c.Engine.QueuePoolSize)
	assert.True(t, c.Engine.StartHalted)
	assert.Equal(t, time.Minute, c.Journal.SegmentDuration)
	assert.True(t, c.Journal.SyncEveryWrite)
	assert.Equal(t, DriverKafkaGo, c.Broadcaster.Driver)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, c.Broadcaster.Brokers)
	assert.Equal(t, 100*time.Millisecond, c.Broadcaster.Interval)
}

func TestParse_EnvOverride(t *testing.T) {
	t.Setenv("MATCHBOOK_BROKERS", "a:9092,b:9092")
	c, err := Parse([]byte("broadcaster:\n  enabled: true\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Broadcaster.Brokers)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"negative pool":  "engine:\n  order_pool_size: -1\n",
		"shared dirs":    "journal:\n  dir: /x\noutbox:\n  dir: /x\n",
		"bad level":      "log:\n  level: loud\n",
		"bad driver":     "broadcaster:\n  enabled: true\n  driver: nats\n  brokers: [k:9092]\n",
		"no brokers":     "broadcaster:\n  enabled: true\n",
		"malformed yaml": "engine: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
