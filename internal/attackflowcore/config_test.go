package attackflowcore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "attack-flows", cfg.Kafka.Topic)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
listen_addr: ":9090"
db_path: /tmp/test-flows.db
kafka:
  broker: kafka:9092
  topic: custom-flows
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test-flows.db", cfg.DBPath)
	assert.Equal(t, "kafka:9092", cfg.Kafka.Broker)
	assert.Equal(t, "custom-flows", cfg.Kafka.Topic)
	// Unset fields keep their defaults.
	assert.Equal(t, "flows.bleve", cfg.IndexPath)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_TOPIC", "env-topic")
	t.Setenv("LISTEN_ADDR", ":7070")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "env-topic", cfg.Kafka.Topic)
	assert.Equal(t, ":7070", cfg.ListenAddr)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/does/not/exist.yaml")
	assert.Error(t, err)
}
