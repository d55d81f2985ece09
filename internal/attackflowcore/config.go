package attackflowcore

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration shared by the server and consumer
// binaries. Values come from an optional YAML file, overridden by
// environment variables.
type Config struct {
	ListenAddr string      `yaml:"listen_addr"`
	DBPath     string      `yaml:"db_path"`
	IndexPath  string      `yaml:"index_path"`
	Kafka      KafkaConfig `yaml:"kafka"`
}

// KafkaConfig configures the flow document ingest pipeline.
type KafkaConfig struct {
	Broker  string `yaml:"broker"`
	Topic   string `yaml:"topic"`
	GroupID string `yaml:"group_id"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr: ":8080",
		DBPath:     "flows.db",
		IndexPath:  "flows.bleve",
		Kafka: KafkaConfig{
			Broker:  "localhost:9092",
			Topic:   "attack-flows",
			GroupID: "attackflow-consumer-group",
		},
	}
}

// LoadConfig loads configuration from the YAML file at path (skipped when
// path is empty), then applies environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		c.ListenAddr = addr
	}
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		c.DBPath = dbPath
	}
	if indexPath := os.Getenv("INDEX_PATH"); indexPath != "" {
		c.IndexPath = indexPath
	}
	if broker := os.Getenv("KAFKA_BROKER"); broker != "" {
		c.Kafka.Broker = broker
	} else if c.Kafka.Broker == DefaultConfig().Kafka.Broker {
		log.Printf("KAFKA_BROKER environment variable not set, using default: %s", c.Kafka.Broker)
	}
	if topic := os.Getenv("KAFKA_TOPIC"); topic != "" {
		c.Kafka.Topic = topic
	}
	if group := os.Getenv("KAFKA_GROUP_ID"); group != "" {
		c.Kafka.GroupID = group
	}
}
