package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"attackflow/internal/attackflowcore"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	dataDir := flag.String("dir", "flows", "directory of flow documents to publish")
	flag.Parse()

	cfg, err := attackflowcore.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Println("Starting Attack Flow Producer")

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Broker),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	defer writer.Close()

	published := publishDirectory(writer, *dataDir)
	log.Printf("✅ Published %d flow documents from %s", published, *dataDir)
}

func publishDirectory(writer *kafka.Writer, dirPath string) int {
	files, err := os.ReadDir(dirPath)
	if err != nil {
		log.Fatalf("Failed to read directory %s: %v", dirPath, err)
	}

	published := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		fullPath := filepath.Join(dirPath, file.Name())
		data, err := os.ReadFile(fullPath)
		if err != nil {
			log.Printf("❌ Error reading %s: %v", fullPath, err)
			continue
		}

		// Reject documents that will not parse before they hit the topic.
		if !json.Valid(data) {
			log.Printf("❌ Skipping %s: not valid JSON", fullPath)
			continue
		}
		if _, err := attackflowcore.ParseDocument(data); err != nil {
			log.Printf("❌ Skipping %s: %v", fullPath, err)
			continue
		}

		msg := kafka.Message{
			Key:   []byte(uuid.NewString()),
			Value: data,
		}
		if err := writer.WriteMessages(context.Background(), msg); err != nil {
			log.Printf("❌ Error publishing %s: %v", fullPath, err)
			continue
		}

		log.Printf("📄 Published %s", file.Name())
		published++
	}
	return published
}
