package attackflowcore

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// FlowIngester consumes raw attack flow documents from Kafka, parses them,
// stores the originals and indexes the parsed graphs.
type FlowIngester struct {
	store  *FlowStore
	index  bleve.Index
	reader *kafka.Reader
}

// NewFlowIngester wires a Kafka reader against the given store and index.
func NewFlowIngester(cfg KafkaConfig, store *FlowStore, index bleve.Index) *FlowIngester {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{cfg.Broker},
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    10e3, // 10KB
		MaxBytes:    10e6, // 10MB
		MaxAttempts: 10,
		Dialer: &kafka.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
		},
	})

	return &FlowIngester{
		store:  store,
		index:  index,
		reader: reader,
	}
}

// Run consumes until the context is cancelled. A document that fails to
// parse is logged and skipped; the consumer keeps going.
func (fi *FlowIngester) Run(ctx context.Context) {
	log.Printf("Starting flow consumer for topic %s on broker %s",
		fi.reader.Config().Topic, fi.reader.Config().Brokers[0])

	for {
		m, err := fi.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Println("Flow consumer stopped.")
				return
			}
			log.Printf("Error reading message from Kafka: %v", err)
			continue
		}

		id := string(m.Key)
		if id == "" {
			id = uuid.NewString()
		}

		graph, err := ParseDocument(m.Value)
		if err != nil {
			log.Printf("Failed to parse flow document %s: %v", id, err)
			continue
		}

		if err := fi.store.SaveFlow(id, graph, m.Value); err != nil {
			log.Printf("Failed to store flow %s: %v", id, err)
			continue
		}
		if err := IndexFlow(fi.index, id, graph); err != nil {
			log.Printf("Failed to index flow %s: %v", id, err)
			continue
		}

		log.Printf("Ingested flow %s (%q, %d actions, %d edges)",
			id, graph.Metadata().Name, len(graph.Nodes()), len(graph.Edges()))
	}
}

// Close closes the Kafka reader. The store and index are owned by the
// caller.
func (fi *FlowIngester) Close() error {
	if fi.reader != nil {
		return fi.reader.Close()
	}
	return nil
}
