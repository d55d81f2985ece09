package attackflowcore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/boltdb/bolt"
)

const flowBucket = "flows"

// ErrFlowNotFound is returned by GetFlow when no flow exists under the
// requested id. Callers branch on it with errors.Is.
var ErrFlowNotFound = errors.New("flow not found")

// StoredFlow wraps a raw attack flow document in the store. Only the input
// document is persisted; graphs are re-parsed on read, so a parse stays a
// pure transformation of its document.
type StoredFlow struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Format   FlowFormat      `json:"format"`
	StoredAt time.Time       `json:"stored_at"`
	Document json.RawMessage `json:"document"`
}

// FlowSummary is the listing view of a stored flow.
type FlowSummary struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Format      FlowFormat `json:"format"`
	ActionCount int        `json:"action_count"`
	StoredAt    time.Time  `json:"stored_at"`
}

// FlowStore persists raw attack flow documents in BoltDB.
type FlowStore struct {
	db *bolt.DB
}

// NewFlowStore opens (or creates) the store at dbPath.
func NewFlowStore(dbPath string) (*FlowStore, error) {
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open flow database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(flowBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create flow bucket: %w", err)
	}

	return &FlowStore{db: db}, nil
}

// SaveFlow stores a raw document under the given id. The document must
// already have parsed successfully; graph is used for summary fields only.
func (fs *FlowStore) SaveFlow(id string, graph *Graph, document []byte) error {
	stored := StoredFlow{
		ID:       id,
		Name:     graph.Metadata().Name,
		Format:   graph.Metadata().Format,
		StoredAt: time.Now().UTC(),
		Document: json.RawMessage(document),
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal stored flow: %w", err)
	}

	return fs.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(flowBucket))
		if bucket == nil {
			return fmt.Errorf("flow bucket not found")
		}
		if err := bucket.Put([]byte(id), data); err != nil {
			return fmt.Errorf("failed to save flow: %w", err)
		}
		return nil
	})
}

// GetFlow retrieves a stored flow and re-parses its document.
func (fs *FlowStore) GetFlow(id string) (*StoredFlow, *Graph, error) {
	var stored StoredFlow

	err := fs.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(flowBucket))
		if bucket == nil {
			return fmt.Errorf("flow bucket not found")
		}
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("flow %s: %w", id, ErrFlowNotFound)
		}
		return json.Unmarshal(data, &stored)
	})
	if err != nil {
		return nil, nil, err
	}

	graph, err := ParseDocument(stored.Document)
	if err != nil {
		return nil, nil, fmt.Errorf("stored flow %s no longer parses: %w", id, err)
	}
	return &stored, graph, nil
}

// ListFlows returns summaries of stored flows, optionally filtered by a
// case-insensitive name substring. A limit of 0 means no limit.
func (fs *FlowStore) ListFlows(name string, limit int) ([]FlowSummary, error) {
	var summaries []FlowSummary

	err := fs.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(flowBucket))
		if bucket == nil {
			return fmt.Errorf("flow bucket not found")
		}

		cursor := bucket.Cursor()
		for key, value := cursor.First(); key != nil; key, value = cursor.Next() {
			if limit > 0 && len(summaries) >= limit {
				break
			}

			var stored StoredFlow
			if err := json.Unmarshal(value, &stored); err != nil {
				log.Printf("Warning: failed to unmarshal stored flow %s: %v", string(key), err)
				continue
			}

			if name != "" && !strings.Contains(strings.ToLower(stored.Name), strings.ToLower(name)) {
				continue
			}

			summary := FlowSummary{
				ID:       stored.ID,
				Name:     stored.Name,
				Format:   stored.Format,
				StoredAt: stored.StoredAt,
			}
			if graph, err := ParseDocument(stored.Document); err == nil {
				summary.ActionCount = graph.Metadata().ActionCount
			}
			summaries = append(summaries, summary)
		}
		return nil
	})

	return summaries, err
}

// DeleteFlow removes a stored flow. Deleting an absent id is not an error.
func (fs *FlowStore) DeleteFlow(id string) error {
	return fs.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(flowBucket))
		if bucket == nil {
			return fmt.Errorf("flow bucket not found")
		}
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection.
func (fs *FlowStore) Close() error {
	if fs.db != nil {
		return fs.db.Close()
	}
	return nil
}
