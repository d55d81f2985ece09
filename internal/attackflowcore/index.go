package attackflowcore

import (
	"fmt"
	"log"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// FlowSearchDocument is the document stored in the Bleve index for each
// parsed flow.
type FlowSearchDocument struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Techniques  []string `json:"techniques"`
	Tactics     []string `json:"tactics"`
	Actions     []string `json:"actions"`
	Format      string   `json:"format"`
	ActionCount int      `json:"action_count"`
	Type        string   `json:"type"`
}

// FlowSearchResult is a single hit returned to API callers.
type FlowSearchResult struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// CreateFlowIndexMapping builds the index mapping for flow search
// documents: keyword fields for exact technique/tactic matching, text
// fields for names and descriptions.
func CreateFlowIndexMapping() *mapping.IndexMappingImpl {
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	textFieldMapping := bleve.NewTextFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("name", textFieldMapping)
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	docMapping.AddFieldMappingsAt("techniques", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("tactics", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("actions", textFieldMapping)
	docMapping.AddFieldMappingsAt("format", keywordFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("flow", docMapping)

	return indexMapping
}

// OpenFlowIndex opens the index at indexPath, creating it with the flow
// mapping when it does not exist yet.
func OpenFlowIndex(indexPath string) (bleve.Index, error) {
	index, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		log.Printf("Creating new Bleve index at %s...", indexPath)
		return bleve.New(indexPath, CreateFlowIndexMapping())
	}
	return index, err
}

// NewFlowSearchDocument projects a parsed graph into its search document.
func NewFlowSearchDocument(graph *Graph) FlowSearchDocument {
	meta := graph.Metadata()
	doc := FlowSearchDocument{
		Name:        meta.Name,
		Description: meta.Description,
		Format:      string(meta.Format),
		ActionCount: meta.ActionCount,
		Type:        "flow",
	}

	seenTechniques := make(map[string]bool)
	for _, node := range graph.Nodes() {
		doc.Actions = append(doc.Actions, node.Name)
		if node.TechniqueID != "" && !seenTechniques[node.TechniqueID] {
			seenTechniques[node.TechniqueID] = true
			doc.Techniques = append(doc.Techniques, node.TechniqueID)
		}
	}
	doc.Tactics = graph.TacticNames()

	return doc
}

// IndexFlow indexes a single parsed flow under the given id.
func IndexFlow(index bleve.Index, id string, graph *Graph) error {
	return index.Index(id, NewFlowSearchDocument(graph))
}

// IndexFlows indexes several flows in batches.
func IndexFlows(index bleve.Index, flows map[string]*Graph) error {
	batch := index.NewBatch()
	count := 0

	for id, graph := range flows {
		if err := batch.Index(id, NewFlowSearchDocument(graph)); err != nil {
			return fmt.Errorf("failed to add flow %s to batch: %w", id, err)
		}
		count++

		if count%10 == 0 {
			if err := index.Batch(batch); err != nil {
				return fmt.Errorf("failed to index batch: %w", err)
			}
			batch = index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("failed to index final batch: %w", err)
		}
	}

	log.Printf("Indexed %d flows.", count)
	return nil
}

// SearchFlows runs a match query over the index and returns up to size
// results.
func SearchFlows(index bleve.Index, queryStr string, size int) ([]FlowSearchResult, error) {
	query := bleve.NewMatchQuery(queryStr)
	searchRequest := bleve.NewSearchRequest(query)
	searchRequest.Fields = []string{"name"}
	searchRequest.Size = size

	searchResults, err := index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	var results []FlowSearchResult
	for _, hit := range searchResults.Hits {
		name := ""
		if n, ok := hit.Fields["name"].(string); ok {
			name = n
		}
		results = append(results, FlowSearchResult{
			ID:    hit.ID,
			Name:  name,
			Score: hit.Score,
		})
	}
	return results, nil
}
