package main

import (
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"attackflow/internal/attackflowcore"
)

var (
	flowParsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attackflow_parses_total",
		Help: "Parsed flow documents by detected format.",
	}, []string{"format"})

	flowParseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attackflow_parse_errors_total",
		Help: "Flow documents rejected with a format error.",
	})
)

type apiServer struct {
	store *attackflowcore.FlowStore
	index bleve.Index
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := attackflowcore.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := attackflowcore.NewFlowStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open flow store: %v", err)
	}
	defer store.Close()

	index, err := attackflowcore.OpenFlowIndex(cfg.IndexPath)
	if err != nil {
		log.Fatalf("Failed to open flow index: %v", err)
	}
	defer index.Close()

	srv := &apiServer{store: store, index: index}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/flows", srv.uploadFlow)
	mux.HandleFunc("GET /api/flows", srv.listFlows)
	mux.HandleFunc("DELETE /api/flows/{id}", srv.deleteFlow)
	mux.HandleFunc("GET /api/flows/{id}/metadata", srv.flowView(metadataView))
	mux.HandleFunc("GET /api/flows/{id}/graph", srv.flowView(graphView))
	mux.HandleFunc("GET /api/flows/{id}/sequence", srv.flowView(sequenceView))
	mux.HandleFunc("GET /api/flows/{id}/tactics", srv.flowView(tacticsView))
	mux.HandleFunc("GET /api/flows/{id}/techniques", srv.flowView(techniquesView))
	mux.HandleFunc("GET /api/flows/{id}/stats", srv.flowView(statsView))
	mux.HandleFunc("GET /api/search", srv.searchFlows)
	mux.Handle("GET /metrics", promhttp.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
	})

	log.Printf("Starting Attack Flow API on %s", cfg.ListenAddr)
	log.Fatal(http.ListenAndServe(cfg.ListenAddr, c.Handler(mux)))
}

// uploadFlow accepts a raw flow document, parses it and stores it under a
// fresh id. A format error is the caller's problem; anything else on the
// parse side degrades inside the graph.
func (s *apiServer) uploadFlow(w http.ResponseWriter, r *http.Request) {
	document, err := io.ReadAll(io.LimitReader(r.Body, 10*1024*1024))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	graph, err := attackflowcore.ParseDocument(document)
	if err != nil {
		if errors.Is(err, attackflowcore.ErrUnsupportedFormat) {
			flowParseErrors.Inc()
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	flowParsesTotal.WithLabelValues(string(graph.Metadata().Format)).Inc()

	id := uuid.NewString()
	if err := s.store.SaveFlow(id, graph, document); err != nil {
		log.Printf("Failed to store flow %s: %v", id, err)
		http.Error(w, "Internal server error: could not store flow", http.StatusInternalServerError)
		return
	}
	if err := attackflowcore.IndexFlow(s.index, id, graph); err != nil {
		log.Printf("Failed to index flow %s: %v", id, err)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       id,
		"metadata": graph.Metadata(),
		"warnings": graph.Warnings(),
	})
}

func (s *apiServer) listFlows(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.store.ListFlows(r.URL.Query().Get("name"), 0)
	if err != nil {
		log.Printf("Failed to list flows: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if summaries == nil {
		summaries = []attackflowcore.FlowSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *apiServer) deleteFlow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteFlow(id); err != nil {
		log.Printf("Failed to delete flow %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if err := s.index.Delete(id); err != nil {
		log.Printf("Failed to remove flow %s from index: %v", id, err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// flowView adapts a pure graph query to an HTTP handler: look up the flow,
// re-parse its document and render one read-only view of the graph.
func (s *apiServer) flowView(view func(*attackflowcore.Graph) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		_, graph, err := s.store.GetFlow(id)
		if errors.Is(err, attackflowcore.ErrFlowNotFound) {
			http.Error(w, "Flow not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Printf("Failed to load flow %s: %v", id, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, view(graph))
	}
}

func metadataView(graph *attackflowcore.Graph) any {
	return graph.Metadata()
}

func graphView(graph *attackflowcore.Graph) any {
	return map[string]any{
		"nodes": graph.Nodes(),
		"edges": graph.Edges(),
	}
}

func sequenceView(graph *attackflowcore.Graph) any {
	return graph.ActionSequence()
}

func tacticsView(graph *attackflowcore.Graph) any {
	return map[string]any{
		"order":  graph.TacticNames(),
		"groups": graph.Tactics(),
	}
}

func techniquesView(graph *attackflowcore.Graph) any {
	return graph.TechniqueCounts()
}

func statsView(graph *attackflowcore.Graph) any {
	return graph.DetailedStats()
}

func (s *apiServer) searchFlows(w http.ResponseWriter, r *http.Request) {
	queryStr := r.URL.Query().Get("query")
	if queryStr == "" {
		http.Error(w, "Query parameter 'query' is required", http.StatusBadRequest)
		return
	}

	results, err := attackflowcore.SearchFlows(s.index, queryStr, 10)
	if err != nil {
		log.Printf("Search failed: %v", err)
		http.Error(w, "Internal server error: search failed", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []attackflowcore.FlowSearchResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
