package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"attackflow/internal/attackflowcore"
)

func main() {
	output := flag.String("o", "", "write the canonical graph as JSON to this file")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("Usage: flowparse [-o graph.json] <flow.json> [flow.json...]")
	}

	startTime := time.Now()
	log.Println("🚀 Attack Flow Parser")

	for _, path := range flag.Args() {
		graph, err := attackflowcore.LoadFlowFromFile(path)
		if err != nil {
			log.Printf("❌ %v", err)
			continue
		}

		printSummary(path, graph)

		if *output != "" {
			if err := exportGraph(graph, *output); err != nil {
				log.Printf("❌ Failed to export graph: %v", err)
			} else {
				log.Printf("💾 Graph exported to %s", *output)
			}
		}
	}

	log.Printf("⏱️  Total processing time: %v", time.Since(startTime))
}

func printSummary(path string, graph *attackflowcore.Graph) {
	meta := graph.Metadata()
	stats := graph.DetailedStats()

	fmt.Printf("\n📄 %s\n", path)
	fmt.Printf("   Name:    %s\n", meta.Name)
	fmt.Printf("   Format:  %s\n", meta.Format)
	if meta.Author != "" {
		fmt.Printf("   Author:  %s\n", meta.Author)
	}
	fmt.Printf("   Actions: %d  Edges: %d  Techniques: %d  Tactics: %d\n",
		stats.TotalActions, len(graph.Edges()), stats.UniqueTechniques, stats.UniqueTactics)

	fmt.Println("\n   Sequence:")
	for i, node := range graph.ActionSequence() {
		technique := node.TechniqueID
		if technique == "" {
			technique = "-"
		}
		fmt.Printf("   %2d. [%s] %s (%s)\n", i+1, technique, node.Name, node.TacticName)
	}

	if warnings := graph.Warnings(); len(warnings) > 0 {
		fmt.Printf("\n   ⚠️  %d warnings:\n", len(warnings))
		for _, w := range warnings {
			fmt.Printf("   - %s\n", w)
		}
	}
}

func exportGraph(graph *attackflowcore.Graph, path string) error {
	export := struct {
		Metadata attackflowcore.FlowMetadata             `json:"metadata"`
		Nodes    []*attackflowcore.ActionNode            `json:"nodes"`
		Edges    []attackflowcore.Edge                   `json:"edges"`
		Sequence []string                                `json:"sequence"`
		Tactics  map[string][]*attackflowcore.ActionNode `json:"tactics"`
	}{
		Metadata: graph.Metadata(),
		Nodes:    graph.Nodes(),
		Edges:    graph.Edges(),
		Tactics:  graph.Tactics(),
	}
	for _, node := range graph.ActionSequence() {
		export.Sequence = append(export.Sequence, node.ID)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
