package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jdutton/skillsearch/internal/config"
	"github.com/jdutton/skillsearch/internal/vectorstore"
)

// handleStats implements the stats subcommand
func handleStats(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	var jsonOutput bool
	fs.BoolVar(&jsonOutput, "json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    skillsearch stats [options]

DESCRIPTION:
    Show statistics about the current index.

OPTIONS:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	s, err := metadataSchema(cfg)
	if err != nil {
		log.Fatalf("Invalid metadata schema: %v", err)
	}

	provider, err := vectorstore.New(cfg, s)
	if err != nil {
		log.Fatalf("Failed to create vector store: %v", err)
	}
	defer provider.Close()

	stats, err := provider.Stats()
	if err != nil {
		log.Fatalf("Failed to collect stats: %v", err)
	}

	if jsonOutput {
		output := map[string]interface{}{
			"resources":       stats.ResourceCount,
			"chunks":          stats.ChunkCount,
			"size_bytes":      stats.SizeBytes,
			"embedding_model": stats.EmbeddingModel,
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		fmt.Println("Index Statistics")
		fmt.Println()
		fmt.Printf("Resources: %6d\n", stats.ResourceCount)
		fmt.Printf("Chunks:    %6d\n", stats.ChunkCount)
		fmt.Printf("Size:      %6.1f MB\n", float64(stats.SizeBytes)/(1024*1024))
		fmt.Printf("Model:     %s\n", stats.EmbeddingModel)
	}
}
