package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jdutton/skillsearch/internal/config"
	"github.com/jdutton/skillsearch/internal/resource"
	"github.com/jdutton/skillsearch/internal/vectorstore"
)

// handleIndex implements the index subcommand
func handleIndex(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	root := fs.String("root", ".", "Directory to scan for markdown resources")
	progress := fs.Bool("progress", defaultProgressEnabled(), "Show progress bar")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    skillsearch index [options]

DESCRIPTION:
    Scan a directory tree for markdown files and index them:
      1. Parse frontmatter metadata against the configured schema
      2. Split content into sections along headings
      3. Generate embeddings for each section
      4. Store chunks for vector and keyword search

    Resources whose content is unchanged since the last run are skipped.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Index the current directory
    skillsearch index

    # Index a documentation tree
    skillsearch index -root ./docs
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	if _, err := os.Stat(*root); os.IsNotExist(err) {
		log.Fatalf("Directory does not exist: %s", *root)
	}

	s, err := metadataSchema(cfg)
	if err != nil {
		log.Fatalf("Invalid metadata schema: %v", err)
	}

	fmt.Printf("Indexing: %s\n\n", *root)

	scanner := resource.NewScanner(*root, cfg.Indexer.Exclude)
	ctx := context.Background()

	resources, err := scanner.Scan(ctx)
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
	if len(resources) == 0 {
		fmt.Println("No markdown resources found")
		return
	}

	provider, err := vectorstore.New(cfg, s)
	if err != nil {
		log.Fatalf("Failed to create vector store: %v", err)
	}
	defer provider.Close()

	var report func(done, total int)
	if *progress {
		bar := newIndexBar(len(resources))
		report = func(done, total int) {
			_ = bar.Set(done)
		}
	}

	startTime := time.Now()
	result, err := provider.IndexResources(ctx, resources, report)
	if err != nil {
		log.Fatalf("Indexing failed: %v", err)
	}
	duration := time.Since(startTime)

	fmt.Println()
	fmt.Println("Indexing completed")
	fmt.Printf("\nDuration: %v\n", duration.Round(time.Millisecond))
	fmt.Println("\nStatistics:")
	fmt.Printf("   Indexed:  %6d\n", result.ResourcesIndexed)
	fmt.Printf("   Skipped:  %6d\n", result.ResourcesSkipped)
	fmt.Printf("   Chunks:   %6d\n", result.ChunksCreated)

	if len(result.Errors) > 0 {
		fmt.Printf("\n%d resource(s) failed:\n", len(result.Errors))
		for _, resErr := range result.Errors {
			fmt.Printf("   %s: %v\n", resErr.ResourceID, resErr.Err)
		}
		os.Exit(1)
	}
}
