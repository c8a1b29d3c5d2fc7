package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jdutton/skillsearch/cmd/skillsearch/internal"
	"github.com/jdutton/skillsearch/internal/config"
	"github.com/jdutton/skillsearch/internal/schema"
	"github.com/jdutton/skillsearch/internal/vectorstore"
)

// handleSearch implements the search subcommand
func handleSearch(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)

	var topK int
	var jsonOutput, verbose bool
	var filters internal.StringList
	var resources internal.StringList

	fs.IntVar(&topK, "k", 0, "Number of results to return (default from config)")
	fs.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	fs.BoolVar(&verbose, "v", false, "Verbose output (show scores and chunk positions)")
	fs.Var(&filters, "filter", "Metadata filter as field=value (repeatable)")
	fs.Var(&resources, "resource", "Restrict to a resource id (repeatable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    skillsearch search [options] "<query>"

DESCRIPTION:
    Search indexed content with a natural language query. Metadata
    filters restrict results before ranking; all filters must match.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Natural language search
    skillsearch search "how do deployments roll back"

    # Filter by metadata
    skillsearch search "threat modeling" -filter domain=security

    # Restrict to specific resources
    skillsearch search "setup" -resource docs/install.md

    # Top 20 results as JSON
    skillsearch search "error handling" -k 20 -json
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: search query is required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	query := fs.Arg(0)

	s, err := metadataSchema(cfg)
	if err != nil {
		log.Fatalf("Invalid metadata schema: %v", err)
	}

	filter, err := buildFilter(filters, resources, s)
	if err != nil {
		log.Fatalf("Invalid filter: %v", err)
	}

	provider, err := vectorstore.New(cfg, s)
	if err != nil {
		log.Fatalf("Failed to create vector store: %v", err)
	}
	defer provider.Close()

	ctx := context.Background()
	resp, err := provider.Query(ctx, vectorstore.QueryRequest{
		Query:  query,
		Limit:  topK,
		Filter: filter,
	})
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}

	if jsonOutput {
		outputJSON(resp, query)
	} else {
		outputText(resp, query, verbose)
	}
}

// buildFilter assembles the query filter from -filter and -resource
// flags, coercing values through the schema's field types.
func buildFilter(filters, resources internal.StringList, s schema.Schema) (schema.Filter, error) {
	f := schema.Filter{}

	if len(resources) > 0 {
		f.ResourceIDs = resources
	}

	for _, raw := range filters {
		name, value, ok := strings.Cut(raw, "=")
		if !ok {
			return f, fmt.Errorf("expected field=value, got %q", raw)
		}

		field, found := s.Lookup(name)
		if !found {
			return f, fmt.Errorf("field %q is not declared in the metadata schema", name)
		}

		parsed, err := parseFilterValue(value, field.Type)
		if err != nil {
			return f, fmt.Errorf("field %q: %w", name, err)
		}

		if f.Fields == nil {
			f.Fields = make(map[string]any)
		}
		f.Fields[field.Name] = parsed
	}

	return f, nil
}

func parseFilterValue(value string, t schema.FieldType) (any, error) {
	inner, _ := t.Unwrap()
	switch inner.Kind {
	case schema.KindString, schema.KindStringArray:
		return value, nil
	case schema.KindNumber:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", value)
		}
		return n, nil
	case schema.KindBoolean:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("expected true or false, got %q", value)
		}
		return b, nil
	case schema.KindDate:
		ts, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return nil, fmt.Errorf("expected an RFC3339 date, got %q", value)
		}
		return ts, nil
	default:
		return nil, fmt.Errorf("cannot filter on %v fields", inner.Kind)
	}
}

// outputText outputs search results as human-readable text
func outputText(resp *vectorstore.QueryResponse, query string, verbose bool) {
	results := resp.Results
	if len(results) == 0 {
		fmt.Println("No results found")
		return
	}

	fmt.Printf("Showing %d of %d match(es) for: %s\n\n", len(results), resp.Stats.TotalMatches, query)

	snippetWidth := terminalWidth() - 4

	for i, result := range results {
		title := result.Title
		if title == "" {
			title = result.ResourceID
		}
		fmt.Printf("%d. %s\n", i+1, title)
		fmt.Printf("   Resource: %s\n", result.ResourceID)

		if verbose {
			fmt.Printf("   Score:    %.3f\n", result.Score)
			fmt.Printf("   Chunk:    %d of %d\n", result.ChunkIndex+1, result.TotalChunks)
			for key, value := range result.Metadata {
				fmt.Printf("   %s: %v\n", key, value)
			}
		}

		snippet := strings.Join(strings.Fields(result.Content), " ")
		if len(snippet) > snippetWidth {
			snippet = snippet[:snippetWidth] + "..."
		}
		fmt.Printf("   %s\n\n", snippet)
	}
}

// outputJSON outputs search results as JSON
func outputJSON(resp *vectorstore.QueryResponse, query string) {
	output := map[string]interface{}{
		"query":         query,
		"count":         len(resp.Results),
		"total_matches": resp.Stats.TotalMatches,
		"results":       resp.Results,
	}

	jsonData, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal results: %v", err)
	}

	fmt.Println(string(jsonData))
}
