package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jdutton/skillsearch/internal/config"
	"github.com/jdutton/skillsearch/internal/vectorstore"
)

// handleClear implements the clear subcommand
func handleClear(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	var force bool
	fs.BoolVar(&force, "force", false, "Skip the confirmation prompt")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    skillsearch clear [options]

DESCRIPTION:
    Remove all indexed data. The next index run rebuilds from scratch.

OPTIONS:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	if !force {
		fmt.Printf("This removes all indexed data at %s. Continue? [y/N] ", cfg.Database.Path)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted")
			return
		}
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

	if err := provider.Clear(); err != nil {
		log.Fatalf("Clear failed: %v", err)
	}

	fmt.Println("Index cleared")
}
