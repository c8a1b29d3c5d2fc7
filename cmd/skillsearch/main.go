package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jdutton/skillsearch/cmd/skillsearch/internal"
	"github.com/jdutton/skillsearch/internal/config"
	"github.com/jdutton/skillsearch/internal/logging"
	"github.com/jdutton/skillsearch/internal/schema"
)

func main() {
	if len(os.Args) < 2 {
		internal.PrintUsage()
		os.Exit(1)
	}

	configPath := ""
	args := os.Args[1:]

	for _, arg := range args {
		if arg == "-h" || arg == "-help" || arg == "--help" {
			internal.PrintUsage()
			os.Exit(0)
		}
		if arg == "-v" || arg == "-version" || arg == "--version" {
			fmt.Printf("skillsearch version %s\n", internal.Version)
			os.Exit(0)
		}
	}

	validSubcommands := map[string]bool{
		"init":   true,
		"index":  true,
		"search": true,
		"stats":  true,
		"clear":  true,
	}

	subcommandIndex := -1
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") && validSubcommands[arg] {
			subcommandIndex = i
			break
		}
	}

	if subcommandIndex == -1 {
		fmt.Fprintf(os.Stderr, "Error: No subcommand specified\n\n")
		internal.PrintUsage()
		os.Exit(1)
	}

	// Parse global flags (before subcommand)
	globalFlags := args[:subcommandIndex]
	for i := 0; i < len(globalFlags); i++ {
		flag := globalFlags[i]
		if flag == "-config" || flag == "--config" {
			if i+1 < len(globalFlags) {
				configPath = globalFlags[i+1]
				i++
			}
		} else if strings.HasPrefix(flag, "-") {
			fmt.Fprintf(os.Stderr, "Error: Unknown global flag: %s\n\n", flag)
			internal.PrintUsage()
			os.Exit(1)
		}
	}

	subcommand := args[subcommandIndex]
	subcommandArgs := args[subcommandIndex+1:]

	if subcommand == "init" {
		handleInit(configPath, subcommandArgs)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		if config.IsConfigNotFound(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
			internal.PrintConfigExample()
			os.Exit(1)
		}
		log.Fatalf("Failed to load config: %v\n", err)
	}

	if logger, err := logging.Init(filepath.Dir(cfg.Database.Path)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize log file: %v\n", err)
	} else {
		defer logger.Close()
	}

	switch subcommand {
	case "index":
		handleIndex(cfg, subcommandArgs)
	case "search":
		handleSearch(cfg, subcommandArgs)
	case "stats":
		handleStats(cfg, subcommandArgs)
	case "clear":
		handleClear(cfg, subcommandArgs)
	default:
		fmt.Printf("Unknown subcommand: %s\n\n", subcommand)
		internal.PrintUsage()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// handleInit implements the init subcommand
func handleInit(configPath string, args []string) {
	path := configPath
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		path = filepath.Join(homeDir, ".skillsearch", "config", "skillsearch.yaml")
	}

	created, err := config.WriteDefaultTemplate(path)
	if err != nil {
		log.Fatalf("Failed to create config template: %v", err)
	}
	if created {
		fmt.Printf("Created config template at %s\n", path)
	} else {
		fmt.Printf("Config already exists at %s\n", path)
	}
}

// metadataSchema builds the typed metadata schema from config.
func metadataSchema(cfg *config.Config) (schema.Schema, error) {
	s := make(schema.Schema, 0, len(cfg.Indexer.Metadata))
	for _, field := range cfg.Indexer.Metadata {
		t, err := schema.ParseType(field.Type)
		if err != nil {
			return nil, fmt.Errorf("metadata field %q: %w", field.Name, err)
		}
		s = append(s, schema.FieldDef{Name: field.Name, Type: t})
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
