package internal

import (
	"fmt"
	"os"
	"strings"
)

const Version = "0.3.1"

// PrintUsage writes the top-level usage and subcommand list to stderr.
func PrintUsage() {
	fmt.Fprintf(os.Stderr, `skillsearch - Semantic Search over Markdown Knowledge Bases

Version: %s

USAGE:
    skillsearch [global options] <command> [command options]

GLOBAL OPTIONS:
    -config <path>
        Path to config file (default: ~/.skillsearch/config/skillsearch.yaml)

    -v, -version
        Show version information

    -h, -help
        Show this help message

COMMANDS:
    init
        Create a default config file

    index
        Scan a directory and index its markdown resources

    search
        Search indexed content with natural language and metadata filters

    stats
        Show index statistics

    clear
        Remove all indexed data

EXAMPLES:
    # Create a config template
    skillsearch init

    # Index a documentation tree
    skillsearch index -root ./docs

    # Search
    skillsearch search "how do deployments roll back"

    # Search within a metadata domain
    skillsearch search "threat modeling" -filter domain=security

    # JSON output for scripting
    skillsearch search "error handling" -json

    # Show statistics
    skillsearch stats

For detailed help on each command, use:
    skillsearch <command> -help
`, Version)
}

// PrintConfigExample points the user at the config template.
func PrintConfigExample() {
	fmt.Fprintf(os.Stderr, `Run "skillsearch init" to create a config template at the default
location, then adjust it for your environment.
`)
}

// StringList is a flag.Value that collects repeated string flags.
type StringList []string

func (s *StringList) String() string {
	return strings.Join(*s, ",")
}

func (s *StringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}
