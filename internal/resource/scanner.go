package resource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Scanner walks a directory tree for markdown resources.
type Scanner struct {
	root    string
	exclude []string
}

// NewScanner creates a scanner rooted at root. Exclude patterns are
// doublestar globs matched against the relative path and the basename.
func NewScanner(root string, exclude []string) *Scanner {
	return &Scanner{root: root, exclude: exclude}
}

// Scan walks the tree and returns all indexable resources.
func (s *Scanner) Scan(ctx context.Context) ([]Resource, error) {
	var resources []Resource

	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return relErr
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if path != s.root && (s.shouldSkipDir(info.Name()) || s.excluded(relPath)) {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".markdown" {
			return nil
		}
		if s.excluded(relPath) {
			return nil
		}

		res, loadErr := loadResource(path, relPath, info)
		if loadErr != nil {
			// Keep scanning; a single unreadable file should not abort
			// the whole walk.
			fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", relPath, loadErr)
			return nil
		}
		resources = append(resources, res)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", s.root, err)
	}

	return resources, nil
}

func (s *Scanner) shouldSkipDir(name string) bool {
	skipDirs := map[string]bool{
		"vendor":       true,
		"node_modules": true,
		".git":         true,
		"testdata":     true,
	}
	return skipDirs[name] || (strings.HasPrefix(name, ".") && name != ".")
}

func (s *Scanner) excluded(relPath string) bool {
	for _, pattern := range s.exclude {
		if matched, _ := doublestar.Match(pattern, relPath); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, filepath.Base(relPath)); matched {
			return true
		}
	}
	return false
}

func loadResource(path, relPath string, info os.FileInfo) (Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Resource{}, err
	}

	content := string(data)
	meta, body, err := ParseFrontmatter(content)
	if err != nil {
		return Resource{}, fmt.Errorf("invalid frontmatter: %w", err)
	}

	return Resource{
		ID:          relPath,
		Path:        path,
		Content:     body,
		ContentHash: HashContent(content),
		Metadata:    meta,
		SizeBytes:   info.Size(),
		ModifiedAt:  info.ModTime().UTC(),
	}, nil
}

// ParseFrontmatter splits an optional leading YAML frontmatter block
// from the document body. A document without the "---" fence returns
// nil metadata and the full content.
func ParseFrontmatter(content string) (map[string]any, string, error) {
	if !strings.HasPrefix(content, "---\n") && content != "---" {
		return nil, content, nil
	}

	rest := strings.TrimPrefix(content, "---\n")
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, content, nil
	}

	block := rest[:end]
	body := rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(block), &raw); err != nil {
		return nil, "", err
	}

	return normalizeMetadata(raw), body, nil
}

// normalizeMetadata maps YAML decode types onto the metadata value
// types the codec expects: []any of strings becomes []string, integers
// become float64.
func normalizeMetadata(raw map[string]any) map[string]any {
	if raw == nil {
		return nil
	}
	meta := make(map[string]any, len(raw))
	for key, value := range raw {
		meta[key] = normalizeValue(value)
	}
	return meta
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case []any:
		items := make([]string, 0, len(v))
		allStrings := true
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				allStrings = false
				break
			}
			items = append(items, s)
		}
		if allStrings {
			return items
		}
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case time.Time:
		return v.UTC()
	case map[string]any:
		return normalizeMetadata(v)
	default:
		return v
	}
}
