package vectorstore

import (
	"strings"
	"testing"
)

func TestChunkMarkdownHeadingPaths(t *testing.T) {
	src := `# Guide

intro text

## Setup

install steps

## Usage

run it

# Appendix

extra notes`

	sections := ChunkMarkdown(src, 1500, 0)
	if len(sections) != 4 {
		t.Fatalf("got %d sections, want 4: %+v", len(sections), sections)
	}

	wantTitles := []string{"Guide", "Guide / Setup", "Guide / Usage", "Appendix"}
	for i, want := range wantTitles {
		if sections[i].Title != want {
			t.Errorf("section %d title = %q, want %q", i, sections[i].Title, want)
		}
	}
	if !strings.Contains(sections[1].Content, "install steps") {
		t.Errorf("setup section missing body: %q", sections[1].Content)
	}
}

func TestChunkMarkdownNoHeadings(t *testing.T) {
	sections := ChunkMarkdown("plain text\nwith lines", 1500, 0)
	if len(sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(sections))
	}
	if sections[0].Title != "" {
		t.Errorf("title = %q, want empty", sections[0].Title)
	}
}

func TestChunkMarkdownEmpty(t *testing.T) {
	if sections := ChunkMarkdown("", 1500, 0); len(sections) != 0 {
		t.Fatalf("got %d sections for empty input, want 0", len(sections))
	}
	if sections := ChunkMarkdown("\n\n  \n", 1500, 0); len(sections) != 0 {
		t.Fatalf("got %d sections for blank input, want 0", len(sections))
	}
}

func TestChunkMarkdownSplitsLongSections(t *testing.T) {
	var b strings.Builder
	b.WriteString("# Long\n\n")
	for i := 0; i < 20; i++ {
		b.WriteString(strings.Repeat("word ", 20))
		b.WriteString("\n\n")
	}

	sections := ChunkMarkdown(b.String(), 300, 0)
	if len(sections) < 2 {
		t.Fatalf("expected long section to split, got %d sections", len(sections))
	}
	for i, section := range sections {
		if section.Title != "Long" {
			t.Errorf("section %d title = %q, want Long", i, section.Title)
		}
		if countChars(section.Content) > 300 {
			t.Errorf("section %d exceeds limit: %d chars", i, countChars(section.Content))
		}
	}
}

func TestSplitByCharsOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij", 10)
	pieces := splitByChars(text, 40, 10)
	if len(pieces) < 3 {
		t.Fatalf("got %d pieces, want at least 3", len(pieces))
	}
	// Consecutive pieces share the overlap region.
	tail := pieces[0][len(pieces[0])-10:]
	if !strings.HasPrefix(pieces[1], tail) {
		t.Errorf("piece 1 does not start with piece 0 tail: %q vs %q", pieces[1][:10], tail)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("empty text = %d tokens, want 0", got)
	}
	if got := EstimateTokens("hi"); got != 1 {
		t.Errorf("short text = %d tokens, want 1", got)
	}
	if got := EstimateTokens(strings.Repeat("a", 400)); got != 100 {
		t.Errorf("400 chars = %d tokens, want 100", got)
	}
}
