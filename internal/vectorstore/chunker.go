package vectorstore

import "strings"

// Section is one chunk of a document, carrying the heading path it
// appeared under.
type Section struct {
	Title   string
	Content string
}

// ChunkMarkdown splits markdown into sections along headings, then
// splits sections longer than maxChars on paragraph boundaries. The
// section title is the heading path joined with " / ", so a result
// under "## Setup" inside "# Guide" is titled "Guide / Setup".
func ChunkMarkdown(src string, maxChars, overlap int) []Section {
	lines := strings.Split(src, "\n")
	var sections []Section

	var current *Section
	var currentLines []string
	var headingStack []string
	var headingLevels []int

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(strings.Join(currentLines, "\n"))
		if current.Content != "" {
			sections = append(sections, *current)
		}
	}

	for _, line := range lines {
		level, title, ok := parseHeading(line)
		if ok {
			flush()

			for len(headingLevels) > 0 && headingLevels[len(headingLevels)-1] >= level {
				headingLevels = headingLevels[:len(headingLevels)-1]
				headingStack = headingStack[:len(headingStack)-1]
			}
			headingLevels = append(headingLevels, level)
			headingStack = append(headingStack, title)

			current = &Section{Title: strings.Join(headingStack, " / ")}
			currentLines = []string{line}
			continue
		}

		if current == nil {
			current = &Section{}
			currentLines = nil
		}
		currentLines = append(currentLines, line)
	}
	flush()

	return splitSections(sections, maxChars, overlap)
}

func parseHeading(line string) (int, string, bool) {
	trimmed := strings.TrimLeft(line, " ")
	if !strings.HasPrefix(trimmed, "#") {
		return 0, "", false
	}
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0, "", false
	}
	if len(trimmed) > level && trimmed[level] != ' ' {
		return 0, "", false
	}
	title := strings.TrimSpace(trimmed[level:])
	return level, title, true
}

// splitSections breaks oversized sections on blank lines first, falling
// back to a sliding character window with overlap for single paragraphs
// that still exceed the limit.
func splitSections(sections []Section, maxChars, overlap int) []Section {
	if maxChars <= 0 {
		return sections
	}
	var out []Section
	for _, section := range sections {
		if countChars(section.Content) <= maxChars {
			out = append(out, section)
			continue
		}

		var buf []string
		bufLen := 0
		emit := func() {
			if bufLen == 0 {
				return
			}
			content := strings.TrimSpace(strings.Join(buf, "\n\n"))
			if content != "" {
				out = append(out, Section{Title: section.Title, Content: content})
			}
			buf = nil
			bufLen = 0
		}

		for _, para := range strings.Split(section.Content, "\n\n") {
			paraLen := countChars(para)
			if paraLen > maxChars {
				emit()
				for _, piece := range splitByChars(para, maxChars, overlap) {
					out = append(out, Section{Title: section.Title, Content: piece})
				}
				continue
			}
			if bufLen+paraLen > maxChars {
				emit()
			}
			buf = append(buf, para)
			bufLen += paraLen + 2
		}
		emit()
	}
	return out
}

func splitByChars(text string, maxChars, overlap int) []string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if maxChars <= 0 || len(runes) <= maxChars {
		return []string{text}
	}
	if overlap < 0 {
		overlap = 0
	}
	step := maxChars - overlap
	if step <= 0 {
		step = maxChars
	}
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

func countChars(text string) int {
	return len([]rune(text))
}

// EstimateTokens approximates the token count of a chunk. Subword
// tokenizers average roughly four characters per token on English
// prose; this stays cheap and model-independent.
func EstimateTokens(text string) int {
	n := countChars(text)
	if n == 0 {
		return 0
	}
	estimate := n / 4
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}
