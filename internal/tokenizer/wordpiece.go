// Package tokenizer implements WordPiece subword tokenization for
// BERT-family embedding models without a native tokenizer dependency.
package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	// ClsToken marks the beginning of every sequence.
	ClsToken = "[CLS]"
	// SepToken marks the end of every sequence.
	SepToken = "[SEP]"
	// PadToken fills batch sequences up to the longest member.
	PadToken = "[PAD]"
	// UnkToken stands in for words the vocabulary cannot cover.
	UnkToken = "[UNK]"

	// continuationPrefix marks a subword that continues a previous piece.
	continuationPrefix = "##"

	// maxWordChars caps per-word matching work; longer words map to [UNK].
	maxWordChars = 100
)

// Tokenizer converts raw text into the token-id sequences a transformer
// expects. It is safe for concurrent use once constructed.
type Tokenizer struct {
	vocab map[string]int64

	clsID int64
	sepID int64
	padID int64
	unkID int64
}

// Encoding is the result of tokenizing a single text.
type Encoding struct {
	IDs  []int64 // token ids, wrapped in [CLS] ... [SEP]
	Mask []int64 // 1 for real tokens, 0 for padding
}

// BatchEncoding holds a batch of encodings padded to equal length.
type BatchEncoding struct {
	IDs    [][]int64
	Masks  [][]int64
	SeqLen int // padded length shared by every row; 0 for an empty batch
}

// Load reads a vocabulary file where the line position of each token is
// its id, and returns a tokenizer built from it.
func Load(path string) (*Tokenizer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary: %w", err)
	}
	defer file.Close()

	var tokens []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r")
		if token == "" {
			continue
		}
		tokens = append(tokens, token)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}

	return New(tokens)
}

// New builds a tokenizer from an in-memory vocabulary. The slice index of
// each token is its id. The vocabulary must contain the four reserved
// tokens [CLS], [SEP], [PAD] and [UNK].
func New(tokens []string) (*Tokenizer, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("vocabulary is empty")
	}

	vocab := make(map[string]int64, len(tokens))
	for i, token := range tokens {
		if _, ok := vocab[token]; ok {
			return nil, fmt.Errorf("duplicate vocabulary token %q at position %d", token, i)
		}
		vocab[token] = int64(i)
	}

	t := &Tokenizer{vocab: vocab}
	for _, special := range []struct {
		token string
		id    *int64
	}{
		{ClsToken, &t.clsID},
		{SepToken, &t.sepID},
		{PadToken, &t.padID},
		{UnkToken, &t.unkID},
	} {
		id, ok := vocab[special.token]
		if !ok {
			return nil, fmt.Errorf("vocabulary missing reserved token %s", special.token)
		}
		*special.id = id
	}

	return t, nil
}

// VocabSize returns the number of tokens in the vocabulary.
func (t *Tokenizer) VocabSize() int {
	return len(t.vocab)
}

// Tokenize converts text into ids wrapped with [CLS] and [SEP]. When the
// result would exceed maxLength tokens, only the content region between
// the wrapper tokens is truncated. An empty text yields just the wrapper
// pair. maxLength <= 0 disables truncation.
func (t *Tokenizer) Tokenize(text string, maxLength int) Encoding {
	var content []int64
	for _, word := range splitWords(normalize(text)) {
		content = append(content, t.wordPiece(word)...)
	}

	if maxLength >= 2 && len(content) > maxLength-2 {
		content = content[:maxLength-2]
	}

	ids := make([]int64, 0, len(content)+2)
	ids = append(ids, t.clsID)
	ids = append(ids, content...)
	ids = append(ids, t.sepID)

	mask := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	return Encoding{IDs: ids, Mask: mask}
}

// TokenizeBatch tokenizes every text and right-pads all sequences to the
// longest one in the batch using [PAD], with mask 0 on padding positions.
func (t *Tokenizer) TokenizeBatch(texts []string, maxLength int) BatchEncoding {
	batch := BatchEncoding{
		IDs:   make([][]int64, 0, len(texts)),
		Masks: make([][]int64, 0, len(texts)),
	}
	if len(texts) == 0 {
		return batch
	}

	encodings := make([]Encoding, len(texts))
	for i, text := range texts {
		encodings[i] = t.Tokenize(text, maxLength)
		if len(encodings[i].IDs) > batch.SeqLen {
			batch.SeqLen = len(encodings[i].IDs)
		}
	}

	for _, enc := range encodings {
		ids := make([]int64, batch.SeqLen)
		mask := make([]int64, batch.SeqLen)
		copy(ids, enc.IDs)
		copy(mask, enc.Mask)
		for i := len(enc.IDs); i < batch.SeqLen; i++ {
			ids[i] = t.padID
		}
		batch.IDs = append(batch.IDs, ids)
		batch.Masks = append(batch.Masks, mask)
	}
	return batch
}

// wordPiece greedily matches the longest vocabulary prefix of word,
// marking non-initial pieces with "##". A word that cannot be covered at
// all becomes a single [UNK], never a partial sequence.
func (t *Tokenizer) wordPiece(word string) []int64 {
	runes := []rune(word)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) > maxWordChars {
		return []int64{t.unkID}
	}

	var ids []int64
	start := 0
	for start < len(runes) {
		matched := int64(-1)
		end := len(runes)
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = continuationPrefix + piece
			}
			if id, ok := t.vocab[piece]; ok {
				matched = id
				break
			}
			end--
		}
		if matched < 0 {
			return []int64{t.unkID}
		}
		ids = append(ids, matched)
		start = end
	}
	return ids
}

// normalize lowercases text and strips accents by canonical decomposition
// followed by combining-mark removal.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range norm.NFD.String(strings.ToLower(text)) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// splitWords splits on whitespace and punctuation. Each punctuation
// character becomes its own word so it can match the vocabulary directly.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case isPunctuation(r):
			flush()
			words = append(words, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return words
}

func isPunctuation(r rune) bool {
	// ASCII ranges that BERT-style tokenizers treat as punctuation even
	// when Unicode classifies them as symbols, e.g. '$', '+', '`', '|'.
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
