package onnx

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Special token ids of the uncased BERT vocabulary used by MiniLM.
const (
	clsTokenID = 101
	sepTokenID = 102
	unkTokenID = 100
)

// wordPieceMaxChars is the longest word WordPiece attempts to split;
// longer words map straight to [UNK].
const wordPieceMaxChars = 100

// Tokenizer is a lowercase BERT WordPiece tokenizer.
type Tokenizer struct {
	vocab map[string]int
}

// LoadTokenizer reads the vocabulary from a Hugging Face tokenizer.json file.
func LoadTokenizer(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("onnx: read tokenizer: %w", err)
	}

	var parsed struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("onnx: parse tokenizer: %w", err)
	}
	if len(parsed.Model.Vocab) == 0 {
		return nil, fmt.Errorf("onnx: tokenizer %s has an empty vocabulary", path)
	}
	return NewTokenizer(parsed.Model.Vocab), nil
}

// NewTokenizer creates a tokenizer over vocab.
func NewTokenizer(vocab map[string]int) *Tokenizer {
	return &Tokenizer{vocab: vocab}
}

// Encode returns [CLS] tokens... [SEP], truncated so the result fits in
// maxLen ids.
func (t *Tokenizer) Encode(text string, maxLen int) []int64 {
	ids := []int64{clsTokenID}
	for _, word := range splitWords(text) {
		for _, id := range t.wordPiece(word) {
			if len(ids) >= maxLen-1 {
				return append(ids, sepTokenID)
			}
			ids = append(ids, id)
		}
	}
	return append(ids, sepTokenID)
}

// splitWords lowercases text and splits it on whitespace, emitting each
// punctuation rune as its own word.
func splitWords(text string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

// wordPiece splits word greedily into the longest vocabulary pieces. A word
// with any unmatchable remainder becomes a single [UNK].
func (t *Tokenizer) wordPiece(word string) []int64 {
	if id, ok := t.vocab[word]; ok {
		return []int64{int64(id)}
	}

	runes := []rune(word)
	if len(runes) > wordPieceMaxChars {
		return []int64{unkTokenID}
	}

	var ids []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		matched := -1
		for ; end > start; end-- {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				matched = id
				break
			}
		}
		if matched < 0 {
			return []int64{unkTokenID}
		}
		ids = append(ids, int64(matched))
		start = end
	}
	return ids
}
