// Package embedfn defines the external embedding-function collaborator
// contract the Container Writer calls during generate_embeddings. Callers
// plug in any backend (ONNX runtime, network service, ...) as long as the
// text and image capability sets are met; StaticTextEncoder/StaticImageEncoder
// provide a deterministic, dependency-free fallback for tests and offline
// builds, using a hash-based embedding scheme.
package embedfn

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"unicode"
)

// TextEncoder embeds a batch of text chunks into a shared vector space.
type TextEncoder interface {
	EmbedText(ctx context.Context, batch []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
}

// ImageEncoder embeds a single image file into the same vector space a
// paired TextEncoder produces, for cross-modal search.
type ImageEncoder interface {
	EmbedImage(ctx context.Context, path string) ([]float32, error)
	Dimensions() int
	ModelName() string
}

// StaticDimensions is the embedding width StaticTextEncoder/
// StaticImageEncoder produce.
const StaticDimensions = 256

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

var programmingStopWords = map[string]bool{
	"func": true, "function": true, "def": true, "class": true,
	"return": true, "import": true, "const": true, "var": true,
	"let": true, "int": true, "string": true, "bool": true,
	"void": true, "true": true, "false": true, "nil": true,
	"null": true, "this": true, "self": true, "new": true,
}

// StaticTextEncoder is a hash-based TextEncoder requiring no network access
// or model download: deterministic, fast, and semantically shallow. Used as
// the default when no real encoder is configured to embed anything).
type StaticTextEncoder struct{}

// NewStaticTextEncoder constructs a StaticTextEncoder.
func NewStaticTextEncoder() *StaticTextEncoder { return &StaticTextEncoder{} }

// EmbedText hashes each text in batch into a StaticDimensions-wide vector.
func (e *StaticTextEncoder) EmbedText(_ context.Context, batch []string) ([][]float32, error) {
	out := make([][]float32, len(batch))
	for i, text := range batch {
		out[i] = normalizeVector(vectorForText(text))
	}
	return out, nil
}

// Dimensions returns StaticDimensions.
func (e *StaticTextEncoder) Dimensions() int { return StaticDimensions }

// ModelName identifies this encoder for manifest.embedding_model.
func (e *StaticTextEncoder) ModelName() string { return "static-hash-256" }

// StaticImageEncoder is a deterministic ImageEncoder hashing the file path,
// prefixed with "image:", into the same space as StaticTextEncoder,
// so text and image vectors stay comparable in tests without a real model.
type StaticImageEncoder struct{}

// NewStaticImageEncoder constructs a StaticImageEncoder.
func NewStaticImageEncoder() *StaticImageEncoder { return &StaticImageEncoder{} }

// EmbedImage hashes path into a StaticDimensions-wide vector.
func (e *StaticImageEncoder) EmbedImage(_ context.Context, path string) ([]float32, error) {
	return normalizeVector(vectorForText("image:" + path)), nil
}

// Dimensions returns StaticDimensions.
func (e *StaticImageEncoder) Dimensions() int { return StaticDimensions }

// ModelName identifies this encoder for manifest.embedding_model.
func (e *StaticImageEncoder) ModelName() string { return "static-hash-256" }

func vectorForText(text string) []float32 {
	vector := make([]float32, StaticDimensions)

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return vector
	}

	for _, token := range filterStopWords(tokenize(trimmed)) {
		vector[hashToIndex(token, StaticDimensions)] += tokenWeight
	}

	for _, ngram := range extractNgrams(normalizeForNgrams(trimmed), ngramSize) {
		vector[hashToIndex(ngram, StaticDimensions)] += ngramWeight
	}

	return vector
}

func tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, t := range splitCodeToken(word) {
			if lower := strings.ToLower(t); lower != "" {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

func splitCodeToken(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}
	return splitCamelCase(token)
}

func splitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

func filterStopWords(tokens []string) []string {
	var filtered []string
	for _, t := range tokens {
		if !programmingStopWords[t] {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func normalizeForNgrams(text string) string {
	var result strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return []string{}
	}
	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return v
	}
	inv := 1.0 / math.Sqrt(sumSquares)
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) * inv)
	}
	return out
}
