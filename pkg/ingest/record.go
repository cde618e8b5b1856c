package ingest

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is one source row of book metadata. Genres and Embeddings carry
// the raw delimited strings from the source file; parsing happens in the
// pipeline so malformed rows fail with the offending title attached.
type Record struct {
	Title           string
	Author          string
	Language        string
	Rating          float64
	PublicationYear int
	Summary         string
	Genres          string
	Embeddings      string
}

// ParseGenres splits a raw genre field into distinct genre names. Source
// files use either "/" or "," as the separator; both are normalized to ","
// before splitting. Order of first appearance is preserved.
func ParseGenres(raw string) []string {
	normalized := strings.ReplaceAll(raw, "/", ",")

	var genres []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(normalized, ",") {
		genre := strings.TrimSpace(part)
		if genre == "" || seen[genre] {
			continue
		}
		seen[genre] = true
		genres = append(genres, genre)
	}

	return genres
}

// ParseEmbedding parses a bracket-delimited, comma-separated float list
// like "[0.1,0.2,0.3]" into a vector, order preserved.
func ParseEmbedding(raw string) ([]float32, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "[")
	trimmed = strings.TrimSuffix(trimmed, "]")
	if strings.TrimSpace(trimmed) == "" {
		return nil, fmt.Errorf("empty embedding string")
	}

	parts := strings.Split(trimmed, ",")
	vector := make([]float32, len(parts))
	for i, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid embedding value %q at position %d: %w", part, i, err)
		}
		vector[i] = float32(value)
	}

	return vector, nil
}
