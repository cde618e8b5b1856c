package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadRecords parses a CSV stream into ingestion records. The header row is
// required and matched case-insensitively; column order does not matter.
// Expected columns: title, author, language, rating, publication_year,
// summary, genres, embeddings (embeddings optional).
func ReadRecords(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"title", "author", "summary", "genres"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("CSV is missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		record := Record{
			Title:      field(row, "title"),
			Author:     field(row, "author"),
			Language:   field(row, "language"),
			Summary:    field(row, "summary"),
			Genres:     field(row, "genres"),
			Embeddings: field(row, "embeddings"),
		}

		if raw := field(row, "rating"); raw != "" {
			rating, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid rating %q on line %d: %w", raw, line, err)
			}
			record.Rating = rating
		}
		if raw := field(row, "publication_year"); raw != "" {
			year, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid publication_year %q on line %d: %w", raw, line, err)
			}
			record.PublicationYear = year
		}

		records = append(records, record)
	}

	return records, nil
}
