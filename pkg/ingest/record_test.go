package ingest_test

import (
	"testing"

	"github.com/soundprediction/go-librarian/pkg/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGenres(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "slash separated",
			raw:  "Fiction/Drama",
			want: []string{"Fiction", "Drama"},
		},
		{
			name: "comma separated",
			raw:  "Fiction, Drama",
			want: []string{"Fiction", "Drama"},
		},
		{
			name: "mixed separators",
			raw:  "Fiction/Drama, Historical",
			want: []string{"Fiction", "Drama", "Historical"},
		},
		{
			name: "duplicates collapse",
			raw:  "Fiction, Fiction/Fiction",
			want: []string{"Fiction"},
		},
		{
			name: "empty parts dropped",
			raw:  "Fiction,, /Drama/",
			want: []string{"Fiction", "Drama"},
		},
		{
			name: "empty string",
			raw:  "",
			want: nil,
		},
		{
			name: "whitespace only",
			raw:  "  ,  / ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ingest.ParseGenres(tt.raw))
		})
	}
}

func TestParseEmbedding(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		vector, err := ingest.ParseEmbedding("[0.1,0.2,0.3]")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
	})

	t.Run("spaces tolerated", func(t *testing.T) {
		vector, err := ingest.ParseEmbedding(" [ 0.5, -1.25 , 3 ] ")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.5, -1.25, 3}, vector)
	})

	t.Run("order preserved", func(t *testing.T) {
		vector, err := ingest.ParseEmbedding("[3,2,1]")
		require.NoError(t, err)
		assert.Equal(t, []float32{3, 2, 1}, vector)
	})

	t.Run("empty string", func(t *testing.T) {
		_, err := ingest.ParseEmbedding("")
		assert.Error(t, err)
	})

	t.Run("empty brackets", func(t *testing.T) {
		_, err := ingest.ParseEmbedding("[]")
		assert.Error(t, err)
	})

	t.Run("non-numeric value", func(t *testing.T) {
		_, err := ingest.ParseEmbedding("[0.1,abc]")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "abc")
	})
}
