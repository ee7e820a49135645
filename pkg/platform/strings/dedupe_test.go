package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "removes duplicates preserving order",
			input: []string{"foo", "bar", "foo", "baz", "bar"},
			want:  []string{"foo", "bar", "baz"},
		},
		{
			name:  "trims whitespace before comparing",
			input: []string{"  foo ", "bar", "foo"},
			want:  []string{"foo", "bar"},
		},
		{
			name:  "drops empty and whitespace-only entries",
			input: []string{"foo", "", "   ", "bar"},
			want:  []string{"foo", "bar"},
		},
		{
			name:  "nil in nil out",
			input: nil,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAndTrim(tt.input))
		})
	}
}

func TestNormalizeSuffixes(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "adds leading dot and lowercases",
			input: []string{"RW", "co.rw"},
			want:  []string{".rw", ".co.rw"},
		},
		{
			name:  "dedupes across spellings",
			input: []string{" .RW ", "rw", ".rw"},
			want:  []string{".rw"},
		},
		{
			name:  "drops empties and bare dots",
			input: []string{"", " ", ".", ".com"},
			want:  []string{".com"},
		},
		{
			name:  "preserves order",
			input: []string{".org.rw", ".rw", ".net"},
			want:  []string{".org.rw", ".rw", ".net"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSuffixes(tt.input))
		})
	}
}
