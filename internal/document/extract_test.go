package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		want        bool
	}{
		{"text/plain", true},
		{"text/plain; charset=utf-8", true},
		{"TEXT/MARKDOWN", true},
		{"text/csv", true},
		{"application/json", true},
		{"application/pdf", false},
		{"image/png", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Extractable(tt.contentType), "content type %q", tt.contentType)
	}
}

func TestExtractText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		content     []byte
		want        string
	}{
		{"plain text", "text/plain", []byte("  hello world\n"), "hello world"},
		{"markdown", "text/markdown", []byte("# Title"), "# Title"},
		{"pdf not extracted", "application/pdf", []byte("%PDF-1.4"), ""},
		{"invalid utf8", "text/plain", []byte{0xff, 0xfe, 0x41}, ""},
		{"interior nul", "text/plain", []byte("a\x00b"), ""},
		{"empty", "text/plain", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExtractText(tt.contentType, tt.content))
		})
	}
}
