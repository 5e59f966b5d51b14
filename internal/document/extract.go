package document

import (
	"strings"
	"unicode/utf8"
)

// Content types extracted in-process. Everything else is stored opaque.
var textContentTypes = map[string]bool{
	"text/plain":       true,
	"text/markdown":    true,
	"text/csv":         true,
	"application/json": true,
}

// Extractable reports whether the content type can be extracted
// in-process. The media type is compared without parameters
// ("text/plain; charset=utf-8" counts as text/plain).
func Extractable(contentType string) bool {
	mediaType := contentType
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		mediaType = contentType[:i]
	}
	return textContentTypes[strings.TrimSpace(strings.ToLower(mediaType))]
}

// ExtractText returns the text content of an upload, or "" when the
// format is not extractable or the bytes are not valid UTF-8. Interior
// NUL bytes also disqualify the content; Postgres text columns reject
// them.
func ExtractText(contentType string, content []byte) string {
	if !Extractable(contentType) {
		return ""
	}
	if !utf8.Valid(content) {
		return ""
	}
	text := string(content)
	if strings.ContainsRune(text, 0) {
		return ""
	}
	return strings.TrimSpace(text)
}
