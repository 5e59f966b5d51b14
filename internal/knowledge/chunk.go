package knowledge

import "strings"

// SplitText slices text into chunks of at most ChunkSize characters,
// preferring paragraph boundaries, with ChunkOverlap characters of
// overlap between adjacent chunks. Blank input yields no chunks.
func SplitText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= ChunkSize {
		return []string{text}
	}

	var chunks []string
	for start := 0; start < len(text); {
		end := start + ChunkSize
		if end >= len(text) {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			break
		}

		// Prefer breaking at a paragraph, then a line, then a space.
		window := text[start:end]
		cut := strings.LastIndex(window, "\n\n")
		if cut < ChunkSize/2 {
			cut = strings.LastIndex(window, "\n")
		}
		if cut < ChunkSize/2 {
			cut = strings.LastIndex(window, " ")
		}
		if cut < ChunkSize/2 {
			cut = len(window)
		}

		chunk := strings.TrimSpace(window[:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := start + cut - ChunkOverlap
		if next <= start {
			next = start + cut
		}
		start = next
	}

	return chunks
}
