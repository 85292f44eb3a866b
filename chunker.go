package ragdoc

import "strings"

const ParagraphSeparator = "\n\n"

// SplitParagraphs splits text on blank-line boundaries, trims each piece and
// drops the empty ones. Order follows the source text.
func SplitParagraphs(text string) []string {
	parts := strings.Split(text, ParagraphSeparator)

	chunks := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		chunks = append(chunks, part)
	}

	return chunks
}
