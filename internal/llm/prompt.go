package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// BuildTurns assembles the upstream message list: a system turn carrying
// the assistant persona and the knowledge base, followed by the chat
// history. An empty knowledge base yields a plain persona turn.
func BuildTurns(projectName, knowledgeBase string, history []Turn) []Turn {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a helpful assistant for the project %q. "+
		"Answer using the project's documents when relevant.", projectName)

	if knowledgeBase != "" {
		b.WriteString("\n\nProject documents:\n\n")
		b.WriteString(knowledgeBase)
	}

	turns := make([]Turn, 0, len(history)+1)
	turns = append(turns, Turn{Role: "system", Content: b.String()})
	turns = append(turns, history...)
	return turns
}

// TrimToBudget truncates knowledge-base text to at most budget bytes,
// cutting at a line boundary where possible so a document is not sliced
// mid-sentence. The cut never splits a multi-byte rune.
func TrimToBudget(text string, budget int) string {
	if budget <= 0 || len(text) <= budget {
		return text
	}

	cut := strings.LastIndexByte(text[:budget], '\n')
	if cut < budget/2 {
		cut = budget
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
	}
	return text[:cut]
}

// TitlePrompt builds the one-shot turns used to name a conversation from
// its first user message.
func TitlePrompt(firstMessage string) []Turn {
	return []Turn{
		{Role: "system", Content: "Reply with a short title (at most six words) " +
			"summarizing the user's message. Reply with the title only."},
		{Role: "user", Content: firstMessage},
	}
}
