package prompt

import (
	"log"
	"os"
	"strings"

	"libra-ai-worker/internal/llm"
)

// defaultPersona is the built-in system persona, used when no prompt
// file is configured.
const defaultPersona = `You are Libra, a friendly AI assistant on Discord.

How to answer:
- Converse naturally in the user's language
- Answer the question directly
- Remember and refer back to earlier conversation
- Keep answers short and clear`

// Persona loads the system persona from path, falling back to the
// built-in default when the path is empty or unreadable.
func Persona(path string) string {
	if path == "" {
		return defaultPersona
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("system prompt file not readable at %s, using default: %v", path, err)
		return defaultPersona
	}
	return strings.TrimSpace(string(data))
}

// Compose joins the persona with per-request directive blocks into one
// system prompt.
func Compose(persona string, directives ...string) string {
	parts := append([]string{persona}, directives...)
	return strings.Join(parts, "\n\n")
}

// Build produces the ordered message list sent to the provider:
// system prompt, then history, then the new user turn. No deduplication
// and no truncation; history is already bounded by the store.
func Build(system string, history []llm.Message, user llm.Message) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: system})
	msgs = append(msgs, history...)
	msgs = append(msgs, user)
	return msgs
}
