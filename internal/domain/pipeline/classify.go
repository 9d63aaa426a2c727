package pipeline

import "strings"

// Category tags a prompt with its execution path.
type Category string

const (
	// CategoryAgent routes the prompt to the tool-using agent runtime.
	CategoryAgent Category = "agent"
	// CategoryKnowledge routes the prompt through retrieval + generation.
	CategoryKnowledge Category = "knowledge"
)

// Prompt phrases that suggest agent tool use (appointments, scheduling,
// knowledge search, refills).
var agentWorthyPhrases = []string{
	"appointment", "schedule", "book", "reschedule", "cancel appointment",
	"callback", "schedule a call", "get appointment", "my appointments",
	"weather", "search", "knowledge", "refill", "prescription refill",
}

// Classify tags a prompt by case-insensitive substring match against the
// trigger phrases. Pure and I/O free.
func Classify(prompt string) Category {
	lower := strings.ToLower(prompt)
	for _, phrase := range agentWorthyPhrases {
		if strings.Contains(lower, phrase) {
			return CategoryAgent
		}
	}
	return CategoryKnowledge
}

// IsAgentWorthy reports whether the prompt should go to the agent runtime.
func IsAgentWorthy(prompt string) bool {
	return Classify(prompt) == CategoryAgent
}
