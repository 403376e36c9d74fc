package ai

import "strings"

// Provider identifies an upstream completion vendor.
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderDeepSeek Provider = "deepseek"
	ProviderGemini   Provider = "gemini"
)

// Default models per provider, used when neither admin settings nor the
// environment pin one.
const (
	defaultOpenAIModel   = "gpt-4.1-mini"
	defaultDeepSeekModel = "deepseek-chat"
	defaultGeminiModel   = "gemini-1.5-flash"
)

// NormalizeProvider maps free-form client input, including known aliases,
// onto the provider enum. Empty input yields ProviderOpenAI; unknown input is
// passed through lowercased so the caller can report it.
func NormalizeProvider(raw string) Provider {
	p := strings.ToLower(strings.TrimSpace(raw))
	switch p {
	case "", "openai", "gpt", "chatgpt":
		return ProviderOpenAI
	case "deepseek":
		return ProviderDeepSeek
	case "gemini":
		return ProviderGemini
	}
	return Provider(p)
}

// Message is one chat turn in a completion request. Images carries optional
// data URLs for vision-capable requests; text-only providers receive them
// flattened into the content.
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// flattenContent folds image references into plain text for providers whose
// request shape is text-only.
func flattenContent(m Message) string {
	if len(m.Images) == 0 {
		return m.Content
	}
	parts := []string{m.Content}
	for _, url := range m.Images {
		parts = append(parts, "[Image: "+url+"]")
	}
	return strings.Join(parts, "\n")
}
