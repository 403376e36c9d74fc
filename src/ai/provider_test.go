package ai

import "testing"

func TestNormalizeProvider(t *testing.T) {
	tests := []struct {
		in   string
		want Provider
	}{
		{"openai", ProviderOpenAI},
		{"OpenAI", ProviderOpenAI},
		{"gpt", ProviderOpenAI},
		{"chatgpt", ProviderOpenAI},
		{"deepseek", ProviderDeepSeek},
		{"DEEPSEEK", ProviderDeepSeek},
		{"gemini", ProviderGemini},
		{"Gemini", ProviderGemini},
		{"", ProviderOpenAI},
		{"claude", Provider("claude")},
	}
	for _, tt := range tests {
		if got := NormalizeProvider(tt.in); got != tt.want {
			t.Errorf("NormalizeProvider(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFlattenContent(t *testing.T) {
	m := Message{
		Role:    "user",
		Content: "what is on screen",
		Images:  []string{"https://example.com/a.png"},
	}
	got := flattenContent(m)
	want := "what is on screen\n[Image: https://example.com/a.png]"
	if got != want {
		t.Errorf("flattenContent = %q, want %q", got, want)
	}

	plain := Message{Role: "user", Content: "hello"}
	if got := flattenContent(plain); got != "hello" {
		t.Errorf("flattenContent without images = %q", got)
	}
}
