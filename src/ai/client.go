package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"interview-copilot-service/src/config"
	"interview-copilot-service/src/models"
)

const requestTemperature = 0.7

// Endpoints are variables so tests can point the client at a local server.
var (
	openAIEndpoint   = "https://api.openai.com/v1/chat/completions"
	deepSeekEndpoint = "https://api.deepseek.com/v1/chat/completions"
	geminiEndpoint   = "https://generativelanguage.googleapis.com/v1beta/models"
)

// SettingsSource supplies the current admin settings (cached, short TTL).
type SettingsSource interface {
	Settings(ctx context.Context) (*models.AdminSettings, error)
}

// Client resolves providers and performs completion calls against them.
type Client struct {
	http     *http.Client
	settings SettingsSource
	cfg      *config.GlobalConfig
}

// NewClient creates an AI client. Streaming requests have no overall timeout;
// cancellation is the caller's context.
func NewClient(settings SettingsSource, cfg *config.GlobalConfig) *Client {
	return &Client{
		http:     &http.Client{},
		settings: settings,
		cfg:      cfg,
	}
}

type credentials struct {
	apiKey string
	model  string
}

// resolve picks the effective provider (falling back to the configured
// default) and its credentials. A provider without a key anywhere is a
// configuration error, distinct from transport failures.
func (c *Client) resolve(ctx context.Context, requested string) (Provider, credentials, error) {
	settings, err := c.settings.Settings(ctx)
	if err != nil {
		return "", credentials{}, fmt.Errorf("failed to load provider settings: %w", err)
	}

	raw := requested
	if raw == "" {
		raw = settings.DefaultProvider
	}
	provider := NormalizeProvider(raw)

	pick := func(fromSettings, fromEnv, fromSettingsModel, fromEnvModel, defaultModel string) (credentials, error) {
		key := fromSettings
		if key == "" {
			key = fromEnv
		}
		if key == "" {
			return credentials{}, fmt.Errorf("%w: %s", models.ErrProviderNotConfigured, provider)
		}
		model := fromSettingsModel
		if model == "" {
			model = fromEnvModel
		}
		if model == "" {
			model = defaultModel
		}
		return credentials{apiKey: key, model: model}, nil
	}

	switch provider {
	case ProviderOpenAI:
		creds, err := pick(settings.OpenAIAPIKey, c.cfg.OpenAIAPIKey, settings.OpenAIModel, c.cfg.OpenAIModel, defaultOpenAIModel)
		return provider, creds, err
	case ProviderDeepSeek:
		creds, err := pick(settings.DeepSeekAPIKey, c.cfg.DeepSeekAPIKey, settings.DeepSeekModel, c.cfg.DeepSeekModel, defaultDeepSeekModel)
		return provider, creds, err
	case ProviderGemini:
		creds, err := pick(settings.GeminiAPIKey, c.cfg.GeminiAPIKey, settings.GeminiModel, c.cfg.GeminiModel, defaultGeminiModel)
		return provider, creds, err
	}
	// Unknown provider: no credentials; the relay falls back to a
	// non-streaming call, which reports it.
	return provider, credentials{}, nil
}

// --- non-streaming ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func openAIMessages(messages []Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		if len(m.Images) == 0 {
			out = append(out, chatMessage{Role: m.Role, Content: m.Content})
			continue
		}
		parts := []map[string]any{{"type": "text", "text": m.Content}}
		for _, url := range m.Images {
			parts = append(parts, map[string]any{"type": "image_url", "image_url": map[string]string{"url": url}})
		}
		out = append(out, chatMessage{Role: m.Role, Content: parts})
	}
	return out
}

func textMessages(messages []Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, chatMessage{Role: m.Role, Content: flattenContent(m)})
	}
	return out
}

func geminiContents(messages []Message) []geminiContent {
	out := make([]geminiContent, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		out = append(out, geminiContent{Role: role, Parts: []geminiPart{{Text: flattenContent(m)}}})
	}
	return out
}

func (c *Client) postJSON(ctx context.Context, url string, headers map[string]string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.http.Do(req)
}

func readErrorBody(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(body) == 0 {
		return resp.Status
	}
	return string(body)
}

// Call performs a single non-streaming completion.
func (c *Client) Call(ctx context.Context, requestedProvider string, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages array required")
	}
	provider, creds, err := c.resolve(ctx, requestedProvider)
	if err != nil {
		return "", err
	}

	switch provider {
	case ProviderOpenAI:
		return c.callChat(ctx, openAIEndpoint, creds, openAIMessages(messages))
	case ProviderDeepSeek:
		return c.callChat(ctx, deepSeekEndpoint, creds, textMessages(messages))
	case ProviderGemini:
		return c.callGemini(ctx, creds, messages, false, nil)
	}
	return "", fmt.Errorf("unsupported provider: %s", provider)
}

func (c *Client) callChat(ctx context.Context, url string, creds credentials, messages []chatMessage) (string, error) {
	resp, err := c.postJSON(ctx, url,
		map[string]string{"Authorization": "Bearer " + creds.apiKey},
		chatRequest{Model: creds.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("provider error (%d): %s", resp.StatusCode, readErrorBody(resp))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode provider response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("provider returned no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

func (c *Client) callGemini(ctx context.Context, creds credentials, messages []Message, stream bool, onToken func(string)) (string, error) {
	mode := "generateContent"
	if stream {
		mode = "streamGenerateContent"
	}
	url := fmt.Sprintf("%s/%s:%s?key=%s", geminiEndpoint, creds.model, mode, creds.apiKey)
	if stream {
		url += "&alt=sse"
	}

	body := geminiRequest{Contents: geminiContents(messages)}
	body.GenerationConfig.Temperature = requestTemperature

	resp, err := c.postJSON(ctx, url, nil, body)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	if stream {
		return relayGeminiStream(resp, onToken)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini error (%d): %s", resp.StatusCode, readErrorBody(resp))
	}
	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return decoded.Candidates[0].Content.Parts[0].Text, nil
}

// SetTimeout sets an overall timeout for non-streaming calls. Zero means none.
func (c *Client) SetTimeout(d time.Duration) {
	c.http.Timeout = d
}
