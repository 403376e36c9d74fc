package ai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

// streamDone is the sentinel frame that ends an SSE completion stream.
const streamDone = "[DONE]"

// StreamCompletion streams a completion from the resolved provider, invoking
// onToken for each content delta as it arrives. It returns the accumulated
// answer. Providers without streaming support (or unknown providers) fall
// back to a single non-streaming call delivered as one token.
func (c *Client) StreamCompletion(ctx context.Context, requestedProvider string, messages []Message, onToken func(string)) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages array required")
	}
	provider, creds, err := c.resolve(ctx, requestedProvider)
	if err != nil {
		return "", err
	}

	switch provider {
	case ProviderOpenAI:
		return c.streamChat(ctx, openAIEndpoint, creds, openAIMessages(messages), onToken)
	case ProviderDeepSeek:
		return c.streamChat(ctx, deepSeekEndpoint, creds, textMessages(messages), onToken)
	case ProviderGemini:
		return c.callGemini(ctx, creds, messages, true, onToken)
	}

	// Unknown provider: answer in one shot.
	answer, err := c.Call(ctx, requestedProvider, messages)
	if err != nil {
		return "", err
	}
	if onToken != nil {
		onToken(answer)
	}
	return answer, nil
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *Client) streamChat(ctx context.Context, url string, creds credentials, messages []chatMessage, onToken func(string)) (string, error) {
	resp, err := c.postJSON(ctx, url,
		map[string]string{"Authorization": "Bearer " + creds.apiKey},
		chatRequest{Model: creds.model, Messages: messages, Temperature: requestTemperature, Stream: true})
	if err != nil {
		return "", fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("provider error (%d): %s", resp.StatusCode, readErrorBody(resp))
	}

	var answer strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		data, ok := sseData(scanner.Text())
		if !ok {
			continue
		}
		if data == streamDone {
			break
		}
		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			log.WithError(err).Debug("Skipping malformed stream frame")
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		answer.WriteString(token)
		if onToken != nil {
			onToken(token)
		}
	}
	if err := scanner.Err(); err != nil {
		return answer.String(), fmt.Errorf("stream read failed: %w", err)
	}
	return answer.String(), nil
}

func relayGeminiStream(resp *http.Response, onToken func(string)) (string, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini error (%d): %s", resp.StatusCode, readErrorBody(resp))
	}

	var answer strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		data, ok := sseData(scanner.Text())
		if !ok {
			continue
		}
		var chunk geminiResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			log.WithError(err).Debug("Skipping malformed stream frame")
			continue
		}
		if len(chunk.Candidates) == 0 || len(chunk.Candidates[0].Content.Parts) == 0 {
			continue
		}
		token := chunk.Candidates[0].Content.Parts[0].Text
		if token == "" {
			continue
		}
		answer.WriteString(token)
		if onToken != nil {
			onToken(token)
		}
	}
	if err := scanner.Err(); err != nil {
		return answer.String(), fmt.Errorf("stream read failed: %w", err)
	}
	return answer.String(), nil
}

// sseData extracts the payload of a "data:" SSE line. Blank lines and other
// fields are ignored.
func sseData(line string) (string, bool) {
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "data:")), true
}
