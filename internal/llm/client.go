// Package llm is an OpenAI-compatible chat client used for transcript
// corrections and filename classification. LM Studio's local endpoint is
// the default target; any conforming server works.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bjjanalyzer/internal/domain"
	"bjjanalyzer/internal/domain/ports"
)

// Client talks to a /v1/chat/completions endpoint.
type Client struct {
	Endpoint    string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64

	httpClient *http.Client
}

// New builds a client with the given request timeout.
func New(endpoint, apiKey, model string, maxTokens int, temperature float64, timeout time.Duration) *Client {
	return &Client{
		Endpoint:    endpoint,
		APIKey:      apiKey,
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model       string              `json:"model"`
	Messages    []ports.ChatMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends one conversation and returns the first choice's content.
func (c *Client) Chat(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.Model,
		Messages:    messages,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("llm: http %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("llm: parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("llm: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response")
	}
	return parsed.Choices[0].Message.Content, nil
}

// Available probes the endpoint's health route (the chat path swapped for
// /health, matching LM Studio) with a short deadline.
func (c *Client) Available(ctx context.Context) bool {
	healthURL := strings.Replace(c.Endpoint, "/v1/chat/completions", "/health", 1)
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, healthURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// Corrections asks the model for transcript replacement pairs.
func (c *Client) Corrections(ctx context.Context, transcript string) (domain.CorrectionSet, error) {
	messages := []ports.ChatMessage{
		{Role: "system", Content: correctionPrompt},
		{Role: "user", Content: "Analyze this BJJ transcription and return only the corrections needed:\n\n" + transcript},
	}
	content, err := c.Chat(ctx, messages)
	if err != nil {
		return domain.CorrectionSet{}, fmt.Errorf("%w: %v", domain.ErrCorrectionFailed, err)
	}
	return ParseCorrections(content), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
