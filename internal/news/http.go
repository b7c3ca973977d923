package news

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPGenerator asks an OpenAI-compatible chat completion endpoint for a
// headline.
type HTTPGenerator struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewHTTPGenerator creates a generator for the given endpoint.
func NewHTTPGenerator(baseURL, apiKey, model string) *HTTPGenerator {
	return &HTTPGenerator{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Generate implements Generator.
func (g *HTTPGenerator) Generate(ctx context.Context, balance, rate decimal.Decimal) (string, error) {
	prompt := fmt.Sprintf(
		"Current assets: $%s, income per second: $%s. "+
			"Write one short, funny breaking-news headline about the economy or getting rich that fits this situation. "+
			"At most twelve words, no emoji.",
		balance.Floor().String(), rate.StringFixed(1))

	body, err := json.Marshal(chatRequest{
		Model:       g.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   60,
		Temperature: 0.8,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests || strings.Contains(strings.ToLower(string(respBody)), "quota") {
			return "", fmt.Errorf("%w (status %d)", ErrRateLimited, resp.StatusCode)
		}
		return "", fmt.Errorf("generator error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyHeadline
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

var _ Generator = (*HTTPGenerator)(nil)
