// Package refine asks an LLM for an advisory refinement of a recycled
// experiment. Suggestions are logged by the caller and never affect state.
package refine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"patternlab/internal/models"
)

const systemMessage = "You are a quantitative trading analyst. Base every suggestion strictly on the supplied experiment data. Be concise and concrete: one refined pattern hypothesis and the reason it should outperform the recycled one."

// Advisor produces a refinement suggestion for a recycled experiment.
type Advisor interface {
	SuggestRefinement(ctx context.Context, exp models.Experiment, priorPnL *float64) (string, error)
}

// Client talks to an OpenAI-compatible chat completion endpoint.
type Client struct {
	Endpoint string
	APIKey   string
	Model    string
	HTTP     *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) SuggestRefinement(ctx context.Context, exp models.Experiment, priorPnL *float64) (string, error) {
	if c == nil || strings.TrimSpace(c.Endpoint) == "" {
		return "", fmt.Errorf("refiner endpoint not configured")
	}
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	body, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemMessage},
			{Role: "user", Content: formatRefinementPrompt(exp, priorPnL)},
		},
		Temperature: 0.4,
		MaxTokens:   400,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("refiner returned %d: %s", resp.StatusCode, string(raw))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("refiner returned no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func formatRefinementPrompt(exp models.Experiment, priorPnL *float64) string {
	var sb strings.Builder
	sb.Grow(512)
	sb.WriteString("A simulated trading experiment was just discarded. Suggest one refinement.\n\n")
	sb.WriteString(fmt.Sprintf("Pattern: %s\n", exp.Title))
	if exp.Description != "" {
		sb.WriteString(fmt.Sprintf("Description: %s\n", exp.Description))
	}
	sb.WriteString(fmt.Sprintf("Category: %s, confidence %.0f/100 over %d observations\n",
		exp.Category, exp.Confidence, exp.ObservationCount))
	sb.WriteString(fmt.Sprintf("Trigger asset: %s, traded asset: %s, direction: %s\n",
		exp.TriggerAsset, exp.AffectedAsset, exp.TradeDirection))
	sb.WriteString(fmt.Sprintf("Final status: %s\n", exp.Status))
	if priorPnL != nil {
		sb.WriteString(fmt.Sprintf("Realized pnl: %.2f USD\n", *priorPnL))
	} else {
		sb.WriteString("Realized pnl: none (trade never completed)\n")
	}
	return sb.String()
}
