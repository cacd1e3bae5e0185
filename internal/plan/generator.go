package plan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

var ErrEmptyPrompt = errors.New("prompt is required")

// FallbackSubtasks is returned whenever the model cannot produce a usable plan.
var FallbackSubtasks = []string{
	"Clarify the main objective",
	"Break it into clear steps",
	"Start with the first focused task",
}

const systemPrompt = "Return only a JSON array of %d short subtasks to achieve the goal. No explanations, no markdown."

type Options struct {
	Enabled     bool
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxSubtasks int
	Timeout     time.Duration
}

// Generator asks a hosted chat-completions API to split a goal into subtasks.
type Generator struct {
	opts   Options
	client *http.Client
}

func NewGenerator(opts Options) *Generator {
	if opts.MaxSubtasks < 1 {
		opts.MaxSubtasks = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Generator{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
	}
}

func (g *Generator) IsEnabled() bool {
	return g.opts.Enabled && g.opts.BaseURL != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate returns subtasks for prompt. Only an empty prompt is an error; any
// upstream problem degrades to FallbackSubtasks.
func (g *Generator) Generate(ctx context.Context, prompt string) ([]string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if !g.IsEnabled() {
		return fallback(), nil
	}

	text, err := g.complete(ctx, prompt)
	if err != nil {
		log.Printf("Warning: plan generation failed, using fallback: %v", err)
		return fallback(), nil
	}

	subtasks := ParseSubtasks(text, g.opts.MaxSubtasks)
	if len(subtasks) == 0 {
		log.Printf("Warning: unusable plan output (%d bytes), using fallback", len(text))
		return fallback(), nil
	}
	return subtasks, nil
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: g.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPrompt, g.opts.MaxSubtasks)},
			{Role: "user", Content: fmt.Sprintf("Create %d subtasks for: %s", g.opts.MaxSubtasks, prompt)},
		},
		Temperature: g.opts.Temperature,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(g.opts.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.opts.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("chat completions returned %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return chatResp.Choices[0].Message.Content, nil
}

func fallback() []string {
	return append([]string(nil), FallbackSubtasks...)
}
