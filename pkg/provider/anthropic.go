package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/inkfold/inkfold/pkg/assist"
)

const (
	anthropicAPI     = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	cfg     Config
	baseURL string
	http    *http.Client
}

// NewAnthropicClient builds a client from normalized config.
func NewAnthropicClient(cfg Config) *AnthropicClient {
	return &AnthropicClient{cfg: cfg, baseURL: anthropicAPI, http: newHTTPClient()}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends one synchronous messages request.
func (c *AnthropicClient) Complete(ctx context.Context, system string, messages []assist.Message) (*assist.Completion, error) {
	body, err := c.do(ctx, system, messages, false)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("provider: read anthropic response: %w", err)
	}
	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("provider: parse anthropic response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("provider: anthropic: %s", resp.Error.Message)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(block.Text)
		}
	}
	return &assist.Completion{
		Content: sb.String(),
		Usage: assist.TokenUsage{
			Prompt:     resp.Usage.InputTokens,
			Completion: resp.Usage.OutputTokens,
			Total:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

// Stream sends a streaming request and forwards text deltas to onToken.
func (c *AnthropicClient) Stream(ctx context.Context, system string, messages []assist.Message, onToken func(string)) (*assist.Completion, error) {
	body, err := c.do(ctx, system, messages, true)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return parseAnthropicStream(body, onToken)
}

func (c *AnthropicClient) do(ctx context.Context, system string, messages []assist.Message, stream bool) (io.ReadCloser, error) {
	reqBody := anthropicRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		System:      system,
		Stream:      stream,
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("provider: marshal anthropic request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("provider: create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider: anthropic request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("provider: anthropic status %d: %s", resp.StatusCode, string(raw))
	}
	return resp.Body, nil
}

// Anthropic SSE events carry typed JSON payloads: message_start has the
// input token count, content_block_delta the text pieces, message_delta
// the running output count.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Message struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func parseAnthropicStream(r io.Reader, onToken func(string)) (*assist.Completion, error) {
	var content strings.Builder
	var inputTokens, outputTokens int

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue // keep-alives and unknown frames
		}
		switch event.Type {
		case "message_start":
			inputTokens = event.Message.Usage.InputTokens
		case "content_block_delta":
			if event.Delta.Text != "" {
				content.WriteString(event.Delta.Text)
				if onToken != nil {
					onToken(event.Delta.Text)
				}
			}
		case "message_delta":
			if event.Usage.OutputTokens > 0 {
				outputTokens = event.Usage.OutputTokens
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("provider: read anthropic stream: %w", err)
	}

	return &assist.Completion{
		Content: content.String(),
		Usage: assist.TokenUsage{
			Prompt:     inputTokens,
			Completion: outputTokens,
			Total:      inputTokens + outputTokens,
		},
	}, nil
}
