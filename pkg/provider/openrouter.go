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

const openRouterAPI = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouterClient talks to the OpenRouter chat completions API.
type OpenRouterClient struct {
	cfg     Config
	baseURL string
	http    *http.Client
}

// NewOpenRouterClient builds a client from normalized config.
func NewOpenRouterClient(cfg Config) *OpenRouterClient {
	return &OpenRouterClient{cfg: cfg, baseURL: openRouterAPI, http: newHTTPClient()}
}

type openRouterRequest struct {
	Model       string             `json:"model"`
	Messages    []openRouterMsg    `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
	Stream      bool               `json:"stream"`
}

type openRouterMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openRouterResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage openRouterUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// Complete sends one synchronous chat completion request.
func (c *OpenRouterClient) Complete(ctx context.Context, system string, messages []assist.Message) (*assist.Completion, error) {
	body, err := c.do(ctx, system, messages, false)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("provider: read openrouter response: %w", err)
	}
	var resp openRouterResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("provider: parse openrouter response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("provider: openrouter error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("provider: empty openrouter response")
	}

	return &assist.Completion{
		Content: resp.Choices[0].Message.Content,
		Usage: assist.TokenUsage{
			Prompt:     resp.Usage.PromptTokens,
			Completion: resp.Usage.CompletionTokens,
			Total:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Stream sends a streaming request and forwards content deltas.
func (c *OpenRouterClient) Stream(ctx context.Context, system string, messages []assist.Message, onToken func(string)) (*assist.Completion, error) {
	body, err := c.do(ctx, system, messages, true)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return parseOpenRouterStream(body, onToken)
}

func (c *OpenRouterClient) do(ctx context.Context, system string, messages []assist.Message, stream bool) (io.ReadCloser, error) {
	reqBody := openRouterRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Stream:      stream,
	}
	if system != "" {
		reqBody.Messages = append(reqBody.Messages, openRouterMsg{Role: "system", Content: system})
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, openRouterMsg{Role: m.Role, Content: m.Content})
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("provider: marshal openrouter request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("provider: create openrouter request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-Title", "inkfold")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider: openrouter request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("provider: openrouter status %d: %s", resp.StatusCode, string(raw))
	}
	return resp.Body, nil
}

type openRouterStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *openRouterUsage `json:"usage,omitempty"`
}

func parseOpenRouterStream(r io.Reader, onToken func(string)) (*assist.Completion, error) {
	var content strings.Builder
	var usage openRouterUsage

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}

		var chunk openRouterStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
		if len(chunk.Choices) > 0 {
			if text := chunk.Choices[0].Delta.Content; text != "" {
				content.WriteString(text)
				if onToken != nil {
					onToken(text)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("provider: read openrouter stream: %w", err)
	}

	return &assist.Completion{
		Content: content.String(),
		Usage: assist.TokenUsage{
			Prompt:     usage.PromptTokens,
			Completion: usage.CompletionTokens,
			Total:      usage.TotalTokens,
		},
	}, nil
}
