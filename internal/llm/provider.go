package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Message - одно сообщение чата в формате OpenAI API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest - запрос к LLM-оракулу. AgentName и TaskID нужны только
// аудиту, в сеть не уходят.
type ChatRequest struct {
	Model     string
	Messages  []Message
	JSONReply bool // добавить response_format: json_object

	AgentName string
	TaskID    string
}

// Provider абстрагирует LLM-оракула: принимает сообщения, возвращает
// текст ответа ассистента. Реализации обязаны быть потокобезопасными.
type Provider interface {
	Chat(ctx context.Context, req *ChatRequest) (string, error)
}

// OpenAIProvider ходит в OpenAI-совместимый chat endpoint. Совместимость
// здесь означает ровно POST /chat/completions с messages и опциональным
// response_format - ничего больше от сервера не требуется.
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	auditor *Auditor
}

func NewOpenAIProvider(apiKey, baseURL string, auditor *Auditor) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client: &http.Client{
			// Генерация длинных JSON-пакетов занимает время
			Timeout: 120 * time.Second,
		},
		auditor: auditor,
	}
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) Chat(ctx context.Context, req *ChatRequest) (string, error) {
	payload := chatCompletionRequest{
		Model:    req.Model,
		Messages: req.Messages,
	}
	if req.JSONReply {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat completion call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completion status %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("chat completion error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	content := parsed.Choices[0].Message.Content
	p.auditor.Record(req.AgentName, req.TaskID, req.Messages, content)
	return content, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
