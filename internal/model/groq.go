package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deskmate/deskmate-backend/internal/platform/apierr"
	"github.com/deskmate/deskmate-backend/internal/platform/httpx"
	"github.com/deskmate/deskmate-backend/internal/platform/logger"
)

const defaultGroqAPIURL = "https://api.groq.com/openai/v1/chat/completions"

const groqSystemPrompt = "You are DeskMate, a precise service desk copilot."

// GroqProvider calls Groq's OpenAI-compatible chat completions endpoint.
// Requires an API key; the hosted model name is configured separately from
// the local model name.
type GroqProvider struct {
	log        *logger.Logger
	apiKey     string
	apiURL     string
	model      string
	httpClient *http.Client
}

func NewGroqProvider(log *logger.Logger, apiKey, apiURL, model string, timeout time.Duration) (*GroqProvider, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GROQ_API_KEY must be set for the hosted provider")
	}
	apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if apiURL == "" {
		apiURL = defaultGroqAPIURL
	}
	if model == "" {
		model = "llama-3.1-8b-instant"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &GroqProvider{
		log:        log.With("service", "GroqProvider"),
		apiKey:     apiKey,
		apiURL:     apiURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (p *GroqProvider) Name() string { return "hosted-groq" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqChatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type groqChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (p *GroqProvider) Generate(ctx context.Context, prompt string) (string, error) {
	body := groqChatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: groqSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
		MaxTokens:   512,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return "", apierr.Provider("groq_encode_failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, &buf)
	if err != nil {
		return "", apierr.Provider("groq_request_failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", apierr.Provider("groq_request_failed", err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return "", apierr.Provider("groq_read_failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apierr.Provider("groq_bad_status",
			&httpx.StatusError{StatusCode: resp.StatusCode, Body: string(raw)})
	}

	var decoded groqChatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", apierr.Provider("groq_decode_failed", err)
	}
	text := ""
	if len(decoded.Choices) > 0 {
		text = decoded.Choices[0].Message.Content
		if text == "" {
			text = decoded.Choices[0].Delta.Content
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apierr.Provider("groq_empty_response",
			fmt.Errorf("model=%s missing choice content", p.model))
	}
	return text, nil
}

// Reachable probes the vendor's models listing with a short bounded timeout.
func (p *GroqProvider) Reachable(ctx context.Context) bool {
	return probeGet(ctx, p.httpClient, groqModelsURL(p.apiURL), map[string]string{
		"Authorization": "Bearer " + p.apiKey,
	})
}

// groqModelsURL rewrites the chat completions URL into the sibling models
// endpoint used for reachability checks.
func groqModelsURL(apiURL string) string {
	sanitized := strings.TrimRight(apiURL, "/")
	sanitized = strings.TrimSuffix(sanitized, "/chat/completions")
	if strings.HasSuffix(sanitized, "/openai/v1") {
		return sanitized + "/models"
	}
	if base, _, found := strings.Cut(sanitized, "/openai/v1"); found {
		return strings.TrimRight(base, "/") + "/openai/v1/models"
	}
	return strings.TrimRight(sanitized, "/") + "/openai/v1/models"
}
