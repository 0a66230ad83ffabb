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

// OllamaProvider calls the Ollama REST API (POST {host}/api/generate) with
// streaming disabled and temperature pinned to zero.
type OllamaProvider struct {
	log        *logger.Logger
	host       string
	model      string
	httpClient *http.Client
}

func NewOllamaProvider(log *logger.Logger, host, model string, timeout time.Duration) (*OllamaProvider, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		host = "http://localhost:11434"
	}
	if model == "" {
		model = "phi3:mini"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &OllamaProvider{
		log:        log.With("service", "OllamaProvider"),
		host:       host,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (p *OllamaProvider) Name() string { return "ollama" }

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func (p *OllamaProvider) Generate(ctx context.Context, prompt string) (string, error) {
	body := ollamaGenerateRequest{
		Model:  p.model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]any{
			"temperature": 0,
			"num_predict": 256,
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return "", apierr.Provider("ollama_encode_failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/generate", &buf)
	if err != nil {
		return "", apierr.Provider("ollama_request_failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", apierr.Provider("ollama_request_failed", err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return "", apierr.Provider("ollama_read_failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apierr.Provider("ollama_bad_status",
			&httpx.StatusError{StatusCode: resp.StatusCode, Body: string(raw)})
	}

	var decoded ollamaGenerateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", apierr.Provider("ollama_decode_failed", err)
	}
	text := strings.TrimSpace(decoded.Response)
	if text == "" {
		return "", apierr.Provider("ollama_empty_response",
			fmt.Errorf("model=%s missing response field", p.model))
	}
	return text, nil
}

// Reachable probes {host}/api/tags with a short bounded timeout.
func (p *OllamaProvider) Reachable(ctx context.Context) bool {
	return probeGet(ctx, p.httpClient, p.host+"/api/tags", nil)
}

func probeGet(ctx context.Context, client *http.Client, url string, headers map[string]string) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
