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

// LlamaCppProvider calls a llama.cpp server (POST {host}/completion). The
// server's response shape varies by version, so several layouts are accepted.
type LlamaCppProvider struct {
	log        *logger.Logger
	host       string
	model      string
	httpClient *http.Client
}

func NewLlamaCppProvider(log *logger.Logger, host, model string, timeout time.Duration) (*LlamaCppProvider, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		host = "http://localhost:8080"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &LlamaCppProvider{
		log:        log.With("service", "LlamaCppProvider"),
		host:       host,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (p *LlamaCppProvider) Name() string { return "llamacpp" }

type llamaCppResponse struct {
	Content string `json:"content"`
	Text    string `json:"text"`
	Choices []struct {
		Text    string `json:"text"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *LlamaCppProvider) Generate(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"prompt":      prompt,
		"temperature": 0,
		"stream":      false,
		"n_predict":   256,
	}
	if p.model != "" {
		body["model"] = p.model
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return "", apierr.Provider("llamacpp_encode_failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/completion", &buf)
	if err != nil {
		return "", apierr.Provider("llamacpp_request_failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", apierr.Provider("llamacpp_request_failed", err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return "", apierr.Provider("llamacpp_read_failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apierr.Provider("llamacpp_bad_status",
			&httpx.StatusError{StatusCode: resp.StatusCode, Body: string(raw)})
	}

	var decoded llamaCppResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", apierr.Provider("llamacpp_decode_failed", err)
	}
	text := strings.TrimSpace(extractLlamaCppText(decoded))
	if text == "" {
		return "", apierr.Provider("llamacpp_empty_response",
			fmt.Errorf("host=%s missing completion text", p.host))
	}
	return text, nil
}

func extractLlamaCppText(r llamaCppResponse) string {
	if r.Content != "" {
		return r.Content
	}
	if r.Text != "" {
		return r.Text
	}
	if len(r.Choices) > 0 {
		if r.Choices[0].Text != "" {
			return r.Choices[0].Text
		}
		return r.Choices[0].Message.Content
	}
	return ""
}

// Reachable probes {host}/health with a short bounded timeout.
func (p *LlamaCppProvider) Reachable(ctx context.Context) bool {
	return probeGet(ctx, p.httpClient, p.host+"/health", nil)
}
