package embed

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

const maxEmbedRetries = 2

// RemoteProvider calls an Ollama-style embeddings endpoint
// (POST {host}/api/embeddings with {"model": ..., "input": [...]}). Both the
// batch response shape ({"data": [{"embedding": [...]}, ...]}) and the
// single-vector shape ({"embedding": [...]}) are accepted.
type RemoteProvider struct {
	log        *logger.Logger
	host       string
	model      string
	dim        int
	httpClient *http.Client
}

func NewRemoteProvider(log *logger.Logger, host, model string, dim int, timeout time.Duration) (*RemoteProvider, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		host = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	if dim <= 0 {
		dim = DefaultStubDim
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteProvider{
		log:        log.With("service", "RemoteEmbedder"),
		host:       host,
		model:      model,
		dim:        dim,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (p *RemoteProvider) Name() string { return "remote" }
func (p *RemoteProvider) Dim() int     { return p.dim }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Embedding []float64 `json:"embedding"`
}

func (p *RemoteProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	clean := make([]string, len(texts))
	for i := range texts {
		s := strings.TrimSpace(texts[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	var resp embedResponse
	if err := p.do(ctx, embedRequest{Model: p.model, Input: clean}, &resp); err != nil {
		return nil, apierr.Provider("embed_request_failed", err)
	}

	vectors := resp.Data
	if len(vectors) == 0 && len(resp.Embedding) > 0 {
		vectors = []struct {
			Embedding []float64 `json:"embedding"`
		}{{Embedding: resp.Embedding}}
	}
	if len(vectors) != len(clean) {
		return nil, apierr.Provider("embed_count_mismatch",
			fmt.Errorf("requested=%d returned=%d model=%s", len(clean), len(vectors), p.model))
	}

	out := make([][]float32, len(vectors))
	for i, d := range vectors {
		if len(d.Embedding) == 0 {
			return nil, apierr.Provider("embed_empty_vector",
				fmt.Errorf("index=%d model=%s", i, p.model))
		}
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		out[i] = vec
	}
	return out, nil
}

func (p *RemoteProvider) do(ctx context.Context, body any, out any) error {
	backoff := 500 * time.Millisecond

	for attempt := 0; attempt <= maxEmbedRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, raw, err := p.doOnce(ctx, body)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("decode embeddings response: %w", uErr)
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == maxEmbedRetries {
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 5*time.Second))
		p.log.Warn("Embeddings request retrying",
			"attempt", attempt+1,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}

func (p *RemoteProvider) doOnce(ctx context.Context, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/embeddings", &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpx.StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// Reachable probes the host's tags endpoint with a short bounded timeout.
func (p *RemoteProvider) Reachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
