package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultNLLBModel is the checkpoint the inference server is expected to serve.
const DefaultNLLBModel = "facebook/nllb-200-distilled-600M"

// NLLBBackend calls an NLLB-200 inference server.
//
//	POST {endpoint}/translate  {"text","src_lang","tgt_lang","model"} -> {"translation"}
//	GET  {endpoint}/health                                             -> 200 when the model is loaded
type NLLBBackend struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

type nllbRequest struct {
	Request
	Model string `json:"model,omitempty"`
}

type nllbResponse struct {
	Translation  string   `json:"translation"`
	Translations []string `json:"translations"`
	Error        string   `json:"error"`
}

type nllbHealth struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

// NewNLLBBackend creates a backend for the server at endpoint.
func NewNLLBBackend(endpoint, model string) *NLLBBackend {
	if model == "" {
		model = DefaultNLLBModel
	}
	return &NLLBBackend{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		// Generation has no deadline; a stuck server stalls the caller.
		httpClient: &http.Client{},
	}
}

// WithHTTPClient replaces the HTTP client (for testing).
func (b *NLLBBackend) WithHTTPClient(client *http.Client) *NLLBBackend {
	b.httpClient = client
	return b
}

func (b *NLLBBackend) Name() string { return "nllb" }

// Translate sends req to the server and returns the first generated sequence.
func (b *NLLBBackend) Translate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(nllbRequest{Request: req, Model: b.model})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslationFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var out nllbResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", fmt.Errorf("%w: decode response: %v", ErrTranslationFailed, err)
		}
	}
	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return "", fmt.Errorf("%w: server returned %d: %s", ErrTranslationFailed, resp.StatusCode, msg)
	}

	if out.Translation != "" {
		return out.Translation, nil
	}
	if len(out.Translations) > 0 {
		return out.Translations[0], nil
	}
	return "", fmt.Errorf("%w: empty response", ErrTranslationFailed)
}

// Ready checks that the server is up and serving the configured model.
func (b *NLLBBackend) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned %d", ErrModelUnavailable, resp.StatusCode)
	}

	var health nllbHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		// A bare 200 is enough.
		return nil
	}
	if health.Model != "" && health.Model != b.model {
		return fmt.Errorf("%w: server has %s loaded, want %s", ErrModelUnavailable, health.Model, b.model)
	}
	return nil
}
