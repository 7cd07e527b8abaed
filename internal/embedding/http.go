package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/taskmesh/semdex/pkg/utils"
)

// HTTPEmbedder calls an external embedding provider over HTTP. Input text is
// truncated to maxChars before the call; provider failures are reported as
// ErrUnavailable.
type HTTPEmbedder struct {
	url        string
	apiKey     string
	model      string
	dimensions int
	maxChars   int
	client     *http.Client
}

// NewHTTPEmbedder creates an embedder for the provider at url. timeout bounds
// each provider call.
func NewHTTPEmbedder(url, apiKey, model string, dimensions, maxChars int, timeout time.Duration) (*HTTPEmbedder, error) {
	if url == "" {
		return nil, fmt.Errorf("embedding provider URL is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", dimensions)
	}
	return &HTTPEmbedder{
		url:        url,
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		maxChars:   maxChars,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type embedRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding for a single text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch embeds texts in one provider call, preserving input order.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	input := make([]string, len(texts))
	for i, text := range texts {
		input[i] = utils.TruncateChars(text, e.maxChars)
	}

	body, err := json.Marshal(embedRequest{
		Model:          e.model,
		Input:          input,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("x-api-key", e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: provider returned %d: %s", ErrUnavailable, resp.StatusCode, snippet)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to decode provider response: %v", ErrUnavailable, err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%w: provider returned %d embeddings for %d inputs",
			ErrUnavailable, len(parsed.Data), len(texts))
	}

	embeddings := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		if len(d.Embedding) != e.dimensions {
			return nil, fmt.Errorf("%w: provider returned %d-dimensional embedding, expected %d",
				ErrUnavailable, len(d.Embedding), e.dimensions)
		}
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *HTTPEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HTTPEmbedder.
func (e *HTTPEmbedder) Close() error {
	return nil
}
