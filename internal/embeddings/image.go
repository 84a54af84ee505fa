package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPImageEmbedder calls an image embedding service (a CLIP server, for
// example). The service receives the raw image as the request body and
// answers {"embedding": [...]}.
type HTTPImageEmbedder struct {
	url        string
	dimensions int
	httpClient *http.Client
}

// NewHTTPImageEmbedder creates an image embedder posting to url.
func NewHTTPImageEmbedder(url string, dimensions int) *HTTPImageEmbedder {
	return &HTTPImageEmbedder{
		url:        url,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *HTTPImageEmbedder) Dimensions() int {
	return e.dimensions
}

type imageEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *HTTPImageEmbedder) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("create image embed request: %w", err)
	}
	req.Header.Set("Content-Type", http.DetectContentType(image))

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("image embedder returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result imageEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode image embed response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("image embedder returned an empty vector")
	}
	if e.dimensions > 0 && len(result.Embedding) != e.dimensions {
		return nil, fmt.Errorf("image embedder returned %d dimensions, expected %d", len(result.Embedding), e.dimensions)
	}
	return result.Embedding, nil
}
