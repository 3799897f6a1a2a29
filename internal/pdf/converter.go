// internal/pdf/converter.go
package pdf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Options are the page options passed to the HTML-to-PDF converter.
type Options struct {
	Paper       string `json:"paper"`       // "a4", "letter"
	Orientation string `json:"orientation"` // "portrait", "landscape"
}

func DefaultOptions() Options {
	return Options{Paper: "a4", Orientation: "portrait"}
}

// Converter turns an HTML document into raw PDF bytes. The converter is an
// external collaborator; a failed conversion is a hard failure for the
// attachment being rendered.
type Converter interface {
	Convert(ctx context.Context, html string, opts Options) ([]byte, error)
}

// HTTPConverter talks to a sidecar HTML-to-PDF service over HTTP.
type HTTPConverter struct {
	url    string
	client *http.Client
}

func NewHTTPConverter(url string) *HTTPConverter {
	return &HTTPConverter{
		url: url,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type convertRequest struct {
	HTML        string `json:"html"`
	Paper       string `json:"paper"`
	Orientation string `json:"orientation"`
}

func (c *HTTPConverter) Convert(ctx context.Context, html string, opts Options) ([]byte, error) {
	payload, err := json.Marshal(convertRequest{
		HTML:        html,
		Paper:       opts.Paper,
		Orientation: opts.Orientation,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal convert request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build convert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pdf converter request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pdf converter returned %d: %s", resp.StatusCode, string(body))
	}

	pdfBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read converter response: %w", err)
	}
	if len(pdfBytes) == 0 {
		return nil, fmt.Errorf("pdf converter returned an empty document")
	}
	return pdfBytes, nil
}
