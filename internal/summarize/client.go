// Package summarize runs document summarization: an HTTP client for the
// summarization backend, an asynchronous worker that moves documents through
// the summary lifecycle, and batch fan-out helpers.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"neurolearn/pkg/domain"
)

// Summary is the artifact produced for a document.
type Summary struct {
	Text     string   `json:"text"`
	Keywords []string `json:"keywords,omitempty"`
}

// Summarizer produces a summary for a document payload.
type Summarizer interface {
	Summarize(ctx context.Context, doc domain.Document, content []byte) (Summary, error)
}

// HTTPSummarizer calls a remote summarization endpoint. Any 2xx status with
// a decodable JSON body counts as success; a non-2xx status or an
// undecodable body is an error.
type HTTPSummarizer struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSummarizer constructs a client for the given endpoint. A nil
// httpClient falls back to a client with a 60s timeout.
func NewHTTPSummarizer(endpoint string, httpClient *http.Client) *HTTPSummarizer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPSummarizer{endpoint: endpoint, client: httpClient}
}

type summarizeRequest struct {
	DocumentID  string `json:"document_id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// Summarize posts the document content and decodes the summary response.
func (s *HTTPSummarizer) Summarize(ctx context.Context, doc domain.Document, content []byte) (Summary, error) {
	payload, err := json.Marshal(summarizeRequest{
		DocumentID:  doc.ID,
		Name:        doc.Name,
		ContentType: doc.ContentType,
		Content:     content,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Summary{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Summary{}, fmt.Errorf("summarizer request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Summary{}, fmt.Errorf("summarizer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var summary Summary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return Summary{}, fmt.Errorf("decode summary: %w", err)
	}
	return summary, nil
}

// ExtractiveSummarizer is a local fallback that takes the leading sentences
// of a plain-text payload. Used in development and tests.
type ExtractiveSummarizer struct {
	MaxSentences int
}

// Summarize implements Summarizer without a network round trip.
func (e ExtractiveSummarizer) Summarize(_ context.Context, _ domain.Document, content []byte) (Summary, error) {
	limit := e.MaxSentences
	if limit <= 0 {
		limit = 3
	}
	text := strings.TrimSpace(string(content))
	if text == "" {
		return Summary{}, fmt.Errorf("document content is empty")
	}
	var sentences []string
	for _, s := range strings.SplitAfter(text, ".") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		sentences = append(sentences, s)
		if len(sentences) == limit {
			break
		}
	}
	return Summary{Text: strings.Join(sentences, " ")}, nil
}
