package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coursekit/draft-engine/internal/models"
)

// HTTPEnrichment calls the content-generation service. Generation is slow
// (tens of seconds), so the client carries a long timeout and no retry loop:
// the caller owns job-level retry semantics.
type HTTPEnrichment struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPEnrichment creates an enrichment client
func NewHTTPEnrichment(baseURL, apiKey string, timeout time.Duration) *HTTPEnrichment {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &HTTPEnrichment{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Generate submits an enrichment request and decodes the tagged result
func (e *HTTPEnrichment) Generate(ctx context.Context, req models.EnrichmentRequest) (*models.EnrichmentResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal enrichment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("enrichment request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read enrichment response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("enrichment service returned status %d: %s", resp.StatusCode, respBody)
	}

	var result models.EnrichmentResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse enrichment result: %w", err)
	}

	switch result.Kind {
	case models.ResultLessonSet, models.ResultFullCourse:
		return &result, nil
	}
	return nil, fmt.Errorf("enrichment result has unknown kind %q", result.Kind)
}
