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

// HTTPCourseAPI submits the final flattened payload to the course-creation
// API on behalf of an authenticated principal.
type HTTPCourseAPI struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPCourseAPI creates a course-creation client
func NewHTTPCourseAPI(baseURL string, timeout time.Duration) *HTTPCourseAPI {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPCourseAPI{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type createCourseResponse struct {
	ID string `json:"id"`
}

type courseErrorResponse struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// CreateCourse submits the payload and returns the created course ID.
// Failures come back as *SubmissionError with the API's structured reason.
func (c *HTTPCourseAPI) CreateCourse(ctx context.Context, principal string, payload models.CoursePayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal course payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/courses", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Principal-ID", principal)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &SubmissionError{Reason: SubmitReasonServerError, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &SubmissionError{Reason: SubmitReasonServerError, Message: err.Error()}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var out createCourseResponse
		if err := json.Unmarshal(respBody, &out); err != nil {
			return "", fmt.Errorf("parse course-creation response: %w", err)
		}
		return out.ID, nil
	}

	var cerr courseErrorResponse
	if err := json.Unmarshal(respBody, &cerr); err == nil && cerr.Reason != "" {
		return "", &SubmissionError{Reason: cerr.Reason, Message: cerr.Message}
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return "", &SubmissionError{Reason: SubmitReasonUnauthenticated, Message: "course API rejected the principal"}
	case http.StatusForbidden:
		return "", &SubmissionError{Reason: SubmitReasonForbidden, Message: "principal may not create courses"}
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return "", &SubmissionError{Reason: SubmitReasonValidation, Message: string(respBody)}
	}
	return "", &SubmissionError{Reason: SubmitReasonServerError, Message: fmt.Sprintf("course API returned status %d", resp.StatusCode)}
}
