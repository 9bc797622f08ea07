// Package client is a Go SDK for the draft-engine API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/coursekit/draft-engine/internal/models"
)

// Client is a Go SDK for the draft-engine API. Every call acts on behalf of
// the principal the client was created with.
type Client struct {
	baseURL    string
	principal  string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new draft-engine client
func NewClient(baseURL, principal string, opts ...Option) *Client {
	c := &Client{
		baseURL:   baseURL,
		principal: principal,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Draft is one editing session as returned by the API
type Draft struct {
	ID        string              `json:"id"`
	Step      string              `json:"step"`
	Draft     *models.CourseDraft `json:"draft"`
	CreatedAt time.Time           `json:"created_at"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// MetadataPatch carries partial metadata updates; nil fields are untouched
type MetadataPatch struct {
	Title          *string  `json:"title,omitempty"`
	Description    *string  `json:"description,omitempty"`
	InstructorName *string  `json:"instructor_name,omitempty"`
	Price          *float64 `json:"price,omitempty"`
	TopicText      *string  `json:"topic_text,omitempty"`
}

// LessonRequest describes a manual lesson being added or edited
type LessonRequest struct {
	Title         string `json:"title"`
	DurationLabel string `json:"duration_label,omitempty"`
}

// ValidationReport is the result of a validation pass
type ValidationReport struct {
	Step   string            `json:"step"`
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

// StepResult reports a wizard move
type StepResult struct {
	Step  string `json:"step"`
	Moved bool   `json:"moved"`
}

// EnrichmentJob is the state of an asynchronous enrichment run
type EnrichmentJob struct {
	ID         string     `json:"id"`
	DraftID    string     `json:"draft_id"`
	Mode       string     `json:"mode"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// SubmissionResult is a successful submission outcome
type SubmissionResult struct {
	Outcome  string `json:"outcome"`
	CourseID string `json:"course_id"`
}

// CreateDraft opens a new editing session, optionally from a template
func (c *Client) CreateDraft(ctx context.Context, templateID string) (*Draft, error) {
	req := map[string]string{}
	if templateID != "" {
		req["template_id"] = templateID
	}

	var draft Draft
	if err := c.call(ctx, "POST", "/api/v1/drafts", req, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// GetDraft retrieves a draft session by ID
func (c *Client) GetDraft(ctx context.Context, id string) (*Draft, error) {
	var draft Draft
	if err := c.call(ctx, "GET", "/api/v1/drafts/"+id, nil, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// ListDrafts retrieves every draft session of the principal
func (c *Client) ListDrafts(ctx context.Context) ([]*Draft, error) {
	var drafts []*Draft
	if err := c.call(ctx, "GET", "/api/v1/drafts", nil, &drafts); err != nil {
		return nil, err
	}
	return drafts, nil
}

// DeleteDraft discards a draft session and its staged files
func (c *Client) DeleteDraft(ctx context.Context, id string) error {
	return c.call(ctx, "DELETE", "/api/v1/drafts/"+id, nil, nil)
}

// SetMetadata applies a partial metadata update
func (c *Client) SetMetadata(ctx context.Context, id string, patch MetadataPatch) (*Draft, error) {
	var draft Draft
	if err := c.call(ctx, "PATCH", "/api/v1/drafts/"+id+"/metadata", patch, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// AddSection appends a section to the curriculum
func (c *Client) AddSection(ctx context.Context, id, title string) (*Draft, error) {
	var draft Draft
	body := map[string]string{"title": title}
	if err := c.call(ctx, "POST", "/api/v1/drafts/"+id+"/sections", body, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// RemoveSection drops a section with all its lessons
func (c *Client) RemoveSection(ctx context.Context, id string, section int) (*Draft, error) {
	var draft Draft
	path := fmt.Sprintf("/api/v1/drafts/%s/sections/%d", id, section)
	if err := c.call(ctx, "DELETE", path, nil, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// AddLesson appends a manual lesson to a section
func (c *Client) AddLesson(ctx context.Context, id string, section int, lesson LessonRequest) (*Draft, error) {
	var draft Draft
	path := fmt.Sprintf("/api/v1/drafts/%s/sections/%d/lessons", id, section)
	if err := c.call(ctx, "POST", path, lesson, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// ReplaceLesson edits a lesson's title and duration
func (c *Client) ReplaceLesson(ctx context.Context, id string, section, lesson int, req LessonRequest) (*Draft, error) {
	var draft Draft
	path := fmt.Sprintf("/api/v1/drafts/%s/sections/%d/lessons/%d", id, section, lesson)
	if err := c.call(ctx, "PUT", path, req, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// RemoveLesson drops a lesson from a section
func (c *Client) RemoveLesson(ctx context.Context, id string, section, lesson int) (*Draft, error) {
	var draft Draft
	path := fmt.Sprintf("/api/v1/drafts/%s/sections/%d/lessons/%d", id, section, lesson)
	if err := c.call(ctx, "DELETE", path, nil, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// StageAsset uploads a local file into a slot for later submission.
// slot uses the API slot grammar, e.g. "coverImage" or
// "section[0].lesson[2].video".
func (c *Client) StageAsset(ctx context.Context, id, slot, filename, contentType string, r io.Reader) (*Draft, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if contentType != "" {
		mw.WriteField("content_type", contentType)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	path := "/api/v1/drafts/" + id + "/assets/" + slot
	resp, err := c.doRequest(ctx, "PUT", path, &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}

	var draft Draft
	if err := decodeEnvelope(resp, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// ClearAsset empties a slot and discards its staged file
func (c *Client) ClearAsset(ctx context.Context, id, slot string) (*Draft, error) {
	var draft Draft
	if err := c.call(ctx, "DELETE", "/api/v1/drafts/"+id+"/assets/"+slot, nil, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// Validate runs one step's checks without moving the wizard.
// An empty step validates the current one.
func (c *Client) Validate(ctx context.Context, id, step string) (*ValidationReport, error) {
	path := "/api/v1/drafts/" + id + "/validate"
	if step != "" {
		path += "?step=" + step
	}

	var report ValidationReport
	if err := c.call(ctx, "GET", path, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Advance moves the wizard to the next step
func (c *Client) Advance(ctx context.Context, id string) (*StepResult, error) {
	var result StepResult
	if err := c.call(ctx, "POST", "/api/v1/drafts/"+id+"/advance", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Retreat moves the wizard to the previous step
func (c *Client) Retreat(ctx context.Context, id string) (*StepResult, error) {
	var result StepResult
	if err := c.call(ctx, "POST", "/api/v1/drafts/"+id+"/retreat", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Enrich starts an asynchronous enrichment job. mode is "lesson_set" or
// "full_course"; confirmReplace acknowledges that a full-course result
// replaces manually authored sections.
func (c *Client) Enrich(ctx context.Context, id, mode string, confirmReplace bool) (*EnrichmentJob, error) {
	body := map[string]interface{}{
		"mode":            mode,
		"confirm_replace": confirmReplace,
	}

	var job EnrichmentJob
	if err := c.call(ctx, "POST", "/api/v1/drafts/"+id+"/enrich", body, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// JobStatus retrieves the state of an enrichment job
func (c *Client) JobStatus(ctx context.Context, id, jobID string) (*EnrichmentJob, error) {
	var job EnrichmentJob
	if err := c.call(ctx, "GET", "/api/v1/drafts/"+id+"/enrich/"+jobID, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Submit runs the submission pipeline for the draft
func (c *Client) Submit(ctx context.Context, id string) (*SubmissionResult, error) {
	var result SubmissionResult
	if err := c.call(ctx, "POST", "/api/v1/drafts/"+id+"/submit", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListTemplates retrieves all available draft templates
func (c *Client) ListTemplates(ctx context.Context) ([]*models.DraftTemplate, error) {
	var templates []*models.DraftTemplate
	if err := c.call(ctx, "GET", "/api/v1/templates", nil, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

// GetTemplate retrieves one template by name
func (c *Client) GetTemplate(ctx context.Context, name string) (*models.DraftTemplate, error) {
	var tmpl models.DraftTemplate
	if err := c.call(ctx, "GET", "/api/v1/templates/"+name, nil, &tmpl); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, "GET", "/health", nil, "")
	return err
}

// call sends a JSON request and decodes the envelope data into out
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	resp, err := c.doRequest(ctx, method, path, reader, "application/json")
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, out)
}

// decodeEnvelope unwraps the {success, data, error} response envelope
func decodeEnvelope(resp []byte, out interface{}) error {
	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		if result.Error == nil {
			return fmt.Errorf("API error: request failed")
		}
		return fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	if out != nil && len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, out); err != nil {
			return fmt.Errorf("failed to unmarshal response data: %w", err)
		}
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.principal != "" {
		req.Header.Set("X-User-ID", c.principal)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Error responses still carry the envelope; let the caller surface the
	// structured code and message when one is present.
	if resp.StatusCode >= 400 && !json.Valid(respBody) {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
