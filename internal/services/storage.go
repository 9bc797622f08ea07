package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/coursekit/draft-engine/internal/models"
)

// HTTPObjectStorage talks to the object-storage upload endpoint: one file per
// request, multipart encoded, answered with {url} or a machine-readable
// rejection. Transient failures are retried; the endpoint is idempotent-safe
// for the same file.
type HTTPObjectStorage struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      retryConfig
}

// NewHTTPObjectStorage creates a storage client
func NewHTTPObjectStorage(baseURL, apiKey string, timeout time.Duration) *HTTPObjectStorage {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPObjectStorage{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		retry:      defaultRetryConfig(),
	}
}

type storageUploadResponse struct {
	URL string `json:"url"`
}

type storageErrorResponse struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Upload sends one staged file and returns its durable URL
func (s *HTTPObjectStorage) Upload(ctx context.Context, file *models.StagedFile) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		url, err := s.uploadOnce(ctx, file)
		if err == nil {
			return url, nil
		}
		lastErr = err

		var uerr *UploadError
		if errors.As(err, &uerr) {
			if uerr.Reason != UploadReasonServerError && uerr.Reason != UploadReasonNetwork {
				// invalid-type / too-large never succeed on retry
				return "", err
			}
			if uerr.Status != 0 && !retryableStatus(uerr.Status) {
				// a definitive status like 401 or 404 will not change on retry
				return "", err
			}
		}

		if attempt < s.retry.MaxAttempts {
			slog.Warn("asset upload attempt failed, retrying",
				"filename", file.Filename,
				"attempt", attempt,
				"error", err,
			)
			if serr := sleepBackoff(ctx, attempt, s.retry); serr != nil {
				return "", serr
			}
		}
	}

	return "", lastErr
}

func (s *HTTPObjectStorage) uploadOnce(ctx context.Context, file *models.StagedFile) (string, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return "", fmt.Errorf("open staged file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", file.Filename)
	if err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read staged file: %w", err)
	}
	if err := mw.WriteField("content_type", file.ContentType); err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/upload", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if retryableNetErr(err) {
			return "", &UploadError{Reason: UploadReasonNetwork, Message: err.Error()}
		}
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UploadError{Reason: UploadReasonNetwork, Message: err.Error()}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var out storageUploadResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return "", fmt.Errorf("parse upload response: %w", err)
		}
		if out.URL == "" {
			return "", fmt.Errorf("upload response missing url")
		}
		return out.URL, nil
	}

	var serr storageErrorResponse
	if err := json.Unmarshal(body, &serr); err == nil && serr.Reason != "" {
		return "", &UploadError{Reason: serr.Reason, Message: serr.Message}
	}

	// No structured rejection. Only the two statuses with an unambiguous
	// meaning map to permanent causes; everything else is the storage
	// service misbehaving.
	switch resp.StatusCode {
	case http.StatusRequestEntityTooLarge:
		return "", &UploadError{Reason: UploadReasonTooLarge, Message: fmt.Sprintf("storage returned status %d", resp.StatusCode), Status: resp.StatusCode}
	case http.StatusUnsupportedMediaType:
		return "", &UploadError{Reason: UploadReasonInvalidType, Message: fmt.Sprintf("storage returned status %d", resp.StatusCode), Status: resp.StatusCode}
	}
	return "", &UploadError{Reason: UploadReasonServerError, Message: fmt.Sprintf("storage returned status %d: %s", resp.StatusCode, body), Status: resp.StatusCode}
}
