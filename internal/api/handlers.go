package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coursekit/draft-engine/internal/draft"
	"github.com/coursekit/draft-engine/internal/enrich"
	"github.com/coursekit/draft-engine/internal/models"
	"github.com/coursekit/draft-engine/internal/session"
	"github.com/coursekit/draft-engine/internal/staging"
	"github.com/coursekit/draft-engine/internal/submit"
	"github.com/coursekit/draft-engine/internal/validate"
)

// maxUploadBytes caps a single staged asset
const maxUploadBytes = 2 << 30

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondErrorDetails(w, status, code, message, nil)
}

func respondErrorDetails(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// draftView is the session state returned by every draft endpoint
type draftView struct {
	ID        string              `json:"id"`
	Step      validate.Step       `json:"step"`
	Draft     *models.CourseDraft `json:"draft"`
	CreatedAt time.Time           `json:"created_at"`
	ExpiresAt time.Time           `json:"expires_at"`
}

func viewOf(s *session.Session) draftView {
	return draftView{
		ID:        s.ID,
		Step:      s.Step(),
		Draft:     s.Draft(),
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}

// session resolves the draft session from the URL and checks ownership
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "draft_not_found", "draft not found")
		return nil, false
	}
	if sess.Principal != Principal(r.Context()) {
		respondError(w, http.StatusForbidden, "forbidden", "draft belongs to another principal")
		return nil, false
	}
	sess.Touch(s.sessions.TTL())
	return sess, true
}

func indexParam(r *http.Request, name string) (int, error) {
	return strconv.Atoi(chi.URLParam(r, name))
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.repo != nil {
		if err := s.repo.Ping(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Draft lifecycle handlers

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID string `json:"template_id"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	sess, err := s.sessions.Create(Principal(r.Context()), req.TemplateID)
	if err != nil {
		if errors.Is(err, session.ErrTemplateNotFound) {
			respondError(w, http.StatusNotFound, "template_not_found", "template not found")
			return
		}
		slog.Error("failed to create draft session", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to create draft")
		return
	}

	respondJSON(w, http.StatusCreated, viewOf(sess))
}

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.List(Principal(r.Context()))
	views := make([]draftView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, viewOf(sess))
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := s.sessions.Delete(sess.ID); err != nil {
		respondError(w, http.StatusNotFound, "draft_not_found", "draft not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": sess.ID, "status": "deleted"})
}

// Editing handlers

func (s *Server) handleSetMetadata(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var patch draft.MetadataPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sess.SetMetadata(patch)
	respondJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) handleAddSection(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sess.AddSection(req.Title)
	respondJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) handleRemoveSection(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	index, err := indexParam(r, "section")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid section index")
		return
	}

	sess.RemoveSection(index)
	respondJSON(w, http.StatusOK, viewOf(sess))
}

type lessonRequest struct {
	Title         string `json:"title"`
	DurationLabel string `json:"duration_label"`
}

func (s *Server) handleAddLesson(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	index, err := indexParam(r, "section")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid section index")
		return
	}

	var req lessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	lesson := models.NewLesson(req.Title)
	lesson.DurationLabel = req.DurationLabel
	sess.AddLesson(index, lesson)
	respondJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) handleReplaceLesson(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	sectionIdx, err := indexParam(r, "section")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid section index")
		return
	}
	lessonIdx, err := indexParam(r, "lesson")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid lesson index")
		return
	}

	var req lessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	d := sess.Draft()
	if sectionIdx < 0 || sectionIdx >= len(d.Curriculum) ||
		lessonIdx < 0 || lessonIdx >= len(d.Curriculum[sectionIdx].Lessons) {
		respondError(w, http.StatusNotFound, "lesson_not_found", "lesson not found")
		return
	}

	// Title and duration are editable; provenance and assets stay
	lesson := d.Curriculum[sectionIdx].Lessons[lessonIdx]
	lesson.Title = req.Title
	lesson.DurationLabel = req.DurationLabel
	sess.ReplaceLesson(sectionIdx, lessonIdx, lesson)
	respondJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) handleRemoveLesson(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	sectionIdx, err := indexParam(r, "section")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid section index")
		return
	}
	lessonIdx, err := indexParam(r, "lesson")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid lesson index")
		return
	}

	sess.RemoveLesson(sectionIdx, lessonIdx)
	respondJSON(w, http.StatusOK, viewOf(sess))
}

// Asset handlers

func (s *Server) handleStageAsset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	slot, err := models.ParseSlotID(chi.URLParam(r, "slot"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_slot", err.Error())
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "expected multipart form with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "file field is required")
		return
	}
	defer file.Close()

	if header.Size > maxUploadBytes {
		respondError(w, http.StatusRequestEntityTooLarge, "file_too_large", "staged file exceeds the size limit")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if ct := r.FormValue("content_type"); ct != "" {
		contentType = ct
	}

	_, err = sess.StageAsset(slot, header.Filename, contentType, file)
	if err != nil {
		var serr *staging.Error
		if errors.As(err, &serr) {
			respondError(w, http.StatusUnprocessableEntity, serr.Kind, serr.Message)
			return
		}
		respondError(w, http.StatusNotFound, "slot_not_found", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) handleClearAsset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	slot, err := models.ParseSlotID(chi.URLParam(r, "slot"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_slot", err.Error())
		return
	}

	sess.ClearAsset(slot)
	respondJSON(w, http.StatusOK, viewOf(sess))
}

// Validation and wizard handlers

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	step := sess.Step()
	if raw := r.URL.Query().Get("step"); raw != "" {
		parsed, err := validate.ParseStep(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_step", err.Error())
			return
		}
		step = parsed
	}

	errs := sess.Validate(step)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"step":   step,
		"valid":  len(errs) == 0,
		"errors": errs,
	})
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	step, errs, moved := sess.Advance()
	if len(errs) > 0 {
		respondErrorDetails(w, http.StatusUnprocessableEntity, "validation_failed",
			"current step has validation errors", errs)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"step":  step,
		"moved": moved,
	})
}

func (s *Server) handleRetreat(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	step, moved := sess.Retreat()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"step":  step,
		"moved": moved,
	})
}

// Enrichment handlers

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Mode           enrich.Mode `json:"mode"`
		ConfirmReplace bool        `json:"confirm_replace"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	job, err := s.runner.Start(r.Context(), sess, req.Mode, req.ConfirmReplace)
	if err != nil {
		if errors.Is(err, enrich.ErrManualSectionsExist) {
			respondError(w, http.StatusConflict, "confirm_replace_required", err.Error())
			return
		}
		respondError(w, http.StatusUnprocessableEntity, "enrichment_rejected", err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleEnrichStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	job, err := s.jobs.Get(r.Context(), chi.URLParam(r, "job"))
	if err != nil {
		if errors.Is(err, enrich.ErrJobNotFound) {
			respondError(w, http.StatusNotFound, "job_not_found", "enrichment job not found")
			return
		}
		slog.Error("failed to load enrichment job", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load job")
		return
	}
	if job.DraftID != sess.ID {
		respondError(w, http.StatusNotFound, "job_not_found", "enrichment job not found")
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// Submission handlers

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	result := sess.Submit(r.Context(), s.pipeline)

	switch result.Outcome {
	case submit.OutcomeCreated:
		respondJSON(w, http.StatusCreated, result)
	case submit.OutcomeRejected:
		respondErrorDetails(w, http.StatusUnprocessableEntity, "validation_failed",
			"draft has validation errors", result.ValidationErrors)
	case submit.OutcomeUploadFailed:
		respondErrorDetails(w, http.StatusBadGateway, "upload_failed",
			"one or more assets failed to upload", result.UploadFailures)
	default:
		status := http.StatusBadGateway
		code := "course_creation_failed"
		if result.APIError != nil {
			switch result.APIError.Reason {
			case "validation":
				status = http.StatusUnprocessableEntity
			case "forbidden":
				status = http.StatusForbidden
			case "unauthenticated":
				status = http.StatusUnauthorized
			}
		}
		respondErrorDetails(w, status, code, "course-creation API refused the submission", result.APIError)
	}
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		respondError(w, http.StatusNotImplemented, "audit_disabled", "submission audit log is not configured")
		return
	}

	limit := 50
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}

	records, err := s.repo.ListSubmissions(r.Context(), limit, offset)
	if err != nil {
		slog.Error("failed to list submissions", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list submissions")
		return
	}

	respondJSON(w, http.StatusOK, records)
}

// Template handlers

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.loader.List())
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	tmpl := s.loader.Get(name)
	if tmpl == nil {
		respondError(w, http.StatusNotFound, "template_not_found", "template not found")
		return
	}
	respondJSON(w, http.StatusOK, tmpl)
}
