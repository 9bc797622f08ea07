package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coursekit/draft-engine/internal/config"
	"github.com/coursekit/draft-engine/internal/enrich"
	"github.com/coursekit/draft-engine/internal/models"
	"github.com/coursekit/draft-engine/internal/services"
	"github.com/coursekit/draft-engine/internal/session"
	"github.com/coursekit/draft-engine/internal/submit"
	"github.com/coursekit/draft-engine/internal/templates"
	"github.com/coursekit/draft-engine/internal/uploads"
)

type testStorage struct{}

func (testStorage) Upload(_ context.Context, file *models.StagedFile) (string, error) {
	return "https://cdn.example.com/" + file.Filename, nil
}

type testCourses struct {
	err error
}

func (c *testCourses) CreateCourse(_ context.Context, _ string, _ models.CoursePayload) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return "course-1", nil
}

type testEnrichment struct {
	result *models.EnrichmentResult
}

func (e *testEnrichment) Generate(_ context.Context, _ models.EnrichmentRequest) (*models.EnrichmentResult, error) {
	return e.result, nil
}

func testServer(t *testing.T) (*Server, *testCourses) {
	t.Helper()

	loader := templates.NewLoader()
	price := 19.0
	loader.Add(&models.DraftTemplate{
		Name:           "starter",
		Title:          "Starter Course",
		InstructorName: "Jane Doe",
		Price:          &price,
		Sections: []models.TemplateSection{
			{Title: "Basics", Lessons: []models.TemplateLesson{{Title: "Intro", DurationLabel: "05:00"}}},
		},
	})

	sessions := session.NewManager(loader, t.TempDir(), time.Hour)
	courses := &testCourses{}
	pipeline := submit.NewPipeline(uploads.NewOrchestrator(testStorage{}, 2), courses, nil)

	jobs := enrich.NewMemoryStore()
	bus := enrich.NewEventBus()
	enrichment := &testEnrichment{result: &models.EnrichmentResult{
		Kind:    models.ResultLessonSet,
		Lessons: []models.GeneratedLesson{{Title: "Generated", Summary: "about it"}},
	}}
	runner := enrich.NewRunner(enrichment, testStorage{}, jobs, bus, time.Minute)

	srv := NewServer(config.ServerConfig{}, sessions, loader, pipeline, runner, jobs, bus, nil)
	return srv, courses
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

func doRequest(t *testing.T, srv *Server, method, path string, body io.Reader, contentType string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("X-User-ID", "user-1")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid response body %q: %v", rec.Body.String(), err)
	}
	return rec, env
}

func createDraft(t *testing.T, srv *Server, templateID string) draftView {
	t.Helper()
	body := strings.NewReader(`{"template_id":"` + templateID + `"}`)
	rec, env := doRequest(t, srv, http.MethodPost, "/api/v1/drafts", body, "application/json")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create draft returned %d: %s", rec.Code, rec.Body.String())
	}
	var view draftView
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("invalid draft view: %v", err)
	}
	return view
}

func TestMissingPrincipalRejected(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/drafts", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestDraftLifecycle(t *testing.T) {
	srv, _ := testServer(t)

	view := createDraft(t, srv, "starter")
	if view.Draft.Title != "Starter Course" {
		t.Errorf("expected template title, got %q", view.Draft.Title)
	}
	if view.Step != "basic_info" {
		t.Errorf("expected first step, got %s", view.Step)
	}

	rec, _ := doRequest(t, srv, http.MethodGet, "/api/v1/drafts/"+view.ID, nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("get draft returned %d", rec.Code)
	}

	// Another principal cannot touch the draft
	req := httptest.NewRequest(http.MethodGet, "/api/v1/drafts/"+view.ID, nil)
	req.Header.Set("X-User-ID", "someone-else")
	rec2 := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec2, req)
	if rec2.Code != http.StatusForbidden {
		t.Errorf("expected 403 for foreign principal, got %d", rec2.Code)
	}

	rec, _ = doRequest(t, srv, http.MethodDelete, "/api/v1/drafts/"+view.ID, nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("delete returned %d", rec.Code)
	}
	rec, _ = doRequest(t, srv, http.MethodGet, "/api/v1/drafts/"+view.ID, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestCreateDraftUnknownTemplate(t *testing.T) {
	srv, _ := testServer(t)

	body := strings.NewReader(`{"template_id":"nope"}`)
	rec, env := doRequest(t, srv, http.MethodPost, "/api/v1/drafts", body, "application/json")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "template_not_found" {
		t.Errorf("unexpected error: %+v", env.Error)
	}
}

func TestMetadataAndCurriculumEditing(t *testing.T) {
	srv, _ := testServer(t)
	view := createDraft(t, srv, "")

	base := "/api/v1/drafts/" + view.ID

	body := strings.NewReader(`{"title":"Practical Go","description":"hands-on","instructor_name":"Jane","price":10}`)
	rec, env := doRequest(t, srv, http.MethodPatch, base+"/metadata", body, "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("metadata patch returned %d", rec.Code)
	}
	var updated draftView
	json.Unmarshal(env.Data, &updated)
	if updated.Draft.Title != "Practical Go" || updated.Draft.Price == nil {
		t.Error("metadata patch not applied")
	}

	rec, _ = doRequest(t, srv, http.MethodPost, base+"/sections", strings.NewReader(`{"title":"Basics"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("add section returned %d", rec.Code)
	}

	rec, env = doRequest(t, srv, http.MethodPost, base+"/sections/0/lessons",
		strings.NewReader(`{"title":"Intro","duration_label":"07:00"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("add lesson returned %d", rec.Code)
	}
	json.Unmarshal(env.Data, &updated)
	if len(updated.Draft.Curriculum) != 1 || len(updated.Draft.Curriculum[0].Lessons) != 1 {
		t.Fatal("lesson not added")
	}

	rec, _ = doRequest(t, srv, http.MethodPut, base+"/sections/0/lessons/0",
		strings.NewReader(`{"title":"Renamed","duration_label":"08:00"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("replace lesson returned %d", rec.Code)
	}

	rec, _ = doRequest(t, srv, http.MethodPut, base+"/sections/0/lessons/9",
		strings.NewReader(`{"title":"X"}`), "application/json")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing lesson, got %d", rec.Code)
	}

	rec, env = doRequest(t, srv, http.MethodDelete, base+"/sections/0/lessons/0", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("remove lesson returned %d", rec.Code)
	}
	json.Unmarshal(env.Data, &updated)
	if len(updated.Draft.Curriculum[0].Lessons) != 0 {
		t.Error("lesson not removed")
	}
}

func multipartBody(t *testing.T, filename, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	fw.Write([]byte(content))
	mw.WriteField("content_type", contentType)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestStageAsset(t *testing.T) {
	srv, _ := testServer(t)
	view := createDraft(t, srv, "starter")
	base := "/api/v1/drafts/" + view.ID

	body, ct := multipartBody(t, "cover.png", "image/png", "png-bytes")
	rec, env := doRequest(t, srv, http.MethodPut, base+"/assets/coverImage", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("stage asset returned %d: %s", rec.Code, rec.Body.String())
	}
	var updated draftView
	json.Unmarshal(env.Data, &updated)
	if !updated.Draft.CoverImage.IsStaged() {
		t.Error("cover slot should be staged")
	}

	// Wrong media kind is a 422 with the staging error kind as code
	body, ct = multipartBody(t, "notes.pdf", "application/pdf", "pdf-bytes")
	rec, env = doRequest(t, srv, http.MethodPut, base+"/assets/previewVideo", body, ct)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "InvalidFileType" {
		t.Errorf("unexpected error: %+v", env.Error)
	}

	// Unknown slot name is a 400
	body, ct = multipartBody(t, "x.png", "image/png", "png")
	rec, _ = doRequest(t, srv, http.MethodPut, base+"/assets/bogusSlot", body, ct)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad slot id, got %d", rec.Code)
	}

	// Clearing the staged cover empties the slot
	rec, env = doRequest(t, srv, http.MethodDelete, base+"/assets/coverImage", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("clear asset returned %d", rec.Code)
	}
	json.Unmarshal(env.Data, &updated)
	if !updated.Draft.CoverImage.IsEmpty() {
		t.Error("cover slot should be empty after clearing")
	}
}

func TestValidateAndWizard(t *testing.T) {
	srv, _ := testServer(t)
	view := createDraft(t, srv, "")
	base := "/api/v1/drafts/" + view.ID

	// Empty draft fails basic info
	rec, env := doRequest(t, srv, http.MethodGet, base+"/validate?step=basic_info", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("validate returned %d", rec.Code)
	}
	var report struct {
		Valid  bool              `json:"valid"`
		Errors map[string]string `json:"errors"`
	}
	json.Unmarshal(env.Data, &report)
	if report.Valid || report.Errors["title"] == "" {
		t.Errorf("expected title error, got %+v", report)
	}

	rec, _ = doRequest(t, srv, http.MethodGet, base+"/validate?step=bogus", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown step, got %d", rec.Code)
	}

	// Advancing with errors is a 422 and the step does not move
	rec, env = doRequest(t, srv, http.MethodPost, base+"/advance", nil, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	// Fill in basic info, then advancing works
	doRequest(t, srv, http.MethodPatch, base+"/metadata",
		strings.NewReader(`{"title":"T","description":"D","instructor_name":"I","price":5}`), "application/json")
	rec, env = doRequest(t, srv, http.MethodPost, base+"/advance", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("advance returned %d: %s", rec.Code, rec.Body.String())
	}
	var move struct {
		Step  string `json:"step"`
		Moved bool   `json:"moved"`
	}
	json.Unmarshal(env.Data, &move)
	if !move.Moved || move.Step != "curriculum" {
		t.Errorf("unexpected advance result: %+v", move)
	}

	rec, env = doRequest(t, srv, http.MethodPost, base+"/retreat", nil, "")
	json.Unmarshal(env.Data, &move)
	if !move.Moved || move.Step != "basic_info" {
		t.Errorf("unexpected retreat result: %+v", move)
	}
}

func TestEnrichEndpoints(t *testing.T) {
	srv, _ := testServer(t)
	view := createDraft(t, srv, "")
	base := "/api/v1/drafts/" + view.ID

	// No inputs yet
	rec, _ := doRequest(t, srv, http.MethodPost, base+"/enrich",
		strings.NewReader(`{"mode":"lesson_set"}`), "application/json")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without inputs, got %d", rec.Code)
	}

	doRequest(t, srv, http.MethodPatch, base+"/metadata",
		strings.NewReader(`{"topic_text":"generics"}`), "application/json")

	rec, env := doRequest(t, srv, http.MethodPost, base+"/enrich",
		strings.NewReader(`{"mode":"lesson_set"}`), "application/json")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var job enrich.Job
	json.Unmarshal(env.Data, &job)
	if job.ID == "" || job.DraftID != view.ID {
		t.Fatalf("unexpected job: %+v", job)
	}

	// Poll until the job merges
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec, env = doRequest(t, srv, http.MethodGet, base+"/enrich/"+job.ID, nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("job status returned %d", rec.Code)
		}
		json.Unmarshal(env.Data, &job)
		if job.Status == enrich.StatusMerged {
			break
		}
		if job.Status == enrich.StatusFailed || time.Now().After(deadline) {
			t.Fatalf("job did not merge: %+v", job)
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec, env = doRequest(t, srv, http.MethodGet, base, nil, "")
	var updated draftView
	json.Unmarshal(env.Data, &updated)
	if len(updated.Draft.Curriculum) != 1 {
		t.Fatal("generated lessons not merged into the draft")
	}

	rec, _ = doRequest(t, srv, http.MethodGet, base+"/enrich/unknown", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", rec.Code)
	}
}

func TestSubmitFlow(t *testing.T) {
	srv, _ := testServer(t)
	view := createDraft(t, srv, "starter")
	base := "/api/v1/drafts/" + view.ID

	doRequest(t, srv, http.MethodPatch, base+"/metadata",
		strings.NewReader(`{"description":"A hands-on course"}`), "application/json")

	// The template lesson has no asset yet, so submission is rejected
	rec, env := doRequest(t, srv, http.MethodPost, base+"/submit", nil, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	if env.Error == nil || env.Error.Code != "validation_failed" {
		t.Errorf("unexpected error: %+v", env.Error)
	}

	// Stage the lesson video and submit
	body, ct := multipartBody(t, "intro.mp4", "video/mp4", "vid")
	rec, _ = doRequest(t, srv, http.MethodPut, base+"/assets/section[0].lesson[0].video", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("stage lesson video returned %d: %s", rec.Code, rec.Body.String())
	}

	rec, env = doRequest(t, srv, http.MethodPost, base+"/submit", nil, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Outcome  string `json:"outcome"`
		CourseID string `json:"course_id"`
	}
	json.Unmarshal(env.Data, &result)
	if result.Outcome != "created" || result.CourseID != "course-1" {
		t.Errorf("unexpected result: %+v", result)
	}

	// The session now holds a fresh draft
	rec, env = doRequest(t, srv, http.MethodGet, base, nil, "")
	var after draftView
	json.Unmarshal(env.Data, &after)
	if after.Draft.Title != "" || len(after.Draft.Curriculum) != 0 {
		t.Error("draft should reset after a successful submission")
	}
}

func TestSubmitAPIFailureMapsStatus(t *testing.T) {
	srv, courses := testServer(t)
	view := createDraft(t, srv, "starter")
	base := "/api/v1/drafts/" + view.ID

	doRequest(t, srv, http.MethodPatch, base+"/metadata",
		strings.NewReader(`{"description":"D"}`), "application/json")
	body, ct := multipartBody(t, "intro.mp4", "video/mp4", "vid")
	doRequest(t, srv, http.MethodPut, base+"/assets/section[0].lesson[0].video", body, ct)

	courses.err = &services.SubmissionError{Reason: services.SubmitReasonForbidden, Message: "no rights"}
	rec, env := doRequest(t, srv, http.MethodPost, base+"/submit", nil, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "course_creation_failed" {
		t.Errorf("unexpected error: %+v", env.Error)
	}
}

func TestTemplates(t *testing.T) {
	srv, _ := testServer(t)

	rec, env := doRequest(t, srv, http.MethodGet, "/api/v1/templates", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list templates returned %d", rec.Code)
	}
	var list []models.DraftTemplate
	json.Unmarshal(env.Data, &list)
	if len(list) != 1 || list[0].Name != "starter" {
		t.Errorf("unexpected template list: %+v", list)
	}

	rec, _ = doRequest(t, srv, http.MethodGet, "/api/v1/templates/starter", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("get template returned %d", rec.Code)
	}
	rec, _ = doRequest(t, srv, http.MethodGet, "/api/v1/templates/nope", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
