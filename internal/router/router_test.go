package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"hemisphere-atlas/internal/handlers"
	"hemisphere-atlas/internal/logger"
	"hemisphere-atlas/internal/middleware"
	"hemisphere-atlas/internal/models"
	"hemisphere-atlas/internal/session"
	"hemisphere-atlas/internal/viewstate"
)

type scriptedGenerator struct {
	mu          sync.Mutex
	caseErrs    []error
	diseaseErrs []error
	caseCalls   int
	diseaseCall int
}

func (g *scriptedGenerator) RequestCaseStudy(ctx context.Context) (*models.CaseStudy, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.caseCalls
	g.caseCalls++
	if i < len(g.caseErrs) && g.caseErrs[i] != nil {
		return nil, g.caseErrs[i]
	}
	return &models.CaseStudy{
		ID:                 uuid.New(),
		Scenario:           "A 71-year-old man ignores food on the left side of his plate.",
		Question:           "Which structure is most likely affected?",
		Options:            []string{"Left frontal lobe", "Left occipital lobe", "Right parietal lobe", "Cerebellar vermis"},
		CorrectOptionIndex: 2,
		Explanation:        "Hemispatial neglect follows right inferior parietal lesions.",
	}, nil
}

func (g *scriptedGenerator) RequestDiseaseSet(ctx context.Context) ([]models.Disease, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.diseaseCall
	g.diseaseCall++
	if i < len(g.diseaseErrs) && g.diseaseErrs[i] != nil {
		return nil, g.diseaseErrs[i]
	}
	return []models.Disease{
		{Name: "Conduction aphasia", Description: "Impaired repetition", Hemisphere: models.HemisphereLeft, Symptoms: []string{"Poor repetition"}},
		{Name: "Prosopagnosia", Description: "Face blindness", Hemisphere: models.HemisphereRight, Symptoms: []string{"Cannot recognise faces"}},
		{Name: "Multi-infarct dementia", Description: "Stepwise decline", Hemisphere: models.HemisphereBilateral, Symptoms: []string{"Executive dysfunction"}},
	}, nil
}

// inlineDispatcher resolves jobs on the calling goroutine.
type inlineDispatcher struct {
	store *session.Store
}

func (d inlineDispatcher) Submit(job models.Job) error {
	sess, ok := d.store.Get(job.SessionID)
	if !ok {
		return errors.New("no session")
	}
	switch job.Type {
	case models.JobTypeCaseStudy:
		sess.Quiz.Resolve(context.Background(), job.Seq)
	case models.JobTypeDiseaseSet:
		sess.Gallery.Resolve(context.Background(), job.Seq)
	}
	return nil
}

type rejectingDispatcher struct{}

func (rejectingDispatcher) Submit(job models.Job) error { return errors.New("generation queue is full") }

type testApp struct {
	handler    http.Handler
	cookie     *http.Cookie
	remoteAddr string
}

func newTestApp(t *testing.T, gen session.Generator, dispatcher func(*session.Store) handlers.Dispatcher, limit int) *testApp {
	t.Helper()
	log := logger.Nop()
	tmpl := handlers.NewTemplateRenderer()
	store := session.NewStore(gen, nil, time.Hour, log)
	limiter := middleware.NewRateLimiter(limit, time.Minute)
	t.Cleanup(limiter.Stop)
	widgets := handlers.NewWidgetHandler(store, dispatcher(store), limiter, tmpl, log)

	h := New(
		middleware.NewSession(time.Hour, false),
		limiter,
		handlers.NewPageHandler(widgets),
		widgets,
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) },
		log,
	)
	return &testApp{handler: h}
}

func inline(store *session.Store) handlers.Dispatcher { return inlineDispatcher{store: store} }

func (a *testApp) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if a.remoteAddr != "" {
		req.RemoteAddr = a.remoteAddr
	}
	if a.cookie != nil {
		req.AddCookie(a.cookie)
	}

	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)

	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			a.cookie = c
		}
	}
	return rr
}

type quizResponse struct {
	Applied bool               `json:"applied"`
	View    viewstate.QuizView `json:"view"`
	HTML    string             `json:"html"`
}

type galleryResponse struct {
	View viewstate.GalleryView `json:"view"`
	HTML string                `json:"html"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v (body %q)", err, rr.Body.String())
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, &scriptedGenerator{}, inline, 100)

	rr := app.do(t, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response %d %q", rr.Code, rr.Body.String())
	}
}

func TestIndex_MountsQuizAndLeavesGalleryIdle(t *testing.T) {
	gen := &scriptedGenerator{}
	app := newTestApp(t, gen, inline, 100)

	rr := app.do(t, http.MethodGet, "/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{`id="anatomy"`, `id="pathology"`, `id="case-study"`, "Patient Vignette", "Click generate to explore clinical pathologies", "https://human.biodigital.com/view?id=production/maleAdult/major_structures_of_the_cns_guided&amp;lang=en", `rel="noopener noreferrer"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
	if gen.diseaseCall != 0 {
		t.Errorf("expected no automatic gallery load")
	}

	// a second page view reuses the mounted quiz
	app.do(t, http.MethodGet, "/", nil)
	if gen.caseCalls != 1 {
		t.Errorf("expected exactly one case load on mount, got %d", gen.caseCalls)
	}
}

func TestCaseStudyFlow(t *testing.T) {
	app := newTestApp(t, &scriptedGenerator{}, inline, 100)

	var resp quizResponse
	rr := app.do(t, http.MethodGet, "/api/v1/case", nil)
	decode(t, rr, &resp)
	if resp.View.Status != models.StatusSuccess || len(resp.View.Options) != 4 {
		t.Fatalf("expected a loaded case, got %+v", resp.View)
	}

	rr = app.do(t, http.MethodPost, "/api/v1/case/select", map[string]int{"index": 1})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	decode(t, rr, &resp)
	if !resp.Applied {
		t.Fatalf("expected selection to apply")
	}
	marks := []viewstate.OptionMark{viewstate.MarkMuted, viewstate.MarkIncorrect, viewstate.MarkCorrect, viewstate.MarkMuted}
	for i, opt := range resp.View.Options {
		if opt.Mark != marks[i] || opt.Interactive {
			t.Errorf("option %d: expected %q non-interactive, got %+v", i, marks[i], opt)
		}
	}
	if !resp.View.ExplanationVisible || !strings.Contains(resp.HTML, "Clinical Pearl") {
		t.Errorf("expected explanation panel rendered")
	}

	rr = app.do(t, http.MethodPost, "/api/v1/case/select", map[string]int{"index": 3})
	decode(t, rr, &resp)
	if resp.Applied || *resp.View.SelectedOption != 1 {
		t.Fatalf("expected repeat selection to be a no-op, got %+v", resp)
	}

	rr = app.do(t, http.MethodPost, "/api/v1/case/new", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	var fresh quizResponse
	decode(t, rr, &fresh)
	if fresh.View.SelectedOption != nil || fresh.View.ExplanationVisible {
		t.Fatalf("expected New Case to clear selection, got %+v", fresh.View)
	}
}

func TestSelectOption_Validation(t *testing.T) {
	app := newTestApp(t, &scriptedGenerator{}, inline, 100)
	app.do(t, http.MethodGet, "/api/v1/case", nil)

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing index", map[string]string{}},
		{"out of range", map[string]int{"index": 9}},
		{"wrong type", map[string]string{"index": "two"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := app.do(t, http.MethodPost, "/api/v1/case/select", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			var body models.ErrorResponse
			decode(t, rr, &body)
			if body.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("expected VALIDATION_ERROR, got %q", body.Error.Code)
			}
		})
	}
}

func TestGallery_FailureThenRetry(t *testing.T) {
	gen := &scriptedGenerator{diseaseErrs: []error{nil, errors.New("connection reset")}}
	app := newTestApp(t, gen, inline, 100)

	var resp galleryResponse
	rr := app.do(t, http.MethodGet, "/api/v1/gallery", nil)
	decode(t, rr, &resp)
	if resp.View.Status != models.StatusIdle || !resp.View.ShowPlaceholder {
		t.Fatalf("expected idle gallery, got %+v", resp.View)
	}

	rr = app.do(t, http.MethodPost, "/api/v1/gallery/generate", nil)
	decode(t, rr, &resp)
	if resp.View.Status != models.StatusSuccess || len(resp.View.Diseases) != 3 {
		t.Fatalf("expected 3 diseases, got %+v", resp.View)
	}

	rr = app.do(t, http.MethodPost, "/api/v1/gallery/generate", nil)
	decode(t, rr, &resp)
	if resp.View.Status != models.StatusError {
		t.Fatalf("expected ERROR, got %s", resp.View.Status)
	}
	if len(resp.View.Diseases) != 3 || !strings.Contains(resp.HTML, "Conduction aphasia") {
		t.Fatalf("expected prior cards to stay on display")
	}

	rr = app.do(t, http.MethodPost, "/api/v1/gallery/generate", nil)
	decode(t, rr, &resp)
	if resp.View.Status != models.StatusSuccess {
		t.Fatalf("expected retry to recover, got %s", resp.View.Status)
	}
}

func TestDispatchFailureLandsInError(t *testing.T) {
	app := newTestApp(t, &scriptedGenerator{}, func(*session.Store) handlers.Dispatcher { return rejectingDispatcher{} }, 100)

	var resp quizResponse
	rr := app.do(t, http.MethodPost, "/api/v1/case/new", nil)
	decode(t, rr, &resp)
	if resp.View.Status != models.StatusError || resp.View.ErrorMessage == "" {
		t.Fatalf("expected ERROR view, got %+v", resp.View)
	}
}

func TestGenerationTriggersAreRateLimited(t *testing.T) {
	app := newTestApp(t, &scriptedGenerator{}, inline, 2)

	var last int
	for i := 0; i < 3; i++ {
		last = app.do(t, http.MethodPost, "/api/v1/gallery/generate", nil).Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on third trigger, got %d", last)
	}

	// reads share the route group but not the limiter
	if code := app.do(t, http.MethodGet, "/api/v1/gallery", nil).Code; code != http.StatusOK {
		t.Fatalf("expected reads to stay allowed, got %d", code)
	}
}

func TestVisitorsAreIsolated(t *testing.T) {
	gen := &scriptedGenerator{}
	a := newTestApp(t, gen, inline, 100)
	b := &testApp{handler: a.handler}

	a.do(t, http.MethodPost, "/api/v1/gallery/generate", nil)

	var resp galleryResponse
	decode(t, b.do(t, http.MethodGet, "/api/v1/gallery", nil), &resp)
	if resp.View.Status != models.StatusIdle {
		t.Fatalf("expected second visitor's gallery idle, got %s", resp.View.Status)
	}
}

func TestColdPageLoads_ShareGenerationBudget(t *testing.T) {
	gen := &scriptedGenerator{}
	app := newTestApp(t, gen, inline, 2)

	var last *httptest.ResponseRecorder
	for i := 0; i < 50; i++ {
		visitor := &testApp{handler: app.handler, remoteAddr: "203.0.113.7:40000"}
		last = visitor.do(t, http.MethodGet, "/", nil)
		if last.Code != http.StatusOK {
			t.Fatalf("page load %d: expected 200, got %d", i, last.Code)
		}
	}

	if gen.caseCalls > 2 {
		t.Fatalf("expected at most 2 upstream case-study calls, got %d", gen.caseCalls)
	}

	// over budget the quiz stays idle with New Case available
	body := last.Body.String()
	if strings.Contains(body, "Consulting the archives") || strings.Contains(body, "Patient Vignette") {
		t.Errorf("expected an idle quiz once over budget")
	}
	if strings.Contains(body, `data-action="new-case" disabled`) {
		t.Errorf("expected New Case to stay enabled")
	}

	// another client keeps its own budget
	other := &testApp{handler: app.handler, remoteAddr: "198.51.100.9:40000"}
	other.do(t, http.MethodGet, "/", nil)
	if gen.caseCalls != 3 {
		t.Errorf("expected a different IP to mount, got %d calls", gen.caseCalls)
	}
}
