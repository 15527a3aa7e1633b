package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"hemisphere-atlas/internal/logger"
	"hemisphere-atlas/internal/middleware"
	"hemisphere-atlas/internal/models"
	"hemisphere-atlas/internal/session"
	"hemisphere-atlas/internal/viewstate"
)

// Dispatcher queues a generation job; the worker pool implements it.
type Dispatcher interface {
	Submit(job models.Job) error
}

type Sessions interface {
	Get(id uuid.UUID) (*session.Session, bool)
	GetOrCreate(id uuid.UUID) (*session.Session, bool)
}

// Limiter gates requests that start an upstream generation call.
type Limiter interface {
	Allow(r *http.Request) bool
}

type WidgetHandler struct {
	sessions   Sessions
	dispatcher Dispatcher
	limiter    Limiter
	tmpl       *TemplateRenderer
	log        logger.ILogger
}

// NewWidgetHandler accepts a nil limiter, which lets every mount through.
func NewWidgetHandler(sessions Sessions, dispatcher Dispatcher, limiter Limiter, tmpl *TemplateRenderer, log logger.ILogger) *WidgetHandler {
	return &WidgetHandler{
		sessions:   sessions,
		dispatcher: dispatcher,
		limiter:    limiter,
		tmpl:       tmpl,
		log:        log,
	}
}

func (h *WidgetHandler) sessionFor(r *http.Request) *session.Session {
	sess, _ := h.sessions.GetOrCreate(middleware.GetSessionID(r.Context()))
	return sess
}

// mountQuiz starts the one automatic case-study load per session. The load
// spends from the same per-IP budget as the explicit triggers; a visitor over
// budget keeps an IDLE quiz and can retry with New Case later.
func (h *WidgetHandler) mountQuiz(r *http.Request, sess *session.Session) {
	if sess.Quiz.Mounted() {
		return
	}
	if h.limiter != nil && !h.limiter.Allow(r) {
		h.log.Warn("widgets", "initial case study skipped, rate limited", map[string]interface{}{
			"session_id": sess.ID.String(),
		})
		return
	}
	if seq, started := sess.Quiz.Mount(); started {
		h.dispatchCaseStudy(sess, seq)
	}
}

func (h *WidgetHandler) dispatchCaseStudy(sess *session.Session, seq uint64) {
	job := models.Job{SessionID: sess.ID, Type: models.JobTypeCaseStudy, Seq: seq}
	if err := h.dispatcher.Submit(job); err != nil {
		h.log.Error("widgets", "failed to queue case study", map[string]interface{}{
			"session_id": sess.ID.String(),
			"error":      err,
		})
		sess.Quiz.Fail(seq, err)
	}
}

func (h *WidgetHandler) dispatchDiseaseSet(sess *session.Session, seq uint64) {
	job := models.Job{SessionID: sess.ID, Type: models.JobTypeDiseaseSet, Seq: seq}
	if err := h.dispatcher.Submit(job); err != nil {
		h.log.Error("widgets", "failed to queue disease set", map[string]interface{}{
			"session_id": sess.ID.String(),
			"error":      err,
		})
		sess.Gallery.Fail(seq, err)
	}
}

func (h *WidgetHandler) writeQuiz(w http.ResponseWriter, r *http.Request, status int, view viewstate.QuizView) {
	html, err := h.tmpl.QuizFragment(view)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to render case study", r))
		return
	}
	writeJSON(w, status, models.WidgetUpdate{View: view, HTML: html})
}

func (h *WidgetHandler) writeGallery(w http.ResponseWriter, r *http.Request, status int, view viewstate.GalleryView) {
	html, err := h.tmpl.GalleryFragment(view)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to render pathologies", r))
		return
	}
	writeJSON(w, status, models.WidgetUpdate{View: view, HTML: html})
}

func (h *WidgetHandler) GetGallery(w http.ResponseWriter, r *http.Request) {
	h.writeGallery(w, r, http.StatusOK, h.sessionFor(r).Gallery.View())
}

// GenerateDiseases is the "Generate Diseases" trigger.
func (h *WidgetHandler) GenerateDiseases(w http.ResponseWriter, r *http.Request) {
	sess := h.sessionFor(r)
	seq := sess.Gallery.Begin()
	h.dispatchDiseaseSet(sess, seq)

	h.writeGallery(w, r, http.StatusAccepted, sess.Gallery.View())
}

func (h *WidgetHandler) GetCase(w http.ResponseWriter, r *http.Request) {
	sess := h.sessionFor(r)
	h.mountQuiz(r, sess)
	h.writeQuiz(w, r, http.StatusOK, sess.Quiz.View())
}

// NewCase is the "New Case" trigger.
func (h *WidgetHandler) NewCase(w http.ResponseWriter, r *http.Request) {
	sess := h.sessionFor(r)
	seq := sess.Quiz.Begin()
	h.dispatchCaseStudy(sess, seq)

	h.writeQuiz(w, r, http.StatusAccepted, sess.Quiz.View())
}

type selectResponse struct {
	Applied bool `json:"applied"`
	models.WidgetUpdate
}

func (h *WidgetHandler) SelectOption(w http.ResponseWriter, r *http.Request) {
	var req models.SelectOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	sess := h.sessionFor(r)
	applied, err := sess.Quiz.Select(*req.Index)
	if errors.Is(err, viewstate.ErrInvalidOption) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid option index", r))
		return
	}

	view := sess.Quiz.View()
	html, err := h.tmpl.QuizFragment(view)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to render case study", r))
		return
	}
	writeJSON(w, http.StatusOK, selectResponse{
		Applied:      applied,
		WidgetUpdate: models.WidgetUpdate{View: view, HTML: html},
	})
}

// ReplayViews sends a newly connected socket the visitor's current widgets.
// Each view is taken under its machine's lock, so a transition racing the
// connect is delivered after the replayed view, never before it.
func (h *WidgetHandler) ReplayViews(sessionID uuid.UUID, send func(models.WSMessage)) {
	sess, ok := h.sessions.Get(sessionID)
	if !ok {
		return
	}

	sess.Quiz.Peek(func(v viewstate.QuizView) {
		if msg, err := quizMessage(h.tmpl, v); err == nil {
			send(msg)
		}
	})
	sess.Gallery.Peek(func(v viewstate.GalleryView) {
		if msg, err := galleryMessage(h.tmpl, v); err == nil {
			send(msg)
		}
	})
}
