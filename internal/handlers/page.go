package handlers

import (
	"net/http"
)

type PageHandler struct {
	widgets *WidgetHandler
}

func NewPageHandler(widgets *WidgetHandler) *PageHandler {
	return &PageHandler{widgets: widgets}
}

// Index renders the whole page. The first render for a visitor mounts the
// case-study widget; the gallery waits for its trigger.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	sess := h.widgets.sessionFor(r)
	h.widgets.mountQuiz(r, sess)

	h.widgets.tmpl.RenderPage(w, pageData{
		Title:   "Hemisphere Atlas",
		Gallery: sess.Gallery.View(),
		Quiz:    sess.Quiz.View(),
	})
}

func (h *PageHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
