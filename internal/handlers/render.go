package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"hemisphere-atlas/internal/viewstate"
)

//go:embed templates/*.html
var templateFS embed.FS

type TemplateRenderer struct {
	tmpl *template.Template
}

func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{
		tmpl: template.Must(template.New("").ParseFS(templateFS, "templates/*.html")),
	}
}

type pageData struct {
	Title   string
	Gallery viewstate.GalleryView
	Quiz    viewstate.QuizView
}

func (t *TemplateRenderer) RenderPage(w http.ResponseWriter, data pageData) {
	var buf bytes.Buffer
	if err := t.tmpl.ExecuteTemplate(&buf, "page", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (t *TemplateRenderer) QuizFragment(v viewstate.QuizView) (string, error) {
	return t.fragment("quiz", v)
}

func (t *TemplateRenderer) GalleryFragment(v viewstate.GalleryView) (string, error) {
	return t.fragment("gallery", v)
}

func (t *TemplateRenderer) fragment(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
