package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hemisphere-atlas/internal/logger"
	"hemisphere-atlas/internal/models"
	"hemisphere-atlas/internal/viewstate"
)

// Publisher delivers a websocket message to one visitor.
type Publisher interface {
	Publish(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage) error
}

// ViewPublisher renders every widget transition and pushes it to the
// visitor's open tabs.
type ViewPublisher struct {
	publisher Publisher
	tmpl      *TemplateRenderer
	log       logger.ILogger
}

func NewViewPublisher(publisher Publisher, tmpl *TemplateRenderer, log logger.ILogger) *ViewPublisher {
	return &ViewPublisher{publisher: publisher, tmpl: tmpl, log: log}
}

func (p *ViewPublisher) QuizChanged(sessionID uuid.UUID, view viewstate.QuizView) {
	msg, err := quizMessage(p.tmpl, view)
	p.publish(sessionID, msg, err)
}

func (p *ViewPublisher) GalleryChanged(sessionID uuid.UUID, view viewstate.GalleryView) {
	msg, err := galleryMessage(p.tmpl, view)
	p.publish(sessionID, msg, err)
}

func quizMessage(tmpl *TemplateRenderer, view viewstate.QuizView) (models.WSMessage, error) {
	html, err := tmpl.QuizFragment(view)
	return models.WSMessage{
		Type:    models.WSTypeQuizView,
		Payload: models.WidgetUpdate{View: view, HTML: html},
	}, err
}

func galleryMessage(tmpl *TemplateRenderer, view viewstate.GalleryView) (models.WSMessage, error) {
	html, err := tmpl.GalleryFragment(view)
	return models.WSMessage{
		Type:    models.WSTypeGalleryView,
		Payload: models.WidgetUpdate{View: view, HTML: html},
	}, err
}

func (p *ViewPublisher) publish(sessionID uuid.UUID, msg models.WSMessage, renderErr error) {
	msgType := msg.Type
	if renderErr != nil {
		p.log.Error("publisher", "failed to render fragment", map[string]interface{}{
			"session_id": sessionID.String(),
			"type":       msgType,
			"error":      renderErr,
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.publisher.Publish(ctx, sessionID, msg); err != nil {
		p.log.Warn("publisher", "failed to publish update", map[string]interface{}{
			"session_id": sessionID.String(),
			"type":       msgType,
			"error":      err.Error(),
		})
	}
}
