package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobTypeCaseStudy  = "case-study"
	JobTypeDiseaseSet = "disease-set"
)

// Job is one outstanding generation request for a visitor's widget. Seq is
// the widget's request sequence number at dispatch time.
type Job struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Type      string    `json:"type"` // "case-study" | "disease-set"
	Seq       uint64    `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

// WebSocket message types
const (
	WSTypeQuizView    = "quiz_view"
	WSTypeGalleryView = "gallery_view"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WidgetUpdate carries a projected view together with its rendered fragment.
type WidgetUpdate struct {
	View interface{} `json:"view"`
	HTML string      `json:"html"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
