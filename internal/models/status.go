package models

// LoadingState tracks the most recent generation request of one widget.
type LoadingState string

const (
	StatusIdle    LoadingState = "IDLE"
	StatusLoading LoadingState = "LOADING"
	StatusSuccess LoadingState = "SUCCESS"
	StatusError   LoadingState = "ERROR"
)
