package models

import "github.com/google/uuid"

// CaseStudyOptionCount is the fixed number of answer options per case.
const CaseStudyOptionCount = 4

type CaseStudy struct {
	ID                 uuid.UUID `json:"id"`
	Scenario           string    `json:"scenario"`
	Question           string    `json:"question"`
	Options            []string  `json:"options"`
	CorrectOptionIndex int       `json:"correctOptionIndex"`
	Explanation        string    `json:"explanation"`
}

type SelectOptionRequest struct {
	Index *int `json:"index"`
}
