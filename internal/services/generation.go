package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"hemisphere-atlas/internal/logger"
	"hemisphere-atlas/internal/models"
)

// GenerationService turns content requests into validated domain records.
// Every call is a single attempt.
type GenerationService struct {
	generator ContentGenerator
	log       logger.ILogger
	newID     func() uuid.UUID
}

func NewGenerationService(generator ContentGenerator, log logger.ILogger) *GenerationService {
	return &GenerationService{
		generator: generator,
		log:       log,
		newID:     uuid.New,
	}
}

// RequestDiseaseSet asks for exactly three hemisphere-lesion pathologies.
func (s *GenerationService) RequestDiseaseSet(ctx context.Context) ([]models.Disease, error) {
	raw, err := s.generate(ctx, "disease-set", diseaseSetRequest())
	if err != nil {
		return nil, err
	}

	var diseases []models.Disease
	if err := json.Unmarshal([]byte(raw), &diseases); err != nil {
		return nil, s.fail("disease-set", malformed("invalid JSON: %v", err))
	}
	if err := validateDiseases(diseases); err != nil {
		return nil, s.fail("disease-set", err)
	}
	return diseases, nil
}

// caseStudyPayload keeps correctOptionIndex as a pointer so a missing field
// is not mistaken for option 0.
type caseStudyPayload struct {
	Scenario           string   `json:"scenario"`
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectOptionIndex *int     `json:"correctOptionIndex"`
	Explanation        string   `json:"explanation"`
}

// RequestCaseStudy asks for one vignette bundle and mints its ID on receipt.
func (s *GenerationService) RequestCaseStudy(ctx context.Context) (*models.CaseStudy, error) {
	raw, err := s.generate(ctx, "case-study", caseStudyRequest())
	if err != nil {
		return nil, err
	}

	var payload caseStudyPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, s.fail("case-study", malformed("invalid JSON: %v", err))
	}
	if err := validateCaseStudy(payload); err != nil {
		return nil, s.fail("case-study", err)
	}

	return &models.CaseStudy{
		ID:                 s.newID(),
		Scenario:           payload.Scenario,
		Question:           payload.Question,
		Options:            payload.Options,
		CorrectOptionIndex: *payload.CorrectOptionIndex,
		Explanation:        payload.Explanation,
	}, nil
}

func (s *GenerationService) generate(ctx context.Context, kind string, req GenerationRequest) (string, error) {
	raw, err := s.generator.Generate(ctx, req)
	if err != nil {
		var svcErr *ServiceError
		if !errors.As(err, &svcErr) {
			err = &ServiceError{Op: kind, Err: err}
		}
		return "", s.fail(kind, err)
	}

	raw = stripCodeFence(raw)
	if raw == "" {
		return "", s.fail(kind, ErrEmptyResponse)
	}
	return raw, nil
}

func (s *GenerationService) fail(kind string, err error) error {
	details := map[string]interface{}{
		"request": kind,
		"kind":    ErrorKind(err),
		"error":   err,
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		if code := svcErr.HTTPCode(); code != 0 {
			details["http_code"] = code
		}
	}
	s.log.Error("generation", "generation request failed", details)
	return err
}

func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}

func validateDiseases(diseases []models.Disease) error {
	if len(diseases) != models.DiseaseSetSize {
		return malformed("expected %d diseases, got %d", models.DiseaseSetSize, len(diseases))
	}
	for i, d := range diseases {
		if strings.TrimSpace(d.Name) == "" {
			return malformed("disease %d has no name", i)
		}
		if strings.TrimSpace(d.Description) == "" {
			return malformed("disease %d has no description", i)
		}
		if !d.Hemisphere.Valid() {
			return malformed("disease %d has invalid hemisphere %q", i, d.Hemisphere)
		}
		if len(d.Symptoms) == 0 {
			return malformed("disease %d has no symptoms", i)
		}
	}
	return nil
}

func validateCaseStudy(p caseStudyPayload) error {
	if strings.TrimSpace(p.Scenario) == "" {
		return malformed("case study has no scenario")
	}
	if strings.TrimSpace(p.Question) == "" {
		return malformed("case study has no question")
	}
	if strings.TrimSpace(p.Explanation) == "" {
		return malformed("case study has no explanation")
	}
	if len(p.Options) != models.CaseStudyOptionCount {
		return malformed("expected %d options, got %d", models.CaseStudyOptionCount, len(p.Options))
	}
	for i, opt := range p.Options {
		if strings.TrimSpace(opt) == "" {
			return malformed("option %d is empty", i)
		}
	}
	if p.CorrectOptionIndex == nil {
		return malformed("case study has no correctOptionIndex")
	}
	if idx := *p.CorrectOptionIndex; idx < 0 || idx >= len(p.Options) {
		return malformed("correctOptionIndex %d out of range", idx)
	}
	return nil
}
