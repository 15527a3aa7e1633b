package viewstate

import "hemisphere-atlas/internal/models"

const (
	QuizErrorMessage    = "Unable to generate a case study at this time."
	GalleryErrorMessage = "Failed to load data. Please check your API configuration."
)

type OptionMark string

const (
	MarkNone      OptionMark = ""
	MarkCorrect   OptionMark = "correct"
	MarkIncorrect OptionMark = "incorrect"
	MarkMuted     OptionMark = "muted"
)

type QuizState struct {
	Status             models.LoadingState
	CaseStudy          *models.CaseStudy
	SelectedOption     *int
	ExplanationVisible bool
}

type OptionView struct {
	Index       int        `json:"index"`
	Text        string     `json:"text"`
	Interactive bool       `json:"interactive"`
	Mark        OptionMark `json:"mark,omitempty"`
}

type QuizView struct {
	Status             models.LoadingState `json:"status"`
	CaseID             string              `json:"case_id,omitempty"`
	Scenario           string              `json:"scenario,omitempty"`
	Question           string              `json:"question,omitempty"`
	Options            []OptionView        `json:"options,omitempty"`
	SelectedOption     *int                `json:"selected_option"`
	ExplanationVisible bool                `json:"explanation_visible"`
	Explanation        string              `json:"explanation,omitempty"`
	ErrorMessage       string              `json:"error_message,omitempty"`
	CanRequestNew      bool                `json:"can_request_new"`
}

// ProjectQuiz derives the whole quiz display from state. The case is only
// shown in SUCCESS; LOADING and ERROR hide whatever record is retained.
func ProjectQuiz(s QuizState) QuizView {
	v := QuizView{
		Status:        s.Status,
		CanRequestNew: s.Status != models.StatusLoading,
	}

	switch s.Status {
	case models.StatusError:
		v.ErrorMessage = QuizErrorMessage
		return v
	case models.StatusSuccess:
	default:
		return v
	}
	if s.CaseStudy == nil {
		return v
	}

	cs := s.CaseStudy
	v.CaseID = cs.ID.String()
	v.Scenario = cs.Scenario
	v.Question = cs.Question
	v.Options = make([]OptionView, len(cs.Options))
	for i, text := range cs.Options {
		v.Options[i] = projectOption(i, text, cs.CorrectOptionIndex, s.SelectedOption)
	}

	if s.SelectedOption != nil {
		sel := *s.SelectedOption
		v.SelectedOption = &sel
	}
	v.ExplanationVisible = s.ExplanationVisible
	if s.ExplanationVisible {
		v.Explanation = cs.Explanation
	}
	return v
}

func projectOption(idx int, text string, correct int, selected *int) OptionView {
	opt := OptionView{Index: idx, Text: text}
	switch {
	case selected == nil:
		opt.Interactive = true
	case idx == correct:
		opt.Mark = MarkCorrect
	case idx == *selected:
		opt.Mark = MarkIncorrect
	default:
		opt.Mark = MarkMuted
	}
	return opt
}

type GalleryState struct {
	Status   models.LoadingState
	Diseases []models.Disease
}

type DiseaseCard struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Hemisphere  models.Hemisphere `json:"hemisphere"`
	BadgeClass  string            `json:"badge_class"`
	Symptoms    []string          `json:"symptoms"`
}

type GalleryView struct {
	Status          models.LoadingState `json:"status"`
	Diseases        []DiseaseCard       `json:"diseases"`
	ShowPlaceholder bool                `json:"show_placeholder"`
	ErrorMessage    string              `json:"error_message,omitempty"`
	CanGenerate     bool                `json:"can_generate"`
}

// ProjectGallery keeps the last good cards visible in every status.
func ProjectGallery(s GalleryState) GalleryView {
	v := GalleryView{
		Status:          s.Status,
		Diseases:        make([]DiseaseCard, 0, len(s.Diseases)),
		ShowPlaceholder: s.Status == models.StatusIdle,
		CanGenerate:     s.Status != models.StatusLoading,
	}
	if s.Status == models.StatusError {
		v.ErrorMessage = GalleryErrorMessage
	}

	for _, d := range s.Diseases {
		v.Diseases = append(v.Diseases, DiseaseCard{
			Name:        d.Name,
			Description: d.Description,
			Hemisphere:  d.Hemisphere,
			BadgeClass:  badgeClass(d.Hemisphere),
			Symptoms:    append([]string(nil), d.Symptoms...),
		})
	}
	return v
}

func badgeClass(h models.Hemisphere) string {
	switch h {
	case models.HemisphereLeft:
		return "badge-left"
	case models.HemisphereRight:
		return "badge-right"
	default:
		return "badge-bilateral"
	}
}
