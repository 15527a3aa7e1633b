package services

import (
	"github.com/google/generative-ai-go/genai"

	"hemisphere-atlas/internal/models"
)

const (
	diseaseSetTemperature float32 = 0.7
	caseStudyTemperature  float32 = 0.8
)

const diseaseSetPrompt = "Generate 3 distinct, clinically significant diseases or syndromes specifically resulting from " +
	"lesions or dysfunction in the cerebral hemispheres (e.g., stroke syndromes, neglect syndromes, aphasias). " +
	"Provide diversity between left and right hemisphere pathologies."

const caseStudyPrompt = "Create a challenging clinical case study question suitable for medical students involving " +
	"cerebral hemisphere pathology. Include a patient vignette, a question, 4 options, and a detailed explanation."

func diseaseSetSchema() *genai.Schema {
	hemispheres := make([]string, len(models.Hemispheres))
	for i, h := range models.Hemispheres {
		hemispheres[i] = string(h)
	}

	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"name":        {Type: genai.TypeString},
				"description": {Type: genai.TypeString},
				"hemisphere":  {Type: genai.TypeString, Format: "enum", Enum: hemispheres},
				"symptoms": {
					Type:  genai.TypeArray,
					Items: &genai.Schema{Type: genai.TypeString},
				},
			},
			Required: []string{"name", "description", "hemisphere", "symptoms"},
		},
	}
}

func caseStudySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"scenario": {Type: genai.TypeString},
			"question": {Type: genai.TypeString},
			"options": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "A list of exactly 4 possible answers.",
			},
			"correctOptionIndex": {Type: genai.TypeInteger, Description: "Index of the correct option (0-3)"},
			"explanation":        {Type: genai.TypeString, Description: "Detailed clinical explanation of why the answer is correct."},
		},
		Required: []string{"scenario", "question", "options", "correctOptionIndex", "explanation"},
	}
}

func diseaseSetRequest() GenerationRequest {
	return GenerationRequest{Prompt: diseaseSetPrompt, Schema: diseaseSetSchema(), Temperature: diseaseSetTemperature}
}

func caseStudyRequest() GenerationRequest {
	return GenerationRequest{Prompt: caseStudyPrompt, Schema: caseStudySchema(), Temperature: caseStudyTemperature}
}
