package models

type Hemisphere string

const (
	HemisphereLeft      Hemisphere = "Left"
	HemisphereRight     Hemisphere = "Right"
	HemisphereBilateral Hemisphere = "Bilateral"
)

// Hemispheres lists the accepted lateralization tags in schema order.
var Hemispheres = []Hemisphere{HemisphereLeft, HemisphereRight, HemisphereBilateral}

func (h Hemisphere) Valid() bool {
	switch h {
	case HemisphereLeft, HemisphereRight, HemisphereBilateral:
		return true
	}
	return false
}

type Disease struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Hemisphere  Hemisphere `json:"hemisphere"`
	Symptoms    []string   `json:"symptoms"`
}

// DiseaseSetSize is the number of pathologies requested per generation.
const DiseaseSetSize = 3
