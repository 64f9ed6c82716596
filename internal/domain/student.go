package domain

import "time"

// Student is identified by an external id managed upstream of this service;
// the record here exists only to anchor proficiency history.
type Student struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Proficiency is one student's estimate for one concept. Value is bounded to
// [-3.0, 3.0] by the adaptive engine on every update.
type Proficiency struct {
	StudentID   string    `bson:"student_id" json:"student_id"`
	ConceptName string    `bson:"concept_name" json:"concept_name"`
	Value       float64   `bson:"value" json:"value"`
	Confidence  float64   `bson:"confidence" json:"confidence"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

const InitialProficiency = 0.5

// ProficiencyVector converts a concept-ordered slice to/from the map shape
// the warm store persists rows in.
func ProficiencyVector(concepts []string, byName map[string]float64) []float64 {
	vec := make([]float64, len(concepts))
	for i, name := range concepts {
		if v, ok := byName[name]; ok {
			vec[i] = v
		} else {
			vec[i] = InitialProficiency
		}
	}
	return vec
}

func VectorToMap(concepts []string, vec []float64) map[string]float64 {
	m := make(map[string]float64, len(concepts))
	for i, name := range concepts {
		if i < len(vec) {
			m[name] = vec[i]
		}
	}
	return m
}
