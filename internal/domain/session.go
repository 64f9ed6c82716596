package domain

import "time"

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionExpired   SessionStatus = "expired"
)

type EndCriteriaType string

const (
	EndFixedLength   EndCriteriaType = "fixed_length"
	EndPrecision     EndCriteriaType = "precision"
	EndClassification EndCriteriaType = "classification"
)

// EndCriteria parameterizes the adaptive engine's stopping rule.
type EndCriteria struct {
	Type                   EndCriteriaType `bson:"type" json:"type"`
	MaxQuestions           int             `bson:"max_questions" json:"max_questions"`
	MinQuestions           int             `bson:"min_questions" json:"min_questions"`
	PrecisionThreshold     float64         `bson:"precision_threshold" json:"precision_threshold"`
	ClassificationThreshold float64        `bson:"classification_threshold" json:"classification_threshold"`
}

func DefaultEndCriteria() EndCriteria {
	return EndCriteria{
		Type:                   EndFixedLength,
		MinQuestions:           5,
		MaxQuestions:           20,
		PrecisionThreshold:     0.3,
		ClassificationThreshold: 0.8,
	}
}

// Session ties one student to one question pool for one test attempt. The
// warm store holds the canonical row; Session as held in the hot store is a
// volatile projection used only while Status == SessionActive.
type Session struct {
	ID                  string        `bson:"_id,omitempty" json:"id"`
	StudentID           string        `bson:"student_id" json:"student_id"`
	PoolID              string        `bson:"pool_id" json:"pool_id"`
	ConceptNames        []string      `bson:"concept_names" json:"concept_names"`
	Status              SessionStatus `bson:"status" json:"status"`
	InitialProficiency  []float64     `bson:"initial_proficiency" json:"initial_proficiency"`
	CurrentProficiency  []float64     `bson:"current_proficiency" json:"current_proficiency"`
	EndCriteria         EndCriteria   `bson:"end_criteria" json:"end_criteria"`
	QuestionsAnswered   int           `bson:"questions_answered" json:"questions_answered"`
	CorrectCount        int           `bson:"correct_count" json:"correct_count"`
	NextQuestionID      string        `bson:"next_question_id,omitempty" json:"next_question_id,omitempty"`
	StartedAt           time.Time     `bson:"started_at" json:"started_at"`
	LastActivity        time.Time     `bson:"last_activity" json:"last_activity"`
	CompletedAt         *time.Time    `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

func (s Session) Accuracy() float64 {
	if s.QuestionsAnswered == 0 {
		return 0
	}
	return float64(s.CorrectCount) / float64(s.QuestionsAnswered)
}
