package domain

import "time"

// Response is an append-only record of one answered question. At most one
// Response exists per (SessionID, QuestionID) - enforced by the warm store
// via a unique index, not by this type.
type Response struct {
	ID                string    `bson:"_id,omitempty" json:"id"`
	StudentID         string    `bson:"student_id" json:"student_id"`
	SessionID         string    `bson:"session_id" json:"session_id"`
	QuestionID        string    `bson:"question_id" json:"question_id"`
	Correct           bool      `bson:"correct" json:"correct"`
	ProficiencyBefore []float64 `bson:"proficiency_before" json:"proficiency_before"`
	ProficiencyAfter  []float64 `bson:"proficiency_after" json:"proficiency_after"`
	Timestamp         time.Time `bson:"timestamp" json:"timestamp"`
}

func (r Response) ResponseValue() float64 {
	if r.Correct {
		return 1
	}
	return 0
}

// Summary reports the outcome of a finished (or in-progress) session.
type Summary struct {
	TotalQuestions     int       `json:"total_questions"`
	CorrectCount       int       `json:"correct_count"`
	Accuracy           float64   `json:"accuracy"`
	InitialProficiency []float64 `json:"initial_proficiency"`
	FinalProficiency   []float64 `json:"final_proficiency"`
	ProficiencyChange  []float64 `json:"proficiency_change"`
	LearningGain       float64   `json:"learning_gain"`
	Efficiency         float64   `json:"efficiency"`
}
