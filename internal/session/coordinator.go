// Package session implements the test-session lifecycle state machine:
// start, submit (with at-most-once locking), status, and end. It is the
// seam between the in-memory adaptive engine and the hot/warm stores.
package session

import (
	"context"
	"time"

	"adaptivetest/internal/config"
	"adaptivetest/internal/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// Coordinator owns the session state machine. All stores it depends on are
// injected so the machine itself stays free of transport/storage detail.
type Coordinator struct {
	hot       HotStore
	students  StudentStore
	sessions  SessionStore
	responses ResponseStore
	pools     PoolSource
	engine    Engine
	publisher Publisher
	cfg       config.CacheConfig
}

func NewCoordinator(
	hot HotStore,
	students StudentStore,
	sessions SessionStore,
	responses ResponseStore,
	pools PoolSource,
	eng Engine,
	publisher Publisher,
	cfg config.CacheConfig,
) *Coordinator {
	return &Coordinator{
		hot: hot, students: students, sessions: sessions, responses: responses,
		pools: pools, engine: eng, publisher: publisher, cfg: cfg,
	}
}

// hotState is the volatile projection of an active session kept in Redis.
type hotState struct {
	SessionID         string             `json:"session_id"`
	StudentID         string             `json:"student_id"`
	PoolID            string             `json:"pool_id"`
	ConceptNames      []string           `json:"concept_names"`
	InitialProficiency []float64         `json:"initial_proficiency"`
	CurrentProficiency []float64         `json:"current_proficiency"`
	EndCriteria       domain.EndCriteria `json:"end_criteria"`
	QuestionsAnswered int                `json:"questions_answered"`
	CorrectCount      int                `json:"correct_count"`
	NextQuestionID    string             `json:"next_question_id"`
	LastActivity      time.Time          `json:"last_activity"`
}

// StartResult is returned to the caller of Start.
type StartResult struct {
	SessionID          string
	InitialProficiency []float64
	ConceptNames       []string
	NextQuestion       domain.Question
}

// Start creates a new session against an already-cached (or cacheable)
// question pool, seeds the student's proficiency vector, and selects the
// first question.
func (c *Coordinator) Start(ctx context.Context, studentID, poolID string, criteria *domain.EndCriteria, conceptNames []string) (*StartResult, error) {
	pool, err := c.pools.GetPoolByID(ctx, poolID)
	if err != nil {
		return nil, domain.NewError(domain.ErrInternal, "loading question pool", err)
	}
	if pool == nil {
		return nil, domain.NewError(domain.ErrPoolUnavailable, "pool "+poolID+" unavailable from any tier", nil)
	}

	if len(conceptNames) == 0 {
		conceptNames = pool.ConceptNames()
	}
	ec := domain.DefaultEndCriteria()
	if criteria != nil {
		ec = *criteria
	}

	if _, err := c.students.GetOrCreate(ctx, studentID); err != nil {
		return nil, domain.NewError(domain.ErrInternal, "creating student record", err)
	}
	existing, err := c.students.Proficiencies(ctx, studentID)
	if err != nil {
		return nil, domain.NewError(domain.ErrInternal, "loading student proficiency", err)
	}
	byName := make(map[string]float64, len(existing))
	for _, p := range existing {
		byName[p.ConceptName] = p.Value
	}
	theta := domain.ProficiencyVector(conceptNames, byName)
	if len(existing) == 0 {
		if err := c.students.UpsertProficiencies(ctx, studentID, domain.VectorToMap(conceptNames, theta), 1.0); err != nil {
			return nil, domain.NewError(domain.ErrInternal, "initializing student proficiency", err)
		}
	}

	next, ok := c.engine.SelectNextQuestion(theta, pool.Questions, nil)
	if !ok {
		return nil, domain.NewError(domain.ErrPoolUnavailable, "pool "+poolID+" has no questions", nil)
	}

	sessionID := uuid.New().String()
	now := time.Now()

	row := &domain.Session{
		ID:                 sessionID,
		StudentID:          studentID,
		PoolID:             poolID,
		ConceptNames:       conceptNames,
		Status:             domain.SessionActive,
		InitialProficiency: theta,
		CurrentProficiency: theta,
		EndCriteria:        ec,
		NextQuestionID:     next.ID,
		StartedAt:          now,
		LastActivity:       now,
	}
	if err := c.sessions.Create(ctx, row); err != nil {
		return nil, domain.NewError(domain.ErrInternal, "persisting session", err)
	}

	state := hotState{
		SessionID: sessionID, StudentID: studentID, PoolID: poolID,
		ConceptNames: conceptNames, InitialProficiency: theta, CurrentProficiency: theta, EndCriteria: ec,
		NextQuestionID: next.ID, LastActivity: now,
	}
	if err := c.hot.SaveStruct(ctx, c.hot.SessionKey(sessionID), state, c.cfg.SessionTTL); err != nil {
		return nil, domain.NewError(domain.ErrInternal, "writing session hot state", err)
	}

	c.publisher.Publish("test.started", map[string]any{"session_id": sessionID, "student_id": studentID, "pool_id": poolID})

	return &StartResult{
		SessionID: sessionID, InitialProficiency: theta, ConceptNames: conceptNames,
		NextQuestion: next.WithoutAnswer(),
	}, nil
}

// SubmitResult is returned by Submit. If Completed is false, NextQuestion and
// CurrentProficiency are populated and Summary carries only the running
// TotalQuestions/CorrectCount; if true, the full Summary is populated instead.
type SubmitResult struct {
	Completed    bool
	CurrentProficiency []float64
	NextQuestion domain.Question
	Summary      domain.Summary
}

// Submit records a response for (sessionID, questionID), updates
// proficiency, and either advances the session or finalizes it. It is
// protected end-to-end by a short-lived submission lock.
func (c *Coordinator) Submit(ctx context.Context, sessionID, questionID string, correct bool) (*SubmitResult, error) {
	acquired, err := c.hot.AcquireLock(ctx, sessionID, questionID, c.cfg.SubmissionLockTTL)
	if err != nil {
		return nil, domain.NewError(domain.ErrInternal, "acquiring submission lock", err)
	}
	if !acquired {
		return nil, domain.NewError(domain.ErrDuplicateSubmit, "a submission for this session/question is already in flight", nil)
	}
	defer c.hot.ReleaseLock(ctx, sessionID, questionID)

	var state hotState
	if err := c.hot.GetStruct(ctx, c.hot.SessionKey(sessionID), &state); err != nil {
		row, ferr := c.sessions.FindByID(ctx, sessionID)
		if ferr != nil {
			return nil, domain.NewError(domain.ErrSessionNotFound, "session "+sessionID+" not found", ferr)
		}
		if row.Status == domain.SessionActive {
			return nil, domain.NewError(domain.ErrSessionNotFound, "session "+sessionID+" has no active state", nil)
		}
		return nil, domain.NewError(domain.ErrSessionInactive, "session "+sessionID+" is "+string(row.Status), nil)
	}

	pool, err := c.pools.GetPoolByID(ctx, state.PoolID)
	if err != nil || pool == nil {
		return nil, domain.NewError(domain.ErrInternal, "loading session pool", err)
	}
	question, found := pool.QuestionByID(questionID)
	if !found {
		return nil, domain.NewError(domain.ErrQuestionNotFound, "question "+questionID+" not in pool "+state.PoolID, nil)
	}

	response := 0.0
	if correct {
		response = 1.0
	}
	before := state.CurrentProficiency
	after := c.engine.UpdateProficiency(before, question, response)
	now := time.Now()

	record := &domain.Response{
		StudentID: state.StudentID, SessionID: sessionID, QuestionID: questionID,
		Correct: correct, ProficiencyBefore: before, ProficiencyAfter: after, Timestamp: now,
	}
	if err := c.responses.Append(ctx, record); err != nil {
		return nil, domain.NewError(domain.ErrInternal, "recording response", err)
	}
	if err := c.students.UpsertProficiencies(ctx, state.StudentID, domain.VectorToMap(state.ConceptNames, after), 1.0); err != nil {
		return nil, domain.NewError(domain.ErrInternal, "updating student proficiency", err)
	}

	history, err := c.responses.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, domain.NewError(domain.ErrInternal, "loading response history", err)
	}

	answered := make(map[string]bool, len(history))
	for _, r := range history {
		answered[r.QuestionID] = true
	}

	cont := c.engine.ShouldContinue(state.EndCriteria, len(history), history)

	if cont {
		next, ok := c.engine.SelectNextQuestion(after, pool.Questions, answered)
		if !ok {
			cont = false
		} else {
			state.CurrentProficiency = after
			state.QuestionsAnswered = len(history)
			if correct {
				state.CorrectCount++
			}
			state.NextQuestionID = next.ID
			state.LastActivity = now
			if err := c.hot.SaveStruct(ctx, c.hot.SessionKey(sessionID), state, c.cfg.SessionTTL); err != nil {
				return nil, domain.NewError(domain.ErrInternal, "refreshing session hot state", err)
			}
			if err := c.sessions.Update(ctx, sessionID, bson.M{"last_activity": now, "current_proficiency": after}); err != nil {
				return nil, domain.NewError(domain.ErrInternal, "persisting session progress", err)
			}

			c.publisher.Publish("test.answer_submitted", map[string]any{"session_id": sessionID, "question_id": questionID, "correct": correct})
			return &SubmitResult{
				Completed: false, CurrentProficiency: after, NextQuestion: next.WithoutAnswer(),
				Summary: domain.Summary{TotalQuestions: state.QuestionsAnswered, CorrectCount: state.CorrectCount},
			}, nil
		}
	}

	summary := c.engine.Summarize(state.InitialProficiency, after, history)

	completedAt := now
	if err := c.sessions.Update(ctx, sessionID, bson.M{
		"status": domain.SessionCompleted, "current_proficiency": after,
		"questions_answered": summary.TotalQuestions, "correct_count": summary.CorrectCount,
		"last_activity": now, "completed_at": completedAt,
	}); err != nil {
		return nil, domain.NewError(domain.ErrInternal, "finalizing session", err)
	}
	if err := c.hot.Delete(ctx, c.hot.SessionKey(sessionID)); err != nil {
		return nil, domain.NewError(domain.ErrInternal, "clearing session hot state", err)
	}

	c.publisher.Publish("test.completed", map[string]any{"session_id": sessionID, "accuracy": summary.Accuracy})
	return &SubmitResult{Completed: true, Summary: summary}, nil
}

// Status returns the hot projection if the session is still active, else
// falls back to the warm-store row.
func (c *Coordinator) Status(ctx context.Context, sessionID string) (*domain.Session, error) {
	var state hotState
	if err := c.hot.GetStruct(ctx, c.hot.SessionKey(sessionID), &state); err == nil {
		return &domain.Session{
			ID: state.SessionID, StudentID: state.StudentID, PoolID: state.PoolID,
			ConceptNames: state.ConceptNames, Status: domain.SessionActive,
			CurrentProficiency: state.CurrentProficiency, EndCriteria: state.EndCriteria,
			QuestionsAnswered: state.QuestionsAnswered, CorrectCount: state.CorrectCount,
			NextQuestionID: state.NextQuestionID, LastActivity: state.LastActivity,
		}, nil
	}

	row, err := c.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, domain.NewError(domain.ErrSessionNotFound, "session "+sessionID+" not found", err)
	}
	return row, nil
}

// End idempotently finalizes a session: if hot state remains, it is
// persisted as completed and cleared; otherwise the existing warm row is
// returned unchanged.
func (c *Coordinator) End(ctx context.Context, sessionID string) (*domain.Session, error) {
	var state hotState
	if err := c.hot.GetStruct(ctx, c.hot.SessionKey(sessionID), &state); err != nil {
		row, ferr := c.sessions.FindByID(ctx, sessionID)
		if ferr != nil {
			return nil, domain.NewError(domain.ErrSessionNotFound, "session "+sessionID+" not found", ferr)
		}
		return row, nil
	}

	now := time.Now()
	if err := c.sessions.Update(ctx, sessionID, bson.M{
		"status": domain.SessionCompleted, "current_proficiency": state.CurrentProficiency,
		"questions_answered": state.QuestionsAnswered, "correct_count": state.CorrectCount,
		"last_activity": now, "completed_at": now,
	}); err != nil {
		return nil, domain.NewError(domain.ErrInternal, "finalizing session", err)
	}
	if err := c.hot.Delete(ctx, c.hot.SessionKey(sessionID)); err != nil {
		return nil, domain.NewError(domain.ErrInternal, "clearing session hot state", err)
	}

	row, err := c.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, domain.NewError(domain.ErrInternal, "reloading finalized session", err)
	}
	return row, nil
}
