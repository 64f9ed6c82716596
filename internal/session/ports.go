package session

import (
	"context"
	"time"

	"adaptivetest/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
)

// The interfaces below are the coordinator's view of its dependencies - just
// enough surface to drive the state machine. The concrete hotstore/warmstore
// types satisfy them structurally; tests substitute in-memory fakes.

type HotStore interface {
	SaveStruct(ctx context.Context, key string, model any, ttl time.Duration) error
	GetStruct(ctx context.Context, key string, out any) error
	Delete(ctx context.Context, key string) error
	AcquireLock(ctx context.Context, sessionID, questionID string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, sessionID, questionID string) error
	SessionKey(sessionID string) string
}

type StudentStore interface {
	GetOrCreate(ctx context.Context, id string) (*domain.Student, error)
	Proficiencies(ctx context.Context, studentID string) ([]domain.Proficiency, error)
	UpsertProficiencies(ctx context.Context, studentID string, byName map[string]float64, confidence float64) error
}

type SessionStore interface {
	FindByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, session *domain.Session) error
	Update(ctx context.Context, id string, update bson.M) error
}

type ResponseStore interface {
	Append(ctx context.Context, response *domain.Response) error
	FindBySession(ctx context.Context, sessionID string) ([]domain.Response, error)
}

type PoolSource interface {
	GetPoolByID(ctx context.Context, poolID string) (*domain.Pool, error)
}

type Engine interface {
	SelectNextQuestion(theta []float64, candidates []domain.Question, answered map[string]bool) (domain.Question, bool)
	UpdateProficiency(theta []float64, q domain.Question, response float64) []float64
	ShouldContinue(criteria domain.EndCriteria, answered int, history []domain.Response) bool
	Summarize(initial, final []float64, history []domain.Response) domain.Summary
}

type Publisher interface {
	Publish(eventType string, payload interface{}) error
}
