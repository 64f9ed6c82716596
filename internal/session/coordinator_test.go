package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"adaptivetest/internal/config"
	"adaptivetest/internal/domain"
	"adaptivetest/internal/engine"

	"go.mongodb.org/mongo-driver/bson"
)

var errNotFound = errors.New("not found")

func jsonMarshal(v any) ([]byte, error)        { return json.Marshal(v) }
func jsonUnmarshal(b []byte, out any) error    { return json.Unmarshal(b, out) }

// --- in-memory fakes ---------------------------------------------------

type fakeHotStore struct {
	mu    sync.Mutex
	data  map[string][]byte
	locks map[string]bool
}

func newFakeHotStore() *fakeHotStore {
	return &fakeHotStore{data: map[string][]byte{}, locks: map[string]bool{}}
}

func (f *fakeHotStore) SaveStruct(ctx context.Context, key string, model any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := jsonMarshal(model)
	if err != nil {
		return err
	}
	f.data[key] = b
	return nil
}

func (f *fakeHotStore) GetStruct(ctx context.Context, key string, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.data[key]
	if !ok {
		return errNotFound
	}
	return jsonUnmarshal(b, out)
}

func (f *fakeHotStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeHotStore) AcquireLock(ctx context.Context, sessionID, questionID string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := sessionID + ":" + questionID
	if f.locks[key] {
		return false, nil
	}
	f.locks[key] = true
	return true, nil
}

func (f *fakeHotStore) ReleaseLock(ctx context.Context, sessionID, questionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locks, sessionID+":"+questionID)
	return nil
}

func (f *fakeHotStore) SessionKey(sessionID string) string { return "session:" + sessionID }

type fakeStudentStore struct {
	proficiencies map[string]map[string]float64
}

func newFakeStudentStore() *fakeStudentStore {
	return &fakeStudentStore{proficiencies: map[string]map[string]float64{}}
}

func (f *fakeStudentStore) GetOrCreate(ctx context.Context, id string) (*domain.Student, error) {
	return &domain.Student{ID: id}, nil
}

func (f *fakeStudentStore) Proficiencies(ctx context.Context, studentID string) ([]domain.Proficiency, error) {
	var out []domain.Proficiency
	for name, value := range f.proficiencies[studentID] {
		out = append(out, domain.Proficiency{StudentID: studentID, ConceptName: name, Value: value})
	}
	return out, nil
}

func (f *fakeStudentStore) UpsertProficiencies(ctx context.Context, studentID string, byName map[string]float64, confidence float64) error {
	if f.proficiencies[studentID] == nil {
		f.proficiencies[studentID] = map[string]float64{}
	}
	for k, v := range byName {
		f.proficiencies[studentID][k] = v
	}
	return nil
}

type fakeSessionStore struct {
	mu   sync.Mutex
	rows map[string]*domain.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{rows: map[string]*domain.Session{}}
}

func (f *fakeSessionStore) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *row
	return &cp, nil
}

func (f *fakeSessionStore) Create(ctx context.Context, s *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.rows[s.ID] = &cp
	return nil
}

func (f *fakeSessionStore) Update(ctx context.Context, id string, update bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return errNotFound
	}
	if v, ok := update["status"]; ok {
		row.Status = v.(domain.SessionStatus)
	}
	if v, ok := update["current_proficiency"]; ok {
		row.CurrentProficiency = v.([]float64)
	}
	if v, ok := update["questions_answered"]; ok {
		row.QuestionsAnswered = v.(int)
	}
	if v, ok := update["correct_count"]; ok {
		row.CorrectCount = v.(int)
	}
	return nil
}

type fakeResponseStore struct {
	mu   sync.Mutex
	rows []domain.Response
}

func newFakeResponseStore() *fakeResponseStore { return &fakeResponseStore{} }

func (f *fakeResponseStore) Append(ctx context.Context, r *domain.Response) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, *r)
	return nil
}

func (f *fakeResponseStore) FindBySession(ctx context.Context, sessionID string) ([]domain.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Response
	for _, r := range f.rows {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakePoolSource struct {
	pool *domain.Pool
}

func (f *fakePoolSource) GetPoolByID(ctx context.Context, poolID string) (*domain.Pool, error) {
	if f.pool == nil || f.pool.ID != poolID {
		return nil, nil
	}
	return f.pool, nil
}

type fakePublisher struct {
	events []string
}

func (f *fakePublisher) Publish(eventType string, payload interface{}) error {
	f.events = append(f.events, eventType)
	return nil
}

// --- fixtures ------------------------------------------------------------

func samplePool() *domain.Pool {
	return &domain.Pool{
		ID:         "topic_t1",
		Level:      "topic",
		LevelID:    "t1",
		Attributes: []domain.ConceptAttribute{{Name: "algebra"}},
		Questions: []domain.Question{
			{ID: "q1", Concepts: []float64{1}, Discrimination: 1, Difficulty: 0, CorrectAnswer: "a"},
			{ID: "q2", Concepts: []float64{1}, Discrimination: 2, Difficulty: 0, CorrectAnswer: "b"},
		},
		TotalCount: 2,
	}
}

func newTestCoordinator(pool *domain.Pool) (*Coordinator, *fakeSessionStore, *fakeResponseStore) {
	hot := newFakeHotStore()
	students := newFakeStudentStore()
	sessions := newFakeSessionStore()
	responses := newFakeResponseStore()
	pools := &fakePoolSource{pool: pool}
	eng := engine.NewEngine(engine.DefaultConfig())
	pub := &fakePublisher{}

	cfg := config.CacheConfig{SessionTTL: time.Minute, SubmissionLockTTL: 5 * time.Second}
	coord := NewCoordinator(hot, students, sessions, responses, pools, eng, pub, cfg)
	return coord, sessions, responses
}

// --- tests -----------------------------------------------------------------

func TestStartSelectsFirstQuestionAndPersistsSession(t *testing.T) {
	coord, sessions, _ := newTestCoordinator(samplePool())
	ctx := context.Background()

	criteria := domain.EndCriteria{Type: domain.EndFixedLength, MinQuestions: 1, MaxQuestions: 1}
	result, err := coord.Start(ctx, "student-1", "topic_t1", &criteria, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NextQuestion.ID != "q2" {
		t.Fatalf("expected higher-information question q2 selected first, got %s", result.NextQuestion.ID)
	}
	if result.NextQuestion.CorrectAnswer != "" {
		t.Fatal("expected correct_answer stripped from client-facing question")
	}

	row, err := sessions.FindByID(ctx, result.SessionID)
	if err != nil {
		t.Fatalf("expected session row to be persisted: %v", err)
	}
	if row.Status != domain.SessionActive {
		t.Fatalf("expected active session, got %s", row.Status)
	}
}

func TestStartUnavailablePool(t *testing.T) {
	coord, _, _ := newTestCoordinator(nil)
	_, err := coord.Start(context.Background(), "student-1", "topic_missing", nil, nil)
	if domain.KindOf(err) != domain.ErrPoolUnavailable {
		t.Fatalf("expected POOL_UNAVAILABLE, got %v", err)
	}
}

func TestSubmitCompletesAtFixedLength(t *testing.T) {
	coord, sessions, responses := newTestCoordinator(samplePool())
	ctx := context.Background()

	criteria := domain.EndCriteria{Type: domain.EndFixedLength, MinQuestions: 1, MaxQuestions: 1}
	started, err := coord.Start(ctx, "student-1", "topic_t1", &criteria, nil)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	result, err := coord.Submit(ctx, started.SessionID, started.NextQuestion.ID, true)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !result.Completed {
		t.Fatal("expected session to complete at max_questions=1")
	}
	if result.Summary.TotalQuestions != 1 || result.Summary.CorrectCount != 1 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}

	row, err := sessions.FindByID(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("session lookup failed: %v", err)
	}
	if row.Status != domain.SessionCompleted {
		t.Fatalf("expected completed session row, got %s", row.Status)
	}

	hist, _ := responses.FindBySession(ctx, started.SessionID)
	if len(hist) != 1 {
		t.Fatalf("expected exactly one response recorded, got %d", len(hist))
	}
}

func TestSubmitDuplicateIsRejected(t *testing.T) {
	coord, _, _ := newTestCoordinator(samplePool())
	ctx := context.Background()

	criteria := domain.EndCriteria{Type: domain.EndFixedLength, MinQuestions: 2, MaxQuestions: 5}
	started, err := coord.Start(ctx, "student-1", "topic_t1", &criteria, nil)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	coord.hot.(*fakeHotStore).mu.Lock()
	coord.hot.(*fakeHotStore).locks[started.SessionID+":"+started.NextQuestion.ID] = true
	coord.hot.(*fakeHotStore).mu.Unlock()

	_, err = coord.Submit(ctx, started.SessionID, started.NextQuestion.ID, true)
	if domain.KindOf(err) != domain.ErrDuplicateSubmit {
		t.Fatalf("expected DUPLICATE_SUBMISSION, got %v", err)
	}
}

func TestSubmitUnknownSession(t *testing.T) {
	coord, _, _ := newTestCoordinator(samplePool())
	_, err := coord.Submit(context.Background(), "missing-session", "q1", true)
	if domain.KindOf(err) != domain.ErrSessionNotFound {
		t.Fatalf("expected SESSION_NOT_FOUND, got %v", err)
	}
}

func TestSubmitAfterExpiryIsRejectedAsInactive(t *testing.T) {
	coord, sessions, _ := newTestCoordinator(samplePool())
	ctx := context.Background()

	criteria := domain.EndCriteria{Type: domain.EndFixedLength, MinQuestions: 2, MaxQuestions: 5}
	started, err := coord.Start(ctx, "student-1", "topic_t1", &criteria, nil)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Simulate the cleanup sweep: hot state evicted, warm row marked expired.
	coord.hot.Delete(ctx, coord.hot.SessionKey(started.SessionID))
	if err := sessions.Update(ctx, started.SessionID, bson.M{"status": domain.SessionExpired}); err != nil {
		t.Fatalf("marking expired: %v", err)
	}

	_, err = coord.Submit(ctx, started.SessionID, started.NextQuestion.ID, true)
	if domain.KindOf(err) != domain.ErrSessionInactive {
		t.Fatalf("expected SESSION_INACTIVE, got %v", err)
	}
}
