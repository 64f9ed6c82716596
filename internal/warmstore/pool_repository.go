package warmstore

import (
	"context"
	"time"

	"adaptivetest/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// poolRow is the warm-store shape of a Pool: question bodies live in their
// own collection, keyed by pool id, so a pool row stays small.
type poolRow struct {
	ID         string                    `bson:"_id,omitempty"`
	Level      string                    `bson:"level"`
	LevelID    string                    `bson:"level_id"`
	Attributes []domain.ConceptAttribute `bson:"attributes"`
	TotalCount int                       `bson:"total_count"`
	FetchedAt  time.Time                 `bson:"fetched_at"`
	ExpiresAt  time.Time                 `bson:"expires_at"`
}

type PoolRepository struct {
	Col         *mongo.Collection
	QuestionCol *mongo.Collection
}

func NewPoolRepository(db *mongo.Database) *PoolRepository {
	return &PoolRepository{
		Col:         db.Collection("question_pools"),
		QuestionCol: db.Collection("questions"),
	}
}

// Get reconstructs a Pool if its warm-store row exists and has not expired.
// mongo.ErrNoDocuments (possibly wrapped) signals a miss or expiry to callers.
func (r *PoolRepository) Get(ctx context.Context, poolID string) (*domain.Pool, error) {
	var row poolRow
	if err := r.Col.FindOne(ctx, bson.M{"_id": poolID}).Decode(&row); err != nil {
		return nil, err
	}
	if time.Now().After(row.ExpiresAt) {
		_ = r.Delete(ctx, poolID)
		return nil, mongo.ErrNoDocuments
	}

	questions, err := r.Questions(ctx, poolID)
	if err != nil {
		return nil, err
	}

	return &domain.Pool{
		ID:         row.ID,
		Level:      row.Level,
		LevelID:    row.LevelID,
		Attributes: row.Attributes,
		Questions:  questions,
		TotalCount: row.TotalCount,
		FetchedAt:  row.FetchedAt,
		ExpiresAt:  row.ExpiresAt,
		Origin:     "warm",
	}, nil
}

func (r *PoolRepository) Questions(ctx context.Context, poolID string) ([]domain.Question, error) {
	cur, err := r.QuestionCol.Find(ctx, bson.M{"pool_id": poolID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var questions []domain.Question
	for cur.Next(ctx) {
		var q domain.Question
		if err := cur.Decode(&q); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (r *PoolRepository) QuestionByID(ctx context.Context, questionID string) (*domain.Question, error) {
	var q domain.Question
	if err := r.QuestionCol.FindOne(ctx, bson.M{"_id": questionID}).Decode(&q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Put replaces a pool's row and question set in one write-through call - the
// warm store's half of the cache manager's write-through contract.
func (r *PoolRepository) Put(ctx context.Context, pool domain.Pool, ttl time.Duration) error {
	row := poolRow{
		ID:         pool.ID,
		Level:      pool.Level,
		LevelID:    pool.LevelID,
		Attributes: pool.Attributes,
		TotalCount: pool.TotalCount,
		FetchedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(ttl),
	}
	_, err := r.Col.ReplaceOne(ctx, bson.M{"_id": pool.ID}, row, options.Replace().SetUpsert(true))
	if err != nil {
		return err
	}

	if _, err := r.QuestionCol.DeleteMany(ctx, bson.M{"pool_id": pool.ID}); err != nil {
		return err
	}
	if len(pool.Questions) == 0 {
		return nil
	}
	docs := make([]interface{}, len(pool.Questions))
	for i, q := range pool.Questions {
		q.PoolID = pool.ID
		docs[i] = q
	}
	_, err = r.QuestionCol.InsertMany(ctx, docs)
	return err
}

func (r *PoolRepository) Delete(ctx context.Context, poolID string) error {
	if _, err := r.Col.DeleteOne(ctx, bson.M{"_id": poolID}); err != nil {
		return err
	}
	_, err := r.QuestionCol.DeleteMany(ctx, bson.M{"pool_id": poolID})
	return err
}

func (r *PoolRepository) InsertUploadedQuestions(ctx context.Context, pool domain.Pool) error {
	return r.Put(ctx, pool, 365*24*time.Hour)
}
