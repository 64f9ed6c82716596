package warmstore

import (
	"context"

	"adaptivetest/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type ResponseRepository struct {
	Col *mongo.Collection
}

func NewResponseRepository(db *mongo.Database) *ResponseRepository {
	return &ResponseRepository{Col: db.Collection("test_responses")}
}

// Append inserts a new response row. The (session_id, question_id)
// uniqueness invariant is enforced by a unique index created alongside this
// collection, not re-checked here.
func (r *ResponseRepository) Append(ctx context.Context, response *domain.Response) error {
	_, err := r.Col.InsertOne(ctx, response)
	return err
}

func (r *ResponseRepository) FindBySession(ctx context.Context, sessionID string) ([]domain.Response, error) {
	cur, err := r.Col.Find(ctx, bson.M{"session_id": sessionID}, optsSortByTimestamp())
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var responses []domain.Response
	for cur.Next(ctx) {
		var resp domain.Response
		if err := cur.Decode(&resp); err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

func (r *ResponseRepository) FindByStudent(ctx context.Context, studentID string) ([]domain.Response, error) {
	cur, err := r.Col.Find(ctx, bson.M{"student_id": studentID}, optsSortByTimestamp())
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var responses []domain.Response
	for cur.Next(ctx) {
		var resp domain.Response
		if err := cur.Decode(&resp); err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, nil
}
