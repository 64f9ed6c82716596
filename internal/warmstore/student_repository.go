package warmstore

import (
	"context"
	"time"

	"adaptivetest/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type StudentRepository struct {
	Col             *mongo.Collection
	ProficiencyCol  *mongo.Collection
}

func NewStudentRepository(db *mongo.Database) *StudentRepository {
	return &StudentRepository{
		Col:            db.Collection("students"),
		ProficiencyCol: db.Collection("student_proficiencies"),
	}
}

func (r *StudentRepository) FindByID(ctx context.Context, id string) (*domain.Student, error) {
	var student domain.Student
	err := r.Col.FindOne(ctx, bson.M{"_id": id}).Decode(&student)
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *StudentRepository) GetOrCreate(ctx context.Context, id string) (*domain.Student, error) {
	student, err := r.FindByID(ctx, id)
	if err == nil {
		return student, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}
	student = &domain.Student{ID: id, CreatedAt: time.Now()}
	if _, err := r.Col.InsertOne(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

// Proficiencies returns every per-concept proficiency row for a student.
func (r *StudentRepository) Proficiencies(ctx context.Context, studentID string) ([]domain.Proficiency, error) {
	cur, err := r.ProficiencyCol.Find(ctx, bson.M{"student_id": studentID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []domain.Proficiency
	for cur.Next(ctx) {
		var p domain.Proficiency
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		rows = append(rows, p)
	}
	return rows, nil
}

// UpsertProficiencies writes the full proficiency vector in one batch of
// per-concept upserts, closing the read-modify-write race a naive per-row
// update loop would be exposed to under concurrent submits for the same
// student across different sessions.
func (r *StudentRepository) UpsertProficiencies(ctx context.Context, studentID string, byName map[string]float64, confidence float64) error {
	if len(byName) == 0 {
		return nil
	}
	now := time.Now()
	models := make([]mongo.WriteModel, 0, len(byName))
	for concept, value := range byName {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"student_id": studentID, "concept_name": concept}).
			SetUpdate(bson.M{"$set": bson.M{
				"student_id":   studentID,
				"concept_name": concept,
				"value":        value,
				"confidence":   confidence,
				"updated_at":   now,
			}}).
			SetUpsert(true))
	}
	_, err := r.ProficiencyCol.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return err
}
