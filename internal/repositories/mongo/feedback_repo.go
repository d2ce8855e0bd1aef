package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/intervyu/internal/models"
	"github.com/yoockh/intervyu/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const FeedbackCollection = "feedback"

type FeedbackRepository interface {
	Create(ctx context.Context, f *models.Feedback) (string, error)
	// Replace overwrites the document with f.ID, keeping the id.
	Replace(ctx context.Context, f *models.Feedback) error
	FindByInterview(ctx context.Context, interviewID, userID string) (*models.Feedback, error)
}

type feedbackRepo struct {
	col *mongo.Collection
}

func NewFeedbackRepo(db *mongo.Database) FeedbackRepository {
	return &feedbackRepo{col: db.Collection(FeedbackCollection)}
}

func (r *feedbackRepo) Create(ctx context.Context, f *models.Feedback) (string, error) {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	if _, err := r.col.InsertOne(ctx, f); err != nil {
		return "", err
	}
	return f.ID.Hex(), nil
}

func (r *feedbackRepo) Replace(ctx context.Context, f *models.Feedback) error {
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": f.ID}, f)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *feedbackRepo) FindByInterview(ctx context.Context, interviewID, userID string) (*models.Feedback, error) {
	var f models.Feedback
	err := r.col.FindOne(ctx, bson.M{"interview_id": interviewID, "user_id": userID}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}
