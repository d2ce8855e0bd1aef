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
	"go.mongodb.org/mongo-driver/mongo/options"
)

const InterviewsCollection = "interviews"

type InterviewRepository interface {
	Create(ctx context.Context, in *models.Interview) (string, error)
	GetByID(ctx context.Context, id string) (*models.Interview, error)
	ListByUser(ctx context.Context, userID string) ([]models.Interview, error)
	// ListLatest returns finalized interviews owned by anyone except userID.
	ListLatest(ctx context.Context, excludeUserID string, limit int64) ([]models.Interview, error)
}

type interviewRepo struct {
	col *mongo.Collection
}

func NewInterviewRepo(db *mongo.Database) InterviewRepository {
	return &interviewRepo{col: db.Collection(InterviewsCollection)}
}

func (r *interviewRepo) Create(ctx context.Context, in *models.Interview) (string, error) {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	if in.ID.IsZero() {
		in.ID = primitive.NewObjectID()
	}
	if _, err := r.col.InsertOne(ctx, in); err != nil {
		return "", err
	}
	return in.ID.Hex(), nil
}

func (r *interviewRepo) GetByID(ctx context.Context, id string) (*models.Interview, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, utils.ErrNotFound
	}

	var in models.Interview
	err = r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&in)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func (r *interviewRepo) ListByUser(ctx context.Context, userID string) ([]models.Interview, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, bson.M{"user_id": userID}, opts)
}

func (r *interviewRepo) ListLatest(ctx context.Context, excludeUserID string, limit int64) ([]models.Interview, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)
	filter := bson.M{
		"finalized": true,
		"user_id":   bson.M{"$ne": excludeUserID},
	}
	return r.find(ctx, filter, opts)
}

func (r *interviewRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Interview, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.Interview, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
