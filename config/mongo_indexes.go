package config

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongorepo "github.com/yoockh/intervyu/internal/repositories/mongo"
)

func EnsureMongoIndexes() error {
	if MongoDB == nil {
		return errors.New("MongoDB is nil; call InitMongo() first")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	interviews := MongoDB.Collection(mongorepo.InterviewsCollection)
	_, err := interviews.Indexes().CreateMany(ctx, []mongo.IndexModel{
		// own interviews, newest first
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("by_user_created"),
		},
		// latest-interviews feed
		{
			Keys:    bson.D{{Key: "finalized", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("by_finalized_created"),
		},
	})
	if err != nil {
		return err
	}

	feedback := MongoDB.Collection(mongorepo.FeedbackCollection)
	_, err = feedback.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "interview_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_interview_user").
				SetUnique(true),
		},
	})
	return err
}
