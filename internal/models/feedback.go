package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type FeedbackCategory string

const (
	CategoryCommunication  FeedbackCategory = "Communication Skills"
	CategoryTechnical      FeedbackCategory = "Technical Knowledge"
	CategoryProblemSolving FeedbackCategory = "Problem-Solving"
	CategoryCulturalFit    FeedbackCategory = "Cultural & Role Fit"
	CategoryConfidence     FeedbackCategory = "Confidence & Clarity"
)

// FeedbackCategories is the closed set of scored categories, in display order.
var FeedbackCategories = []FeedbackCategory{
	CategoryCommunication,
	CategoryTechnical,
	CategoryProblemSolving,
	CategoryCulturalFit,
	CategoryConfidence,
}

type Feedback struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	InterviewID string             `bson:"interview_id" json:"interviewId"`
	UserID      string             `bson:"user_id" json:"userId"`

	TotalScore     int                      `bson:"total_score" json:"totalScore"`
	CategoryScores map[FeedbackCategory]int `bson:"category_scores" json:"categoryScores"`

	Strengths           []string `bson:"strengths" json:"strengths"`
	AreasForImprovement []string `bson:"areas_for_improvement" json:"areasForImprovement"`
	FinalAssessment     string   `bson:"final_assessment" json:"finalAssessment"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}
