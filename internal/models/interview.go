package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type InterviewKind string

const (
	KindTechnical  InterviewKind = "technical"
	KindBehavioral InterviewKind = "behavioral"
	KindMixed      InterviewKind = "mixed"
)

func ParseInterviewKind(s string) (InterviewKind, bool) {
	switch InterviewKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindTechnical:
		return KindTechnical, true
	case KindBehavioral:
		return KindBehavioral, true
	case KindMixed:
		return KindMixed, true
	}
	return "", false
}

type InterviewConfig struct {
	Role          string        `json:"role"`
	Level         string        `json:"level"`
	TechStack     []string      `json:"techstack"`
	QuestionCount int           `json:"amount"`
	Kind          InterviewKind `json:"type"`
}

// DefaultInterviewConfig is what generation falls back to when nothing usable
// could be extracted.
func DefaultInterviewConfig() InterviewConfig {
	return InterviewConfig{
		Role:          "Unknown role",
		Level:         "unknown",
		TechStack:     []string{},
		QuestionCount: 5,
		Kind:          KindMixed,
	}
}

type Interview struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	Role      string        `bson:"role" json:"role"`
	Level     string        `bson:"level" json:"level"`
	TechStack []string      `bson:"techstack" json:"techstack"`
	Type      InterviewKind `bson:"type" json:"type"`
	Amount    int           `bson:"amount" json:"amount"`

	Questions  []string          `bson:"questions" json:"questions"`
	Transcript []TranscriptEntry `bson:"transcript,omitempty" json:"transcript,omitempty"`

	Finalized     bool `bson:"finalized" json:"finalized"`
	CallCompleted bool `bson:"call_completed" json:"callCompleted"`

	UserID     string    `bson:"user_id" json:"userId"`
	CoverImage string    `bson:"cover_image" json:"coverImage"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}
