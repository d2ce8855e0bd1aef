package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/intervyu/internal/events"
	"github.com/yoockh/intervyu/internal/metrics"
	"github.com/yoockh/intervyu/internal/models"
	"github.com/yoockh/intervyu/internal/prompts"
	"github.com/yoockh/intervyu/internal/providers/llm"
	mongorepo "github.com/yoockh/intervyu/internal/repositories/mongo"
	"github.com/yoockh/intervyu/internal/utils"
)

type CreateFeedbackParams struct {
	InterviewID string
	UserID      string
	Transcript  []models.TranscriptEntry
}

type CreateFeedbackResult struct {
	Success    bool   `json:"success"`
	FeedbackID string `json:"feedbackId,omitempty"`
}

type FeedbackService interface {
	// Create scores and stores feedback. Failures are logged and reported
	// as Success=false, never returned.
	Create(ctx context.Context, p CreateFeedbackParams) CreateFeedbackResult
	// Score is Create with the error kept, for callers that route on it.
	Score(ctx context.Context, interviewID, userID string, transcript []models.TranscriptEntry) (string, error)
	GetByInterviewID(ctx context.Context, interviewID, userID string) (*models.Feedback, error)
}

type FeedbackDeps struct {
	LLM      llm.Provider
	Prompts  *prompts.Manager
	Feedback mongorepo.FeedbackRepository
	Events   EventPublisher
	Metrics  *metrics.Metrics
	Logger   logrus.FieldLogger
	Now      func() time.Time
}

type feedbackService struct {
	FeedbackDeps
}

func NewFeedbackService(d FeedbackDeps) FeedbackService {
	if d.Events == nil {
		d.Events = nopPublisher{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop()
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &feedbackService{FeedbackDeps: d}
}

func (s *feedbackService) Create(ctx context.Context, p CreateFeedbackParams) CreateFeedbackResult {
	id, err := s.Score(ctx, p.InterviewID, p.UserID, p.Transcript)
	if err != nil {
		s.Logger.WithError(err).WithFields(logrus.Fields{
			"interview_id": p.InterviewID,
			"user_id":      p.UserID,
		}).Error("error saving feedback")
		return CreateFeedbackResult{Success: false}
	}
	return CreateFeedbackResult{Success: true, FeedbackID: id}
}

// scoreReply is what the grader returns. Scores are decoded as floats so a
// stray "87.0" doesn't fail the whole report.
type scoreReply struct {
	TotalScore          float64            `json:"totalScore"`
	CategoryScores      map[string]float64 `json:"categoryScores"`
	Strengths           []string           `json:"strengths"`
	AreasForImprovement []string           `json:"areasForImprovement"`
	FinalAssessment     string             `json:"finalAssessment"`
}

func (s *feedbackService) Score(ctx context.Context, interviewID, userID string, transcript []models.TranscriptEntry) (string, error) {
	const op = "FeedbackService.Score"

	if interviewID == "" || userID == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "interviewId and userId are required", nil)
	}
	if len(transcript) == 0 {
		return "", utils.E(utils.CodeInvalidArgument, op, "transcript is required", nil)
	}

	start := s.Now()
	id, err := s.score(ctx, op, interviewID, userID, transcript)
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.Metrics.PipelineDuration.WithLabelValues("score", result).Observe(s.Now().Sub(start).Seconds())
	return id, err
}

func (s *feedbackService) score(ctx context.Context, op, interviewID, userID string, transcript []models.TranscriptEntry) (string, error) {
	tpl, err := s.Prompts.Render(prompts.ScoreFeedback, map[string]string{
		"transcript": ScoringTranscript(transcript),
	})
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to build scoring prompt", err)
	}

	var reply scoreReply
	err = s.LLM.GenerateObject(ctx, llm.ObjectRequest{
		System: tpl.System,
		Prompt: tpl.User,
		Schema: FeedbackSchema(),
	}, &reply)
	if err != nil {
		return "", llmError(op, s.Metrics, err, "failed to score transcript")
	}

	fb, err := buildFeedback(reply)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "grader returned an invalid report", err)
	}
	fb.InterviewID = interviewID
	fb.UserID = userID
	fb.CreatedAt = s.Now().UTC()

	id, err := s.save(ctx, fb)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to save feedback", err)
	}

	log := s.Logger.WithFields(logrus.Fields{"feedback_id": id, "interview_id": interviewID, "user_id": userID})
	log.WithField("total_score", fb.TotalScore).Info("feedback saved")
	publish(ctx, s.Events, log, events.FeedbackCreated, id, map[string]any{
		"feedbackId":  id,
		"interviewId": interviewID,
		"userId":      userID,
		"totalScore":  fb.TotalScore,
	})
	return id, nil
}

// save keeps one report per (interview, user): an existing one is replaced in place.
func (s *feedbackService) save(ctx context.Context, fb *models.Feedback) (string, error) {
	existing, err := s.Feedback.FindByInterview(ctx, fb.InterviewID, fb.UserID)
	switch {
	case err == nil:
		fb.ID = existing.ID
		if err := s.Feedback.Replace(ctx, fb); err != nil {
			return "", err
		}
		return fb.ID.Hex(), nil
	case errors.Is(err, utils.ErrNotFound):
		return s.Feedback.Create(ctx, fb)
	default:
		return "", err
	}
}

func buildFeedback(r scoreReply) (*models.Feedback, error) {
	total, err := scoreValue("totalScore", r.TotalScore)
	if err != nil {
		return nil, err
	}

	if len(r.CategoryScores) != len(models.FeedbackCategories) {
		return nil, fmt.Errorf("expected %d category scores, got %d", len(models.FeedbackCategories), len(r.CategoryScores))
	}
	cats := make(map[models.FeedbackCategory]int, len(models.FeedbackCategories))
	for _, c := range models.FeedbackCategories {
		v, ok := r.CategoryScores[string(c)]
		if !ok {
			return nil, fmt.Errorf("missing category %q", c)
		}
		n, err := scoreValue(string(c), v)
		if err != nil {
			return nil, err
		}
		cats[c] = n
	}

	if strings.TrimSpace(r.FinalAssessment) == "" {
		return nil, errors.New("finalAssessment is empty")
	}

	return &models.Feedback{
		TotalScore:          total,
		CategoryScores:      cats,
		Strengths:           nonEmpty(r.Strengths),
		AreasForImprovement: nonEmpty(r.AreasForImprovement),
		FinalAssessment:     strings.TrimSpace(r.FinalAssessment),
	}, nil
}

func scoreValue(name string, v float64) (int, error) {
	if math.IsNaN(v) || v < 0 || v > 100 {
		return 0, fmt.Errorf("%s out of range: %v", name, v)
	}
	return int(math.Round(v)), nil
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// FeedbackSchema constrains the grader to the five fixed categories.
func FeedbackSchema() *llm.Schema {
	cats := make(map[string]*llm.Schema, len(models.FeedbackCategories))
	required := make([]string, 0, len(models.FeedbackCategories))
	for _, c := range models.FeedbackCategories {
		cats[string(c)] = llm.Bounded(string(c)+" score", 0, 100)
		required = append(required, string(c))
	}

	return &llm.Schema{
		Type: llm.TypeObject,
		Properties: map[string]*llm.Schema{
			"totalScore": llm.Bounded("Overall score", 0, 100),
			"categoryScores": {
				Type:        llm.TypeObject,
				Description: "Score per category; no other categories",
				Properties:  cats,
				Required:    required,
			},
			"strengths":           llm.StringList("What the candidate did well", 1),
			"areasForImprovement": llm.StringList("What the candidate should work on", 1),
			"finalAssessment":     {Type: llm.TypeString, Description: "Short overall verdict"},
		},
		Required: []string{"totalScore", "categoryScores", "strengths", "areasForImprovement", "finalAssessment"},
	}
}

func (s *feedbackService) GetByInterviewID(ctx context.Context, interviewID, userID string) (*models.Feedback, error) {
	const op = "FeedbackService.GetByInterviewID"

	if interviewID == "" || userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "interviewId and userId are required", nil)
	}
	fb, err := s.Feedback.FindByInterview(ctx, interviewID, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "feedback not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get feedback", err)
	}
	return fb, nil
}
