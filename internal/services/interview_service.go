package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/intervyu/internal/cache"
	"github.com/yoockh/intervyu/internal/events"
	"github.com/yoockh/intervyu/internal/metrics"
	"github.com/yoockh/intervyu/internal/models"
	"github.com/yoockh/intervyu/internal/prompts"
	"github.com/yoockh/intervyu/internal/providers/llm"
	mongorepo "github.com/yoockh/intervyu/internal/repositories/mongo"
	"github.com/yoockh/intervyu/internal/utils"
)

const (
	DefaultLatestLimit = 20
	maxLatestLimit     = 100
	latestCacheTTL     = 30 * time.Second
)

type InterviewService interface {
	// GenerateFromTranscript extracts a config from a finished "generate"
	// call, writes the questions and stores the interview.
	GenerateFromTranscript(ctx context.Context, userID string, transcript []models.TranscriptEntry) (string, error)
	GenerateFromConfig(ctx context.Context, userID string, cfg models.InterviewConfig) (string, error)

	GetLatest(ctx context.Context, userID string, limit int) ([]models.Interview, error)
	ListByUser(ctx context.Context, userID string) ([]models.Interview, error)
	GetByID(ctx context.Context, id string) (*models.Interview, error)
	Dashboard(ctx context.Context, userID string) (*Dashboard, error)
}

// Dashboard is the home view: the caller's interviews split by whether the
// call already happened, plus what other people generated recently.
type Dashboard struct {
	Completed []models.Interview `json:"completed"`
	Pending   []models.Interview `json:"pending"`
	Latest    []models.Interview `json:"latest"`
}

type InterviewDeps struct {
	LLM        llm.Provider
	Prompts    *prompts.Manager
	Interviews mongorepo.InterviewRepository
	Cache      cache.Cache
	Covers     CoverPicker
	Events     EventPublisher
	Metrics    *metrics.Metrics
	Logger     logrus.FieldLogger
	Now        func() time.Time
}

type interviewService struct {
	InterviewDeps
}

func NewInterviewService(d InterviewDeps) InterviewService {
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
	return &interviewService{InterviewDeps: d}
}

func (s *interviewService) GenerateFromTranscript(ctx context.Context, userID string, transcript []models.TranscriptEntry) (string, error) {
	const op = "InterviewService.GenerateFromTranscript"

	if userID == "" || len(transcript) == 0 {
		return "", utils.E(utils.CodeInvalidArgument, op, "transcript and userid required", nil)
	}

	start := s.Now()
	id, err := s.generateFromTranscript(ctx, op, userID, transcript)
	s.observe("generate_transcript", start, err)
	return id, err
}

func (s *interviewService) generateFromTranscript(ctx context.Context, op, userID string, transcript []models.TranscriptEntry) (string, error) {
	log := s.Logger.WithField("user_id", userID)

	res, err := s.extractConfig(ctx, op, transcript)
	if err != nil {
		return "", err
	}
	if res.Parsed {
		s.Metrics.ConfigExtraction.WithLabelValues("parsed").Inc()
		log.WithFields(logrus.Fields{
			"role":   res.Config.Role,
			"level":  res.Config.Level,
			"type":   res.Config.Kind,
			"amount": res.Config.QuestionCount,
		}).Info("extracted interview config")
	} else {
		s.Metrics.ConfigExtraction.WithLabelValues("defaulted").Inc()
		log.WithField("reason", res.Reason).Warn("config extraction failed, using defaults")
	}

	questions, err := s.generateQuestions(ctx, op, res.Config)
	if err != nil {
		return "", err
	}
	return s.persist(ctx, op, userID, res.Config, questions, transcript, true)
}

// extractConfig only fails on quota errors. Anything else, including a
// failed completion, resolves to the default config.
func (s *interviewService) extractConfig(ctx context.Context, op string, transcript []models.TranscriptEntry) (ExtractResult, error) {
	tpl, err := s.Prompts.Render(prompts.ExtractConfig, map[string]string{
		"conversation": ConversationText(transcript),
	})
	if err != nil {
		return ExtractResult{}, utils.E(utils.CodeInternal, op, "failed to build extraction prompt", err)
	}

	text, err := s.LLM.Complete(ctx, llm.CompletionRequest{
		System:      tpl.System,
		Prompt:      tpl.User,
		Temperature: 0,
		MaxTokens:   200,
	})
	if err != nil {
		if llm.IsRateLimit(err) {
			return ExtractResult{}, llmError(op, s.Metrics, err, "")
		}
		s.Logger.WithError(err).Warn("config extraction completion failed")
		return defaulted("completion failed"), nil
	}
	return ParseInterviewConfig(text), nil
}

func (s *interviewService) generateQuestions(ctx context.Context, op string, cfg models.InterviewConfig) ([]string, error) {
	tpl, err := s.Prompts.Render(prompts.GenerateQuestions, map[string]string{
		"amount":    strconv.Itoa(cfg.QuestionCount),
		"role":      cfg.Role,
		"level":     cfg.Level,
		"type":      string(cfg.Kind),
		"techstack": strings.Join(cfg.TechStack, ", "),
	})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to build question prompt", err)
	}

	text, err := s.LLM.Complete(ctx, llm.CompletionRequest{
		System:      tpl.System,
		Prompt:      tpl.User,
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return nil, llmError(op, s.Metrics, err, "failed to generate questions")
	}

	questions, ok := ParseQuestions(text)
	if !ok {
		s.Logger.WithField("role", cfg.Role).Warn("unparseable question list, using fallback question")
	}
	return questions, nil
}

func (s *interviewService) GenerateFromConfig(ctx context.Context, userID string, cfg models.InterviewConfig) (string, error) {
	const op = "InterviewService.GenerateFromConfig"

	if userID == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "userid is required", nil)
	}
	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return "", utils.E(utils.CodeInvalidArgument, op, err.Error(), nil)
	}

	start := s.Now()
	id, err := s.generateFromConfig(ctx, op, userID, cfg)
	s.observe("generate_config", start, err)
	return id, err
}

func (s *interviewService) generateFromConfig(ctx context.Context, op, userID string, cfg models.InterviewConfig) (string, error) {
	questions, err := s.generateQuestions(ctx, op, cfg)
	if err != nil {
		return "", err
	}
	return s.persist(ctx, op, userID, cfg, questions, nil, false)
}

// normalizeConfig fills defaults for a caller-supplied config and rejects
// values that can't be defaulted.
func normalizeConfig(cfg models.InterviewConfig) (models.InterviewConfig, error) {
	def := models.DefaultInterviewConfig()

	cfg.Role = strings.TrimSpace(cfg.Role)
	if cfg.Role == "" {
		return cfg, errors.New("role is required")
	}
	if cfg.Level = strings.TrimSpace(cfg.Level); cfg.Level == "" {
		cfg.Level = def.Level
	}
	if cfg.TechStack == nil {
		cfg.TechStack = def.TechStack
	}
	switch {
	case cfg.QuestionCount == 0:
		cfg.QuestionCount = def.QuestionCount
	case cfg.QuestionCount < 0 || cfg.QuestionCount > MaxQuestions:
		return cfg, errors.New("amount must be between 1 and " + strconv.Itoa(MaxQuestions))
	}
	if cfg.Kind == "" {
		cfg.Kind = def.Kind
	} else if k, ok := models.ParseInterviewKind(string(cfg.Kind)); ok {
		cfg.Kind = k
	} else {
		return cfg, errors.New("type must be technical, behavioral or mixed")
	}
	return cfg, nil
}

func (s *interviewService) persist(ctx context.Context, op, userID string, cfg models.InterviewConfig, questions []string, transcript []models.TranscriptEntry, callCompleted bool) (string, error) {
	in := &models.Interview{
		Role:          cfg.Role,
		Level:         cfg.Level,
		TechStack:     cfg.TechStack,
		Type:          cfg.Kind,
		Amount:        cfg.QuestionCount,
		Questions:     questions,
		Transcript:    transcript,
		Finalized:     true,
		CallCompleted: callCompleted,
		UserID:        userID,
		CoverImage:    s.Covers.Random(),
		CreatedAt:     s.Now().UTC(),
	}

	id, err := s.Interviews.Create(ctx, in)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to save interview", err)
	}

	log := s.Logger.WithFields(logrus.Fields{"interview_id": id, "user_id": userID})
	log.Info("interview saved")

	if s.Cache != nil {
		if err := s.Cache.DelPrefix(ctx, cache.LatestInterviewsPrefix()); err != nil {
			log.WithError(err).Warn("failed to invalidate latest interviews cache")
		}
	}
	publish(ctx, s.Events, log, events.InterviewGenerated, id, map[string]any{
		"interviewId":   id,
		"userId":        userID,
		"role":          in.Role,
		"type":          in.Type,
		"amount":        in.Amount,
		"callCompleted": in.CallCompleted,
	})
	return id, nil
}

func (s *interviewService) observe(pipeline string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.Metrics.PipelineDuration.WithLabelValues(pipeline, result).Observe(s.Now().Sub(start).Seconds())
}

func (s *interviewService) GetLatest(ctx context.Context, userID string, limit int) ([]models.Interview, error) {
	const op = "InterviewService.GetLatest"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if limit <= 0 {
		limit = DefaultLatestLimit
	}
	if limit > maxLatestLimit {
		limit = maxLatestLimit
	}

	key := cache.LatestInterviewsKey(userID, limit)
	if s.Cache != nil {
		var cached []models.Interview
		hit, err := s.Cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.Logger.WithError(err).Warn("latest interviews cache read failed")
		} else if hit {
			return cached, nil
		}
	}

	list, err := s.Interviews.ListLatest(ctx, userID, int64(limit))
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list interviews", err)
	}

	out := make([]models.Interview, 0, len(list))
	for _, in := range list {
		if in.UserID == userID || !in.Finalized {
			continue
		}
		out = append(out, in)
		if len(out) == limit {
			break
		}
	}

	if s.Cache != nil {
		if err := s.Cache.SetJSON(ctx, key, out, latestCacheTTL); err != nil {
			s.Logger.WithError(err).Warn("latest interviews cache write failed")
		}
	}
	return out, nil
}

func (s *interviewService) ListByUser(ctx context.Context, userID string) ([]models.Interview, error) {
	const op = "InterviewService.ListByUser"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	out, err := s.Interviews.ListByUser(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list interviews", err)
	}
	return out, nil
}

func (s *interviewService) GetByID(ctx context.Context, id string) (*models.Interview, error) {
	const op = "InterviewService.GetByID"

	if id == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "interview id is required", nil)
	}
	in, err := s.Interviews.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "interview not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get interview", err)
	}
	return in, nil
}

func (s *interviewService) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	mine, err := s.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	latest, err := s.GetLatest(ctx, userID, DefaultLatestLimit)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		Completed: []models.Interview{},
		Pending:   []models.Interview{},
		Latest:    latest,
	}
	for _, in := range mine {
		if in.CallCompleted {
			d.Completed = append(d.Completed, in)
		} else {
			d.Pending = append(d.Pending, in)
		}
	}
	return d, nil
}
