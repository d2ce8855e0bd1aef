package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yoockh/intervyu/internal/call"
	"github.com/yoockh/intervyu/internal/models"
	pgrepo "github.com/yoockh/intervyu/internal/repositories/postgres"
	"github.com/yoockh/intervyu/internal/utils"
)

const (
	OutcomeGenerated = "generated"
	OutcomeScored    = "scored"
	OutcomeFailed    = "failed"
	OutcomeAborted   = "aborted"
)

// OutcomeLabel names how a dispatched session ended.
func OutcomeLabel(out call.Outcome) string {
	switch {
	case !out.Succeeded():
		return OutcomeFailed
	case out.Mode == models.ModeInterview:
		return OutcomeScored
	default:
		return OutcomeGenerated
	}
}

type CallLogService interface {
	Record(ctx context.Context, sessionID string, out call.Outcome) error
	// RecordAborted logs a session that finished without any transcript.
	RecordAborted(ctx context.Context, info CallInfo, endedAt time.Time) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.CallLog, error)
}

type callLogService struct {
	logs pgrepo.CallLogRepository
}

func NewCallLogService(logs pgrepo.CallLogRepository) CallLogService {
	return &callLogService{logs: logs}
}

func (s *callLogService) Record(ctx context.Context, sessionID string, out call.Outcome) error {
	const op = "CallLogService.Record"

	md := map[string]any{"redirect": out.Redirect}
	if out.Err != nil {
		md["error"] = out.Err.Error()
		md["code"] = utils.CodeOf(out.Err)
	}

	l := &models.CallLog{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		UserID:      out.UserID,
		Mode:        string(out.Mode),
		InterviewID: out.InterviewID,
		Entries:     out.Entries,
		Outcome:     OutcomeLabel(out),
		ResultID:    out.ResultID,
		StartedAt:   out.StartedAt,
		EndedAt:     out.EndedAt,
		Metadata:    jsonMetadata(md),
	}
	if err := s.logs.Create(ctx, l); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to write call log", err)
	}
	return nil
}

func (s *callLogService) RecordAborted(ctx context.Context, info CallInfo, endedAt time.Time) error {
	const op = "CallLogService.RecordAborted"

	l := &models.CallLog{
		ID:          uuid.NewString(),
		SessionID:   info.SessionID,
		UserID:      info.UserID,
		Mode:        string(info.Mode),
		InterviewID: info.InterviewID,
		Outcome:     OutcomeAborted,
		StartedAt:   info.CreatedAt,
		EndedAt:     endedAt,
		Metadata:    jsonMetadata(map[string]any{"state": info.Status.State}),
	}
	if err := s.logs.Create(ctx, l); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to write call log", err)
	}
	return nil
}

func (s *callLogService) ListByUser(ctx context.Context, userID string, limit int) ([]models.CallLog, error) {
	const op = "CallLogService.ListByUser"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	out, err := s.logs.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list call logs", err)
	}
	return out, nil
}

func jsonMetadata(v map[string]any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}
