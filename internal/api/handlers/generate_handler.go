package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/intervyu/internal/api/middleware"
	"github.com/yoockh/intervyu/internal/models"
	"github.com/yoockh/intervyu/internal/services"
	"github.com/yoockh/intervyu/internal/utils"
)

// GenerateHandler is the endpoint the voice workflow (or the setup form)
// calls to create an interview.
type GenerateHandler struct {
	svc services.InterviewService
}

func NewGenerateHandler(svc services.InterviewService) *GenerateHandler {
	return &GenerateHandler{svc: svc}
}

func (h *GenerateHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": "THANK YOU!"})
}

// stringList accepts ["Go","SQL"] or "Go, SQL".
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = services.SplitTechStack(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return errors.New("techstack must be a string or a list of strings")
	}
	*l = list
	return nil
}

// looseInt accepts 5 or "5".
type looseInt int

func (n *looseInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			return nil
		}
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return errors.New("amount must be a number")
		}
		*n = looseInt(v)
		return nil
	}
	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		return errors.New("amount must be a number")
	}
	*n = looseInt(v)
	return nil
}

type GenerateFromConfigRequest struct {
	Type      string     `json:"type"`
	Role      string     `json:"role"`
	Level     string     `json:"level"`
	TechStack stringList `json:"techstack"`
	Amount    looseInt   `json:"amount"`
	UserID    string     `json:"userid"`
}

type GenerateFromTranscriptRequest struct {
	UserID     string                   `json:"userid"`
	Transcript []models.TranscriptEntry `json:"transcript"`
}

type generateResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// resolveUser prefers the authenticated user. Unauthenticated callers (the
// voice workflow) must name the user in the body.
func resolveUser(c *gin.Context, op, bodyUserID string) (string, error) {
	bodyUserID = strings.TrimSpace(bodyUserID)
	if authed := c.GetString(middleware.CtxUserID); authed != "" {
		if bodyUserID != "" && bodyUserID != authed {
			return "", utils.E(utils.CodeForbidden, op, "userid does not match the authenticated user", nil)
		}
		return authed, nil
	}
	if bodyUserID == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "userid is required", nil)
	}
	return bodyUserID, nil
}

func (h *GenerateHandler) FromConfig(c *gin.Context) {
	const op = "GenerateHandler.FromConfig"

	var req GenerateFromConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body: "+err.Error(), err))
		return
	}
	userID, err := resolveUser(c, op, req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	id, err := h.svc.GenerateFromConfig(c.Request.Context(), userID, models.InterviewConfig{
		Role:          req.Role,
		Level:         req.Level,
		TechStack:     req.TechStack,
		QuestionCount: int(req.Amount),
		Kind:          models.InterviewKind(req.Type),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, generateResponse{Success: true, ID: id})
}

func (h *GenerateHandler) FromTranscript(c *gin.Context) {
	const op = "GenerateHandler.FromTranscript"

	var req GenerateFromTranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return
	}
	userID, err := resolveUser(c, op, req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	transcript, err := normalizeTranscript(op, req.Transcript)
	if err != nil {
		writeError(c, err)
		return
	}

	id, err := h.svc.GenerateFromTranscript(c.Request.Context(), userID, transcript)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, generateResponse{Success: true, ID: id})
}

func normalizeTranscript(op string, in []models.TranscriptEntry) ([]models.TranscriptEntry, error) {
	if len(in) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "transcript is required", nil)
	}
	out := make([]models.TranscriptEntry, 0, len(in))
	for _, e := range in {
		speaker, ok := models.ParseSpeaker(string(e.Speaker))
		if !ok {
			return nil, utils.E(utils.CodeInvalidArgument, op, "transcript role must be user, assistant or system", nil)
		}
		out = append(out, models.TranscriptEntry{Speaker: speaker, Text: e.Text})
	}
	return out, nil
}
