package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/intervyu/internal/models"
	"github.com/yoockh/intervyu/internal/services"
	"github.com/yoockh/intervyu/internal/utils"
)

type FeedbackHandler struct {
	svc services.FeedbackService
}

func NewFeedbackHandler(svc services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{svc: svc}
}

type CreateFeedbackRequest struct {
	InterviewID string                   `json:"interviewId"`
	Transcript  []models.TranscriptEntry `json:"transcript"`
}

func (h *FeedbackHandler) Create(c *gin.Context) {
	const op = "FeedbackHandler.Create"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req CreateFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return
	}
	if strings.TrimSpace(req.InterviewID) == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "interviewId is required", nil))
		return
	}
	transcript, err := normalizeTranscript(op, req.Transcript)
	if err != nil {
		writeError(c, err)
		return
	}

	res := h.svc.Create(c.Request.Context(), services.CreateFeedbackParams{
		InterviewID: req.InterviewID,
		UserID:      userID,
		Transcript:  transcript,
	})
	if !res.Success {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to create feedback"})
		return
	}
	c.JSON(http.StatusOK, res)
}
