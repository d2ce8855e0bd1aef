package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/intervyu/internal/services"
	"github.com/yoockh/intervyu/internal/utils"
)

type ProfileHandler struct {
	svc services.ProfileService
}

func NewProfileHandler(svc services.ProfileService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

func (h *ProfileHandler) Me(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	p, err := h.svc.GetMe(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, p)
}

type UpdateProfileRequest struct {
	FullName   *string   `json:"full_name,omitempty"`
	TargetRole *string   `json:"target_role,omitempty"`
	Skills     *[]string `json:"skills,omitempty"`

	Preferences *json.RawMessage `json:"preferences,omitempty"`
}

func (h *ProfileHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ProfileHandler.Update", "invalid request body", err))
		return
	}

	patch := services.ProfilePatch{
		FullName:   req.FullName,
		TargetRole: req.TargetRole,
		Skills:     req.Skills,
	}
	if req.Preferences != nil {
		patch.Preferences = *req.Preferences
	}

	p, err := h.svc.Update(c.Request.Context(), userID, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, p)
}
