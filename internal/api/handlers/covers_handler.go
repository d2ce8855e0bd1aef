package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/intervyu/internal/covers"
	"github.com/yoockh/intervyu/internal/utils"
)

const maxCoverSize = 5 << 20

type CoverStore interface {
	Names() []string
	Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// CoversHandler lets admins manage the interview cover rotation.
type CoversHandler struct {
	covers CoverStore
}

func NewCoversHandler(c CoverStore) *CoversHandler {
	return &CoversHandler{covers: c}
}

func (h *CoversHandler) List(c *gin.Context) {
	writeData(c, http.StatusOK, h.covers.Names())
}

func (h *CoversHandler) Upload(c *gin.Context) {
	const op = "CoversHandler.Upload"

	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing multipart field 'file'", err))
		return
	}
	if fh.Size <= 0 || fh.Size > maxCoverSize {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "file too large (max 5MB)", nil))
		return
	}

	file, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to open upload", err))
		return
	}
	defer file.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(file, head)
	head = head[:n]
	ct := http.DetectContentType(head)
	if ct != "image/png" && ct != "image/jpeg" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "cover must be a png or jpeg image", nil))
		return
	}

	url, err := h.covers.Upload(c.Request.Context(), c.PostForm("name"), ct, io.MultiReader(bytes.NewReader(head), file))
	switch {
	case errors.Is(err, covers.ErrInvalidName):
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid cover name", err))
		return
	case errors.Is(err, covers.ErrUploadsDisabled):
		writeError(c, utils.E(utils.CodeFailedPrecondition, op, "cover uploads are disabled", err))
		return
	case err != nil:
		writeError(c, utils.E(utils.CodeUnavailable, op, "failed to store cover", err))
		return
	}
	writeData(c, http.StatusCreated, gin.H{"url": url})
}
