package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/intervyu/internal/api/middleware"
	"github.com/yoockh/intervyu/internal/models"
	"github.com/yoockh/intervyu/internal/services"
	"github.com/yoockh/intervyu/internal/utils"
	"github.com/yoockh/intervyu/internal/voice"
	"github.com/yoockh/intervyu/internal/workers"
)

const (
	relayReadTimeout  = 60 * time.Second
	relayPingInterval = 25 * time.Second
)

// AudioQueue takes recorded audio from browsers without client-side STT.
type AudioQueue interface {
	Enqueue(ctx context.Context, c workers.AudioChunk) error
}

type CallHandler struct {
	calls    services.CallService
	logs     services.CallLogService
	audio    AudioQueue
	redis    *redis.Client
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

type CallHandlerDeps struct {
	Calls  services.CallService
	Logs   services.CallLogService
	Audio  AudioQueue    // optional
	Redis  *redis.Client // optional; carries server-side transcription events
	Logger logrus.FieldLogger
	// AllowedOrigins restricts websocket handshakes. Empty allows any origin.
	AllowedOrigins []string
}

func NewCallHandler(d CallHandlerDeps) *CallHandler {
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	allowed := map[string]struct{}{}
	for _, o := range d.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return &CallHandler{
		calls: d.Calls,
		logs:  d.Logs,
		audio: d.Audio,
		redis: d.Redis,
		log:   d.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

type CreateCallRequest struct {
	Mode        models.CallMode `json:"mode" binding:"required"`
	InterviewID string          `json:"interviewId"`
}

func (h *CallHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req CreateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "CallHandler.Create", "invalid request body", err))
		return
	}

	info, err := h.calls.Create(c.Request.Context(), services.CreateCallParams{
		UserID:      userID,
		UserName:    c.GetString(middleware.CtxUserName),
		Mode:        req.Mode,
		InterviewID: req.InterviewID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, http.StatusCreated, info)
}

func (h *CallHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	info, err := h.calls.Get(c.Param("id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, info)
}

func (h *CallHandler) Start(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := h.calls.Start(c.Request.Context(), id, userID); err != nil {
		writeError(c, err)
		return
	}
	info, err := h.calls.Get(id, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, info)
}

func (h *CallHandler) Stop(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	info, err := h.calls.Stop(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, info)
}

func (h *CallHandler) History(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	logs, err := h.logs.ListByUser(c.Request.Context(), userID, 50)
	if err != nil {
		writeError(c, err)
		return
	}
	writeData(c, http.StatusOK, logs)
}

// relayFrame is what the browser sends on the call socket.
type relayFrame struct {
	Type string `json:"type"` // start|stop|event|audio_chunk

	Event json.RawMessage `json:"event,omitempty"`

	ChunkIndex  int64  `json:"chunk_index,omitempty"`
	Language    string `json:"language,omitempty"`
	AudioBase64 string `json:"audio_base64,omitempty"`
	AudioURL    string `json:"audio_url,omitempty"`
}

type relayError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func notifyError(agent *voice.RelayAgent, err error) {
	code := utils.CodeOf(err)
	msg := err.Error()
	var ae *utils.AppError
	if errors.As(err, &ae) && ae.Message != "" {
		msg = ae.Message
	}
	_ = agent.Notify("error", relayError{Code: code, Message: msg})
}

// Relay is the socket between the browser hosting the voice SDK and the call
// controller: commands go down, agent events come up.
func (h *CallHandler) Relay(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	sessionID := c.Param("id")

	// authorize session ownership before upgrading
	if _, err := h.calls.Get(sessionID, userID); err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	agent := voice.NewRelayAgent(conn)
	defer agent.Close()

	log := h.log.WithFields(logrus.Fields{"session_id": sessionID, "user_id": userID})
	if err := h.calls.Attach(sessionID, userID, agent, agent); err != nil {
		notifyError(agent, err)
		return
	}
	defer h.calls.Detach(sessionID, agent)
	log.Info("call relay attached")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	if h.redis != nil {
		pubsub := h.redis.Subscribe(ctx, workers.EventsChannel(sessionID))
		defer pubsub.Close()
		go h.forwardTranscriptions(ctx, pubsub, sessionID, agent, log)
	}
	go keepAlive(ctx, conn)

	_ = conn.SetReadDeadline(time.Now().Add(relayReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(relayReadTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.WithError(err).Debug("call relay closed")
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(relayReadTimeout))

		var frame relayFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			notifyError(agent, utils.E(utils.CodeInvalidArgument, "CallHandler.Relay", "invalid json", err))
			continue
		}
		h.handleFrame(ctx, sessionID, userID, agent, frame)
	}
}

func (h *CallHandler) handleFrame(ctx context.Context, sessionID, userID string, agent *voice.RelayAgent, f relayFrame) {
	const op = "CallHandler.Relay"

	switch f.Type {
	case "start":
		if err := h.calls.Start(ctx, sessionID, userID); err != nil {
			notifyError(agent, err)
			return
		}
		h.pushStatus(sessionID, userID, agent)

	case "stop":
		// stop with a detached context: the socket may close right after
		info, err := h.calls.Stop(context.WithoutCancel(ctx), sessionID, userID)
		if err != nil {
			notifyError(agent, err)
			return
		}
		_ = agent.Notify("status", info.Status)

	case "event":
		ev, err := voice.DecodeEvent(f.Event)
		if err != nil {
			notifyError(agent, utils.E(utils.CodeInvalidArgument, op, err.Error(), err))
			return
		}
		if err := h.calls.HandleEvent(sessionID, ev); err != nil {
			notifyError(agent, err)
			return
		}
		if ev.Type == voice.EventCallStart || ev.Type == voice.EventCallEnd {
			h.pushStatus(sessionID, userID, agent)
		}

	case "audio_chunk":
		if h.audio == nil {
			notifyError(agent, utils.E(utils.CodeFailedPrecondition, op, "server-side transcription is disabled", nil))
			return
		}
		err := h.audio.Enqueue(ctx, workers.AudioChunk{
			SessionID:   sessionID,
			ChunkIndex:  f.ChunkIndex,
			Language:    f.Language,
			AudioBase64: f.AudioBase64,
			AudioURL:    f.AudioURL,
		})
		if err != nil {
			notifyError(agent, utils.E(utils.CodeUnavailable, op, "failed to enqueue audio", err))
		}

	default:
		notifyError(agent, utils.E(utils.CodeInvalidArgument, op, "unknown message type", nil))
	}
}

func (h *CallHandler) pushStatus(sessionID, userID string, agent *voice.RelayAgent) {
	if info, err := h.calls.Get(sessionID, userID); err == nil {
		_ = agent.Notify("status", info.Status)
	}
}

// forwardTranscriptions feeds server-side transcripts into the controller and
// echoes them to the browser.
func (h *CallHandler) forwardTranscriptions(ctx context.Context, pubsub *redis.PubSub, sessionID string, agent *voice.RelayAgent, log logrus.FieldLogger) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			ev, err := voice.DecodeEvent([]byte(m.Payload))
			if err != nil {
				log.WithError(err).Warn("dropping malformed transcription event")
				continue
			}
			if err := h.calls.HandleEvent(sessionID, ev); err != nil {
				return
			}
			_ = agent.Notify("event", ev)
		}
	}
}

func keepAlive(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(relayPingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
