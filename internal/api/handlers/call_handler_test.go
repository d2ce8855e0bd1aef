package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/intervyu/internal/call"
	"github.com/yoockh/intervyu/internal/models"
	"github.com/yoockh/intervyu/internal/utils"
	"github.com/yoockh/intervyu/internal/voice"
)

func callRouter(h *CallHandler, userID string) *gin.Engine {
	r := gin.New()
	r.Use(asUser(userID, "Ada"))
	r.POST("/api/calls", h.Create)
	r.GET("/api/calls/history", h.History)
	r.GET("/api/calls/:id", h.Get)
	r.POST("/api/calls/:id/start", h.Start)
	r.POST("/api/calls/:id/stop", h.Stop)
	r.GET("/ws/calls/:id", h.Relay)
	return r
}

func TestCallHandlerREST(t *testing.T) {
	calls := newFakeCalls()
	logs := &fakeLogs{logs: []models.CallLog{{ID: "log-1", Outcome: "generated"}}}
	r := callRouter(NewCallHandler(CallHandlerDeps{Calls: calls, Logs: logs}), "user-1")

	w := doJSON(r, http.MethodPost, "/api/calls", `{"mode":"interview","interviewId":"iv-1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "s1", decode(t, w)["data"].(map[string]any)["sessionId"])
	assert.Equal(t, "user-1", calls.created.UserID)
	assert.Equal(t, "Ada", calls.created.UserName)
	assert.Equal(t, "iv-1", calls.created.InterviewID)

	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPost, "/api/calls", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPost, "/api/calls", `{"mode":"karaoke"}`).Code)

	w = doJSON(r, http.MethodPost, "/api/calls/s1/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode(t, w)["data"].(map[string]any)["status"].(map[string]any)
	assert.Equal(t, string(call.StateConnecting), status["state"])

	calls.startErr = utils.E(utils.CodeConflict, "fake", "call already started", call.ErrAlreadyActive)
	assert.Equal(t, http.StatusConflict, doJSON(r, http.MethodPost, "/api/calls/s1/start", nil).Code)

	w = doJSON(r, http.MethodPost, "/api/calls/s1/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, "/api/calls/other", nil).Code)

	w = doJSON(r, http.MethodGet, "/api/calls/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)
}

type relayMsg struct {
	Type    string          `json:"type"`
	Path    string          `json:"path"`
	Payload json.RawMessage `json:"payload"`
}

func dialRelay(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/calls/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) relayMsg {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m relayMsg
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestCallRelay(t *testing.T) {
	calls := newFakeCalls()
	queue := &fakeQueue{}
	srv := httptest.NewServer(callRouter(NewCallHandler(CallHandlerDeps{Calls: calls, Logs: &fakeLogs{}, Audio: queue}), "user-1"))
	defer srv.Close()

	conn := dialRelay(t, srv, "s1")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "start"}))
	m := readMsg(t, conn)
	require.Equal(t, "status", m.Type)
	var st call.Status
	require.NoError(t, json.Unmarshal(m.Payload, &st))
	assert.Equal(t, call.StateConnecting, st.State)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":  "event",
		"event": map[string]any{"type": "call-start"},
	}))
	m = readMsg(t, conn)
	require.NoError(t, json.Unmarshal(m.Payload, &st))
	assert.Equal(t, call.StateActive, st.State)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "event",
		"event": map[string]any{"type": "message", "message": map[string]any{
			"type": "transcript", "transcriptType": "final", "role": "user", "transcript": "hello",
		}},
	}))
	require.Eventually(t, func() bool { return len(calls.recorded()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "hello", calls.recorded()[1].Message.Transcript)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "audio_chunk", "chunk_index": 3, "audio_base64": "AAAA"}))
	require.Eventually(t, func() bool { return len(queue.queued()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "s1", queue.queued()[0].SessionID)
	assert.EqualValues(t, 3, queue.queued()[0].ChunkIndex)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "dance"}))
	m = readMsg(t, conn)
	require.Equal(t, "error", m.Type)
	assert.Contains(t, string(m.Payload), string(utils.CodeInvalidArgument))

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "event", "event": map[string]any{"type": "teleport"}}))
	assert.Equal(t, "error", readMsg(t, conn).Type)

	// the controller redirects through the attached navigator
	nav := calls.navigator()
	require.NotNil(t, nav)
	nav.Navigate(call.FeedbackPath("iv-1"))
	m = readMsg(t, conn)
	assert.Equal(t, "navigate", m.Type)
	assert.Equal(t, "/interview/iv-1/feedback", m.Path)

	require.NoError(t, conn.Close())
	select {
	case <-calls.detached:
	case <-time.After(2 * time.Second):
		t.Fatal("relay was not detached after the socket closed")
	}
}

func TestCallRelayWithoutAudioQueue(t *testing.T) {
	calls := newFakeCalls()
	srv := httptest.NewServer(callRouter(NewCallHandler(CallHandlerDeps{Calls: calls, Logs: &fakeLogs{}}), "user-1"))
	defer srv.Close()

	conn := dialRelay(t, srv, "s1")
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "audio_chunk", "audio_base64": "AAAA"}))
	m := readMsg(t, conn)
	require.Equal(t, "error", m.Type)
	assert.Contains(t, string(m.Payload), string(utils.CodeFailedPrecondition))
}

func TestCallRelayRejectsForeignSession(t *testing.T) {
	srv := httptest.NewServer(callRouter(NewCallHandler(CallHandlerDeps{Calls: newFakeCalls(), Logs: &fakeLogs{}}), "user-2"))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/calls/s1"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

var _ voice.Agent = (*voice.RelayAgent)(nil)
