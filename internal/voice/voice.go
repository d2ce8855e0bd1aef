// Package voice describes the hosted voice agent the call controller drives.
// The agent itself (STT, TTS, transport) runs outside this service; the types
// here are the boundary: a session descriptor going out and agent events
// coming back.
package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

type EventType string

const (
	EventCallStart   EventType = "call-start"
	EventCallEnd     EventType = "call-end"
	EventMessage     EventType = "message"
	EventSpeechStart EventType = "speech-start"
	EventSpeechEnd   EventType = "speech-end"
	EventError       EventType = "error"
	// EventStartFailed is sent by the relay client when the agent rejected
	// session establishment.
	EventStartFailed EventType = "start-failed"
)

type TranscriptType string

const (
	TranscriptPartial TranscriptType = "partial"
	TranscriptFinal   TranscriptType = "final"
)

// Message is the agent's "message" payload. Only transcript messages matter
// to the controller; other message types are ignored.
type Message struct {
	Type           string         `json:"type"`
	TranscriptType TranscriptType `json:"transcriptType,omitempty"`
	Role           string         `json:"role,omitempty"`
	Transcript     string         `json:"transcript,omitempty"`
}

func (m *Message) IsTranscript() bool { return m != nil && m.Type == "transcript" }

func (m *Message) IsFinal() bool { return m.IsTranscript() && m.TranscriptType == TranscriptFinal }

type Event struct {
	Type    EventType `json:"type"`
	Message *Message  `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
}

var ErrUnknownEvent = errors.New("voice: unknown event type")

// DecodeEvent parses one relayed agent event.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("voice: decode event: %w", err)
	}
	switch ev.Type {
	case EventCallStart, EventCallEnd, EventSpeechStart, EventSpeechEnd, EventError, EventStartFailed:
	case EventMessage:
		if ev.Message == nil {
			return Event{}, errors.New("voice: message event without payload")
		}
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
	return ev, nil
}

// Persona is an inline interviewer assistant definition.
type Persona struct {
	Name         string `json:"name"`
	FirstMessage string `json:"firstMessage"`
	SystemPrompt string `json:"systemPrompt"`
	Voice        string `json:"voice,omitempty"`
	Model        string `json:"model,omitempty"`
}

// Descriptor tells the agent which session to establish: either a workflow
// (generate mode) or an interviewer persona (interview mode).
type Descriptor struct {
	WorkflowID     string            `json:"workflowId,omitempty"`
	Assistant      *Persona          `json:"assistant,omitempty"`
	VariableValues map[string]string `json:"variableValues,omitempty"`
}

// Agent is one voice session. Start returns once establishment has been
// requested; establishment itself is reported through EventCallStart.
type Agent interface {
	Start(ctx context.Context, d Descriptor) error
	Stop(ctx context.Context) error
}
