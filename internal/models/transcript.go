package models

import "strings"

type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
	SpeakerSystem    Speaker = "system"
)

// ParseSpeaker normalizes a voice-agent role. Unknown roles are rejected.
func ParseSpeaker(s string) (Speaker, bool) {
	switch Speaker(strings.ToLower(strings.TrimSpace(s))) {
	case SpeakerUser:
		return SpeakerUser, true
	case SpeakerAssistant:
		return SpeakerAssistant, true
	case SpeakerSystem:
		return SpeakerSystem, true
	}
	return "", false
}

// TranscriptEntry is one finalized utterance. Field names match the
// {role, content} shape the browser and stored documents use.
type TranscriptEntry struct {
	Speaker Speaker `bson:"role" json:"role"`
	Text    string  `bson:"content" json:"content"`
}
