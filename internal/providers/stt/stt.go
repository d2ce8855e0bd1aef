// Package stt turns user audio into text for callers whose browser does not
// run speech recognition itself.
package stt

import (
	"context"
	"errors"
	"strings"
)

var ErrEmptyAudio = errors.New("stt: empty audio")

type Result struct {
	Text       string
	Confidence float64
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (Result, error)
	Close() error
}

// NormalizeLanguage maps short codes to BCP-47 tags, defaulting to en-US.
func NormalizeLanguage(v string) string {
	switch v = strings.TrimSpace(v); strings.ToLower(v) {
	case "":
		return "en-US"
	case "en", "en-us":
		return "en-US"
	case "id", "id-id":
		return "id-ID"
	}
	return v
}
