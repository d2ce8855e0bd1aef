package call

import "errors"

type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateFinished   State = "finished"
)

var (
	ErrAlreadyActive      = errors.New("call: session already started")
	ErrSessionStartFailed = errors.New("call: voice session could not be established")
	ErrUnknownMode        = errors.New("call: unknown mode")
)

const (
	HomePath = "/"
)

// FeedbackPath is where a scored interview is reviewed.
func FeedbackPath(interviewID string) string {
	return "/interview/" + interviewID + "/feedback"
}
