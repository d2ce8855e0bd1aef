package models

import (
	"time"

	"gorm.io/datatypes"
)

type CallMode string

const (
	ModeGenerate  CallMode = "generate"
	ModeInterview CallMode = "interview"
)

// CallLog is the audit row written once per finished call session.
type CallLog struct {
	ID          string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SessionID   string    `gorm:"column:session_id;type:uuid;index" json:"session_id"`
	UserID      string    `gorm:"column:user_id;type:text;index" json:"user_id"`
	Mode        string    `gorm:"column:mode;type:text" json:"mode"`
	InterviewID string    `gorm:"column:interview_id;type:text" json:"interview_id,omitempty"`
	Entries     int       `gorm:"column:entries;type:integer" json:"entries"`
	Outcome     string    `gorm:"column:outcome;type:text" json:"outcome"` // generated|scored|failed|aborted
	ResultID    string    `gorm:"column:result_id;type:text" json:"result_id,omitempty"`
	StartedAt   time.Time `gorm:"column:started_at;index" json:"started_at"`
	EndedAt     time.Time `gorm:"column:ended_at" json:"ended_at"`

	Metadata datatypes.JSON `gorm:"column:metadata" json:"metadata"`
}

func (CallLog) TableName() string { return "call_logs" }
