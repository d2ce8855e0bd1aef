package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Profile is the candidate's app-side profile. Identity lives in Supabase Auth.
type Profile struct {
	UserID     string `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	FullName   string `gorm:"column:full_name;type:text" json:"full_name"`
	TargetRole string `gorm:"column:target_role;type:text" json:"target_role"`

	Skills pq.StringArray `gorm:"column:skills;type:text[]" json:"skills"`

	Preferences datatypes.JSON `gorm:"column:preferences;type:jsonb" json:"preferences"`

	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// DisplayName is what the voice agent greets the candidate with.
func (p *Profile) DisplayName() string {
	if p == nil || p.FullName == "" {
		return "there"
	}
	return p.FullName
}
