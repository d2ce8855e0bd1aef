package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"

	"github.com/yoockh/intervyu/internal/models"
	pgrepo "github.com/yoockh/intervyu/internal/repositories/postgres"
	"github.com/yoockh/intervyu/internal/utils"
)

const (
	maxProfileSkills  = 30
	maxProfileNameLen = 100
)

// ProfilePatch is a partial profile update; nil fields are left alone.
type ProfilePatch struct {
	FullName    *string
	TargetRole  *string
	Skills      *[]string
	Preferences json.RawMessage
}

type ProfileService interface {
	GetMe(ctx context.Context, userID string) (*models.Profile, error)
	// Update applies patch, creating the profile on first write.
	Update(ctx context.Context, userID string, patch ProfilePatch) (*models.Profile, error)
	// DisplayName is how the voice agent addresses the user.
	DisplayName(ctx context.Context, userID string) string
}

type profileService struct {
	profiles pgrepo.ProfileRepository
	now      func() time.Time
}

func NewProfileService(profiles pgrepo.ProfileRepository) ProfileService {
	return &profileService{profiles: profiles, now: time.Now}
}

func (s *profileService) GetMe(ctx context.Context, userID string) (*models.Profile, error) {
	const op = "ProfileService.GetMe"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	p, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "profile not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get profile", err)
	}
	return p, nil
}

func (s *profileService) Update(ctx context.Context, userID string, patch ProfilePatch) (*models.Profile, error) {
	const op = "ProfileService.Update"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	p, err := s.profiles.GetByUserID(ctx, userID)
	switch {
	case errors.Is(err, utils.ErrNotFound):
		p = &models.Profile{UserID: userID}
	case err != nil:
		return nil, utils.E(utils.CodeInternal, op, "failed to get profile", err)
	}

	if patch.FullName != nil {
		name := strings.TrimSpace(*patch.FullName)
		if utf8.RuneCountInString(name) > maxProfileNameLen {
			return nil, utils.E(utils.CodeInvalidArgument, op, "full_name is too long", nil)
		}
		p.FullName = name
	}
	if patch.TargetRole != nil {
		p.TargetRole = strings.TrimSpace(*patch.TargetRole)
	}
	if patch.Skills != nil {
		skills := normalizeSkills(*patch.Skills)
		if len(skills) > maxProfileSkills {
			return nil, utils.E(utils.CodeInvalidArgument, op, "too many skills", nil)
		}
		p.Skills = skills
	}
	if patch.Preferences != nil {
		if !json.Valid(patch.Preferences) {
			return nil, utils.E(utils.CodeInvalidArgument, op, "preferences must be valid JSON", nil)
		}
		p.Preferences = datatypes.JSON(patch.Preferences)
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.profiles.Upsert(ctx, p); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to upsert profile", err)
	}
	return p, nil
}

func (s *profileService) DisplayName(ctx context.Context, userID string) string {
	p, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return (*models.Profile)(nil).DisplayName()
	}
	return p.DisplayName()
}

// normalizeSkills trims, drops blanks and removes case-insensitive repeats,
// keeping the first spelling.
func normalizeSkills(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
