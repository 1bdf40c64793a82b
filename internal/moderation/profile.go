package moderation

import (
	"context"
	"fmt"
)

// ProfileReader exposes the user-facing profile fields subject to
// moderation. Implemented by the user-data collaborator.
type ProfileReader interface {
	Profile(ctx context.Context, userID string) (name, bio string, err error)
}

// ProfileDecision is the outcome of moderating a user profile.
type ProfileDecision struct {
	Approved bool     `json:"approved"`
	Issues   []string `json:"issues,omitempty"`
}

// ModerateProfile runs text classification over a user's display name and
// bio.
func (e *Engine) ModerateProfile(ctx context.Context, profiles ProfileReader, userID string) (ProfileDecision, error) {
	name, bio, err := profiles.Profile(ctx, userID)
	if err != nil {
		return ProfileDecision{}, fmt.Errorf("load profile: %w", err)
	}

	var issues []string
	if d := e.ClassifyText(name); !d.Approved {
		issues = append(issues, "name: "+d.Reason)
	}
	if d := e.ClassifyText(bio); !d.Approved {
		issues = append(issues, "bio: "+d.Reason)
	}

	return ProfileDecision{
		Approved: len(issues) == 0,
		Issues:   issues,
	}, nil
}
