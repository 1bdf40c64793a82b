// Package moderation classifies submitted text and images and issues
// approve/flag/block decisions.
//
// The image classifier is an injected capability; the engine owns only the
// decision policy (thresholds, escalation, fail-safe rejection).
package moderation

import (
	"context"

	"heartlink.io/trustengine/internal/audit"
)

// Flag categories attached to text decisions.
const (
	FlagProfanity   = "profanity"
	FlagHateSpeech  = "hate_speech"
	FlagContactInfo = "contact_info"
	FlagURL         = "url"
	FlagSpam        = "spam"
)

// Content types subject to moderation.
const (
	ContentText    = "text"
	ContentImage   = "image"
	ContentProfile = "profile"
)

// Config tunes the decision policy.
type Config struct {
	// NSFWThreshold is the score at or above which images are rejected.
	NSFWThreshold float64

	// EscalationReportThreshold is the resolved-report count above which a
	// sender with any raised flag gets force-blocked.
	EscalationReportThreshold int
}

// DefaultConfig returns the production policy.
func DefaultConfig() Config {
	return Config{
		NSFWThreshold:             0.6,
		EscalationReportThreshold: 3,
	}
}

// ReportCounter resolves how many reports against a user were upheld.
// Implemented by the report store collaborator.
type ReportCounter interface {
	ResolvedReportCount(ctx context.Context, userID string) (int, error)
}

// Engine is the moderation service. Construct once and inject.
type Engine struct {
	cfg        Config
	patterns   *Patterns
	classifier ImageClassifier
	reports    ReportCounter
	ledger     *audit.Ledger
}

// NewEngine creates an Engine. classifier and reports may be nil when the
// corresponding paths (image moderation, message escalation) are unused.
func NewEngine(cfg Config, patterns *Patterns, classifier ImageClassifier, reports ReportCounter, ledger *audit.Ledger) *Engine {
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	return &Engine{
		cfg:        cfg,
		patterns:   patterns,
		classifier: classifier,
		reports:    reports,
		ledger:     ledger,
	}
}
