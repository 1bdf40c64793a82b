package moderation

import (
	"context"

	"go.uber.org/zap"

	"heartlink.io/trustengine/internal/pkg/logger"
)

// Prediction is one class/probability pair from the classifier.
type Prediction struct {
	Class       string
	Probability float64
}

// ImageClassifier is the injected model-serving capability.
type ImageClassifier interface {
	Classify(ctx context.Context, image []byte) ([]Prediction, error)
}

// nsfwClasses are the classifier classes that count toward the NSFW score.
var nsfwClasses = map[string]struct{}{
	"Porn":   {},
	"Hentai": {},
	"Sexy":   {},
}

// ImageScores holds per-category risk scores.
// Violence and hate are reserved for future classifiers and stay zero.
type ImageScores struct {
	NSFW     float64 `json:"nsfw"`
	Violence float64 `json:"violence"`
	Hate     float64 `json:"hate"`
}

// ImageDecision is the outcome of classifying one image.
type ImageDecision struct {
	Approved bool        `json:"approved"`
	Scores   ImageScores `json:"scores"`
	Reason   string      `json:"reason,omitempty"`
}

// ClassifyImage scores the image via the injected classifier and applies
// the threshold policy.
//
// Fail-safe: if the classifier errors or is absent, the image is rejected
// with a maxed NSFW score. Content is never auto-approved when moderation
// cannot run.
func (e *Engine) ClassifyImage(ctx context.Context, image []byte) ImageDecision {
	if e.classifier == nil {
		return failSafeDecision()
	}

	predictions, err := e.classifier.Classify(ctx, image)
	if err != nil {
		logger.Error("image classifier failed, rejecting content", zap.Error(err))
		return failSafeDecision()
	}

	var nsfw float64
	for _, p := range predictions {
		if _, ok := nsfwClasses[p.Class]; ok && p.Probability > nsfw {
			nsfw = p.Probability
		}
	}

	d := ImageDecision{
		Approved: nsfw < e.cfg.NSFWThreshold,
		Scores:   ImageScores{NSFW: nsfw},
	}
	if !d.Approved {
		d.Reason = "image contains inappropriate content"
	}
	return d
}

func failSafeDecision() ImageDecision {
	return ImageDecision{
		Approved: false,
		Scores:   ImageScores{NSFW: 1},
		Reason:   "unable to verify image content",
	}
}
