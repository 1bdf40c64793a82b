package moderation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartlink.io/trustengine/internal/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitForTest()
	m.Run()
}

func testEngine(t *testing.T, classifier ImageClassifier, reports ReportCounter) *Engine {
	t.Helper()
	patterns := DefaultPatterns()
	require.NoError(t, patterns.AddHateSpeechTerms("slurword"))
	return NewEngine(DefaultConfig(), patterns, classifier, reports, nil)
}

func TestClassifyText(t *testing.T) {
	e := testEngine(t, nil, nil)

	tests := []struct {
		name         string
		text         string
		wantApproved bool
		wantFlags    []string
	}{
		{
			name:         "clean text",
			text:         "hey, want to grab coffee sometime?",
			wantApproved: true,
			wantFlags:    nil,
		},
		{
			name:         "phone number is advisory",
			text:         "call me at 555-123-4567",
			wantApproved: true,
			wantFlags:    []string{FlagContactInfo},
		},
		{
			name:         "email is advisory",
			text:         "reach me at jane.doe@example.com",
			wantApproved: true,
			wantFlags:    []string{FlagContactInfo},
		},
		{
			name:         "url is advisory",
			text:         "check out https://example.com/profile",
			wantApproved: true,
			wantFlags:    []string{FlagURL},
		},
		{
			name:         "profanity is advisory",
			text:         "that movie was shit",
			wantApproved: true,
			wantFlags:    []string{FlagProfanity},
		},
		{
			name:         "hate speech rejects",
			text:         "you are a slurword",
			wantApproved: false,
			wantFlags:    []string{FlagHateSpeech},
		},
		{
			name:         "spam rejects",
			text:         "cheap viagra, click here",
			wantApproved: false,
			wantFlags:    []string{FlagSpam},
		},
		{
			name:         "case insensitive matching",
			text:         "SLURWORD",
			wantApproved: false,
			wantFlags:    []string{FlagHateSpeech},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.ClassifyText(tt.text)
			assert.Equal(t, tt.wantApproved, d.Approved)
			assert.Equal(t, tt.wantFlags, d.Flags)
			if !tt.wantApproved {
				assert.NotEmpty(t, d.Reason)
			}
		})
	}
}

func TestClassifyText_DeduplicatesContactInfo(t *testing.T) {
	e := testEngine(t, nil, nil)
	d := e.ClassifyText("call 555-123-4567 or mail a@b.com")
	assert.Equal(t, []string{FlagContactInfo}, d.Flags)
}

func TestClassifyImage_ThresholdPolicy(t *testing.T) {
	tests := []struct {
		name         string
		predictions  []Prediction
		wantApproved bool
		wantNSFW     float64
	}{
		{
			name:         "clean image",
			predictions:  []Prediction{{Class: "Neutral", Probability: 0.95}},
			wantApproved: true,
			wantNSFW:     0,
		},
		{
			name:         "below threshold approved",
			predictions:  []Prediction{{Class: "Sexy", Probability: 0.5}},
			wantApproved: true,
			wantNSFW:     0.5,
		},
		{
			name:         "above threshold rejected",
			predictions:  []Prediction{{Class: "Porn", Probability: 0.8}},
			wantApproved: false,
			wantNSFW:     0.8,
		},
		{
			name: "max over nsfw classes",
			predictions: []Prediction{
				{Class: "Sexy", Probability: 0.3},
				{Class: "Hentai", Probability: 0.7},
				{Class: "Neutral", Probability: 0.9},
			},
			wantApproved: false,
			wantNSFW:     0.7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testEngine(t, &StubClassifier{Predictions: tt.predictions}, nil)
			d := e.ClassifyImage(context.Background(), []byte("img"))
			assert.Equal(t, tt.wantApproved, d.Approved)
			assert.InDelta(t, tt.wantNSFW, d.Scores.NSFW, 1e-9)
			assert.Zero(t, d.Scores.Violence)
			assert.Zero(t, d.Scores.Hate)
		})
	}
}

func TestClassifyImage_FailSafeOnClassifierError(t *testing.T) {
	e := testEngine(t, &StubClassifier{Err: errors.New("model unavailable")}, nil)

	d := e.ClassifyImage(context.Background(), []byte("img"))
	assert.False(t, d.Approved, "content must never be auto-approved when moderation cannot run")
	assert.Equal(t, 1.0, d.Scores.NSFW)
	assert.NotEmpty(t, d.Reason)
}

func TestClassifyImage_FailSafeWithoutClassifier(t *testing.T) {
	e := testEngine(t, nil, nil)
	d := e.ClassifyImage(context.Background(), []byte("img"))
	assert.False(t, d.Approved)
	assert.Equal(t, 1.0, d.Scores.NSFW)
}

type fixedReports map[string]int

func (f fixedReports) ResolvedReportCount(_ context.Context, userID string) (int, error) {
	return f[userID], nil
}

func TestClassifyMessage_Escalation(t *testing.T) {
	reports := fixedReports{"repeat-offender": 4, "edge-case": 3}
	e := testEngine(t, nil, reports)
	ctx := context.Background()

	// Clean sender with an advisory flag: flagged, not blocked.
	d, err := e.ClassifyMessage(ctx, "clean-user", "call me at 555-123-4567")
	require.NoError(t, err)
	assert.True(t, d.Approved)
	assert.True(t, d.Flagged)
	assert.False(t, d.Blocked)

	// Repeat offender with the same advisory flag: force-blocked.
	d, err = e.ClassifyMessage(ctx, "repeat-offender", "call me at 555-123-4567")
	require.NoError(t, err)
	assert.True(t, d.Blocked)
	assert.False(t, d.Flagged)

	// Exactly at the threshold does not escalate (rule is strictly greater).
	d, err = e.ClassifyMessage(ctx, "edge-case", "call me at 555-123-4567")
	require.NoError(t, err)
	assert.False(t, d.Blocked)
	assert.True(t, d.Flagged)

	// Repeat offender with clean text: nothing to escalate.
	d, err = e.ClassifyMessage(ctx, "repeat-offender", "good morning!")
	require.NoError(t, err)
	assert.True(t, d.Approved)
	assert.False(t, d.Flagged)
	assert.False(t, d.Blocked)
}

func TestClassifyMessage_HateSpeechAlwaysBlocks(t *testing.T) {
	e := testEngine(t, nil, fixedReports{})

	d, err := e.ClassifyMessage(context.Background(), "clean-user", "you slurword")
	require.NoError(t, err)
	assert.True(t, d.Blocked)
	assert.False(t, d.Approved)
}

type profileFixture struct{ name, bio string }

func (p profileFixture) Profile(context.Context, string) (string, string, error) {
	return p.name, p.bio, nil
}

func TestModerateProfile(t *testing.T) {
	e := testEngine(t, nil, nil)
	ctx := context.Background()

	d, err := e.ModerateProfile(ctx, profileFixture{name: "Jane", bio: "I like hiking"}, "u1")
	require.NoError(t, err)
	assert.True(t, d.Approved)
	assert.Empty(t, d.Issues)

	d, err = e.ModerateProfile(ctx, profileFixture{name: "Jane", bio: "buy now at https://spam.example"}, "u1")
	require.NoError(t, err)
	assert.False(t, d.Approved)
	assert.Len(t, d.Issues, 1)
}
