package moderation

import (
	"context"
	"fmt"
)

// MessageDecision is the outcome of moderating a direct message.
// Exactly one of Blocked/Flagged is set when flags were raised; Blocked
// wins.
type MessageDecision struct {
	Approved bool     `json:"approved"`
	Flagged  bool     `json:"flagged"`
	Blocked  bool     `json:"blocked"`
	Flags    []string `json:"flags"`
	Reason   string   `json:"reason,omitempty"`
}

// ClassifyMessage moderates a message with sender-history escalation:
// hate speech always blocks; a sender whose resolved-report count exceeds
// the escalation threshold is blocked on any raised flag, where a clean
// sender would only be flagged.
func (e *Engine) ClassifyMessage(ctx context.Context, senderID, text string) (MessageDecision, error) {
	textDecision := e.ClassifyText(text)

	resolvedReports := 0
	if e.reports != nil {
		n, err := e.reports.ResolvedReportCount(ctx, senderID)
		if err != nil {
			return MessageDecision{}, fmt.Errorf("resolve report count for sender: %w", err)
		}
		resolvedReports = n
	}

	blocked := contains(textDecision.Flags, FlagHateSpeech) ||
		(resolvedReports > e.cfg.EscalationReportThreshold && len(textDecision.Flags) > 0)

	reason := textDecision.Reason
	if blocked && reason == "" {
		reason = "sender history escalation"
	}

	return MessageDecision{
		Approved: textDecision.Approved && !blocked,
		Flagged:  len(textDecision.Flags) > 0 && !blocked,
		Blocked:  blocked,
		Flags:    textDecision.Flags,
		Reason:   reason,
	}, nil
}
