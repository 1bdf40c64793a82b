package moderation

import (
	"fmt"
	"regexp"
	"strings"
)

// Patterns holds the category pattern sets. Profanity, contact info and URL
// flags are advisory; hate speech and spam drive rejection.
type Patterns struct {
	Profanity  []*regexp.Regexp
	HateSpeech []*regexp.Regexp
	Spam       []*regexp.Regexp
	Phone      *regexp.Regexp
	Email      *regexp.Regexp
	URL        *regexp.Regexp
}

// DefaultPatterns returns the built-in pattern sets.
//
// The hate-speech set ships empty: slur deny lists are operator data loaded
// at deploy time (AddHateSpeechTerms), not terms compiled into the binary.
func DefaultPatterns() *Patterns {
	return &Patterns{
		Profanity: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(fuck|shit|bitch|ass|damn|cunt|cock)\b`),
		},
		Spam: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(buy now|purchase|click here|limited time|act now)\b`),
			regexp.MustCompile(`(?i)\b(viagra|cialis|pharmacy|pills)\b`),
		},
		Phone: regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`),
		Email: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		URL:   regexp.MustCompile(`https?://\S+`),
	}
}

// AddHateSpeechTerms compiles the given terms into the hate-speech set as
// whole-word, case-insensitive matches.
func (p *Patterns) AddHateSpeechTerms(terms ...string) error {
	for _, term := range terms {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			return fmt.Errorf("compile hate-speech term %q: %w", term, err)
		}
		p.HateSpeech = append(p.HateSpeech, re)
	}
	return nil
}

// TextDecision is the outcome of classifying one piece of text.
type TextDecision struct {
	Approved bool     `json:"approved"`
	Flags    []string `json:"flags"`
	Reason   string   `json:"reason,omitempty"`
}

// ClassifyText classifies text against the pattern sets.
// Approval policy: hate speech and spam reject; profanity, contact info and
// URLs are advisory flags only.
func (e *Engine) ClassifyText(text string) TextDecision {
	var flags []string
	add := func(flag string) {
		for _, f := range flags {
			if f == flag {
				return
			}
		}
		flags = append(flags, flag)
	}

	for _, re := range e.patterns.Profanity {
		if re.MatchString(text) {
			add(FlagProfanity)
			break
		}
	}
	for _, re := range e.patterns.HateSpeech {
		if re.MatchString(text) {
			add(FlagHateSpeech)
			break
		}
	}
	if e.patterns.Phone != nil && e.patterns.Phone.MatchString(text) {
		add(FlagContactInfo)
	}
	if e.patterns.Email != nil && e.patterns.Email.MatchString(text) {
		add(FlagContactInfo)
	}
	if e.patterns.URL != nil && e.patterns.URL.MatchString(text) {
		add(FlagURL)
	}
	for _, re := range e.patterns.Spam {
		if re.MatchString(text) {
			add(FlagSpam)
			break
		}
	}

	d := TextDecision{Flags: flags}
	d.Approved = !contains(flags, FlagHateSpeech) && !contains(flags, FlagSpam)
	if !d.Approved {
		d.Reason = "content flagged: " + strings.Join(flags, ", ")
	}
	return d
}

func contains(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
