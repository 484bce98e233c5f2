package triage

import (
	"strings"

	"triage_server/core/domain"
)

// spamKeywords mark bulk and transactional noise. Matching is
// case-insensitive substring over subject and body.
var spamKeywords = []string{
	"unsubscribe",
	"opt-out",
	"marketing",
	"promo",
	"no-reply",
	"newsletter",
	"sale",
	"discount",
	"click here",
	"buy now",
	"sign-in",
	"security alert",
}

// SpamFilter decides whether a message should be dropped before any
// thread or contact work happens.
type SpamFilter struct{}

func NewSpamFilter() *SpamFilter {
	return &SpamFilter{}
}

// IsSpam returns true when the classifier marked the message NOISE or
// any spam keyword appears in the subject or body. The two signals are
// OR'd: either alone is enough to drop the message.
func (f *SpamFilter) IsSpam(subject, body string, relevance domain.Relevance) bool {
	if relevance == domain.RelevanceNoise {
		return true
	}
	return f.HasSpamKeyword(subject) || f.HasSpamKeyword(body)
}

// HasSpamKeyword reports whether text contains any spam keyword.
func (f *SpamFilter) HasSpamKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range spamKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
