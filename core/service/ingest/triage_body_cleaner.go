// Package ingest drives the triage pipeline: fetch unread mail,
// classify, resolve threads, schedule actions, and mark messages read.
package ingest

import (
	"regexp"
	"strings"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	entityRe     = regexp.MustCompile(`&[a-zA-Z#0-9]+;`)
	urlRe        = regexp.MustCompile(`https?://\S+`)
	multiSpaceRe = regexp.MustCompile(`[ \t]+`)
	multiLineRe  = regexp.MustCompile(`\n{3,}`)
	replyHdrRe   = regexp.MustCompile(`(?m)^On .{1,120} wrote:\s*$`)
	forwardHdrRe = regexp.MustCompile(`(?m)^Begin forwarded message:\s*$`)
)

// CleanBody strips the noise that wrecks embeddings: quoted replies,
// signatures, leftover HTML, long URLs, and whitespace runs. The
// cleaned text feeds the embedder and the classifier.
func CleanBody(raw string) string {
	text := raw

	text = htmlTagRe.ReplaceAllString(text, " ")
	text = entityRe.ReplaceAllString(text, " ")

	// cut at the first quoted-reply or forward marker
	if loc := replyHdrRe.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}
	if loc := forwardHdrRe.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, ">") {
			continue
		}
		// signature or horizontal-rule delimiter ends the message body
		if trimmed == "--" || trimmed == "---" {
			break
		}
		kept = append(kept, line)
	}
	text = strings.Join(kept, "\n")

	text = urlRe.ReplaceAllString(text, " ")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = multiLineRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
