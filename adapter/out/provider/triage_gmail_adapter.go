// Package provider implements mailbox and calendar adapters on top of
// Google APIs.
package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
	"triage_server/pkg/httputil"
	"triage_server/pkg/logger"
)

// =============================================================================
// Gmail Adapter
// =============================================================================

// GmailAdapter implements out.MailboxProvider for Gmail. All API calls
// run behind a shared circuit breaker so a Gmail outage cannot pile up
// goroutines across owners.
type GmailAdapter struct {
	config *oauth2.Config
	cb     *gobreaker.CircuitBreaker
	log    *logger.Logger
}

// GoogleConfig holds OAuth client configuration shared by the mail and
// calendar adapters.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func NewGmailAdapter(cfg *GoogleConfig) *GmailAdapter {
	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes: []string{
			gmail.GmailReadonlyScope,
			gmail.GmailSendScope,
			gmail.GmailModifyScope,
		},
		Endpoint: google.Endpoint,
	}

	log := logger.WithField("component", "gmail_adapter")

	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker %s: %s -> %s", name, from.String(), to.String())
		},
		// only server-side failures should trip the breaker
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if apiErr, ok := err.(*googleapi.Error); ok {
				switch apiErr.Code {
				case 429, 500, 502, 503:
					return false
				}
				return true
			}
			return false
		},
	}

	return &GmailAdapter{
		config: config,
		cb:     gobreaker.NewCircuitBreaker(cbSettings),
		log:    log,
	}
}

func (a *GmailAdapter) getService(ctx context.Context, owner *domain.Owner) (*gmail.Service, error) {
	if owner.RefreshToken == "" {
		return nil, apperr.AuthExpired(owner.Email)
	}

	// Route token refresh and API calls through the pooled client.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httputil.GoogleClient())

	token := &oauth2.Token{RefreshToken: owner.RefreshToken}
	return gmail.NewService(ctx, option.WithTokenSource(a.config.TokenSource(ctx, token)))
}

// ListUnread returns up to max unread inbox messages, oldest first.
func (a *GmailAdapter) ListUnread(ctx context.Context, owner *domain.Owner, max int) ([]*domain.InboundEmail, error) {
	svc, err := a.getService(ctx, owner)
	if err != nil {
		return nil, err
	}

	var refs []*gmail.Message
	err = a.execute(func() error {
		resp, err := svc.Users.Messages.List("me").
			Q("is:unread in:inbox").
			MaxResults(int64(max)).
			Context(ctx).Do()
		if err != nil {
			return err
		}
		refs = resp.Messages
		return nil
	})
	if err != nil {
		return nil, a.wrapError(owner, err, "failed to list unread messages")
	}

	emails := make([]*domain.InboundEmail, 0, len(refs))
	for _, ref := range refs {
		email, err := a.GetMessage(ctx, owner, ref.Id)
		if err != nil {
			a.log.WithError(err).WithField("provider_id", ref.Id).Warn("skipping unfetchable message")
			continue
		}
		emails = append(emails, email)
	}

	// Gmail lists newest first; the pipeline wants oldest first
	for i, j := 0, len(emails)-1; i < j; i, j = i+1, j-1 {
		emails[i], emails[j] = emails[j], emails[i]
	}
	return emails, nil
}

// GetMessage fetches a full message and flattens its MIME tree into
// plain text.
func (a *GmailAdapter) GetMessage(ctx context.Context, owner *domain.Owner, providerID string) (*domain.InboundEmail, error) {
	svc, err := a.getService(ctx, owner)
	if err != nil {
		return nil, err
	}

	var msg *gmail.Message
	err = a.execute(func() error {
		var err error
		msg, err = svc.Users.Messages.Get("me", providerID).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, a.wrapError(owner, err, "failed to get message")
	}

	email := &domain.InboundEmail{
		ID:         msg.Id,
		ProviderID: msg.Id,
		ThreadID:   msg.ThreadId,
		Timestamp:  time.UnixMilli(msg.InternalDate),
	}
	for _, h := range headersOf(msg) {
		switch h.Name {
		case "From":
			email.From = h.Value
		case "Subject":
			email.Subject = h.Value
		}
	}
	email.RawText = extractBody(msg.Payload)
	if email.RawText == "" {
		email.RawText = msg.Snippet
	}
	return email, nil
}

// MarkRead removes the UNREAD label.
func (a *GmailAdapter) MarkRead(ctx context.Context, owner *domain.Owner, providerID string) error {
	svc, err := a.getService(ctx, owner)
	if err != nil {
		return err
	}

	err = a.execute(func() error {
		_, err := svc.Users.Messages.Modify("me", providerID, &gmail.ModifyMessageRequest{
			RemoveLabelIds: []string{"UNREAD"},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return a.wrapError(owner, err, "failed to mark message read")
	}
	return nil
}

// Send delivers an HTML message from the owner's address.
func (a *GmailAdapter) Send(ctx context.Context, owner *domain.Owner, to, subject, htmlBody string) error {
	svc, err := a.getService(ctx, owner)
	if err != nil {
		return err
	}

	var raw strings.Builder
	fmt.Fprintf(&raw, "To: %s\r\n", to)
	fmt.Fprintf(&raw, "Subject: %s\r\n", subject)
	raw.WriteString("MIME-Version: 1.0\r\n")
	raw.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	raw.WriteString("\r\n")
	raw.WriteString(htmlBody)

	err = a.execute(func() error {
		_, err := svc.Users.Messages.Send("me", &gmail.Message{
			Raw: base64.URLEncoding.EncodeToString([]byte(raw.String())),
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return a.wrapError(owner, err, "failed to send message")
	}
	return nil
}

// execute runs fn behind the circuit breaker.
func (a *GmailAdapter) execute(fn func() error) error {
	_, err := a.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

func (a *GmailAdapter) wrapError(owner *domain.Owner, err error, defaultMsg string) error {
	if err == nil {
		return nil
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return apperr.Unavailable("gmail", err)
	}

	if apiErr, ok := err.(*googleapi.Error); ok {
		switch apiErr.Code {
		case 401:
			return apperr.AuthExpired(owner.Email)
		case 403:
			if strings.Contains(apiErr.Message, "Rate Limit") || strings.Contains(apiErr.Message, "quota") {
				return apperr.RateLimited("gmail", err)
			}
			return apperr.AuthExpired(owner.Email)
		case 404:
			return apperr.NotFound("message")
		case 429:
			return apperr.RateLimited("gmail", err)
		case 500, 502, 503:
			return apperr.Unavailable("gmail", err)
		}
	}
	if strings.Contains(err.Error(), "invalid_grant") {
		return apperr.AuthExpired(owner.Email)
	}
	return apperr.ExternalError("gmail", err).WithDetail("op", defaultMsg)
}

func headersOf(msg *gmail.Message) []*gmail.MessagePartHeader {
	if msg.Payload == nil {
		return nil
	}
	return msg.Payload.Headers
}

// extractBody walks the MIME tree preferring text/plain, falling back
// to text/html.
func extractBody(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}

	var plain, html string
	walkParts(part, &plain, &html)
	if plain != "" {
		return plain
	}
	return html
}

func walkParts(part *gmail.MessagePart, plain, html *string) {
	if part == nil {
		return
	}

	if part.Body != nil && part.Body.Data != "" {
		if data, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
			switch part.MimeType {
			case "text/plain":
				if *plain == "" {
					*plain = string(data)
				}
			case "text/html":
				if *html == "" {
					*html = string(data)
				}
			}
		}
	}

	for _, p := range part.Parts {
		walkParts(p, plain, html)
	}
}

var _ out.MailboxProvider = (*GmailAdapter)(nil)
