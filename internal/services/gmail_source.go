package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/config"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	gmailBodyLimit = 2500
	gmailPageSize  = 100
)

// GmailSearchQuery is the mailbox search that narrows the inbox to emails
// mentioning absence before anything reaches the classifier.
func GmailSearchQuery(days int) string {
	return `(subject:(OOO OR "out of office" OR vacation OR "on leave" OR "time off" OR "away from office" OR ` +
		`"annual leave" OR "sick leave" OR "working from home" OR WFH) ` +
		`OR ("out of office" OR "OOO" OR "vacation" OR "on leave" OR "not available" OR "unavailable")) ` +
		"newer_than:" + strconv.Itoa(days) + "d"
}

// GmailSource reads out-of-office emails from one mailbox, oldest first.
type GmailSource struct {
	svc  *gmail.Service
	user string
	days int
}

// NewGmailSource returns nil when the OAuth credentials are incomplete.
// The refresh token is exchanged for access tokens as they expire.
func NewGmailSource(ctx context.Context, cfg *config.GmailConfig, opts ...option.ClientOption) (*GmailSource, error) {
	if cfg == nil || !cfg.Configured() {
		return nil, nil
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
	ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	svc, err := gmail.NewService(ctx, append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("gmail client: %w", err)
	}

	user, days := cfg.UserEmail, cfg.SearchDays
	if user == "" {
		user = "me"
	}
	if days <= 0 {
		days = 30
	}
	return &GmailSource{svc: svc, user: user, days: days}, nil
}

// SearchQuery is the query FetchMessages sends for the given lookback.
func (s *GmailSource) SearchQuery(hoursBack int) string {
	return GmailSearchQuery(s.lookbackDays(hoursBack))
}

func (s *GmailSource) lookbackDays(hoursBack int) int {
	if hoursBack <= 0 {
		return s.days
	}
	return (hoursBack + 23) / 24
}

// FetchMessages implements MessageSource. A zero hoursBack uses the
// configured search window. An email that cannot be read is skipped.
func (s *GmailSource) FetchMessages(ctx context.Context, hoursBack, limit int) ([]ChatMessage, error) {
	query := s.SearchQuery(hoursBack)

	var ids []string
	pageToken := ""
	for len(ids) < limit {
		call := s.svc.Users.Messages.List(s.user).Q(query).MaxResults(int64(min(limit-len(ids), gmailPageSize))).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("messages.list: %w", err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" || len(resp.Messages) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	msgs := make([]ChatMessage, 0, len(ids))
	for _, id := range ids {
		m, err := s.svc.Users.Messages.Get(s.user, id).Format("full").Context(ctx).Do()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warnf("[Gmail] Skipping message %s: %v", id, err)
			continue
		}
		msgs = append(msgs, emailToMessage(m))
	}

	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].SentAt.Before(msgs[j].SentAt) })
	logger.Debugf("[Gmail] Fetched %d of %d matching emails", len(msgs), len(ids))
	return msgs, nil
}

func emailToMessage(m *gmail.Message) ChatMessage {
	var headers []*gmail.MessagePartHeader
	if m.Payload != nil {
		headers = m.Payload.Headers
	}
	subject := emailHeader(headers, "Subject")
	if subject == "" {
		subject = "(no subject)"
	}
	name, addr := parseSender(emailHeader(headers, "From"))

	text := "Subject: " + subject
	if body := strings.TrimSpace(emailBody(m.Payload)); body != "" {
		text += "\n\n" + truncate(body, gmailBodyLimit)
	}

	return ChatMessage{
		ID:         m.Id,
		SenderID:   addr,
		SenderName: name,
		Text:       text,
		SentAt:     time.UnixMilli(m.InternalDate).UTC(),
		Type:       MessageTypeEmail,
	}
}

func emailHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// parseSender splits a From header into a display name and address. A bare
// address uses its local part as the name.
func parseSender(raw string) (name, addr string) {
	raw = strings.TrimSpace(raw)
	a, err := mail.ParseAddress(raw)
	if err != nil {
		return strings.Trim(raw, `" `), ""
	}
	name = strings.TrimSpace(a.Name)
	if name == "" {
		name, _, _ = strings.Cut(a.Address, "@")
	}
	return name, a.Address
}

// emailBody returns the first text/plain part, falling back to any
// non-HTML leaf.
func emailBody(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		return decodeEmailData(part.Body.Data)
	}
	for _, sub := range part.Parts {
		if text := emailBody(sub); text != "" {
			return text
		}
	}
	if len(part.Parts) == 0 && part.MimeType != "text/html" && part.Body != nil && part.Body.Data != "" {
		return decodeEmailData(part.Body.Data)
	}
	return ""
}

func decodeEmailData(data string) string {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return ""
		}
	}
	return strings.ToValidUTF8(string(b), "�")
}
