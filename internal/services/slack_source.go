package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/config"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"github.com/slack-go/slack"
)

var mentionPattern = regexp.MustCompile(`<@([A-Z0-9]+)(?:\|[^>]*)?>`)

// SlackSource reads a channel's recent history as chat messages, oldest first.
type SlackSource struct {
	client    *slack.Client
	channelID string
	clock     Clock

	mu    sync.Mutex
	names map[string]string
}

// NewSlackSource returns nil when the bot token or channel is missing.
func NewSlackSource(cfg *config.SlackConfig, clock Clock, opts ...slack.Option) *SlackSource {
	if cfg == nil || cfg.BotToken == "" || cfg.ChannelID == "" {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &SlackSource{
		client:    slack.New(cfg.BotToken, opts...),
		channelID: cfg.ChannelID,
		clock:     clock,
		names:     make(map[string]string),
	}
}

// FetchMessages implements MessageSource.
func (s *SlackSource) FetchMessages(ctx context.Context, hoursBack, limit int) ([]ChatMessage, error) {
	oldest := s.clock().Add(-time.Duration(hoursBack) * time.Hour)
	params := &slack.GetConversationHistoryParameters{
		ChannelID: s.channelID,
		Oldest:    fmt.Sprintf("%d.000000", oldest.Unix()),
		Limit:     limit,
	}

	var raw []slack.Message
	for {
		resp, err := s.client.GetConversationHistoryContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("conversations.history: %w", err)
		}
		raw = append(raw, resp.Messages...)
		if !resp.HasMore || resp.ResponseMetaData.NextCursor == "" || len(raw) >= limit {
			break
		}
		params.Cursor = resp.ResponseMetaData.NextCursor
	}
	if len(raw) > limit {
		raw = raw[:limit]
	}

	msgs := make([]ChatMessage, 0, len(raw))
	for _, m := range raw {
		msg := ChatMessage{
			ID:       m.Timestamp,
			SenderID: m.User,
			Text:     s.resolveMentions(ctx, m.Text),
			SentAt:   parseSlackTS(m.Timestamp),
			Type:     m.Type,
			SubType:  m.SubType,
			BotID:    m.BotID,
		}
		switch {
		case m.User != "":
			msg.SenderName = s.userName(ctx, m.User)
		case m.Username != "":
			msg.SenderName = m.Username
		default:
			msg.SenderName = "unknown"
		}
		msgs = append(msgs, msg)
	}

	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].SentAt.Before(msgs[j].SentAt) })
	logger.Infof("[Slack] Fetched %d messages from %s (last %dh)", len(msgs), s.channelID, hoursBack)
	return msgs, nil
}

// userName returns the display name, then real name, then handle, caching the result.
// Lookup failures fall back to the raw id.
func (s *SlackSource) userName(ctx context.Context, userID string) string {
	s.mu.Lock()
	name, ok := s.names[userID]
	s.mu.Unlock()
	if ok {
		return name
	}

	name = userID
	if user, err := s.client.GetUserInfoContext(ctx, userID); err != nil {
		logger.Warnf("[Slack] users.info %s failed: %v", userID, err)
	} else {
		for _, candidate := range []string{user.Profile.DisplayName, user.Profile.RealName, user.RealName, user.Name} {
			if strings.TrimSpace(candidate) != "" {
				name = candidate
				break
			}
		}
	}

	s.mu.Lock()
	s.names[userID] = name
	s.mu.Unlock()
	return name
}

// resolveMentions rewrites <@U123> tokens as @display name.
func (s *SlackSource) resolveMentions(ctx context.Context, text string) string {
	return mentionPattern.ReplaceAllStringFunc(text, func(tok string) string {
		id := mentionPattern.FindStringSubmatch(tok)[1]
		return "@" + s.userName(ctx, id)
	})
}

func parseSlackTS(ts string) time.Time {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return time.Time{}
	}
	sec := int64(f)
	return time.Unix(sec, int64((f-float64(sec))*1e9)).UTC()
}
