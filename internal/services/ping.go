package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/config"
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"github.com/slack-go/slack"
	"gorm.io/gorm"
)

const urgentWithin = 48 * time.Hour

var priorityEmoji = map[string]string{
	models.PriorityP0: ":red_circle:",
	models.PriorityP1: ":large_yellow_circle:",
	models.PriorityP2: ":large_green_circle:",
}

type PingRequest struct {
	MemberID string `json:"memberId" binding:"required"`
	TaskID   string `json:"taskId" binding:"required"`
	Reason   string `json:"reason"`
}

type PingResult struct {
	Channel   string `json:"channel"`
	MessageTS string `json:"messageTs"`
	Recipient string `json:"recipient"`
	Urgent    bool   `json:"urgent"`
}

// PingService asks a member over Slack DM whether they can cover a task.
type PingService struct {
	db          *gorm.DB
	client      *slack.Client
	defaultUser string
	clock       Clock
}

// NewPingService returns a service with a nil client when no bot token is set;
// Send then reports ErrPingNotConfigured.
func NewPingService(db *gorm.DB, cfg *config.SlackConfig, clock Clock, opts ...slack.Option) *PingService {
	if clock == nil {
		clock = time.Now
	}
	s := &PingService{db: db, clock: clock}
	if cfg != nil {
		s.defaultUser = cfg.PingUserID
		if cfg.BotToken != "" {
			s.client = slack.New(cfg.BotToken, opts...)
		}
	}
	return s
}

func (s *PingService) Send(ctx context.Context, req *PingRequest) (*PingResult, error) {
	if s.client == nil {
		return nil, ErrPingNotConfigured
	}

	var member models.Member
	if err := s.db.WithContext(ctx).First(&member, "id = ?", req.MemberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	var task models.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", req.TaskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	recipient := member.SlackUserID
	if recipient == "" {
		recipient = s.defaultUser
	}
	if recipient == "" {
		return nil, ErrPingNotConfigured
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		var sug models.Suggestion
		if err := s.db.WithContext(ctx).Where("task_id = ? AND member_id = ?", task.ID, member.ID).
			First(&sug).Error; err == nil {
			reason = sug.ContextReason
		}
	}

	urgent := !task.Deadline.IsZero() && task.Deadline.Sub(s.clock()) < urgentWithin
	blocks, fallback := buildPingMessage(&member, &task, reason, urgent)

	channel, _, _, err := s.client.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{recipient},
	})
	if err != nil {
		LogError("Ping", "open_dm", member.ID, err.Error(), nil)
		return nil, fmt.Errorf("%w: conversations.open: %v", ErrPingFailed, err)
	}

	channelID, ts, err := s.client.PostMessageContext(ctx, channel.ID,
		slack.MsgOptionText(fallback, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		LogError("Ping", "post", member.ID, err.Error(), nil)
		return nil, fmt.Errorf("%w: chat.postMessage: %v", ErrPingFailed, err)
	}

	logger.Infof("[Ping] Asked %s (%s) to cover %s, urgent=%v", member.Name, recipient, task.ID, urgent)
	LogInfo("Ping", "sent", member.ID, fmt.Sprintf("coverage check for %s", task.ID),
		map[string]interface{}{"task_id": task.ID, "urgent": urgent})
	return &PingResult{Channel: channelID, MessageTS: ts, Recipient: recipient, Urgent: urgent}, nil
}

func buildPingMessage(m *models.Member, t *models.Task, reason string, urgent bool) ([]slack.Block, string) {
	firstName := "there"
	if fields := strings.Fields(m.Name); len(fields) > 0 {
		firstName = fields[0]
	}
	emoji, ok := priorityEmoji[t.Priority]
	if !ok {
		emoji = ":white_circle:"
	}
	deadline := "(not specified)"
	if !t.Deadline.IsZero() {
		deadline = t.Deadline.UTC().Format("Mon, Jan 2 at 3:04 PM UTC")
	}

	header := "Coverage check"
	intro := fmt.Sprintf("Hey %s! Your team lead is checking if you can cover a task.", firstName)
	deadlineField := "*Deadline*\n" + deadline
	if urgent {
		header = "Urgent coverage check"
		intro = fmt.Sprintf("Hey %s! Your team lead is checking if you can cover a task. *This is time-sensitive.*", firstName)
		deadlineField += " :warning:"
	}

	md := func(text string) *slack.TextBlockObject {
		return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
	}
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, header, true, false)),
		slack.NewSectionBlock(md(intro), nil, nil),
		slack.NewSectionBlock(md(fmt.Sprintf("%s *%s*\n_%s_", emoji, t.Title, t.ProjectName)), nil, nil),
		slack.NewSectionBlock(nil, []*slack.TextBlockObject{
			md(deadlineField),
			md(fmt.Sprintf("*Priority*\n%s %s", emoji, t.Priority)),
		}, nil),
	}
	if reason != "" {
		blocks = append(blocks, slack.NewSectionBlock(md("*Why you were suggested*\n"+reason), nil, nil))
	}
	blocks = append(blocks,
		slack.NewDividerBlock(),
		slack.NewSectionBlock(md("Please *reply in this thread* to confirm or decline."), nil, nil),
		slack.NewContextBlock("", md(":robot_face: Sent from *Vantage*")),
	)

	fallback := fmt.Sprintf("Hey %s! Can you cover '%s' (%s · %s)? Deadline: %s.",
		firstName, t.Title, t.Priority, t.ProjectName, deadline)
	return blocks, fallback
}
