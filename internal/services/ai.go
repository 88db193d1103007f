package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/config"
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Score patterns tried when a scoring reply carries no usable JSON.
var scorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`"?skill_match_pct"?\s*[:=]\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`[Ss]kill\s*[Mm]atch[:：]?\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`[Ss]core[:：]?\s*(\d+(?:\.\d+)?)\s*/\s*100`),
	regexp.MustCompile(`[Tt]otal\s*[Ss]core[:：]?\s*(\d+(?:\.\d+)?)`),
}

const maxRetryBackoff = 90 * time.Second

// LLMCallFunc performs one completion against one provider.
type LLMCallFunc func(ctx context.Context, p *config.LLMProviderConfig, system, prompt string) (string, error)

// AIService sends prompts to the configured providers in order, falling back
// to the next provider when one fails. Rate-limited calls are retried with
// exponential backoff before falling back.
type AIService struct {
	providers  []config.LLMProviderConfig
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	limiter    *rate.Limiter
	usage      *AIUsageService

	call LLMCallFunc
}

func NewAIService(cfg *config.LLMConfig) *AIService {
	s := &AIService{
		providers:  cfg.Providers,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	if s.maxRetries < 0 {
		s.maxRetries = 0
	}
	if s.backoff <= 0 {
		s.backoff = 2 * time.Second
	}
	if cfg.RequestsPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}
	s.call = s.callLLM
	return s
}

// SetUsageRecorder enables per-call usage tracking.
func (s *AIService) SetUsageRecorder(u *AIUsageService) {
	s.usage = u
}

func (s *AIService) Configured() bool {
	return len(s.providers) > 0
}

// Complete runs the prompt against each provider in turn and returns the
// first successful reply. operation and subject only label usage records.
func (s *AIService) Complete(ctx context.Context, operation, subject, system, prompt string) (string, error) {
	if len(s.providers) == 0 {
		return "", ErrOracleNotConfigured
	}

	var lastErr error
	for i := range s.providers {
		p := &s.providers[i]
		started := time.Now()
		content, attempts, err := s.completeWithRetry(ctx, p, system, prompt)
		s.recordUsage(operation, subject, p, attempts, time.Since(started), err)
		if err == nil {
			if i > 0 {
				logger.Infof("[Oracle] %s succeeded with fallback provider %s", operation, providerLabel(p))
			}
			return content, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		logger.Warnf("[Oracle] Provider %s failed for %s: %v", providerLabel(p), operation, err)
	}
	return "", fmt.Errorf("all LLM providers failed: %w", lastErr)
}

func (s *AIService) completeWithRetry(ctx context.Context, p *config.LLMProviderConfig, system, prompt string) (string, int, error) {
	attempts := 0
	for {
		attempts++
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return "", attempts, err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		content, err := s.call(callCtx, p, system, prompt)
		cancel()
		if err == nil {
			return content, attempts, nil
		}
		if !IsRateLimitError(err) || attempts > s.maxRetries {
			return "", attempts, err
		}

		wait := s.retryWait(attempts, err)
		logger.Warnf("[Oracle] %s rate-limited, retry %d/%d in %s", providerLabel(p), attempts, s.maxRetries, wait)
		select {
		case <-ctx.Done():
			return "", attempts, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// retryWait doubles the base backoff per attempt, honoring a longer
// provider-suggested delay when one is present.
func (s *AIService) retryWait(attempt int, err error) time.Duration {
	wait := s.backoff << (attempt - 1)
	if hint := retryDelayHint(err); hint > wait {
		wait = hint
	}
	if wait > maxRetryBackoff {
		wait = maxRetryBackoff
	}
	return wait
}

func (s *AIService) recordUsage(operation, subject string, p *config.LLMProviderConfig, attempts int, took time.Duration, err error) {
	if s.usage == nil {
		return
	}
	entry := &models.AIUsageLog{
		Operation: operation,
		Subject:   subject,
		Provider:  p.Provider,
		Model:     p.Model,
		Attempts:  attempts,
		LatencyMs: took.Milliseconds(),
		Success:   err == nil,
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
	}
	s.usage.Record(entry)
}

// IsRateLimitError reports whether err is a provider quota or throttling error.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var oaiErr *openai.APIError
	if errors.As(err, &oaiErr) && oaiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var oaiReqErr *openai.RequestError
	if errors.As(err, &oaiReqErr) && oaiReqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) && antErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	var gErr genai.APIError
	if errors.As(err, &gErr) && gErr.Code == http.StatusTooManyRequests {
		return true
	}
	var olErr api.StatusError
	if errors.As(err, &olErr) && olErr.StatusCode == http.StatusTooManyRequests {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted")
}

// retryDelayHint reads the RetryInfo delay Gemini attaches to quota errors.
func retryDelayHint(err error) time.Duration {
	var gErr genai.APIError
	if !errors.As(err, &gErr) {
		return 0
	}
	for _, d := range gErr.Details {
		if t, _ := d["@type"].(string); !strings.Contains(t, "RetryInfo") {
			continue
		}
		if raw, ok := d["retryDelay"].(string); ok {
			if delay, err := time.ParseDuration(raw); err == nil {
				return delay
			}
		}
	}
	return 0
}

func providerLabel(p *config.LLMProviderConfig) string {
	if p.Name != "" {
		return p.Name
	}
	return p.Provider
}

// callLLM dispatches to the provider-specific client.
func (s *AIService) callLLM(ctx context.Context, p *config.LLMProviderConfig, system, prompt string) (string, error) {
	switch p.Provider {
	case "anthropic":
		return s.callAnthropic(ctx, p, system, prompt)
	case "ollama":
		return s.callOllama(ctx, p, system, prompt)
	case "gemini":
		return s.callGemini(ctx, p, system, prompt)
	case "azure":
		return s.callOpenAI(ctx, openai.DefaultAzureConfig(p.APIKey, p.BaseURL), p, system, prompt)
	default:
		// openai and other OpenAI-compatible services
		cfg := openai.DefaultConfig(p.APIKey)
		if p.BaseURL != "" {
			cfg.BaseURL = p.BaseURL
		}
		return s.callOpenAI(ctx, cfg, p, system, prompt)
	}
}

func (s *AIService) callOpenAI(ctx context.Context, clientConfig openai.ClientConfig, p *config.LLMProviderConfig, system, prompt string) (string, error) {
	client := openai.NewClientWithConfig(clientConfig)

	temperature := float32(0.2)
	if p.Temperature > 0 {
		temperature = float32(p.Temperature)
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.Model, // deployment name for azure
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s API error: %w", p.Provider, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from %s", p.Provider)
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *AIService) callAnthropic(ctx context.Context, p *config.LLMProviderConfig, system, prompt string) (string, error) {
	opts := []option.RequestOption{option.WithAPIKey(p.APIKey)}
	if p.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	maxTokens := int64(p.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 1024
	}
	model := p.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if p.Temperature > 0 {
		params.Temperature = anthropic.Float(p.Temperature)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	return content.String(), nil
}

func (s *AIService) callOllama(ctx context.Context, p *config.LLMProviderConfig, system, prompt string) (string, error) {
	baseURL := p.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid Ollama base URL: %w", err)
	}
	client := api.NewClient(u, http.DefaultClient)

	model := p.Model
	if model == "" {
		model = "llama3"
	}

	var content strings.Builder
	err = client.Chat(ctx, &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Format: json.RawMessage(`"json"`),
		Options: map[string]interface{}{
			"temperature": p.Temperature,
		},
	}, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("Ollama API error: %w", err)
	}
	return content.String(), nil
}

func (s *AIService) callGemini(ctx context.Context, p *config.LLMProviderConfig, system, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("Gemini client error: %w", err)
	}

	model := p.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}
	if p.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(p.Temperature))
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}
	return resp.Text(), nil
}

// extractJSONObject returns the first balanced {...} object in content,
// skipping code fences and any prose around it.
func extractJSONObject(content string) (string, error) {
	start := strings.IndexByte(content, '{')
	for start >= 0 {
		depth := 0
		inString, escaped := false, false
		for i := start; i < len(content); i++ {
			c := content[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					candidate := content[start : i+1]
					if json.Valid([]byte(candidate)) {
						return candidate, nil
					}
					i = len(content)
				}
			}
		}
		next := strings.IndexByte(content[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", errors.New("no JSON object in LLM reply")
}

// extractScore falls back to reading a 0-100 score from free text.
func extractScore(content string) (float64, bool) {
	for _, re := range scorePatterns {
		matches := re.FindStringSubmatch(content)
		if len(matches) < 2 {
			continue
		}
		if score, err := strconv.ParseFloat(matches[1], 64); err == nil && score >= 0 && score <= 100 {
			return score, true
		}
	}
	return 0, false
}

// LLMOracle answers the two oracle questions the coverage workflow asks:
// is this chat message a time-off notice, and how well does a member fit a task.
type LLMOracle struct {
	ai  *AIService
	loc *time.Location
}

func NewLLMOracle(ai *AIService, loc *time.Location) *LLMOracle {
	if loc == nil {
		loc = time.UTC
	}
	return &LLMOracle{ai: ai, loc: loc}
}

const classifySystemPrompt = `You are an HR assistant that reads team chat messages and extracts time-off information.
You are given the sender's display name, the exact date and time the message was sent, and the message text.
Use the sent date to resolve partial or relative dates to full dates including the year
(e.g. "2/21" sent in 2026 becomes "2026-02-21", "next Monday" sent on 2026-02-21 becomes "2026-02-23").
Decide whether the message announces or requests time off. If it does, extract who is taking time off
(use the sender's display name when the message is in first person or no other name is mentioned),
the start and end dates as YYYY-MM-DD, the reason if stated, and who will cover their work if mentioned.
Always return plain-text names, never chat user ids or <@...> tokens.
Emails carry a subject line; an out-of-office auto-reply counts as time off, with its return date as the end.
Reply with a single JSON object and nothing else:
{"is_time_off_request": bool, "person_name": string|null, "start_date": string|null, "end_date": string|null,
 "reason": string|null, "coverage_person": string|null, "notes": string|null}
If the message is not about time off, set is_time_off_request to false and every other field to null.`

const scoreSystemPrompt = `You are a technical talent-matching system.
Given a task and a team member's profile, score how well the member's skills match the task on a scale of 0-100.
Consider direct skill overlap with the task domain first, then seniority and role relevance.
Be precise, consistent and critical; do not inflate scores.
Reply with a single JSON object and nothing else:
{"skill_match_pct": integer 0-100, "reasoning": "one concise sentence"}`

// ClassifyTimeOff implements TimeOffClassifier.
func (o *LLMOracle) ClassifyTimeOff(ctx context.Context, msg ChatMessage) (*TimeOffDetails, error) {
	sent := msg.SentAt
	if sent.IsZero() {
		sent = time.Now()
	}
	sent = sent.In(o.loc)
	prompt := fmt.Sprintf("Sender display name: %s\nMessage sent at    : %s (year: %d)\n\nMessage:\n%s",
		msg.SenderName, sent.Format("Monday, January 2, 2006 15:04 MST"), sent.Year(), msg.Text)
	if msg.Type == MessageTypeEmail {
		prompt = fmt.Sprintf("Sender name : %s\nSender email: %s\nEmail sent at: %s (year: %d)\n\nEmail:\n%s",
			msg.SenderName, msg.SenderID, sent.Format("Monday, January 2, 2006 15:04 MST"), sent.Year(), msg.Text)
	}

	reply, err := o.ai.Complete(ctx, "classify", msg.ID, classifySystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	return parseTimeOffReply(reply)
}

func parseTimeOffReply(reply string) (*TimeOffDetails, error) {
	raw, err := extractJSONObject(reply)
	if err != nil {
		return nil, err
	}
	var details TimeOffDetails
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return nil, fmt.Errorf("decode time-off reply: %w", err)
	}
	return &details, nil
}

// ScoreCandidate implements CandidateScorer.
func (o *LLMOracle) ScoreCandidate(ctx context.Context, task *models.Task, m *models.Member) (*CandidateScore, error) {
	skills := strings.Join(m.Skills, ", ")
	if skills == "" {
		skills = "none listed"
	}
	prompt := fmt.Sprintf("Task title    : %s\nProject       : %s\nTask priority : %s\nTask status   : %s\n\n"+
		"Candidate     : %s (%s, %s team)\nSkills        : %s\n\n"+
		"Score how well this candidate's skills match the task (0-100).",
		task.Title, task.ProjectName, task.Priority, task.Status,
		m.Name, m.Role, m.Team, skills)

	reply, err := o.ai.Complete(ctx, "score", task.ID+"/"+m.ID, scoreSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	return parseScoreReply(reply)
}

func parseScoreReply(reply string) (*CandidateScore, error) {
	var out struct {
		SkillMatchPct *float64 `json:"skill_match_pct"`
		Score         *float64 `json:"score"`
		Reasoning     string   `json:"reasoning"`
		Reason        string   `json:"reason"`
	}

	if raw, err := extractJSONObject(reply); err == nil {
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("decode score reply: %w", err)
		}
	}

	score := out.SkillMatchPct
	if score == nil {
		score = out.Score
	}
	if score == nil {
		v, ok := extractScore(reply)
		if !ok {
			return nil, errors.New("no skill score in LLM reply")
		}
		score = &v
	}
	reasoning := out.Reasoning
	if reasoning == "" {
		reasoning = out.Reason
	}
	return &CandidateScore{
		SkillMatchPct: clampPct(*score),
		Reasoning:     strings.TrimSpace(reasoning),
	}, nil
}
