package chat

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anantara-app/backend/internal/ai"
)

// ErrDailyLimitReached signals the user exhausted the plan's daily
// message allowance.
var ErrDailyLimitReached = errors.New("chat: daily message limit reached")

// Usage tracks per-user message counters. Implemented by the redis
// store in production and by fakes in tests.
type Usage interface {
	IncrToday(ctx context.Context, userID uint64) error
	UsedToday(ctx context.Context, userID uint64) (int64, error)
}

// PromptSource resolves admin-managed prompt overrides by name.
type PromptSource interface {
	GetPrompt(ctx context.Context, name string) (string, bool)
}

type Service struct {
	repo              *Repo
	registry          *ai.Registry
	provider          string
	model             string
	usage             Usage
	prompts           PromptSource
	contextWindowSize int
}

func NewService(repo *Repo, registry *ai.Registry, provider, model string, usage Usage, prompts PromptSource, contextWindowSize int) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = 10
	}
	return &Service{
		repo:              repo,
		registry:          registry,
		provider:          provider,
		model:             model,
		usage:             usage,
		prompts:           prompts,
		contextWindowSize: contextWindowSize,
	}
}

func (s *Service) CreateSession(ctx context.Context, userID uint64) (*Session, error) {
	session := &Session{
		SessionID: uuid.NewString(),
		UserID:    userID,
		Title:     "Nova conversa",
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) ListSessions(ctx context.Context, userID uint64) ([]Session, error) {
	return s.repo.ListSessions(ctx, userID)
}

// GetSession enforces ownership; sessions of other users surface as not
// found, never as forbidden.
func (s *Service) GetSession(ctx context.Context, userID uint64, sessionID string) (*Session, error) {
	sess, err := s.repo.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return sess, nil
}

func (s *Service) ListMessages(ctx context.Context, userID uint64, sessionID string) ([]Message, error) {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, userID, sessionID)
}

func (s *Service) systemPrompt(ctx context.Context, name, builtin string) string {
	if s.prompts != nil {
		if p, ok := s.prompts.GetPrompt(ctx, name); ok && strings.TrimSpace(p) != "" {
			return p
		}
	}
	return builtin
}

func (s *Service) buildContext(ctx context.Context, userID uint64, sessionID, sysPrompt string) ([]ai.Message, error) {
	recentDesc, err := s.repo.ListRecentMessagesDesc(ctx, userID, sessionID, s.contextWindowSize)
	if err != nil {
		return nil, err
	}

	out := make([]ai.Message, 0, len(recentDesc)+1)
	out = append(out, ai.Message{Role: "system", Content: sysPrompt})
	// reverse to ASC (oldest -> newest)
	for i := len(recentDesc) - 1; i >= 0; i-- {
		m := recentDesc[i]
		role := "assistant"
		if m.IsUser {
			role = "user"
		}
		out = append(out, ai.Message{Role: role, Content: m.Content})
	}
	return out, nil
}

// SendMessage persists the user's message, generates the therapist
// reply (canned fallback when the provider fails) and persists it.
// dailyLimit < 0 means unlimited.
func (s *Service) SendMessage(ctx context.Context, userID uint64, sessionID, content string, dailyLimit int) (reply string, assistantMsgID uint64, err error) {
	sess, err := s.GetSession(ctx, userID, sessionID)
	if err != nil {
		return "", 0, err
	}

	if dailyLimit >= 0 && s.usage != nil {
		used, err := s.usage.UsedToday(ctx, userID)
		if err != nil {
			// counters fail open: availability beats enforcement
			log.Printf("chat: usage lookup failed user_id=%d err=%v", userID, err)
		} else if used >= int64(dailyLimit) {
			return "", 0, ErrDailyLimitReached
		}
	}

	userMsg := &Message{
		SessionID: sessionID,
		UserID:    userID,
		IsUser:    true,
		Content:   content,
	}
	if err := s.repo.InsertMessage(ctx, userMsg); err != nil {
		return "", 0, err
	}

	// first message names the conversation
	if sess.Title == "" || sess.Title == "Nova conversa" {
		if err := s.repo.UpdateSessionTitle(ctx, sessionID, titleFromMessage(content)); err != nil {
			log.Printf("chat: title update failed session_id=%s err=%v", sessionID, err)
		}
	}

	reply = s.generate(ctx, userID, sessionID)

	assistantMsg := &Message{
		SessionID: sessionID,
		UserID:    userID,
		IsUser:    false,
		Content:   reply,
	}
	if err := s.repo.InsertMessage(ctx, assistantMsg); err != nil {
		return "", 0, err
	}

	if s.usage != nil {
		if err := s.usage.IncrToday(ctx, userID); err != nil {
			log.Printf("chat: usage incr failed user_id=%d err=%v", userID, err)
		}
	}

	return reply, assistantMsg.ID, nil
}

func titleFromMessage(content string) string {
	title := strings.TrimSpace(content)
	if r := []rune(title); len(r) > 48 {
		title = strings.TrimSpace(string(r[:48])) + "…"
	}
	return title
}

// generate calls the configured provider with the session context and
// falls back to the canned reply on any failure.
func (s *Service) generate(ctx context.Context, userID uint64, sessionID string) string {
	provider, err := s.registry.Get(ctx, s.provider, s.model)
	if err != nil {
		log.Printf("chat: provider unavailable name=%s err=%v", s.provider, err)
		return FallbackReply
	}

	msgs, err := s.buildContext(ctx, userID, sessionID, s.systemPrompt(ctx, "system", defaultSystemPrompt))
	if err != nil {
		log.Printf("chat: context build failed session_id=%s err=%v", sessionID, err)
		return FallbackReply
	}

	reply, err := provider.Chat(ctx, msgs)
	if err != nil || strings.TrimSpace(reply) == "" {
		log.Printf("chat: provider call failed session_id=%s err=%v", sessionID, err)
		return FallbackReply
	}
	return reply
}

// Summarize generates and persists a short summary for the session.
func (s *Service) Summarize(ctx context.Context, userID uint64, sessionID string) (string, error) {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return "", err
	}

	summary := fallbackSummary
	if provider, err := s.registry.Get(ctx, s.provider, s.model); err == nil {
		msgs, err := s.buildContext(ctx, userID, sessionID, s.systemPrompt(ctx, "summary", defaultSummaryPrompt))
		if err == nil {
			if out, err := provider.Chat(ctx, msgs); err == nil && strings.TrimSpace(out) != "" {
				summary = strings.TrimSpace(out)
			} else if err != nil {
				log.Printf("chat: summary generation failed session_id=%s err=%v", sessionID, err)
			}
		}
	}

	if err := s.repo.UpdateSessionSummary(ctx, sessionID, summary); err != nil {
		return "", err
	}
	return summary, nil
}

// Suggestions proposes short follow-up messages for the user.
func (s *Service) Suggestions(ctx context.Context, userID uint64, sessionID string) ([]string, error) {
	if sessionID != "" {
		if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
			return nil, err
		}
	}

	provider, err := s.registry.Get(ctx, s.provider, s.model)
	if err != nil {
		return fallbackSuggestions, nil
	}

	sysPrompt := s.systemPrompt(ctx, "suggestions", defaultSuggestionsPrompt)
	msgs := []ai.Message{{Role: "system", Content: sysPrompt}}
	if sessionID != "" {
		if built, err := s.buildContext(ctx, userID, sessionID, sysPrompt); err == nil {
			msgs = built
		}
	}

	out, err := provider.Chat(ctx, msgs)
	if err != nil || strings.TrimSpace(out) == "" {
		return fallbackSuggestions, nil
	}

	var suggestions []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-•*0123456789. "))
		if line != "" {
			suggestions = append(suggestions, line)
		}
		if len(suggestions) == 5 {
			break
		}
	}
	if len(suggestions) == 0 {
		return fallbackSuggestions, nil
	}
	return suggestions, nil
}
