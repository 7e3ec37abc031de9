package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/obslog"
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

const (
	ErrEmptyMessage staticErr = "empty_message"
	ErrTooLong      staticErr = "message_too_long"
)

type Message struct {
	ID       string    `json:"id"`
	Room     string    `json:"room"`
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	Text     string    `json:"text"`
	Censored bool      `json:"censored,omitempty"`
	SentAt   time.Time `json:"sentAt"`
}

type Author struct {
	ID   string
	Name string
}

// Service validates, moderates and records chat messages. Delivery is the caller's job.
type Service struct {
	mod     *Moderator
	history History
	maxLen  int
	size    int
	now     func() time.Time
}

type Options struct {
	Moderator   *Moderator
	History     History
	MaxLength   int
	HistorySize int
}

func NewService(opts Options) *Service {
	s := &Service{
		mod:     opts.Moderator,
		history: opts.History,
		maxLen:  opts.MaxLength,
		size:    opts.HistorySize,
		now:     time.Now,
	}
	if s.maxLen <= 0 {
		s.maxLen = 500
	}
	if s.history == nil {
		s.history = NewMemoryHistory(max(s.size, 1))
	}
	return s
}

// Post builds the message that should be broadcast to room. History failures are
// logged and do not block delivery.
func (s *Service) Post(ctx context.Context, room string, from Author, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > s.maxLen {
		return Message{}, ErrTooLong
	}
	clean, censored := s.mod.Censor(text)
	msg := Message{
		ID:       uuid.NewString(),
		Room:     room,
		UserID:   from.ID,
		UserName: from.Name,
		Text:     clean,
		Censored: censored,
		SentAt:   s.now().UTC(),
	}
	if s.size > 0 {
		if err := s.history.Append(ctx, msg); err != nil {
			obslog.L().Warn("chat_history_append_failed", zap.String("room_id", room), zap.Error(err))
		}
	}
	return msg, nil
}

// Recent returns the retained history for room, oldest first.
func (s *Service) Recent(ctx context.Context, room string) ([]Message, error) {
	if s.size <= 0 {
		return nil, nil
	}
	return s.history.Recent(ctx, room, s.size)
}
