package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeratorCensor(t *testing.T) {
	m, err := NewModerator([]string{"darn", "heck"}, '*')
	require.NoError(t, err)

	tests := []struct {
		in, want string
		hit      bool
	}{
		{"good game", "good game", false},
		{"oh darn it", "oh **** it", true},
		{"D4RN that", "**** that", true},
		{"what the h.e.c.k", "what the *******", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, hit := m.Censor(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.hit, hit)
		})
	}
}

func TestModeratorWithoutWords(t *testing.T) {
	m, err := NewModerator(nil, '*')
	require.NoError(t, err)
	got, hit := m.Censor("anything")
	assert.Equal(t, "anything", got)
	assert.False(t, hit)
}

func TestServicePost(t *testing.T) {
	mod, err := NewModerator([]string{"darn"}, '#')
	require.NoError(t, err)
	s := NewService(Options{Moderator: mod, MaxLength: 10, HistorySize: 2})
	ctx := context.Background()
	alice := Author{ID: "alice", Name: "Alice"}

	_, err = s.Post(ctx, "R1", alice, "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)
	_, err = s.Post(ctx, "R1", alice, strings.Repeat("x", 11))
	require.ErrorIs(t, err, ErrTooLong)

	msg, err := s.Post(ctx, "R1", alice, " darn ")
	require.NoError(t, err)
	assert.Equal(t, "####", msg.Text)
	assert.True(t, msg.Censored)
	assert.NotEmpty(t, msg.ID)

	for i := range 3 {
		_, err := s.Post(ctx, "R1", alice, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}
	recent, err := s.Recent(ctx, "R1")
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "m1", recent[0].Text)
	assert.Equal(t, "m2", recent[1].Text)

	other, err := s.Recent(ctx, "R2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRedisHistory(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := NewRedisHistory(rdb, 3)
	ctx := context.Background()
	for i := range 5 {
		require.NoError(t, h.Append(ctx, Message{Room: "R1", Text: fmt.Sprintf("m%d", i)}))
	}
	got, err := h.Recent(ctx, "R1", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"m2", "m3", "m4"}, []string{got[0].Text, got[1].Text, got[2].Text})
	assert.Positive(t, mr.TTL(chatKey("R1")))
}
