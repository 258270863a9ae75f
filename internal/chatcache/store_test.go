package chatcache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucentai/lucent-client/internal/message"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache", "chats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	chat := CachedChat{
		ChatID: "chat-1",
		Messages: []message.Message{
			{ID: "m1", Role: message.RoleUser, Parts: []message.Part{message.TextPart("hi")}},
			{ID: "m2", Role: message.RoleAssistant, Parts: []message.Part{
				message.ReasoningPart("thinking"),
				message.TextPart("hello"),
			}},
		},
		Streaming: true,
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.UpsertCachedChat(ctx, chat))

	got, err := s.GetCachedChat(ctx, "chat-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Streaming)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "hello", got.Messages[1].Text())
	assert.Equal(t, "thinking", got.Messages[1].Reasoning())
}

func TestMissReturnsNil(t *testing.T) {
	s := openTestStore(t)

	got, err := s.GetCachedChat(context.Background(), "never-cached")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertCachedChat(ctx, CachedChat{
		ChatID:    "chat-1",
		Messages:  []message.Message{{ID: "m1", Role: message.RoleUser}},
		Streaming: true,
	}))
	require.NoError(t, s.UpsertCachedChat(ctx, CachedChat{
		ChatID: "chat-1",
		Messages: []message.Message{
			{ID: "m1", Role: message.RoleUser},
			{ID: "m2", Role: message.RoleAssistant},
		},
		Streaming: false,
	}))

	got, err := s.GetCachedChat(ctx, "chat-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Streaming)
	assert.Len(t, got.Messages, 2)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertCachedChat(ctx, CachedChat{ChatID: "chat-1"}))
	require.NoError(t, s.DeleteCachedChat(ctx, "chat-1"))

	got, err := s.GetCachedChat(ctx, "chat-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting an absent chat is not an error.
	require.NoError(t, s.DeleteCachedChat(ctx, "chat-1"))
}

func TestChatsAreIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertCachedChat(ctx, CachedChat{
		ChatID:   "chat-1",
		Messages: []message.Message{{ID: "a"}},
	}))
	require.NoError(t, s.UpsertCachedChat(ctx, CachedChat{
		ChatID:   "chat-2",
		Messages: []message.Message{{ID: "b"}, {ID: "c"}},
	}))

	one, err := s.GetCachedChat(ctx, "chat-1")
	require.NoError(t, err)
	two, err := s.GetCachedChat(ctx, "chat-2")
	require.NoError(t, err)

	assert.Len(t, one.Messages, 1)
	assert.Len(t, two.Messages, 2)
}
