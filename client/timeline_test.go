package client

import (
	"chat-bridge/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeline_MergeIsIdempotent(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("u1")

	first := domain.NewUserMessage("CHAT-042", "u1", "hello")
	second := domain.NewReplyMessage("CHAT-042", "u1", "hi there")
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	req.Equal(2, timeline.Merge([]domain.Message{first, second}))
	req.Equal(0, timeline.Merge([]domain.Message{first, second}))
	req.Equal(2, timeline.Len())
}

func TestTimeline_MergeRestoresChronology(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("u1")

	at := time.Now().UTC()
	oldest := domain.NewSystemMessage("CHAT-042", "first")
	oldest.CreatedAt = at
	newest := domain.NewUserMessage("CHAT-042", "u1", "third")
	newest.CreatedAt = at.Add(2 * time.Second)
	middle := domain.NewReplyMessage("CHAT-042", "u1", "second")
	middle.CreatedAt = at.Add(time.Second)

	// The poll observes the late write only on the second cycle.
	timeline.Merge([]domain.Message{oldest, newest})
	timeline.Merge([]domain.Message{oldest, middle, newest})

	req.Equal(3, timeline.Len())
	req.Equal("first", timeline.Messages[0].Content)
	req.Equal("second", timeline.Messages[1].Content)
	req.Equal("third", timeline.Messages[2].Content)

	latest, ok := timeline.Latest()
	req.True(ok)
	req.Equal("third", latest.Content)
}

func TestTimeline_MergeRefreshesKnownMessages(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("u1")

	message := domain.NewUserMessage("CHAT-042", "u1", "draft")
	timeline.Merge([]domain.Message{message})

	message.Content = "final"
	req.Equal(0, timeline.Merge([]domain.Message{message}))
	req.Equal("final", timeline.Messages[0].Content)
}

func TestTimeline_LatestOnEmpty(t *testing.T) {
	_, ok := NewTimeline("u1").Latest()
	require.False(t, ok)
}
