// Package client holds the participant-side view of a room: a local
// timeline reconciled against the server by polling, and the watcher
// worker that drives the poll loop. It never writes to the store
// directly; everything goes through the gateway.
package client

import (
	"chat-bridge/domain"
	"sort"
)

// Timeline is the local projection of the visible history of one room.
// Merges are idempotent: a message already seen is updated in place
// rather than appended, so repeated polls never duplicate entries.
type Timeline struct {
	Owner    string
	Messages []domain.Message

	seen map[string]int // message ID -> index in Messages
}

func NewTimeline(owner string) *Timeline {
	return &Timeline{
		Owner: owner,
		seen:  make(map[string]int),
	}
}

// Merge folds a polled snapshot into the timeline and reports how many
// messages were new. Known messages have their content refreshed in
// place; new ones are appended and the timeline re-sorted by creation
// time, since polls can observe late writes out of order.
func (t *Timeline) Merge(snapshot []domain.Message) int {
	added := 0
	for _, m := range snapshot {
		id := m.ID.String()
		if i, ok := t.seen[id]; ok {
			t.Messages[i] = m
			continue
		}
		t.seen[id] = len(t.Messages)
		t.Messages = append(t.Messages, m)
		added++
	}
	if added > 0 {
		sort.SliceStable(t.Messages, func(i, j int) bool {
			return t.Messages[i].CreatedAt.Before(t.Messages[j].CreatedAt)
		})
		for i, m := range t.Messages {
			t.seen[m.ID.String()] = i
		}
	}
	return added
}

// Len reports the number of messages in the timeline.
func (t *Timeline) Len() int {
	return len(t.Messages)
}

// Latest returns the most recent message, if any.
func (t *Timeline) Latest() (domain.Message, bool) {
	if len(t.Messages) == 0 {
		return domain.Message{}, false
	}
	return t.Messages[len(t.Messages)-1], true
}
