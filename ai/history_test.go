package ai

import (
	"chat-bridge/domain"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func historyFixture(n int) []domain.Message {
	messages := make([]domain.Message, 0, n*2)
	for i := 0; i < n; i++ {
		messages = append(messages,
			domain.NewUserMessage("CHAT-042", "u1", fmt.Sprintf("from u1 #%d", i)),
			domain.NewReplyMessage("CHAT-042", "u1", fmt.Sprintf("reply #%d", i)),
		)
	}
	return messages
}

func baseRequest(messages []domain.Message) HistoryRequest {
	return HistoryRequest{
		Messages:    messages,
		UserID:      "u1",
		CurrentRole: domain.RoleChild,
		OtherRole:   domain.RoleParent,
		Model:       domain.ModelNarrative,
		Window:      40,
	}
}

func TestBuildTurns_SystemTurnFirst(t *testing.T) {
	req := require.New(t)
	turns := BuildTurns(baseRequest(historyFixture(2)))

	req.NotEmpty(turns)
	req.Equal("system", turns[0].Role)
	req.Contains(turns[0].Content, StyleFor(domain.ModelNarrative).SystemPrompt)
	req.Contains(turns[0].Content, "the child")
	req.Contains(turns[0].Content, "u1")
	req.Contains(turns[0].Content, "Never address the parent")
}

func TestBuildTurns_LabelsAndBackgroundContext(t *testing.T) {
	req := require.New(t)
	messages := []domain.Message{
		domain.NewUserMessage("CHAT-042", "u1", "mine"),
		domain.NewUserMessage("CHAT-042", "u2", "theirs"),
		domain.NewReplyMessage("CHAT-042", "u1", "for me"),
		domain.NewReplyMessage("CHAT-042", "u2", "for them"),
	}
	turns := BuildTurns(baseRequest(messages))

	req.Len(turns, 4)
	req.Equal("user", turns[1].Role)
	req.Equal("[message from the child] mine", turns[1].Content)
	req.Equal("user", turns[2].Role)
	req.Equal("[message from the parent, background context only] theirs", turns[2].Content)
	req.Equal("assistant", turns[3].Role)
	req.Equal("for me", turns[3].Content)
}

func TestBuildTurns_WindowKeepsMostRecent(t *testing.T) {
	req := require.New(t)
	request := baseRequest(historyFixture(30)) // 60 messages
	request.Window = 10
	turns := BuildTurns(request)

	req.Len(turns, 11) // system + 10
	last := turns[len(turns)-1]
	req.Equal("assistant", last.Role)
	req.Equal("reply #29", last.Content)
	for _, turn := range turns[1:] {
		req.NotContains(turn.Content, "#24") // oldest surviving message is #25
	}
}

func TestBuildTurns_IdentityReconfirmRounds(t *testing.T) {
	req := require.New(t)

	// Rounds 1, 4, 7... carry the reconfirmation; the rest do not.
	for rounds, want := range map[int]bool{1: true, 2: false, 3: false, 4: true, 7: true} {
		messages := historyFixture(rounds - 1)
		messages = append(messages, domain.NewUserMessage("CHAT-042", "u1", "latest"))
		turns := BuildTurns(baseRequest(messages))
		got := strings.Contains(turns[0].Content, "Identity check")
		req.Equal(want, got, "rounds=%d", rounds)
		if want {
			req.Contains(turns[0].Content, fmt.Sprintf("round %d", rounds))
		}
	}
}

func TestBuildTurns_LanguageHintFollowsLatestSubmission(t *testing.T) {
	req := require.New(t)
	messages := []domain.Message{
		domain.NewUserMessage("CHAT-042", "u1",
			"Мне кажется, мы совсем перестали понимать друг друга в последнее время"),
	}
	turns := BuildTurns(baseRequest(messages))
	req.Contains(turns[0].Content, "Reply in Russian.")

	// No submission yet means no hint at all.
	empty := baseRequest(nil)
	req.NotContains(BuildTurns(empty)[0].Content, "Reply in")
}

func TestScrubTags(t *testing.T) {
	req := require.New(t)
	req.Equal("hello there", ScrubTags("(speaking to the child) hello there"))
	req.Equal("hello there", ScrubTags("[message from the parent] hello there"))
	req.Equal("plain reply", ScrubTags("plain reply"))
}

func TestStyleFor_UnknownModelDefaultsToNarrative(t *testing.T) {
	req := require.New(t)
	req.Equal(styles[domain.ModelNarrative], StyleFor(domain.ConversationModel("unknown")))
	req.Equal(styles[domain.ModelArgumentative].Fallback, FallbackReply(domain.ModelArgumentative))
}

func TestRoleLabel(t *testing.T) {
	req := require.New(t)
	req.Equal("the parent", RoleLabel(domain.RoleParent))
	req.Equal("the child", RoleLabel(domain.RoleChild))
	req.Equal("the user", RoleLabel(domain.Role("")))
}
