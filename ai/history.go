package ai

import (
	"chat-bridge/contract"
	"chat-bridge/domain"
	"fmt"

	"github.com/abadojack/whatlanggo"
)

// identityReconfirmEvery re-asserts who the responder is talking to every
// N rounds; long histories make models drift toward addressing the wrong
// party.
const identityReconfirmEvery = 3

// HistoryRequest describes one generation request to be built into
// role-tagged turns.
type HistoryRequest struct {
	Messages    []domain.Message // full room history, ascending
	UserID      string           // the member the reply is addressed to
	CurrentRole domain.Role
	OtherRole   domain.Role
	Model       domain.ConversationModel
	Window      int // most recent N room messages considered
}

// BuildTurns assembles the chat-completion history for one request. The
// requester's own submissions become user turns, the other party's
// submissions are included as labelled background context, and only
// replies addressed to the requester become assistant turns. The window
// bounds the request size; callers retry with a smaller window when the
// collaborator rejects the request as too large.
func BuildTurns(req HistoryRequest) []contract.Turn {
	currentLabel := RoleLabel(req.CurrentRole)
	otherLabel := RoleLabel(req.OtherRole)

	system := StyleFor(req.Model).SystemPrompt + identityContext(currentLabel, otherLabel, req.UserID)

	round := currentRound(req.Messages, req.UserID)
	if (round-1)%identityReconfirmEvery == 0 {
		system += fmt.Sprintf(
			"\n\nIdentity check, round %d: you are talking with %s. "+
				"\"You\" refers to %s and nobody else.",
			round, currentLabel, currentLabel)
	}
	if hint := languageHint(latestUserText(req.Messages, req.UserID)); hint != "" {
		system += "\n\n" + hint
	}

	turns := []contract.Turn{{Role: "system", Content: system}}

	recent := req.Messages
	if req.Window > 0 && len(recent) > req.Window {
		recent = recent[len(recent)-req.Window:]
	}
	for _, m := range recent {
		switch {
		case m.Role == domain.MessageRoleUser && m.SenderID == req.UserID:
			turns = append(turns, contract.Turn{
				Role:    "user",
				Content: fmt.Sprintf("[message from %s] %s", currentLabel, m.Content),
			})
		case m.Role == domain.MessageRoleUser:
			turns = append(turns, contract.Turn{
				Role:    "user",
				Content: fmt.Sprintf("[message from %s, background context only] %s", otherLabel, m.Content),
			})
		case m.Role == domain.MessageRoleAI && m.VisibleTo(req.UserID):
			turns = append(turns, contract.Turn{Role: "assistant", Content: m.Content})
		}
	}
	return turns
}

// currentRound is the number of submissions the requester has made,
// counting the one being answered.
func currentRound(messages []domain.Message, userID string) int {
	round := 0
	for _, m := range messages {
		if m.Role == domain.MessageRoleUser && m.SenderID == userID {
			round++
		}
	}
	if round == 0 {
		round = 1
	}
	return round
}

func latestUserText(messages []domain.Message, userID string) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.MessageRoleUser && messages[i].SenderID == userID {
			return messages[i].Content
		}
	}
	return ""
}

// languageHint asks the responder to answer in the language the
// requester writes in. Detection below the confidence floor yields no
// hint rather than a wrong one.
func languageHint(text string) string {
	if text == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return fmt.Sprintf("Reply in %s.", info.Lang.String())
}
