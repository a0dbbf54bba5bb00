// Package ai holds the generation collaborator boundary: the prompt
// styles, the history window builder, and the HTTP client for a
// chat-completion endpoint. The coordination core treats all of this as
// an opaque request/response service.
package ai

import (
	"chat-bridge/domain"
	"fmt"
	"regexp"
	"strings"
)

// Style bundles the system prompt and the fixed fallback reply of one
// conversation model.
type Style struct {
	SystemPrompt string
	Fallback     string
}

var styles = map[domain.ConversationModel]Style{
	domain.ModelNarrative: {
		SystemPrompt: "You are a calm family mediator who explains things through " +
			"stories and lived experiences. Draw on relatable anecdotes to help the " +
			"person you are talking to see the conflict from a new angle. Stay warm, " +
			"concrete, and never take sides.",
		Fallback: "I hear you. Let me share something: a friend of mine once faced a " +
			"very similar standoff at home, and what finally helped was not winning " +
			"the argument but understanding what the other person was afraid of. " +
			"Could you tell me a bit more about the last time this came up?",
	},
	domain.ModelArgumentative: {
		SystemPrompt: "You are a precise family mediator who reasons through logic " +
			"and evidence. Break the conflict into claims, examine what supports each " +
			"one, and point out where the two sides actually agree. Stay respectful " +
			"and never take sides.",
		Fallback: "Let's look at this step by step. There are usually two or three " +
			"distinct claims tangled together in a conflict like this, and they rarely " +
			"all disagree with each other. Could you spell out what you think the core " +
			"disagreement is, in one sentence?",
	},
}

// StyleFor returns the prompt style of a model, defaulting to narrative
// for unknown tags rather than failing the conversation.
func StyleFor(model domain.ConversationModel) Style {
	if style, ok := styles[model]; ok {
		return style
	}
	return styles[domain.ModelNarrative]
}

// FallbackReply is the fixed response used when the collaborator is
// unavailable. The conversation must never stall on a generation failure.
func FallbackReply(model domain.ConversationModel) string {
	return StyleFor(model).Fallback
}

// RoleLabel names a member's declared position for prompt text.
func RoleLabel(role domain.Role) string {
	switch role {
	case domain.RoleParent:
		return "the parent"
	case domain.RoleChild:
		return "the child"
	default:
		return "the user"
	}
}

var tagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\([^)]*\)\s*`),
	regexp.MustCompile(`\[message from[^\]]*\]\s*`),
	regexp.MustCompile(`\(speaking to[^)]*\)\s*`),
	regexp.MustCompile(`\(the parent\)\s*`),
	regexp.MustCompile(`\(the child\)\s*`),
}

// ScrubTags removes the identity annotations the prompt scaffolding uses
// internally, so they never leak into what a participant reads.
func ScrubTags(reply string) string {
	for _, p := range tagPatterns {
		reply = p.ReplaceAllString(reply, "")
	}
	return strings.TrimSpace(reply)
}

func identityContext(currentLabel, otherLabel, userID string) string {
	return fmt.Sprintf(
		"\n\nImportant:\n"+
			"- You are talking with %s (user id %s).\n"+
			"- The other party is %s; their messages appear only as background context.\n"+
			"- Whenever you say \"you\", it must refer to %s.\n"+
			"- Never address %s directly.",
		currentLabel, userID, otherLabel, currentLabel, otherLabel)
}
