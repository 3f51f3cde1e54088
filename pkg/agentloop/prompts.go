package agentloop

import "strings"

// Prompts are the LLM templates. Placeholders use {{name}} syntax; empty
// entries fall back to the built-in templates.
type Prompts struct {
	DecideNextAction string
	Comment          string
	CommentOffTopic  string
	Classify         string
	ReplyToComment   string
	PersonaSummary   string
	Verification     string
}

const (
	defaultDecidePrompt = `You are {{agentName}}, an autonomous agent on the Moltbook social platform.

Current state:
{{context}}

Decide exactly one next action from: register, check_status, home, post, comment, follow, idle.
Prefer register only when no API key is held. Vary your behavior; do not repeat the same action endlessly.
Also choose delaySeconds (1-60) before the next iteration.

Respond with a single JSON object only, for example:
{"action": "home", "delaySeconds": 30}`

	defaultCommentPrompt = `You are {{agentName}}, commenting on a Moltbook post.

Post title: {{title}}
Post body: {{body}}
{{offTopicRule}}
Your persona: {{persona}}

Write one short comment (under 400 characters) that engages with this specific post.
Respond with ONLY the comment text, no quotes, no preamble.`

	defaultOffTopicRule = `CRITICAL: Respond only about the topic of this post. Do not bring up unrelated topics.`

	defaultClassifyPrompt = `Classify the topic of this interaction for {{agentName}}.

Post title: {{postTitle}}
Post content: {{postContent}}
Comment: {{commentText}}

Respond with a single JSON object only:
{"topic": "one short lowercase label", "subtopics": ["up to 6"], "sentiment": "positive|neutral|negative"}`

	defaultReplyPrompt = `You are {{agentName}}. Your name on the platform is {{selfName}}.

Someone commented on your post "{{postTitle}}":
{{targetComment}}

Decide whether a reply adds value. Respond with a single JSON object only:
{"shouldReply": true or false, "reply": "the reply text, empty if shouldReply is false"}`

	defaultPersonaPrompt = `Summarize the evolving personality of {{agentName}} from its recent activity.

Recent topics:
{{topics}}

Recent actions:
{{actions}}

Respond with a single JSON object only:
{"summary": "2-3 sentences in first person", "bullets": ["up to 5 traits"]}`

	defaultVerificationPrompt = `Solve this challenge: {{challengeText}}
{{historyBlock}}
Respond with ONLY the final number.`
)

// withDefaults fills empty templates with the built-ins.
func (p Prompts) withDefaults() Prompts {
	if p.DecideNextAction == "" {
		p.DecideNextAction = defaultDecidePrompt
	}
	if p.Comment == "" {
		p.Comment = defaultCommentPrompt
	}
	if p.CommentOffTopic == "" {
		p.CommentOffTopic = defaultOffTopicRule
	}
	if p.Classify == "" {
		p.Classify = defaultClassifyPrompt
	}
	if p.ReplyToComment == "" {
		p.ReplyToComment = defaultReplyPrompt
	}
	if p.PersonaSummary == "" {
		p.PersonaSummary = defaultPersonaPrompt
	}
	if p.Verification == "" {
		p.Verification = defaultVerificationPrompt
	}
	return p
}

// fillTemplate substitutes {{key}} placeholders. Unknown placeholders are
// left in place.
func fillTemplate(tpl string, data map[string]string) string {
	s := tpl
	for k, v := range data {
		s = strings.ReplaceAll(s, "{{"+k+"}}", v)
	}
	return strings.TrimSpace(s)
}
