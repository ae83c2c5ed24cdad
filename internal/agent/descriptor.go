package agent

import (
	"strings"
)

// Descriptor is the persona the agent runs under. WorldInfo is a template
// whose {{placeholders}} are filled from a World on every react call.
type Descriptor struct {
	Name        string
	Goal        string
	Description string
	WorldInfo   string
}

// World holds the per-mention values substituted into a Descriptor.
type World struct {
	Author              string
	Bio                 string
	TweetContent        string
	ConversationHistory string
	Task                string
	TaskReasoning       string
}

const defaultWorldInfo = `You are WalletAI, an expert crypto wallet analyzer operating in the Web3 ecosystem.
When users tag you with a wallet address, you analyze their portfolio and provide insights.

Response Format:
1. Performance chart comparing wallet vs ETH/BTC baseline
2. 7-day performance highlights (biggest gainers/losers)
3. Notable trading activity analysis
4. Current portfolio allocation
5. Actionable recommendations

Context:
- Author: {{author}}
- Author Bio: {{bio}}
- Tweet Content: {{tweetContent}}
- Conversation History: {{conversationHistory}}

Task: {{task}}
Reasoning: {{taskReasoning}}

Guidelines:
- Always be professional and data-driven
- Provide clear, actionable insights
- Use charts and metrics to support recommendations
- Consider user's trading history and portfolio composition
- Format responses for readability with bullet points and sections`

// Default returns the WalletAI descriptor.
func Default() Descriptor {
	return Descriptor{
		Name:        "WalletAI",
		Goal:        "Analyze crypto wallets and provide detailed portfolio insights with actionable recommendations",
		Description: "WalletAI: An expert crypto portfolio analyzer that provides detailed insights, charts, and actionable recommendations based on on-chain data",
		WorldInfo:   defaultWorldInfo,
	}
}

// Render fills the WorldInfo placeholders. Placeholders it does not know
// are left as written.
func (d Descriptor) Render(w World) string {
	return strings.NewReplacer(
		"{{author}}", w.Author,
		"{{bio}}", w.Bio,
		"{{tweetContent}}", w.TweetContent,
		"{{conversationHistory}}", w.ConversationHistory,
		"{{task}}", w.Task,
		"{{taskReasoning}}", w.TaskReasoning,
	).Replace(d.WorldInfo)
}

// SystemPrompt is the developer message sent ahead of every react call.
func (d Descriptor) SystemPrompt(w World, platform string) string {
	var b strings.Builder
	b.WriteString("Goal: " + d.Goal + "\n")
	b.WriteString("Description: " + d.Description + "\n\n")
	b.WriteString(d.Render(w))
	if platform != "" {
		b.WriteString("\n\nYou are answering on " + platform + ". Publish your answer with the reply_tweet tool; raw text output is not shown to the user.")
	}
	return b.String()
}
