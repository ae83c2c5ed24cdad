// Package simulation runs the agent against an in-memory Twitter.
package simulation

import (
	"context"
	"fmt"

	"walletai/internal/agent"
	"walletai/internal/mention"
	"walletai/internal/twitter"
)

const SessionID = "test-session"

// DefaultMention is posted when a simulation is started without text.
const DefaultMention = "Hey @WalletAI, how has my wallet 0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae been doing on base this week?"

var simUser = twitter.User{
	ID:          "sim-user",
	Name:        "Sim User",
	Username:    "sim_user",
	Description: "Testing WalletAI before launch",
}

type Report struct {
	SessionID string          `json:"session_id"`
	Mention   twitter.Tweet   `json:"mention"`
	Result    *agent.Result   `json:"result"`
	Replies   []twitter.Tweet `json:"replies"`
}

type Simulator struct {
	api     *twitter.Simulated
	handler *mention.Handler
}

// New expects handler to be wired to api, so replies land in the simulation.
func New(api *twitter.Simulated, handler *mention.Handler) *Simulator {
	api.AddUser(simUser)
	return &Simulator{api: api, handler: handler}
}

// Run posts text as a mention of the bot and lets the agent answer it under
// sessionID (SessionID when empty).
func (s *Simulator) Run(ctx context.Context, sessionID, text string, emit func(agent.Event)) (*Report, error) {
	if sessionID == "" {
		sessionID = SessionID
	}
	if text == "" {
		text = DefaultMention
	}

	tw, err := s.api.Post(simUser.ID, text, "")
	if err != nil {
		return nil, fmt.Errorf("seeding mention: %w", err)
	}

	before := len(s.api.Replies())
	res, err := s.handler.HandleInSession(ctx, sessionID, tw.ID, emit)
	report := &Report{
		SessionID: sessionID,
		Mention:   *tw,
		Result:    res,
		Replies:   s.api.Replies()[before:],
	}
	return report, err
}
