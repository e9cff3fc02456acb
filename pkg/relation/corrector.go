package relation

import (
	"context"
	"fmt"
	"strings"

	"github.com/MaxDreger92/matgraph-backend/internal/util"
	"github.com/MaxDreger92/matgraph-backend/pkg/ai"
	"github.com/MaxDreger92/matgraph-backend/pkg/common"
	"github.com/MaxDreger92/matgraph-backend/pkg/logger"
	"github.com/MaxDreger92/matgraph-backend/pkg/schema"
	"github.com/MaxDreger92/matgraph-backend/pkg/store"
)

// State is one phase of the correction state machine.
type State string

const (
	StateExtracted  State = "extracted"
	StateValidating State = "validating"
	StateCorrecting State = "correcting"
	StateAccepted   State = "accepted"
	StateExhausted  State = "exhausted"
)

// ConversationState is the owned, append-only record of the extraction
// conversation. Correction rounds append turns; nothing is ever mutated in
// place, so every round replays the full prior context.
type ConversationState struct {
	systemPrompt string
	turns        []ai.ChatMessage
}

// NewConversation creates a conversation carrying the given system prompt.
func NewConversation(systemPrompt string) *ConversationState {
	return &ConversationState{systemPrompt: systemPrompt}
}

// Append adds one turn to the conversation.
func (c *ConversationState) Append(turn ai.ChatMessage) {
	c.turns = append(c.turns, turn)
}

// Turns returns a copy of the conversation turns.
func (c *ConversationState) Turns() []ai.ChatMessage {
	return append([]ai.ChatMessage{}, c.turns...)
}

// SystemPrompt returns the conversation's system prompt.
func (c *ConversationState) SystemPrompt() string {
	return c.systemPrompt
}

// Result is the outcome of a correction run. An exhausted result still
// carries the final triple set together with the unresolved violations; the
// caller treats it as degraded, not failed.
type Result struct {
	State      State
	Triples    []common.Triple
	Violations []Violation
	Rounds     int
}

// Corrector drives the validate and correct loop over a triple set.
type Corrector struct {
	client ai.Client
	log    store.ConversationLog
	budget int
}

// CorrectorParams configures NewCorrector. Log may be nil; turns are then
// kept in memory only.
type CorrectorParams struct {
	Client ai.Client
	Log    store.ConversationLog
}

// NewCorrector creates a Corrector with the configured round budget.
func NewCorrector(params CorrectorParams) *Corrector {
	return &Corrector{
		client: params.Client,
		log:    params.Log,
		budget: int(util.GetEnvNumeric("CORRECTION_BUDGET", 6)),
	}
}

// Repair validates the triples against the graph invariants and re-prompts
// the conversation until they pass or the round budget is spent. All
// violations of one round are combined into a single correction turn, so the
// number of model calls is bounded by the budget alone. Every round's two
// turns are persisted to the conversation log.
func (c *Corrector) Repair(
	ctx context.Context,
	runID string,
	conversation *ConversationState,
	nodeIDs []string,
	allowed []schema.RelationType,
	triples []common.Triple,
) (Result, error) {
	c.persistTurns(ctx, runID, conversation.Turns())

	state := StateValidating
	rounds := 0

	for {
		violations := Validate(nodeIDs, triples)
		if len(violations) == 0 {
			return Result{State: StateAccepted, Triples: triples, Rounds: rounds}, nil
		}
		if rounds >= c.budget {
			return Result{
				State:      StateExhausted,
				Triples:    triples,
				Violations: violations,
				Rounds:     rounds,
			}, nil
		}

		state = StateCorrecting
		rounds++

		correction := combineViolations(violations)
		conversation.Append(ai.ChatMessage{Role: "user", Message: correction})

		var res tripleResponse
		err := c.client.GenerateChatWithFormat(
			ctx,
			"correct_relationships",
			"Return a corrected list of relationship triples.",
			conversation.Turns(),
			&res,
			ai.WithSystemPrompts(conversation.SystemPrompt()),
		)
		if err != nil {
			return Result{State: state, Triples: triples, Violations: violations, Rounds: rounds},
				fmt.Errorf("correction round %d failed: %w", rounds, err)
		}

		knownIDs := make(map[string]bool, len(nodeIDs))
		for _, id := range nodeIDs {
			knownIDs[id] = true
		}
		triples = convertTriples(res, allowed, knownIDs)

		reply := ai.ChatMessage{Role: "assistant", Message: renderTriples(triples)}
		conversation.Append(reply)
		c.persistTurns(ctx, runID, []ai.ChatMessage{
			{Role: "user", Message: correction},
			reply,
		})
	}
}

// combineViolations concatenates every violation message of the round into
// one correction instruction.
func combineViolations(violations []Violation) string {
	var b strings.Builder
	b.WriteString(CorrectionPreamble)
	b.WriteString("\n")
	for i, v := range violations {
		fmt.Fprintf(&b, "%d. %s\n", i+1, v.Message)
	}
	return b.String()
}

// persistTurns writes turns to the conversation log. Logging failures never
// fail a correction run; the log exists for audit, not correctness.
func (c *Corrector) persistTurns(ctx context.Context, runID string, turns []ai.ChatMessage) {
	if c.log == nil || runID == "" || len(turns) == 0 {
		return
	}
	if err := c.log.SaveTurns(ctx, runID, turns); err != nil {
		logger.Warn("failed to persist correction conversation", "run", runID, "error", err)
	}
}
