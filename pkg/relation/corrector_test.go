package relation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/MaxDreger92/matgraph-backend/pkg/ai"
	"github.com/MaxDreger92/matgraph-backend/pkg/common"
	"github.com/MaxDreger92/matgraph-backend/pkg/schema"
)

// scriptedClient replays canned JSON payloads into the structured-output
// target, one per call, repeating the last payload once the script runs out.
type scriptedClient struct {
	responses []string
	chatCalls int
	messages  [][]ai.ChatMessage
}

func (c *scriptedClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", nil
}

func (c *scriptedClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	return json.Unmarshal([]byte(c.next()), out)
}

func (c *scriptedClient) GenerateChat(ctx context.Context, messages []ai.ChatMessage, opts ...ai.GenerateOption) (string, error) {
	return "", nil
}

func (c *scriptedClient) GenerateChatWithFormat(ctx context.Context, name, description string, messages []ai.ChatMessage, out any, opts ...ai.GenerateOption) error {
	c.chatCalls++
	c.messages = append(c.messages, messages)
	return json.Unmarshal([]byte(c.next()), out)
}

func (c *scriptedClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return []float32{1}, nil
}

func (c *scriptedClient) ResetMetrics()               {}
func (c *scriptedClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func (c *scriptedClient) next() string {
	if len(c.responses) == 0 {
		return `{"triples": []}`
	}
	response := c.responses[0]
	if len(c.responses) > 1 {
		c.responses = c.responses[1:]
	}
	return response
}

// memoryLog records every SaveTurns call in memory.
type memoryLog struct {
	turns map[string][]ai.ChatMessage
}

func newMemoryLog() *memoryLog {
	return &memoryLog{turns: make(map[string][]ai.ChatMessage)}
}

func (l *memoryLog) SaveTurns(ctx context.Context, runID string, turns []ai.ChatMessage) error {
	l.turns[runID] = append(l.turns[runID], turns...)
	return nil
}

func (l *memoryLog) Turns(ctx context.Context, runID string) ([]ai.ChatMessage, error) {
	return l.turns[runID], nil
}

var producerConflict = []common.Triple{
	triple("A", schema.HasOutput, "X"),
	triple("B", schema.HasOutput, "X"),
}

const producerConflictJSON = `{"triples": [
	{"source": "A", "relation": "has_output", "target": "X"},
	{"source": "B", "relation": "has_output", "target": "X"}
]}`

func TestRepairAcceptsValidTriplesWithoutModelCalls(t *testing.T) {
	t.Setenv("CORRECTION_BUDGET", "6")
	client := &scriptedClient{}
	corrector := NewCorrector(CorrectorParams{Client: client})

	triples := []common.Triple{
		triple("A", schema.IsInput, "Step"),
		triple("Step", schema.HasOutput, "X"),
	}
	conversation := NewConversation("system")

	result, err := corrector.Repair(context.Background(), "run-1", conversation,
		[]string{"A", "Step", "X"}, []schema.RelationType{schema.IsInput, schema.HasOutput}, triples)
	if err != nil {
		t.Fatalf("Repair() error = %v", err)
	}
	if result.State != StateAccepted {
		t.Errorf("state = %s, want %s", result.State, StateAccepted)
	}
	if result.Rounds != 0 {
		t.Errorf("rounds = %d, want 0", result.Rounds)
	}
	if client.chatCalls != 0 {
		t.Errorf("model calls = %d, want 0", client.chatCalls)
	}
}

func TestRepairExhaustsBudgetOnPersistentViolations(t *testing.T) {
	t.Setenv("CORRECTION_BUDGET", "3")
	// The model keeps answering with the same conflicting triples, so
	// every round re-detects the violation until the budget is spent.
	client := &scriptedClient{responses: []string{producerConflictJSON}}
	corrector := NewCorrector(CorrectorParams{Client: client})

	conversation := NewConversation("system")
	result, err := corrector.Repair(context.Background(), "run-1", conversation,
		[]string{"A", "B", "X"}, []schema.RelationType{schema.IsInput, schema.HasOutput}, producerConflict)
	if err != nil {
		t.Fatalf("Repair() error = %v", err)
	}
	if result.State != StateExhausted {
		t.Errorf("state = %s, want %s", result.State, StateExhausted)
	}
	if result.Rounds != 3 {
		t.Errorf("rounds = %d, want 3", result.Rounds)
	}
	if client.chatCalls != 3 {
		t.Errorf("model calls = %d, want 3", client.chatCalls)
	}
	if len(result.Violations) == 0 {
		t.Error("exhausted result carries no violations")
	}
	if len(result.Triples) != 2 {
		t.Errorf("exhausted result dropped the final triples: %v", result.Triples)
	}
}

func TestRepairResolvesViolationInOneRound(t *testing.T) {
	t.Setenv("CORRECTION_BUDGET", "6")
	fixed := `{"triples": [
		{"source": "A", "relation": "is_input", "target": "B"},
		{"source": "B", "relation": "has_output", "target": "X"}
	]}`
	client := &scriptedClient{responses: []string{fixed}}
	corrector := NewCorrector(CorrectorParams{Client: client})

	conversation := NewConversation("system")
	result, err := corrector.Repair(context.Background(), "run-1", conversation,
		[]string{"A", "B", "X"}, []schema.RelationType{schema.IsInput, schema.HasOutput}, producerConflict)
	if err != nil {
		t.Fatalf("Repair() error = %v", err)
	}
	if result.State != StateAccepted {
		t.Errorf("state = %s, want %s", result.State, StateAccepted)
	}
	if result.Rounds != 1 {
		t.Errorf("rounds = %d, want 1", result.Rounds)
	}
	if len(result.Triples) != 2 {
		t.Errorf("triples = %v, want the corrected pair", result.Triples)
	}
}

func TestRepairAccumulatesConversationTurns(t *testing.T) {
	t.Setenv("CORRECTION_BUDGET", "2")
	client := &scriptedClient{responses: []string{producerConflictJSON}}
	corrector := NewCorrector(CorrectorParams{Client: client})

	conversation := NewConversation("system")
	conversation.Append(ai.ChatMessage{Role: "user", Message: "initial request"})
	conversation.Append(ai.ChatMessage{Role: "assistant", Message: "initial answer"})

	_, err := corrector.Repair(context.Background(), "run-1", conversation,
		[]string{"A", "B", "X"}, []schema.RelationType{schema.IsInput, schema.HasOutput}, producerConflict)
	if err != nil {
		t.Fatalf("Repair() error = %v", err)
	}

	// 2 seeded turns plus a user/assistant pair per correction round.
	if got := len(conversation.Turns()); got != 6 {
		t.Errorf("conversation turns = %d, want 6", got)
	}
	// Every round replays the full prior context.
	if len(client.messages) != 2 {
		t.Fatalf("recorded calls = %d, want 2", len(client.messages))
	}
	if len(client.messages[1]) != len(client.messages[0])+2 {
		t.Errorf("second round saw %d turns, want %d", len(client.messages[1]), len(client.messages[0])+2)
	}
}

func TestRepairPersistsTurnsToConversationLog(t *testing.T) {
	t.Setenv("CORRECTION_BUDGET", "1")
	client := &scriptedClient{responses: []string{producerConflictJSON}}
	log := newMemoryLog()
	corrector := NewCorrector(CorrectorParams{Client: client, Log: log})

	conversation := NewConversation("system")
	conversation.Append(ai.ChatMessage{Role: "user", Message: "initial request"})

	_, err := corrector.Repair(context.Background(), "run-7", conversation,
		[]string{"A", "B", "X"}, []schema.RelationType{schema.IsInput, schema.HasOutput}, producerConflict)
	if err != nil {
		t.Fatalf("Repair() error = %v", err)
	}

	saved, _ := log.Turns(context.Background(), "run-7")
	// The seeded turn plus the round's correction and reply.
	if len(saved) != 3 {
		t.Fatalf("persisted turns = %d, want 3", len(saved))
	}
	if saved[1].Role != "user" || saved[2].Role != "assistant" {
		t.Errorf("round turns have roles %s/%s, want user/assistant", saved[1].Role, saved[2].Role)
	}
}
