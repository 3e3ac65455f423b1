package pipeline

import "github.com/MrWong99/voxloop/pkg/provider/llm"

// ConversationHistory is the ongoing dialogue context: an append-only,
// ordered sequence of (role, text) turns. It is owned exclusively by the
// batcher; no other stage reads or writes it, so no locking is needed.
// History is never pruned within a session.
type ConversationHistory struct {
	turns []llm.Message
}

// NewConversationHistory creates an empty history.
func NewConversationHistory() *ConversationHistory {
	return &ConversationHistory{}
}

// Append records one turn.
func (h *ConversationHistory) Append(role, text string) {
	h.turns = append(h.turns, llm.Message{Role: role, Content: text})
}

// Messages returns a copy of all turns in order, suitable for seeding a
// completion request.
func (h *ConversationHistory) Messages() []llm.Message {
	out := make([]llm.Message, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of recorded turns.
func (h *ConversationHistory) Len() int { return len(h.turns) }
