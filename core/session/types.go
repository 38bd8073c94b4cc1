package session

import (
	"context"
	"time"
)

// Step names a stored dialogue step. It is the persisted form of a State.
type Step string

const (
	// StepAwaitingLanguage waits for the sender to pick a target language.
	StepAwaitingLanguage Step = "awaiting_language"
	// StepAwaitingText waits for the text to translate.
	StepAwaitingText Step = "awaiting_text"
)

// State is a closed set of dialogue steps: AwaitingLanguage or AwaitingText.
// The NEW step has no State; it is the absence of a session.
type State interface {
	Step() Step
	isState()
}

// AwaitingLanguage is the step right after the greeting.
type AwaitingLanguage struct{}

// Step implements State.
func (AwaitingLanguage) Step() Step { return StepAwaitingLanguage }
func (AwaitingLanguage) isState()   {}

// AwaitingText carries the language chosen in the previous step.
type AwaitingText struct {
	TargetLanguage string
}

// Step implements State.
func (AwaitingText) Step() Step { return StepAwaitingText }
func (AwaitingText) isState()   {}

// Session is the record kept for a sender with an in-progress dialogue.
type Session struct {
	SenderID  string
	State     State
	UpdatedAt time.Time
}

// Store maps sender ids to sessions. Put overwrites unconditionally and
// Delete is a no-op for unknown senders. Only durable backends return errors.
type Store interface {
	Get(ctx context.Context, senderID string) (Session, bool, error)
	Put(ctx context.Context, s Session) error
	Delete(ctx context.Context, senderID string) error
}

// Pruner is implemented by stores that need a periodic sweep of idle sessions.
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}

// StepName returns the printable step of st, "new" for a nil State.
func StepName(st State) string {
	if st == nil {
		return "new"
	}
	return string(st.Step())
}
