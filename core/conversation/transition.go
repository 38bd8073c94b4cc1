package conversation

import "github.com/m3rciful/lingobot/core/session"

// Commit says what to do with the stored session after a step.
type Commit int

const (
	// CommitKeep leaves the stored session untouched.
	CommitKeep Commit = iota
	// CommitPut stores Decision.Next.
	CommitPut
	// CommitDelete removes the session; the sender returns to NEW.
	CommitDelete
)

// Outcome labels how an inbound event was handled.
type Outcome string

const (
	OutcomeIgnored         Outcome = "ignored"
	OutcomePrompted        Outcome = "prompted"
	OutcomeReprompted      Outcome = "reprompted"
	OutcomeLanguageSet     Outcome = "language_set"
	OutcomeTranslated      Outcome = "translated"
	OutcomeTranslateFailed Outcome = "translate_failed"
)

// TranslateRequest asks the caller to run a translation before replying.
type TranslateRequest struct {
	Text   string
	Target string
}

// Decision is the result of a single dialogue step.
type Decision struct {
	// Next is the state after the step; nil means NEW.
	Next    session.State
	Commit  Commit
	Reply   string
	Outcome Outcome
	// Translate is set only when leaving AwaitingText. Reply is then empty;
	// the caller builds it from the translation result.
	Translate *TranslateRequest
	// Err records a recovered validation failure.
	Err error
}

// Transition computes the next step for a sender in state current who sent
// text. A nil current is the NEW state. It performs no I/O.
func Transition(current session.State, text string) Decision {
	switch st := current.(type) {
	case session.AwaitingLanguage:
		lang, ok := LookupLanguage(text)
		if !ok {
			return Decision{
				Next:    st,
				Commit:  CommitKeep,
				Reply:   InvalidLanguage,
				Outcome: OutcomeReprompted,
				Err:     ErrUnsupportedLanguage,
			}
		}
		return Decision{
			Next:    session.AwaitingText{TargetLanguage: lang.Code},
			Commit:  CommitPut,
			Reply:   PromptText,
			Outcome: OutcomeLanguageSet,
		}
	case session.AwaitingText:
		return Decision{
			Commit:    CommitDelete,
			Translate: &TranslateRequest{Text: text, Target: st.TargetLanguage},
			Outcome:   OutcomeTranslated,
		}
	default:
		return Decision{
			Next:    session.AwaitingLanguage{},
			Commit:  CommitPut,
			Reply:   PromptLanguage,
			Outcome: OutcomePrompted,
		}
	}
}
