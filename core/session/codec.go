package session

import (
	"errors"
	"fmt"
)

// ErrCorruptRecord reports a persisted session that maps to no valid State.
var ErrCorruptRecord = errors.New("session: corrupt record")

// record is the flat persisted shape shared by the SQL and Redis backends.
type record struct {
	Step           Step    `json:"step" db:"step"`
	TargetLanguage *string `json:"target_language,omitempty" db:"target_language"`
}

func encodeState(st State) (record, error) {
	switch v := st.(type) {
	case AwaitingLanguage:
		return record{Step: StepAwaitingLanguage}, nil
	case AwaitingText:
		if v.TargetLanguage == "" {
			return record{}, fmt.Errorf("%w: awaiting_text without language", ErrCorruptRecord)
		}
		lang := v.TargetLanguage
		return record{Step: StepAwaitingText, TargetLanguage: &lang}, nil
	case nil:
		return record{}, fmt.Errorf("%w: nil state", ErrCorruptRecord)
	default:
		return record{}, fmt.Errorf("%w: unknown state %T", ErrCorruptRecord, st)
	}
}

func decodeState(r record) (State, error) {
	switch r.Step {
	case StepAwaitingLanguage:
		if r.TargetLanguage != nil {
			return nil, fmt.Errorf("%w: language set while awaiting language", ErrCorruptRecord)
		}
		return AwaitingLanguage{}, nil
	case StepAwaitingText:
		if r.TargetLanguage == nil || *r.TargetLanguage == "" {
			return nil, fmt.Errorf("%w: awaiting_text without language", ErrCorruptRecord)
		}
		return AwaitingText{TargetLanguage: *r.TargetLanguage}, nil
	default:
		return nil, fmt.Errorf("%w: unknown step %q", ErrCorruptRecord, r.Step)
	}
}
