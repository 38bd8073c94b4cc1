package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/lingobot/core/logger"
	"github.com/m3rciful/lingobot/core/session"
)

const component = "conversation"

// Event is a normalized inbound message. An empty Text means the platform
// event carried no text payload.
type Event struct {
	SenderID string
	Text     string
}

// Replier delivers a text message to a recipient. Delivery is best-effort:
// implementations log failures and never report them back.
type Replier interface {
	Reply(ctx context.Context, recipientID, text string)
}

// Translator translates text into the target language code.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Options configures a Dispatcher.
type Options struct {
	Store      session.Store
	Replier    Replier
	Translator Translator
	// TranslateTimeout bounds one translation call; 0 means no extra deadline.
	TranslateTimeout time.Duration
	// Platform is attached to logs, e.g. "messenger".
	Platform string
	Now      func() time.Time
}

// Dispatcher drives the dialogue: it loads the sender's session, applies
// Transition, performs the translation if requested, commits the session
// and sends the reply. Events of one sender are handled one at a time.
type Dispatcher struct {
	store      session.Store
	replier    Replier
	translator Translator
	timeout    time.Duration
	platform   string
	now        func() time.Time
	locks      *keyedMutex
}

// NewDispatcher validates opts and builds a Dispatcher.
func NewDispatcher(opts Options) (*Dispatcher, error) {
	if opts.Store == nil {
		return nil, errors.New("conversation: nil session store")
	}
	if opts.Replier == nil {
		return nil, errors.New("conversation: nil replier")
	}
	if opts.Translator == nil {
		return nil, errors.New("conversation: nil translator")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		store:      opts.Store,
		replier:    opts.Replier,
		translator: opts.Translator,
		timeout:    opts.TranslateTimeout,
		platform:   opts.Platform,
		now:        now,
		locks:      newKeyedMutex(),
	}, nil
}

// Handle processes one inbound event. Errors are limited to
// ErrMalformedEvent and *StoreError; translation failures are answered
// with an apology and reported through the returned Outcome.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) (Outcome, error) {
	if strings.TrimSpace(ev.SenderID) == "" {
		return "", ErrMalformedEvent
	}
	if logger.SenderFrom(ctx) == "" {
		ctx = logger.WithSender(ctx, d.platform, ev.SenderID)
	}
	if ev.Text == "" {
		logger.Debug(ctx, component, "event.ignored",
			slog.String("outcome", string(OutcomeIgnored)),
			slog.String("reason", "no_text"),
		)
		return OutcomeIgnored, nil
	}

	unlock := d.locks.Lock(ev.SenderID)
	defer unlock()

	start := time.Now()
	sess, found, err := d.store.Get(ctx, ev.SenderID)
	if err != nil {
		return d.storeFailed(ctx, "get", err)
	}
	var current session.State
	if found {
		current = sess.State
	}

	dec := Transition(current, ev.Text)
	reply := dec.Reply
	if dec.Translate != nil {
		translated, terr := d.translate(ctx, *dec.Translate)
		if terr != nil {
			dec.Outcome = OutcomeTranslateFailed
			dec.Err = terr
			reply = TranslationError
		} else {
			reply = TranslatedReply(translated)
		}
	}

	// A prompt goes out only after the step it asks about is stored.
	if dec.Commit == CommitPut {
		if err := d.store.Put(ctx, session.Session{SenderID: ev.SenderID, State: dec.Next, UpdatedAt: d.now()}); err != nil {
			return d.storeFailed(ctx, "put", err)
		}
	}
	d.replier.Reply(ctx, ev.SenderID, reply)
	if dec.Commit == CommitDelete {
		if err := d.store.Delete(ctx, ev.SenderID); err != nil {
			return d.storeFailed(ctx, "delete", err)
		}
	}

	attrs := []slog.Attr{
		slog.String("status", statusOf(dec)),
		slog.String("outcome", string(dec.Outcome)),
		slog.String("from_state", session.StepName(current)),
		slog.String("to_state", session.StepName(dec.Next)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if dec.Translate != nil {
		attrs = append(attrs, slog.String("lang", dec.Translate.Target), slog.Int("text_len", len([]rune(dec.Translate.Text))))
	}
	if dec.Err != nil {
		attrs = append(attrs, slog.String("err", dec.Err.Error()))
	}
	level := slog.LevelInfo
	if dec.Outcome == OutcomeTranslateFailed {
		level = slog.LevelWarn
	}
	logger.Event(ctx, component, level, "transition", attrs...)
	return dec.Outcome, nil
}

func (d *Dispatcher) translate(ctx context.Context, req TranslateRequest) (string, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	out, err := d.translator.Translate(ctx, req.Text, req.Target)
	if err != nil {
		return "", &TranslationServiceError{Target: req.Target, Err: err}
	}
	return out, nil
}

func (d *Dispatcher) storeFailed(ctx context.Context, op string, err error) (Outcome, error) {
	logger.Error(ctx, component, "session."+op,
		slog.String("status", "fail"),
		slog.String("err", err.Error()),
	)
	return "", &StoreError{Op: op, Err: err}
}

func statusOf(dec Decision) string {
	if dec.Outcome == OutcomeTranslateFailed {
		return "fail"
	}
	return "ok"
}
