// Package sender runs platform jobs on a bounded pool of worker lanes so
// that inbound handling never waits on delivery.
package sender

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/lingobot/core/logger"
	"github.com/m3rciful/lingobot/core/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after Close.
	ErrQueueClosed = errors.New("sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("sender: queue full")
)

// Options controls the behaviour of the Outbox.
type Options struct {
	// QueueSize is split evenly across the worker lanes.
	QueueSize int
	// Workers is the number of lanes. Jobs with the same key share a lane
	// and run in enqueue order; different keys run in parallel.
	Workers int
	// MaxRetries applies to transient transport errors only. Zero keeps
	// delivery at-most-once.
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on a single job, retries included.
	MaxDuration time.Duration
}

// RunFunc performs one delivery attempt.
type RunFunc func(ctx context.Context) error

type job struct {
	ctx    context.Context
	action string
	run    RunFunc
}

// Outbox executes jobs asynchronously, one goroutine per lane.
type Outbox struct {
	opts   Options
	lanes  []chan job
	next   atomic.Uint64
	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
	errs   atomic.Uint64
	sent   atomic.Uint64
}

// NewOutbox starts an Outbox with sane defaults if options are zeroed.
func NewOutbox(opts Options) *Outbox {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	perLane := max(1, opts.QueueSize/opts.Workers)
	o := &Outbox{opts: opts, lanes: make([]chan job, opts.Workers)}
	o.wg.Add(opts.Workers)
	for i := range o.lanes {
		o.lanes[i] = make(chan job, perLane)
		go o.worker(o.lanes[i])
	}
	return o
}

// Enqueue schedules run on the lane owning key, usually a recipient or
// sender id. An empty key picks lanes round-robin. Cancellation of ctx does
// not abort the job; only its values are kept.
func (o *Outbox) Enqueue(ctx context.Context, action, key string, run RunFunc) error {
	if run == nil {
		return errors.New("sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrQueueClosed
	}

	select {
	case o.lane(key) <- job{ctx: context.WithoutCancel(ctx), action: action, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (o *Outbox) lane(key string) chan job {
	n := uint64(len(o.lanes))
	if n == 1 {
		return o.lanes[0]
	}
	if key == "" {
		return o.lanes[o.next.Add(1)%n]
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return o.lanes[h.Sum64()%n]
}

// ErrorCount returns the number of failed jobs.
func (o *Outbox) ErrorCount() uint64 {
	return o.errs.Load()
}

// SentCount returns the number of delivered jobs.
func (o *Outbox) SentCount() uint64 {
	return o.sent.Load()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (o *Outbox) Close() {
	o.once.Do(func() {
		o.mu.Lock()
		o.closed = true
		for _, l := range o.lanes {
			close(l)
		}
		o.mu.Unlock()
		o.wg.Wait()
	})
}

func (o *Outbox) worker(jobs <-chan job) {
	defer o.wg.Done()
	for j := range jobs {
		o.handleJob(j)
	}
}

func (o *Outbox) handleJob(j job) {
	ctx := j.ctx

	deadlineCtx, cancel := context.WithTimeout(ctx, o.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	logger.Debug(ctx, "sender", "send.start", sendLogAttrs(j)...)

	var (
		lastErr       error
		failureLogged bool
	)
	attempts := o.opts.MaxRetries + 1

attemptLoop:
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := deadlineCtx.Err(); err != nil {
			lastErr = err
			break
		}

		if err := j.run(deadlineCtx); err != nil {
			lastErr = err
			if !netutil.ShouldRetry(err) || attempt == attempts {
				logSendFailure(ctx, j, lastErr, attempt, time.Since(start))
				failureLogged = true
				break
			}

			delay := o.opts.RetryBackoff * time.Duration(attempt)
			timer := time.NewTimer(delay)
			select {
			case <-deadlineCtx.Done():
				timer.Stop()
				lastErr = deadlineCtx.Err()
				logSendFailure(ctx, j, lastErr, attempt, time.Since(start))
				failureLogged = true
				break attemptLoop
			case <-timer.C:
			}
			logger.Debug(ctx, "sender", "send.retry.backoff",
				append(sendLogAttrs(j),
					slog.Int("attempt", attempt),
					slog.Duration("delay", delay),
				)...,
			)
			continue
		}

		o.sent.Add(1)
		logSendSuccess(ctx, j, attempt, time.Since(start))
		return
	}

	if lastErr != nil {
		o.errs.Add(1)
		if !failureLogged {
			logSendFailure(ctx, j, lastErr, attempts, time.Since(start))
		}
	}
}

func sendLogAttrs(j job) []slog.Attr {
	return []slog.Attr{slog.String("op", j.action)}
}

func logSendSuccess(ctx context.Context, j job, attempt int, elapsed time.Duration) {
	attrs := sendLogAttrs(j)
	attrs = append(attrs, slog.String("status", "ok"))
	if attempt > 1 {
		attrs = append(attrs, slog.Int("attempt", attempt))
	}
	attrs = append(attrs, slog.Duration("duration", logger.RoundMS(elapsed)))
	logger.Debug(ctx, "sender", "send.success", attrs...)
}

func logSendFailure(ctx context.Context, j job, err error, attempts int, elapsed time.Duration) {
	attrs := sendLogAttrs(j)
	attrs = append(attrs,
		slog.String("status", "fail"),
		slog.String("err", sanitizeErrorMessage(err)),
		slog.String("err_code", classifyError(err)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.RoundMS(elapsed)),
	)
	logger.Error(ctx, "sender", "send.fail", attrs...)
}
