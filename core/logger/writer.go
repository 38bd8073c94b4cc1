package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

const writerQueueDepth = 512

// asyncWriter fans log lines out to its sinks from a single goroutine.
// Lines are buffered and the sinks flushed whenever the queue runs dry, so a
// burst of events costs one syscall per sink instead of one per line.
type asyncWriter struct {
	lines   chan []byte
	flushes chan chan error
	closed  chan struct{}
	stop    sync.Once

	sinks []*bufio.Writer
	err   atomic.Pointer[error]
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	w := &asyncWriter{
		lines:   make(chan []byte, writerQueueDepth),
		flushes: make(chan chan error),
		closed:  make(chan struct{}),
	}
	for _, out := range writers {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, bufSize))
		}
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.closed)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.record(w.flushSinks())
				return
			}
			w.record(w.writeSinks(line))
			if len(w.lines) == 0 {
				w.record(w.flushSinks())
			}
		case ack := <-w.flushes:
			ack <- w.drain()
		}
	}
}

// drain writes whatever is queued before flushing, so Flush observes every
// Write that returned before it was called.
func (w *asyncWriter) drain() error {
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				return w.flushSinks()
			}
			w.record(w.writeSinks(line))
		default:
			return w.flushSinks()
		}
	}
}

// Write copies p and queues it. It blocks when the queue is full rather than
// dropping lines.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.failure(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.lines <- append([]byte(nil), p...)
	return nil
}

// Flush blocks until all queued lines reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.failure(); err != nil {
		return err
	}
	select {
	case <-w.closed:
		return nil
	default:
	}
	ack := make(chan error, 1)
	select {
	case w.flushes <- ack:
		return <-ack
	case <-w.closed:
		return w.failure()
	}
}

// Close drains the queue and returns the first write error seen.
func (w *asyncWriter) Close() error {
	w.stop.Do(func() { close(w.lines) })
	<-w.closed
	return w.failure()
}

func (w *asyncWriter) writeSinks(p []byte) error {
	for _, sink := range w.sinks {
		if _, err := sink.Write(p); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushSinks() error {
	var errs []error
	for _, sink := range w.sinks {
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) record(err error) {
	if err != nil {
		w.err.CompareAndSwap(nil, &err)
	}
}

func (w *asyncWriter) failure() error {
	if p := w.err.Load(); p != nil {
		return *p
	}
	return nil
}
