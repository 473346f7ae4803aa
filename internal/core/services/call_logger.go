package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"model-gateway-service/internal/core/domain"
	output "model-gateway-service/internal/core/ports/output"
)

const (
	DefaultCallLogQueueSize    = 1024
	DefaultCallLogWriteTimeout = 5 * time.Second
	DefaultCallLogEnqueueWait  = 50 * time.Millisecond
	callLogErrorBuffer         = 64
)

// CallLogger persists call-log entries on a background worker. Writes are
// detached from request contexts; failures are logged, reported on Errors,
// and never retried.
type CallLogger struct {
	repo         output.APICallRepository
	queue        chan *domain.APICall
	errs         chan error
	writeTimeout time.Duration
	enqueueWait  time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	start  sync.Once
}

func NewCallLogger(repo output.APICallRepository, queueSize int, writeTimeout, enqueueWait time.Duration) *CallLogger {
	if queueSize <= 0 {
		queueSize = DefaultCallLogQueueSize
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultCallLogWriteTimeout
	}
	if enqueueWait <= 0 {
		enqueueWait = DefaultCallLogEnqueueWait
	}
	return &CallLogger{
		repo:         repo,
		queue:        make(chan *domain.APICall, queueSize),
		errs:         make(chan error, callLogErrorBuffer),
		writeTimeout: writeTimeout,
		enqueueWait:  enqueueWait,
		done:         make(chan struct{}),
	}
}

// Start launches the worker. Calling it more than once has no effect.
func (l *CallLogger) Start() {
	l.start.Do(func() {
		go l.run()
	})
}

// Record enqueues call. When the queue is full it waits up to the enqueue
// wait for the worker to make room, then drops the entry.
func (l *CallLogger) Record(call *domain.APICall) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		l.report(fmt.Errorf("%w: dropped call for %q", domain.ErrCallLoggerClosed, call.Identifier))
		return
	}

	select {
	case l.queue <- call:
		return
	default:
	}

	timer := time.NewTimer(l.enqueueWait)
	defer timer.Stop()

	select {
	case l.queue <- call:
	case <-timer.C:
		log.WithField("identifier", call.Identifier).Warn("call log queue full, dropping entry")
		l.report(fmt.Errorf("%w: dropped call for %q", domain.ErrCallLogQueueFull, call.Identifier))
	}
}

// Errors exposes write failures. The channel is buffered; errors that do not
// fit are only logged.
func (l *CallLogger) Errors() <-chan error {
	return l.errs
}

// Close stops accepting entries and waits for the queue to drain or ctx to
// end. Start must have been called.
func (l *CallLogger) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *CallLogger) run() {
	defer close(l.done)
	for call := range l.queue {
		l.write(call)
	}
}

func (l *CallLogger) write(call *domain.APICall) {
	ctx, cancel := context.WithTimeout(context.Background(), l.writeTimeout)
	defer cancel()

	if err := l.repo.Create(ctx, call); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"identifier":  call.Identifier,
			"status_code": call.StatusCode,
		}).Warn("failed to write call log")
		l.report(fmt.Errorf("write call log: %w", err))
	}
}

func (l *CallLogger) report(err error) {
	select {
	case l.errs <- err:
	default:
	}
}

// Ensure interface compliance
var _ CallRecorder = (*CallLogger)(nil)
