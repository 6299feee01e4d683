package eventlog

import (
	"context"
	"sync"
	"time"
)

const appendTimeout = 5 * time.Second

// Logger is the minimal logging interface the appender needs.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Appender writes records to a Repository from a single background
// goroutine so event handling never blocks on disk. Append is non-blocking;
// records are dropped with a warning if the buffer is full.
type Appender struct {
	repo   Repository
	logger Logger

	buf     chan Record
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewAppender creates an appender buffering up to size records.
func NewAppender(repo Repository, size int, logger Logger) *Appender {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Appender{
		repo:    repo,
		logger:  logger,
		buf:     make(chan Record, size),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start launches the writer goroutine.
func (a *Appender) Start() {
	go a.run()
}

func (a *Appender) run() {
	defer close(a.stopped)

	for {
		select {
		case rec := <-a.buf:
			a.write(rec)
		case <-a.done:
			// Drain whatever is still buffered before exiting.
			for {
				select {
				case rec := <-a.buf:
					a.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (a *Appender) write(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	if err := a.repo.Append(ctx, rec); err != nil {
		a.logger.Error("event log write failed",
			"device_id", rec.DeviceID, "type", rec.Type, "error", err)
	}
}

// Append enqueues a record without blocking. Returns ErrClosed after Close;
// records are silently counted and dropped when the buffer is full.
func (a *Appender) Append(rec Record) error {
	select {
	case <-a.done:
		return ErrClosed
	default:
	}

	select {
	case a.buf <- rec:
		return nil
	default:
		a.logger.Warn("event log buffer full, dropping record",
			"device_id", rec.DeviceID, "type", rec.Type)
		return nil
	}
}

// Close stops the writer after draining the buffer. Safe to call multiple
// times.
func (a *Appender) Close() {
	a.once.Do(func() {
		close(a.done)
		<-a.stopped
	})
}
