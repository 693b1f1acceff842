package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// Request asks for one aggregation run.
type Request struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// Handler executes a run request.
type Handler func(ctx context.Context, req Request) error

// RunQueue holds pending run requests and hands them to its handlers from a
// single goroutine, so runs never overlap. With a buffer of one, a request
// pushed while another is pending is rejected with ErrQueueFull.
type RunQueue struct {
	items    chan Request
	done     chan struct{}
	stopped  chan struct{}
	maxSize  int
	closed   bool
	started  bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []Handler
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewRunQueue creates a run queue with the specified buffer size
func NewRunQueue(bufferSize int, logger *logrus.Logger) *RunQueue {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if logger == nil {
		logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RunQueue{
		items:    make(chan Request, bufferSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]Handler, 0),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Push adds a run request to the queue
func (q *RunQueue) Push(req Request) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	// Non-blocking send so callers learn immediately that a run is pending
	select {
	case q.items <- req:
		q.logger.WithField("reason", req.Reason).Debug("Queued aggregation run")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler function that will be called for each request
func (q *RunQueue) Subscribe(handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing requests in the queue
func (q *RunQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	go q.process()
}

func (q *RunQueue) process() {
	defer close(q.stopped)
	for {
		select {
		case <-q.done:
			return
		case req := <-q.items:
			q.dispatch(req)
		}
	}
}

// dispatch sends the request to all subscribed handlers
func (q *RunQueue) dispatch(req Request) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(q.ctx, req); err != nil {
			q.logger.WithError(err).WithField("reason", req.Reason).Error("Handler failed to process run request")
		}
	}
}

// Close stops the queue, cancels a running handler and waits for it to
// return. Pending requests are dropped.
func (q *RunQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	started := q.started
	q.cancel()
	close(q.done)
	q.mu.Unlock()

	if started {
		<-q.stopped
	}
	return nil
}

// Len returns the current number of pending requests
func (q *RunQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *RunQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
