package scheduler

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mapprice/server/internal/clock"
	"mapprice/server/internal/queue"
)

// TriggerType represents why an aggregation run was requested
type TriggerType int

const (
	TriggerStartup TriggerType = iota
	TriggerScheduled
	TriggerManual
)

// String returns the string representation of a TriggerType
func (t TriggerType) String() string {
	switch t {
	case TriggerStartup:
		return "startup"
	case TriggerScheduled:
		return "scheduled"
	case TriggerManual:
		return "manual"
	default:
		return "unknown"
	}
}

// Enqueuer accepts run requests.
type Enqueuer interface {
	Push(req queue.Request) error
}

// Scheduler requests an aggregation run once a day at RunHour and,
// optionally, once at startup. Runs themselves happen on the queue worker.
type Scheduler struct {
	queue        Enqueuer
	logger       *logrus.Logger
	clock        clock.Clock
	runHour      int
	runOnStartup bool
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	lastRun      time.Time
}

// NewScheduler creates a new scheduler
func NewScheduler(q Enqueuer, runHour int, runOnStartup bool, c clock.Clock, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}
	if c == nil {
		c = clock.Real{}
	}

	return &Scheduler{
		queue:        q,
		logger:       logger,
		clock:        c,
		runHour:      runHour,
		runOnStartup: runOnStartup,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the scheduled tasks
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.runScheduler()
}

func (s *Scheduler) runScheduler() {
	defer s.wg.Done()

	if s.runOnStartup {
		s.Trigger(TriggerStartup)
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.executeScheduledJobs(s.clock.Now())
		}
	}
}

// executeScheduledJobs requests the daily run when t is within its hour and
// no scheduled run was requested yet that day.
func (s *Scheduler) executeScheduledJobs(t time.Time) {
	s.logger.WithFields(logrus.Fields{
		"hour":   t.Hour(),
		"minute": t.Minute(),
	}).Debug("Checking scheduled jobs")

	if t.Hour() != s.runHour {
		return
	}
	today := clock.Date(t)
	if s.lastRun.Equal(today) {
		return
	}
	if s.Trigger(TriggerScheduled) {
		s.lastRun = today
	}
}

// Trigger enqueues a run. It reports whether a run is now pending, which is
// also the case when another request was already queued.
func (s *Scheduler) Trigger(trigger TriggerType) bool {
	err := s.queue.Push(queue.Request{Reason: trigger.String(), RequestedAt: s.clock.Now()})
	switch {
	case err == nil:
		s.logger.WithField("trigger", trigger.String()).Info("Aggregation run requested")
		return true
	case errors.Is(err, queue.ErrQueueFull):
		s.logger.WithField("trigger", trigger.String()).Info("Aggregation run already pending")
		return true
	default:
		s.logger.WithError(err).WithField("trigger", trigger.String()).Error("Failed to request aggregation run")
		return false
	}
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}
