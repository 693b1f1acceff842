package scheduler

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mapprice/server/internal/clock"
	"mapprice/server/internal/queue"
)

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) Push(req queue.Request) error {
	args := m.Called(req)
	return args.Error(0)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func TestTriggerType_String(t *testing.T) {
	assert.Equal(t, "startup", TriggerStartup.String())
	assert.Equal(t, "scheduled", TriggerScheduled.String())
	assert.Equal(t, "manual", TriggerManual.String())
	assert.Equal(t, "unknown", TriggerType(42).String())
}

func TestExecuteScheduledJobs_OncePerDay(t *testing.T) {
	q := &MockEnqueuer{}
	now := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
	s := NewScheduler(q, 3, false, clock.Fixed(now), quietLogger())

	q.On("Push", queue.Request{Reason: "scheduled", RequestedAt: now}).Return(nil).Once()

	s.executeScheduledJobs(time.Date(2024, 6, 1, 2, 59, 0, 0, time.UTC))
	s.executeScheduledJobs(now)
	s.executeScheduledJobs(now.Add(time.Minute))
	s.executeScheduledJobs(now.Add(30 * time.Minute))

	q.AssertExpectations(t)
	q.AssertNumberOfCalls(t, "Push", 1)
}

func TestExecuteScheduledJobs_NextDay(t *testing.T) {
	q := &MockEnqueuer{}
	now := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
	s := NewScheduler(q, 3, false, clock.Fixed(now), quietLogger())
	q.On("Push", mock.Anything).Return(nil)

	s.executeScheduledJobs(now)
	s.executeScheduledJobs(now.AddDate(0, 0, 1))

	q.AssertNumberOfCalls(t, "Push", 2)
}

func TestExecuteScheduledJobs_RetriesWhenClosed(t *testing.T) {
	q := &MockEnqueuer{}
	now := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
	s := NewScheduler(q, 3, false, clock.Fixed(now), quietLogger())
	q.On("Push", mock.Anything).Return(queue.ErrQueueClosed).Once()
	q.On("Push", mock.Anything).Return(nil).Once()

	s.executeScheduledJobs(now)
	s.executeScheduledJobs(now.Add(time.Minute))

	q.AssertNumberOfCalls(t, "Push", 2)
}

func TestTrigger_PendingRunCounts(t *testing.T) {
	q := &MockEnqueuer{}
	s := NewScheduler(q, 3, false, clock.Fixed(time.Now()), quietLogger())
	q.On("Push", mock.Anything).Return(queue.ErrQueueFull).Once()

	assert.True(t, s.Trigger(TriggerManual))
}

func TestScheduler_StartupRun(t *testing.T) {
	logger := quietLogger()
	rq := queue.NewRunQueue(1, logger)
	defer rq.Close()

	s := NewScheduler(rq, 3, true, nil, logger)
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return rq.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}
