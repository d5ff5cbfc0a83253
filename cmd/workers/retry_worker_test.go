package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio-slides/slide-service/internal/onboarding"
)

type MockPipeline struct {
	mock.Mock
	inflight atomic.Int32
	peak     atomic.Int32
}

func (m *MockPipeline) RetryableSubmissions(ctx context.Context, maxAttempts, limit int) ([]*onboarding.Submission, error) {
	args := m.Called(ctx, maxAttempts, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*onboarding.Submission), args.Error(1)
}

func (m *MockPipeline) Retry(ctx context.Context, id uuid.UUID) (*onboarding.PipelineResult, error) {
	n := m.inflight.Add(1)
	defer m.inflight.Add(-1)
	for {
		peak := m.peak.Load()
		if n <= peak || m.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)

	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*onboarding.PipelineResult), args.Error(1)
}

func submissions(n int) []*onboarding.Submission {
	out := make([]*onboarding.Submission, n)
	for i := range out {
		out[i] = &onboarding.Submission{ID: uuid.New(), CompanyName: "Acme", Status: onboarding.StatusFailed}
	}
	return out
}

func TestProcessFailedBoundsConcurrency(t *testing.T) {
	pipeline := new(MockPipeline)
	subs := submissions(6)
	pipeline.On("RetryableSubmissions", mock.Anything, 3, 20).Return(subs, nil)
	pipeline.On("Retry", mock.Anything, mock.Anything).Return(&onboarding.PipelineResult{Success: true}, nil)

	w := NewRetryWorker(pipeline, zap.NewNop(), DefaultRetryWorkerConfig())
	n := w.processFailed(context.Background())

	assert.Equal(t, 6, n)
	pipeline.AssertNumberOfCalls(t, "Retry", 6)
	assert.LessOrEqual(t, pipeline.peak.Load(), int32(2))
}

func TestProcessFailedContinuesAfterErrors(t *testing.T) {
	pipeline := new(MockPipeline)
	subs := submissions(2)
	pipeline.On("RetryableSubmissions", mock.Anything, mock.Anything, mock.Anything).Return(subs, nil)
	pipeline.On("Retry", mock.Anything, subs[0].ID).Return(nil, errors.New("boom"))
	pipeline.On("Retry", mock.Anything, subs[1].ID).Return(&onboarding.PipelineResult{}, nil)

	w := NewRetryWorker(pipeline, zap.NewNop(), DefaultRetryWorkerConfig())
	assert.Equal(t, 2, w.processFailed(context.Background()))
	pipeline.AssertExpectations(t)
}

func TestProcessFailedListError(t *testing.T) {
	pipeline := new(MockPipeline)
	pipeline.On("RetryableSubmissions", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	w := NewRetryWorker(pipeline, zap.NewNop(), DefaultRetryWorkerConfig())
	assert.Equal(t, 0, w.processFailed(context.Background()))
	pipeline.AssertNotCalled(t, "Retry", mock.Anything, mock.Anything)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	config := DefaultRetryWorkerConfig()
	config.Schedule = "not a schedule"

	w := NewRetryWorker(new(MockPipeline), zap.NewNop(), config)
	err := w.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid retry schedule")
}

func TestStartStopsWithContext(t *testing.T) {
	pipeline := new(MockPipeline)
	pipeline.On("RetryableSubmissions", mock.Anything, mock.Anything, mock.Anything).Return([]*onboarding.Submission{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewRetryWorker(pipeline, zap.NewNop(), DefaultRetryWorkerConfig()).Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
