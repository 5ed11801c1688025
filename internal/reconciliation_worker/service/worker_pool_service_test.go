package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bank-reconciliation-engine/internal/domain/shared"
)

// MockProcessingService mocks the ProcessingService interface
type MockProcessingService struct {
	mock.Mock
}

func (m *MockProcessingService) ProcessInvoiceEvent(ctx context.Context, event *shared.InvoiceEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// blockingService counts concurrent calls and waits for release
type blockingService struct {
	running  int32
	peak     int32
	release  chan struct{}
	finished sync.WaitGroup
}

func (s *blockingService) ProcessInvoiceEvent(context.Context, *shared.InvoiceEvent) error {
	defer s.finished.Done()
	n := atomic.AddInt32(&s.running, 1)
	for {
		peak := atomic.LoadInt32(&s.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&s.peak, peak, n) {
			break
		}
	}
	<-s.release
	atomic.AddInt32(&s.running, -1)
	return nil
}

func TestWorkerPoolProcessingService_ProcessInvoiceEvent(t *testing.T) {
	t.Run("ReturnsBaseResult", func(t *testing.T) {
		base := new(MockProcessingService)
		pool, err := NewWorkerPoolProcessingService(base, WorkerPoolConfig{Size: 2}, newTestLogger())
		require.NoError(t, err)
		defer pool.Shutdown()

		event := testInvoiceEvent()
		baseErr := errors.New("rematch failed")
		base.On("ProcessInvoiceEvent", mock.Anything, mock.MatchedBy(func(e *shared.InvoiceEvent) bool {
			return e.InvoiceID == event.InvoiceID && e != event
		})).Return(baseErr).Once()

		err = pool.ProcessInvoiceEvent(context.Background(), event)
		assert.ErrorIs(t, err, baseErr)
		base.AssertExpectations(t)
	})

	t.Run("BoundsConcurrency", func(t *testing.T) {
		base := &blockingService{release: make(chan struct{})}
		pool, err := NewWorkerPoolProcessingService(base, WorkerPoolConfig{Size: 2}, newTestLogger())
		require.NoError(t, err)
		defer pool.Shutdown()
		assert.Equal(t, 2, pool.Capacity())

		const events = 5
		base.finished.Add(events)
		var callers sync.WaitGroup
		for i := 0; i < events; i++ {
			callers.Add(1)
			go func() {
				defer callers.Done()
				assert.NoError(t, pool.ProcessInvoiceEvent(context.Background(), testInvoiceEvent()))
			}()
		}

		require.Eventually(t, func() bool { return pool.Running() == 2 }, time.Second, 5*time.Millisecond)
		close(base.release)
		base.finished.Wait()
		callers.Wait()

		assert.LessOrEqual(t, atomic.LoadInt32(&base.peak), int32(2))
	})

	t.Run("ContextCanceledWhileWaiting", func(t *testing.T) {
		base := &blockingService{release: make(chan struct{})}
		pool, err := NewWorkerPoolProcessingService(base, WorkerPoolConfig{Size: 1}, newTestLogger())
		require.NoError(t, err)
		defer pool.Shutdown()

		base.finished.Add(1)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err = pool.ProcessInvoiceEvent(ctx, testInvoiceEvent())
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		close(base.release)
		base.finished.Wait()
	})
}
