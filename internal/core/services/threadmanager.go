package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/ecfr-ingest/internal/core/domain"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/ecfr-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/ecfr-ingest/internal/logger"
)

// Ensure ThreadManager implements the interface.
var _ driving.ThreadManager = (*ThreadManager)(nil)

// Worker is one analytics worker the manager can run. Run processes
// items until done or until the persisted thread row requests a stop,
// in which case it returns domain.ErrStopRequested with its checkpoint
// saved.
type Worker interface {
	ThreadType() domain.ThreadType
	Run(ctx context.Context, restart bool) error
}

// stopWaitTimeout bounds how long StopAll and RestartThread wait for a
// worker to observe its stop flag.
const stopWaitTimeout = 2 * time.Minute

// ThreadManager owns the four analytics worker lifecycles. Lifecycle
// state lives in the thread store; the manager holds only the handles
// of workers it launched itself.
type ThreadManager struct {
	threads driven.ThreadStore
	workers map[domain.ThreadType]Worker

	mu      sync.Mutex
	running map[domain.ThreadType]chan struct{}

	now func() time.Time
}

// NewThreadManager creates a manager over the given workers.
func NewThreadManager(threads driven.ThreadStore, workers ...Worker) *ThreadManager {
	m := &ThreadManager{
		threads: threads,
		workers: make(map[domain.ThreadType]Worker, len(workers)),
		running: make(map[domain.ThreadType]chan struct{}),
		now:     time.Now,
	}
	for _, w := range workers {
		m.workers[w.ThreadType()] = w
	}
	return m
}

// StartThread starts one worker. Starting a running worker is a no-op
// returning domain.ErrAlreadyRunning.
func (m *ThreadManager) StartThread(ctx context.Context, t domain.ThreadType, opts driving.StartOptions) error {
	worker, ok := m.workers[t]
	if !ok {
		return fmt.Errorf("thread %s: %w", t, domain.ErrInvalidInput)
	}

	thread, err := m.threads.GetThread(ctx, t)
	if err != nil {
		return err
	}
	if thread.Status == domain.ThreadRunning || thread.Status == domain.ThreadPendingStop ||
		thread.Status == domain.ThreadPendingRestart {
		return fmt.Errorf("thread %s: %w", t, domain.ErrAlreadyRunning)
	}

	m.mu.Lock()
	if _, active := m.running[t]; active {
		m.mu.Unlock()
		return fmt.Errorf("thread %s: %w", t, domain.ErrAlreadyRunning)
	}
	done := make(chan struct{})
	m.running[t] = done
	m.mu.Unlock()

	started := m.now()
	thread.Status = domain.ThreadRunning
	thread.LastStartTime = &started
	thread.Error = ""
	if opts.Restart {
		thread.Resume = nil
		thread.Progress = domain.ThreadProgress{}
	}
	if err := m.threads.SaveThread(ctx, thread); err != nil {
		m.release(t, done)
		return err
	}

	logger.Info("Starting %s worker (restart=%v)", t, opts.Restart)
	go m.runWorker(worker, done, opts.Restart)
	return nil
}

// runWorker executes the worker and finalizes its thread row.
func (m *ThreadManager) runWorker(w Worker, done chan struct{}, restart bool) {
	defer m.release(w.ThreadType(), done)

	ctx := context.Background()
	err := w.Run(ctx, restart)

	thread, loadErr := m.threads.GetThread(ctx, w.ThreadType())
	if loadErr != nil {
		logger.Error("Finalize %s worker: %v", w.ThreadType(), loadErr)
		return
	}

	now := m.now()
	switch {
	case err == nil:
		thread.Status = domain.ThreadCompleted
		thread.LastCompletedTime = &now
		thread.Resume = nil
		logger.Info("%s worker completed", w.ThreadType())
	case errors.Is(err, domain.ErrStopRequested) || errors.Is(err, context.Canceled):
		thread.Status = domain.ThreadStopped
		thread.LastStopTime = &now
		logger.Info("%s worker stopped", w.ThreadType())
	default:
		thread.Status = domain.ThreadFailed
		thread.Error = err.Error()
		logger.Error("%s worker failed: %v", w.ThreadType(), err)
	}

	if err := m.threads.SaveThread(ctx, thread); err != nil {
		logger.Error("Finalize %s worker: %v", w.ThreadType(), err)
	}
}

func (m *ThreadManager) release(t domain.ThreadType, done chan struct{}) {
	m.mu.Lock()
	delete(m.running, t)
	m.mu.Unlock()
	close(done)
}

// StopThread requests a cooperative stop; the worker exits at its next
// checkpoint with its checkpoint preserved.
func (m *ThreadManager) StopThread(ctx context.Context, t domain.ThreadType) error {
	thread, err := m.threads.GetThread(ctx, t)
	if err != nil {
		return err
	}
	if thread.Status != domain.ThreadRunning {
		return nil
	}
	return m.threads.SetThreadStatus(ctx, t, domain.ThreadPendingStop)
}

// RestartThread stops the worker, clears its checkpoint, and starts it
// again.
func (m *ThreadManager) RestartThread(ctx context.Context, t domain.ThreadType) error {
	thread, err := m.threads.GetThread(ctx, t)
	if err != nil {
		return err
	}

	if thread.Status == domain.ThreadRunning {
		if err := m.threads.SetThreadStatus(ctx, t, domain.ThreadPendingRestart); err != nil {
			return err
		}
		if err := m.waitForExit(ctx, t); err != nil {
			return err
		}
	}

	return m.StartThread(ctx, t, driving.StartOptions{Restart: true})
}

// waitForExit blocks until the worker goroutine finishes, the wait
// times out, or ctx ends.
func (m *ThreadManager) waitForExit(ctx context.Context, t domain.ThreadType) error {
	m.mu.Lock()
	done, active := m.running[t]
	m.mu.Unlock()
	if !active {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-time.After(stopWaitTimeout):
		return fmt.Errorf("thread %s did not stop within %s", t, stopWaitTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartAll starts every worker. Already-running workers are left alone.
func (m *ThreadManager) StartAll(ctx context.Context) error {
	for _, t := range domain.AllThreadTypes {
		if _, ok := m.workers[t]; !ok {
			continue
		}
		err := m.StartThread(ctx, t, driving.StartOptions{})
		if err != nil && !errors.Is(err, domain.ErrAlreadyRunning) {
			return err
		}
	}
	return nil
}

// StopAll stops every worker and waits for acknowledgement.
func (m *ThreadManager) StopAll(ctx context.Context) error {
	for _, t := range domain.AllThreadTypes {
		if _, ok := m.workers[t]; !ok {
			continue
		}
		if err := m.StopThread(ctx, t); err != nil {
			return err
		}
	}
	for _, t := range domain.AllThreadTypes {
		if err := m.waitForExit(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// GetThreadStatus returns the persisted row for every worker.
func (m *ThreadManager) GetThreadStatus(ctx context.Context) ([]domain.AnalysisThread, error) {
	return m.threads.ListThreads(ctx)
}
