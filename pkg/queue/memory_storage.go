package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// retryBackoff is the delay added per failed attempt before a retry.
const retryBackoff = 30 * time.Second

// StorageOption configures a MemoryStorage.
type StorageOption func(*MemoryStorage)

// WithCapacity bounds the number of pending and processing tasks. CreateTask
// returns ErrQueueFull once the bound is reached. Zero means unbounded.
func WithCapacity(n int) StorageOption {
	return func(ms *MemoryStorage) {
		if n >= 0 {
			ms.capacity = n
		}
	}
}

// WithRetention sets how long completed tasks and dead letters are kept.
func WithRetention(d time.Duration) StorageOption {
	return func(ms *MemoryStorage) {
		if d > 0 {
			ms.retention = d
		}
	}
}

// MemoryStorage keeps tasks in process memory. It implements both
// EnqueuerRepository and WorkerRepository.
type MemoryStorage struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*Task
	dlq   map[uuid.UUID]*DeadLetter

	byStatus map[TaskStatus][]uuid.UUID

	capacity      int
	retention     time.Duration
	sweepInterval time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryStorage creates the storage and starts its background sweeper.
// Call Close to stop it.
func NewMemoryStorage(opts ...StorageOption) *MemoryStorage {
	ms := &MemoryStorage{
		tasks:         make(map[uuid.UUID]*Task),
		dlq:           make(map[uuid.UUID]*DeadLetter),
		byStatus:      make(map[TaskStatus][]uuid.UUID),
		retention:     time.Hour,
		sweepInterval: time.Second,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ms)
	}

	go ms.sweeper()

	return ms
}

// Close stops the sweeper. It is safe to call more than once.
func (ms *MemoryStorage) Close() error {
	ms.closeOnce.Do(func() { close(ms.done) })
	return nil
}

// CreateTask implements EnqueuerRepository.
func (ms *MemoryStorage) CreateTask(_ context.Context, task *Task) error {
	if task == nil {
		return errors.New("queue: task cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %s", ErrTaskExists, task.ID)
	}
	if ms.capacity > 0 && ms.inFlight() >= ms.capacity {
		return ErrQueueFull
	}

	taskCopy := *task
	ms.tasks[task.ID] = &taskCopy
	ms.byStatus[task.Status] = append(ms.byStatus[task.Status], task.ID)

	return nil
}

// ClaimTask locks the highest priority due task in one of queues. Ties go to
// the task scheduled first.
func (ms *MemoryStorage) ClaimTask(_ context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var best *Task

	for _, taskID := range ms.byStatus[TaskStatusPending] {
		task := ms.tasks[taskID]

		if !slices.Contains(queues, task.Queue) {
			continue
		}
		if task.ScheduledAt.After(now) {
			continue
		}

		if best == nil ||
			task.Priority > best.Priority ||
			(task.Priority == best.Priority && task.ScheduledAt.Before(best.ScheduledAt)) {
			best = task
		}
	}

	if best == nil {
		return nil, ErrNoTaskToClaim
	}

	lockUntil := now.Add(lockDuration)
	best.Status = TaskStatusProcessing
	best.LockedUntil = &lockUntil
	best.LockedBy = &workerID
	ms.moveStatus(best.ID, TaskStatusPending, TaskStatusProcessing)

	taskCopy := *best
	return &taskCopy, nil
}

// CompleteTask marks a claimed task as done.
func (ms *MemoryStorage) CompleteTask(_ context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processing(taskID)
	if err != nil {
		return err
	}

	now := time.Now()
	task.Status = TaskStatusCompleted
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil
	ms.moveStatus(taskID, TaskStatusProcessing, TaskStatusCompleted)

	return nil
}

// FailTask records a failed attempt. The task goes back to pending with
// backoff while retries remain, otherwise it becomes failed.
func (ms *MemoryStorage) FailTask(_ context.Context, taskID uuid.UUID, errorMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processing(taskID)
	if err != nil {
		return err
	}

	now := time.Now()
	task.RetryCount++
	task.Error = &errorMsg
	task.LockedUntil = nil
	task.LockedBy = nil

	if task.RetryCount > task.MaxRetries {
		task.Status = TaskStatusFailed
		task.ProcessedAt = &now
		ms.moveStatus(taskID, TaskStatusProcessing, TaskStatusFailed)
		return nil
	}

	task.Status = TaskStatusPending
	task.ScheduledAt = now.Add(time.Duration(task.RetryCount) * retryBackoff)
	ms.moveStatus(taskID, TaskStatusProcessing, TaskStatusPending)

	return nil
}

// MoveToDLQ moves a task into the dead letter queue.
func (ms *MemoryStorage) MoveToDLQ(_ context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	entry := &DeadLetter{
		ID:         uuid.New(),
		TaskID:     task.ID,
		Queue:      task.Queue,
		TaskName:   task.TaskName,
		Payload:    task.Payload,
		Priority:   task.Priority,
		RetryCount: task.RetryCount,
		FailedAt:   time.Now(),
	}
	if task.Error != nil {
		entry.Error = *task.Error
	}
	ms.dlq[entry.ID] = entry

	ms.removeFromStatusIndex(taskID, task.Status)
	delete(ms.tasks, taskID)

	return nil
}

// DeadLetters returns a copy of the dead letter queue.
func (ms *MemoryStorage) DeadLetters() []DeadLetter {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]DeadLetter, 0, len(ms.dlq))
	for _, entry := range ms.dlq {
		out = append(out, *entry)
	}
	return out
}

// Stats counts tasks by state.
func (ms *MemoryStorage) Stats() Stats {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	return Stats{
		Pending:     len(ms.byStatus[TaskStatusPending]),
		Processing:  len(ms.byStatus[TaskStatusProcessing]),
		Completed:   len(ms.byStatus[TaskStatusCompleted]),
		Failed:      len(ms.byStatus[TaskStatusFailed]),
		DeadLetters: len(ms.dlq),
	}
}

// must be called with mu held
func (ms *MemoryStorage) inFlight() int {
	return len(ms.byStatus[TaskStatusPending]) + len(ms.byStatus[TaskStatusProcessing])
}

func (ms *MemoryStorage) processing(taskID uuid.UUID) (*Task, error) {
	task, exists := ms.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if task.Status != TaskStatusProcessing {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
	}
	return task, nil
}

func (ms *MemoryStorage) moveStatus(taskID uuid.UUID, from, to TaskStatus) {
	ms.removeFromStatusIndex(taskID, from)
	ms.byStatus[to] = append(ms.byStatus[to], taskID)
}

func (ms *MemoryStorage) removeFromStatusIndex(taskID uuid.UUID, status TaskStatus) {
	ms.byStatus[status] = slices.DeleteFunc(ms.byStatus[status], func(id uuid.UUID) bool {
		return id == taskID
	})
}

func (ms *MemoryStorage) sweeper() {
	ticker := time.NewTicker(ms.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.sweep(time.Now())
		case <-ms.done:
			return
		}
	}
}

// sweep releases locks held past their deadline, so tasks claimed by a worker
// that died are picked up again, and drops finished entries older than the
// retention period.
func (ms *MemoryStorage) sweep(now time.Time) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, taskID := range slices.Clone(ms.byStatus[TaskStatusProcessing]) {
		task := ms.tasks[taskID]
		if task.LockedUntil != nil && task.LockedUntil.Before(now) {
			task.Status = TaskStatusPending
			task.LockedUntil = nil
			task.LockedBy = nil
			ms.moveStatus(taskID, TaskStatusProcessing, TaskStatusPending)
		}
	}

	cutoff := now.Add(-ms.retention)
	for _, status := range []TaskStatus{TaskStatusCompleted, TaskStatusFailed} {
		for _, taskID := range slices.Clone(ms.byStatus[status]) {
			task := ms.tasks[taskID]
			if task.ProcessedAt != nil && task.ProcessedAt.Before(cutoff) {
				ms.removeFromStatusIndex(taskID, status)
				delete(ms.tasks, taskID)
			}
		}
	}
	for id, entry := range ms.dlq {
		if entry.FailedAt.Before(cutoff) {
			delete(ms.dlq, id)
		}
	}
}
