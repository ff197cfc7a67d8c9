package taskmanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrTooManyTasks = errors.New("too many active tasks")
	ErrClosed       = errors.New("task manager is shutting down")
	ErrTaskNotFound = errors.New("task not found")
)

// Task представляет асинхронную задачу
type Task struct {
	ID        uuid.UUID
	Name      string
	Status    TaskStatus
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskStatus представляет статус задачи
type TaskStatus string

// Возможные статусы задач
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

func (s TaskStatus) finished() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TaskFunc представляет функцию, выполняемую в задаче
type TaskFunc func(ctx context.Context) error

// TaskManager запускает фоновые задачи, отвязанные от контекста запроса.
// Задачи не отменяются: Shutdown только дожидается их завершения.
type TaskManager struct {
	tasks     map[uuid.UUID]*Task
	mu        sync.RWMutex
	maxTasks  int
	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	logger    *zap.Logger
}

// Config содержит конфигурацию для TaskManager
type Config struct {
	MaxTasks int
}

// New создает новый экземпляр TaskManager
func New(cfg Config, logger *zap.Logger) *TaskManager {
	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 10
	}

	return &TaskManager{
		tasks:    make(map[uuid.UUID]*Task),
		maxTasks: maxTasks,
		closing:  make(chan struct{}),
		logger:   logger.Named("TaskManager"),
	}
}

// Shutdown запрещает новые задачи и ожидает завершения запущенных до отмены ctx.
func (tm *TaskManager) Shutdown(ctx context.Context) error {
	tm.closeOnce.Do(func() { close(tm.closing) })

	done := make(chan struct{})
	go func() {
		tm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for %d tasks: %w", tm.Active(), ctx.Err())
	}
}

// SubmitTask создает и запускает новую задачу. Задача получает контекст,
// не зависящий от ctx вызывающего, но сохраняющий его значения.
func (tm *TaskManager) SubmitTask(ctx context.Context, name string, taskFunc TaskFunc) (uuid.UUID, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	select {
	case <-tm.closing:
		return uuid.Nil, ErrClosed
	default:
	}

	if tm.activeLocked() >= tm.maxTasks {
		return uuid.Nil, ErrTooManyTasks
	}

	now := time.Now()
	task := &Task{
		ID:        uuid.New(),
		Name:      name,
		Status:    TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tm.tasks[task.ID] = task

	taskCtx := context.WithoutCancel(ctx)

	tm.wg.Add(1)
	go func() {
		defer tm.wg.Done()
		tm.runTask(taskCtx, task, taskFunc)
	}()

	return task.ID, nil
}

// runTask выполняет задачу и обновляет ее статус
func (tm *TaskManager) runTask(ctx context.Context, task *Task, taskFunc TaskFunc) {
	log := tm.logger.With(zap.String("taskID", task.ID.String()), zap.String("task", task.Name))
	tm.updateTaskStatus(task, TaskStatusRunning, "")

	defer func() {
		if r := recover(); r != nil {
			log.Error("Task panicked", zap.Any("panic", r), zap.Stack("stack"))
			tm.updateTaskStatus(task, TaskStatusFailed, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := taskFunc(ctx); err != nil {
		log.Error("Task failed", zap.Error(err))
		tm.updateTaskStatus(task, TaskStatusFailed, err.Error())
		return
	}
	log.Debug("Task completed")
	tm.updateTaskStatus(task, TaskStatusCompleted, "")
}

func (tm *TaskManager) updateTaskStatus(task *Task, status TaskStatus, message string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	task.Status = status
	task.Message = message
	task.UpdatedAt = time.Now()
}

// FindTask возвращает копию самой новой задачи с указанным именем.
func (tm *TaskManager) FindTask(name string) (Task, error) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	var found *Task
	for _, task := range tm.tasks {
		if task.Name == name && (found == nil || task.CreatedAt.After(found.CreatedAt)) {
			found = task
		}
	}
	if found == nil {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	return *found, nil
}

// Active возвращает число задач в статусах pending и running.
func (tm *TaskManager) Active() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.activeLocked()
}

func (tm *TaskManager) activeLocked() int {
	active := 0
	for _, task := range tm.tasks {
		if !task.Status.finished() {
			active++
		}
	}
	return active
}

// CleanupTasks удаляет завершенные задачи, которые старше указанного времени
func (tm *TaskManager) CleanupTasks(age time.Duration) int {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, task := range tm.tasks {
		if task.Status.finished() && now.Sub(task.UpdatedAt) > age {
			delete(tm.tasks, id)
			removed++
		}
	}
	return removed
}
