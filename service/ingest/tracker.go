package ingest

import (
	"cognito-backend/model"
	"log/slog"
)

// TaskStore 任务状态的持久化依赖，便于测试替换
type TaskStore interface {
	UpdateTask(id uint, status model.TaskStatus, message string, episodeID *uint) error
}

// TaskTracker 跟踪单个摄入作业的任务状态。
// 状态只向前推进；Complete/Fail之后的一切更新都被忽略。
type TaskTracker struct {
	store     TaskStore
	taskID    uint
	episodeID *uint
	terminal  bool
}

func NewTaskTracker(store TaskStore, taskID uint) *TaskTracker {
	return &TaskTracker{
		store:  store,
		taskID: taskID,
	}
}

// Attach 关联节目，此后的每次状态更新都会带上节目ID
func (t *TaskTracker) Attach(episodeID uint) {
	t.episodeID = &episodeID
}

func (t *TaskTracker) Update(status model.TaskStatus, message string) {
	if t.terminal {
		return
	}
	t.flush(status, message)
}

func (t *TaskTracker) Complete(message string) {
	if t.terminal {
		return
	}
	t.terminal = true
	t.flush(model.TaskCompleted, message)
}

func (t *TaskTracker) Fail(message string) {
	if t.terminal {
		return
	}
	t.terminal = true
	t.flush(model.TaskFailed, message)
}

func (t *TaskTracker) flush(status model.TaskStatus, message string) {
	if err := t.store.UpdateTask(t.taskID, status, message, t.episodeID); err != nil {
		slog.Error("Failed to update task status",
			"task_id", t.taskID,
			"status", status,
			"err", err,
		)
	}
}
