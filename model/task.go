package model

import "time"

type TaskType string

const (
	TaskIntakeURL         TaskType = "intake_url"
	TaskUploadAudio       TaskType = "upload_audio"
	TaskTranscriptProcess TaskType = "transcript_process"
)

type TaskStatus string

const (
	TaskPending      TaskStatus = "pending"
	TaskDownloading  TaskStatus = "downloading"
	TaskTranscribing TaskStatus = "transcribing"
	TaskProcessing   TaskStatus = "processing"

	// 终态，之后不再接受任何状态变更
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// IsTerminal 判断状态是否为终态
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task 摄入作业的进度记录，对外轮询的唯一可见状态
type Task struct {
	ID        uint       `gorm:"primarykey" json:"id"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
	EpisodeID *uint      `gorm:"index" json:"episode_id"`
	Type      TaskType   `gorm:"size:64;not null" json:"type"`
	Status    TaskStatus `gorm:"size:32;not null;default:pending" json:"status"`
	Message   string     `gorm:"type:text" json:"message"`
}

func (Task) TableName() string {
	return "tasks"
}
