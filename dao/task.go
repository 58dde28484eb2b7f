package dao

import (
	"cognito-backend/model"
	"errors"

	"gorm.io/gorm"
)

func CreateTask(task *model.Task) error {
	return DB.Create(task).Error
}

func GetTaskByID(id uint) (*model.Task, error) {
	var task model.Task
	if err := DB.Where("id = ?", id).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// UpdateTask 追加式状态变更；completed/failed为终态，之后的变更一律忽略
func UpdateTask(id uint, status model.TaskStatus, message string, episodeID *uint) error {
	return DB.Transaction(func(tx *gorm.DB) error {
		var task model.Task
		if err := tx.Where("id = ?", id).First(&task).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if task.Status.IsTerminal() {
			return nil
		}

		updates := map[string]any{
			"status":  status,
			"message": message,
		}
		if episodeID != nil {
			updates["episode_id"] = *episodeID
		}
		return tx.Model(&model.Task{}).Where("id = ?", id).Updates(updates).Error
	})
}
