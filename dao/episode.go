package dao

import (
	"cognito-backend/model"
	"errors"

	"gorm.io/gorm"
)

func CreateEpisode(ep *model.Episode) error {
	return DB.Create(ep).Error
}

func GetEpisodeByID(id uint) (*model.Episode, error) {
	var ep model.Episode
	if err := DB.Preload("Chunks").Where("id = ?", id).First(&ep).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ep, nil
}

// ListEpisodes 分页列出节目，status为空时不过滤
func ListEpisodes(page, size int, status model.EpisodeStatus) ([]model.Episode, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}

	q := DB.Model(&model.Episode{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var episodes []model.Episode
	if err := q.Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&episodes).Error; err != nil {
		return nil, 0, err
	}
	return episodes, total, nil
}

func UpdateEpisodeStatus(id uint, status model.EpisodeStatus) error {
	return DB.Model(&model.Episode{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func UpdateEpisodeSummary(id uint, summary string) error {
	return DB.Model(&model.Episode{}).
		Where("id = ?", id).
		Update("summary", summary).Error
}

// DeleteEpisode 删除节目并级联删除其所有知识块
func DeleteEpisode(id uint) error {
	return DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("episode_id = ?", id).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Episode{}).Error
	})
}
