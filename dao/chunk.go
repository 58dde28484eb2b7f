package dao

import (
	"cognito-backend/model"
	"cognito-backend/utils"
	"fmt"

	"gorm.io/gorm"
)

func CreateChunks(chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return DB.Create(chunks).Error
}

func GetChunksByIDs(ids []uint) ([]model.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var chunks []model.Chunk
	if err := DB.Where("id IN ?", ids).Find(&chunks).Error; err != nil {
		return nil, err
	}
	return chunks, nil
}

// SearchChunksByText 子串匹配回退检索，按存储顺序返回
func SearchChunksByText(query string, limit int) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := DB.Where("text LIKE ?", "%"+query+"%").
		Limit(limit).
		Find(&chunks).Error; err != nil {
		return nil, err
	}
	return chunks, nil
}

// SaveChunkEmbeddings 在一个事务内把嵌入字节副本写回各知识块行
// ids与vectors按序一一对应
func SaveChunkEmbeddings(ids []uint, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids/vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	return DB.Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			if err := tx.Model(&model.Chunk{}).
				Where("id = ?", id).
				Update("embedding", utils.FloatsToBytes(vectors[i])).Error; err != nil {
				return fmt.Errorf("failed to update chunk %d: %v", id, err)
			}
		}
		return nil
	})
}
