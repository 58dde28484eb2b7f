package model

import "time"

type EpisodeStatus string

const (
	// 音频已就位，尚未处理
	EpisodeUploaded EpisodeStatus = "uploaded"

	// 流水线处理中
	EpisodeProcessing EpisodeStatus = "processing"

	// 文本已清洗分块入库（嵌入是否成功与此解耦）
	EpisodeProcessed EpisodeStatus = "processed"

	// 分块入库失败
	EpisodeFailed EpisodeStatus = "failed"
)

// Episode 一期已摄入的节目，持有其切分出的知识块
// 在 file_path 上不建索引，按ID点查；status 建索引用于列表过滤
type Episode struct {
	ID        uint          `gorm:"primarykey" json:"id"`
	CreatedAt time.Time     `gorm:"not null" json:"created_at"`
	Title     string        `gorm:"size:255;not null" json:"title"`
	FilePath  string        `gorm:"size:512;not null" json:"file_path"`
	SourceURL string        `gorm:"size:512" json:"source_url"`
	Status    EpisodeStatus `gorm:"size:32;not null;default:uploaded;index" json:"status"`
	Summary   string        `gorm:"type:text" json:"summary"`

	Chunks []Chunk `gorm:"foreignKey:EpisodeID" json:"-"`
}

func (Episode) TableName() string {
	return "episodes"
}

// Chunk 知识块：一段规范化后的有界文本
// 行内只存文本与可选的嵌入字节副本，向量检索以索引快照为准
type Chunk struct {
	ID        uint     `gorm:"primarykey" json:"id"`
	EpisodeID uint     `gorm:"not null;index" json:"episode_id"`
	Text      string   `gorm:"type:text;not null" json:"text"`
	StartTime *float64 `json:"start_time"`
	EndTime   *float64 `json:"end_time"`
	Embedding []byte   `gorm:"type:blob" json:"-"`
}

func (Chunk) TableName() string {
	return "chunks"
}
