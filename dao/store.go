package dao

import "cognito-backend/model"

// Store 以对象形式暴露流水线与检索所需的数据访问，
// 便于作为依赖显式传入worker而非散落的包级调用
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

func (Store) CreateEpisode(ep *model.Episode) error {
	return CreateEpisode(ep)
}

func (Store) GetEpisode(id uint) (*model.Episode, error) {
	return GetEpisodeByID(id)
}

func (Store) UpdateEpisodeStatus(id uint, status model.EpisodeStatus) error {
	return UpdateEpisodeStatus(id, status)
}

func (Store) CreateChunks(chunks []*model.Chunk) error {
	return CreateChunks(chunks)
}

func (Store) SaveChunkEmbeddings(ids []uint, vectors [][]float32) error {
	return SaveChunkEmbeddings(ids, vectors)
}

func (Store) GetChunksByIDs(ids []uint) ([]model.Chunk, error) {
	return GetChunksByIDs(ids)
}

func (Store) SearchChunksByText(query string, limit int) ([]model.Chunk, error) {
	return SearchChunksByText(query, limit)
}

func (Store) UpdateTask(id uint, status model.TaskStatus, message string, episodeID *uint) error {
	return UpdateTask(id, status, message, episodeID)
}
