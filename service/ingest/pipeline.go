package ingest

import (
	"cognito-backend/model"
	"cognito-backend/service/textproc"
	"context"
	"fmt"
)

// ProcessTranscript 处理转录文本：清洗→分块→入库→嵌入→更新向量索引。
// 知识块落库后节目即标记为processed：嵌入/索引失败只会让任务失败，
// 文本仍可通过子串检索查询，不会留下状态不明的节目。
func (w *Worker) ProcessTranscript(ctx context.Context, tracker *TaskTracker, episodeID uint, transcript string) error {
	ep, err := w.store.GetEpisode(episodeID)
	if err != nil {
		return fmt.Errorf("failed to load episode %d: %v", episodeID, err)
	}
	if ep == nil {
		return fmt.Errorf("episode %d not found", episodeID)
	}

	if err := w.store.UpdateEpisodeStatus(episodeID, model.EpisodeProcessing); err != nil {
		return fmt.Errorf("failed to update episode status: %v", err)
	}

	cleaned := w.normalizer.Clean(transcript)
	blocks := textproc.ChunkText(cleaned, w.maxChunkChars)
	if len(blocks) == 0 {
		if err := w.store.UpdateEpisodeStatus(episodeID, model.EpisodeProcessed); err != nil {
			return fmt.Errorf("failed to update episode status: %v", err)
		}
		tracker.Update(model.TaskProcessing, "清洗后无有效文本")
		return nil
	}

	chunks := make([]*model.Chunk, len(blocks))
	for i, b := range blocks {
		chunks[i] = &model.Chunk{
			EpisodeID: episodeID,
			Text:      b,
		}
	}
	if err := w.store.CreateChunks(chunks); err != nil {
		if uerr := w.store.UpdateEpisodeStatus(episodeID, model.EpisodeFailed); uerr != nil {
			return fmt.Errorf("failed to store chunks: %v (episode status update also failed: %v)", err, uerr)
		}
		return fmt.Errorf("failed to store chunks: %v", err)
	}

	if err := w.store.UpdateEpisodeStatus(episodeID, model.EpisodeProcessed); err != nil {
		return fmt.Errorf("failed to update episode status: %v", err)
	}

	texts := make([]string, len(chunks))
	ids := make([]uint, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		ids[i] = c.ID
	}

	vectors, err := w.embedder.EmbedPassages(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding failed: %v", err)
	}

	if err := w.index.Load(len(vectors[0])); err != nil {
		return fmt.Errorf("failed to load vector index: %v", err)
	}
	if err := w.store.SaveChunkEmbeddings(ids, vectors); err != nil {
		return fmt.Errorf("failed to save chunk embeddings: %v", err)
	}
	if err := w.index.AddVectors(vectors, ids); err != nil {
		return fmt.Errorf("failed to update vector index: %v", err)
	}

	tracker.Update(model.TaskProcessing, fmt.Sprintf("已处理 %d 个块", len(chunks)))
	return nil
}
