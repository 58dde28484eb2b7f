package query

import (
	"cognito-backend/model"
	"cognito-backend/service/vectorindex"
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const (
	answerHeader  = "以下为相关知识点摘录：\n"
	emptyAnswer   = "暂无相关内容"
	excerptLength = 300
)

// QueryEmbedder 将查询文本转换为向量
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChunkStore 检索引擎依赖的知识块读取操作
type ChunkStore interface {
	GetChunksByIDs(ids []uint) ([]model.Chunk, error)
	SearchChunksByText(query string, limit int) ([]model.Chunk, error)
}

// Engine 知识检索引擎：优先向量检索，向量不可用或无结果时
// 回退到子串匹配，保证只存了文本的节目也可查询
type Engine struct {
	embedder QueryEmbedder
	index    *vectorindex.Index
	store    ChunkStore
}

func NewEngine(embedder QueryEmbedder, index *vectorindex.Index, store ChunkStore) *Engine {
	return &Engine{
		embedder: embedder,
		index:    index,
		store:    store,
	}
}

// Result 单条检索命中
type Result struct {
	ChunkID   uint    `json:"chunk_id"`
	EpisodeID uint    `json:"episode_id"`
	Text      string  `json:"text"`
	Score     float32 `json:"score"`
}

// Answer 执行检索并拼装摘录式回答
func (e *Engine) Answer(ctx context.Context, question string, topK int) (string, []Result, error) {
	results, err := e.Search(ctx, question, topK)
	if err != nil {
		return "", nil, err
	}
	if len(results) == 0 {
		return emptyAnswer, results, nil
	}

	excerpts := make([]string, len(results))
	for i, r := range results {
		excerpts[i] = excerpt(r.Text, excerptLength)
	}
	return answerHeader + strings.Join(excerpts, "\n---\n"), results, nil
}

// Search 向量检索为主、子串匹配兜底
func (e *Engine) Search(ctx context.Context, question string, topK int) ([]Result, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	if results := e.vectorSearch(ctx, question, topK); len(results) > 0 {
		return results, nil
	}

	chunks, err := e.store.SearchChunksByText(question, topK)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %v", err)
	}
	results := make([]Result, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, Result{
			ChunkID:   c.ID,
			EpisodeID: c.EpisodeID,
			Text:      c.Text,
		})
	}
	return results, nil
}

// vectorSearch 任何一步失败都只降级，不向调用方报错
func (e *Engine) vectorSearch(ctx context.Context, question string, topK int) []Result {
	if e.embedder == nil {
		return nil
	}
	vec, err := e.embedder.EmbedQuery(ctx, question)
	if err != nil {
		slog.Warn("Query embedding failed, falling back to lexical search", "err", err)
		return nil
	}

	// 懒加载：重启后首次查询时以查询向量的维度恢复快照
	if err := e.index.Load(len(vec)); err != nil {
		slog.Warn("Vector index load failed, falling back to lexical search", "err", err)
		return nil
	}

	hits, err := e.index.Search([][]float32{vec}, topK)
	if err != nil {
		slog.Warn("Vector index search failed, falling back to lexical search", "err", err)
		return nil
	}
	if len(hits) == 0 || len(hits[0]) == 0 {
		return nil
	}

	ids := make([]uint, len(hits[0]))
	scores := make(map[uint]float32, len(hits[0]))
	for i, h := range hits[0] {
		ids[i] = h.ChunkID
		scores[h.ChunkID] = h.Score
	}

	chunks, err := e.store.GetChunksByIDs(ids)
	if err != nil {
		slog.Warn("Failed to hydrate chunks, falling back to lexical search", "err", err)
		return nil
	}
	byID := make(map[uint]model.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	// 按索引返回顺序组装，跳过已删除节目留下的陈旧向量
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			continue
		}
		results = append(results, Result{
			ChunkID:   c.ID,
			EpisodeID: c.EpisodeID,
			Text:      c.Text,
			Score:     scores[id],
		})
	}
	return results
}

// excerpt 截取前n个字符（按rune计）
func excerpt(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
