package query

import (
	"cognito-backend/dao"
	"cognito-backend/model"
	"cognito-backend/service/vectorindex"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, dao.AutoMigrate(db))
	dao.DB = db
}

type fakeQueryEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeQueryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

func seedChunks(t *testing.T, texts ...string) []model.Chunk {
	t.Helper()
	ep := &model.Episode{Title: "节目", Status: model.EpisodeProcessed}
	require.NoError(t, dao.CreateEpisode(ep))

	chunks := make([]*model.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &model.Chunk{EpisodeID: ep.ID, Text: text}
	}
	require.NoError(t, dao.CreateChunks(chunks))

	out := make([]model.Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = *c
	}
	return out
}

func TestAnswer_VectorPath(t *testing.T) {
	setupTestDB(t)
	chunks := seedChunks(t, "胰岛素的作用机制", "运动与血糖控制")

	index := vectorindex.New(t.TempDir())
	require.NoError(t, index.Load(2))
	require.NoError(t, index.AddVectors([][]float32{{1, 0}, {0, 1}}, []uint{chunks[0].ID, chunks[1].ID}))

	engine := NewEngine(&fakeQueryEmbedder{vector: []float32{1, 0}}, index, dao.NewStore())

	answer, results, err := engine.Answer(context.Background(), "胰岛素", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, chunks[0].ID, results[0].ChunkID)
	assert.True(t, strings.HasPrefix(answer, "以下为相关知识点摘录：\n"))
	assert.Contains(t, answer, "胰岛素的作用机制")
}

func TestAnswer_RestoresSnapshotAfterRestart(t *testing.T) {
	setupTestDB(t)
	chunks := seedChunks(t, "胰岛素抵抗的成因")

	dir := t.TempDir()
	seeded := vectorindex.New(dir)
	require.NoError(t, seeded.Load(2))
	require.NoError(t, seeded.AddVectors([][]float32{{1, 0}}, []uint{chunks[0].ID}))

	// 模拟进程重启：新索引实例未显式Load，首次查询时从快照恢复
	restarted := vectorindex.New(dir)
	engine := NewEngine(&fakeQueryEmbedder{vector: []float32{1, 0}}, restarted, dao.NewStore())

	// 问题不是块文本的子串，命中只能来自向量检索
	answer, results, err := engine.Answer(context.Background(), "什么导致代谢变差", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, chunks[0].ID, results[0].ChunkID)
	assert.Contains(t, answer, "胰岛素抵抗的成因")
}

func TestAnswer_LexicalFallbackWhenIndexEmpty(t *testing.T) {
	setupTestDB(t)
	seedChunks(t, "关于睡眠的知识点", "别的内容")

	index := vectorindex.New(t.TempDir())
	require.NoError(t, index.Load(2))

	engine := NewEngine(&fakeQueryEmbedder{vector: []float32{1, 0}}, index, dao.NewStore())

	answer, results, err := engine.Answer(context.Background(), "睡眠", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, answer, "关于睡眠的知识点")
}

func TestAnswer_LexicalFallbackWhenEmbedderFails(t *testing.T) {
	setupTestDB(t)
	seedChunks(t, "咖啡因对睡眠的影响")

	index := vectorindex.New(t.TempDir())
	require.NoError(t, index.Load(2))
	require.NoError(t, index.AddVectors([][]float32{{1, 0}}, []uint{1}))

	engine := NewEngine(&fakeQueryEmbedder{err: errors.New("model unavailable")}, index, dao.NewStore())

	_, results, err := engine.Answer(context.Background(), "咖啡因", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Text, "咖啡因")
}

func TestAnswer_NilEmbedderUsesLexical(t *testing.T) {
	setupTestDB(t)
	seedChunks(t, "维生素D与免疫")

	index := vectorindex.New(t.TempDir())
	require.NoError(t, index.Load(2))

	engine := NewEngine(nil, index, dao.NewStore())

	_, results, err := engine.Answer(context.Background(), "维生素", 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestAnswer_NoResults(t *testing.T) {
	setupTestDB(t)

	index := vectorindex.New(t.TempDir())
	require.NoError(t, index.Load(2))

	engine := NewEngine(nil, index, dao.NewStore())

	answer, results, err := engine.Answer(context.Background(), "不存在的主题", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, "暂无相关内容", answer)
}

func TestAnswer_StaleVectorsDropped(t *testing.T) {
	setupTestDB(t)
	chunks := seedChunks(t, "仍然存在的块")

	index := vectorindex.New(t.TempDir())
	require.NoError(t, index.Load(2))
	// 9999对应的块已不在库中
	require.NoError(t, index.AddVectors([][]float32{{1, 0}, {0.9, 0.1}}, []uint{9999, chunks[0].ID}))

	engine := NewEngine(&fakeQueryEmbedder{vector: []float32{1, 0}}, index, dao.NewStore())

	_, results, err := engine.Answer(context.Background(), "块", 2)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, chunks[0].ID, results[0].ChunkID)
}

func TestAnswer_ExcerptTruncatedTo300Runes(t *testing.T) {
	setupTestDB(t)
	long := strings.Repeat("长", 400)
	seedChunks(t, long+"searchable")

	index := vectorindex.New(t.TempDir())
	require.NoError(t, index.Load(2))

	engine := NewEngine(nil, index, dao.NewStore())

	answer, _, err := engine.Answer(context.Background(), "searchable", 1)
	require.NoError(t, err)
	body := strings.TrimPrefix(answer, "以下为相关知识点摘录：\n")
	assert.Equal(t, 300, len([]rune(body)))
}

func TestSearch_RejectsNonPositiveTopK(t *testing.T) {
	setupTestDB(t)
	index := vectorindex.New(t.TempDir())
	require.NoError(t, index.Load(2))

	engine := NewEngine(nil, index, dao.NewStore())
	_, err := engine.Search(context.Background(), "问题", 0)
	assert.Error(t, err)
}
