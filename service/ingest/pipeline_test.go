package ingest

import (
	"cognito-backend/dao"
	"cognito-backend/model"
	"cognito-backend/service/textproc"
	"cognito-backend/service/vectorindex"
	"context"
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

// 确定性的假嵌入器：把文本映射到固定维度的向量
type fakeEmbedder struct {
	dim   int
	calls int
}

func (f *fakeEmbedder) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = f.embed(text)
	}
	return vectors, nil
}

func (f *fakeEmbedder) embed(text string) []float32 {
	v := make([]float32, f.dim)
	for i, r := range []rune(text) {
		v[i%f.dim] += float32(r % 97)
	}
	return v
}

func newTestWorker(t *testing.T, embedder *fakeEmbedder) *Worker {
	t.Helper()
	setupTestDB(t)

	index := vectorindex.New(t.TempDir())
	return NewWorker(
		dao.NewStore(),
		textproc.NewNormalizer(),
		embedder,
		index,
		nil,
		nil,
		nil,
		t.TempDir(),
		100,
	)
}

func TestProcessTranscript_EndToEnd(t *testing.T) {
	embedder := &fakeEmbedder{dim: 8}
	w := newTestWorker(t, embedder)

	ep := &model.Episode{Title: "测试节目", Status: model.EpisodeUploaded}
	require.NoError(t, dao.CreateEpisode(ep))

	store := &fakeTaskStore{}
	tracker := NewTaskTracker(store, 1)
	tracker.Attach(ep.ID)

	transcript := "嗯 这是 第一句。 然后 这是 第二句。"
	require.NoError(t, w.ProcessTranscript(context.Background(), tracker, ep.ID, transcript))

	// 节目进入processed状态
	got, err := dao.GetEpisodeByID(ep.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EpisodeProcessed, got.Status)

	// 清洗后的文本落为知识块且带有嵌入
	require.Len(t, got.Chunks, 1)
	assert.Equal(t, "这是 第一句。 这是 第二句。", got.Chunks[0].Text)
	assert.NotEmpty(t, got.Chunks[0].Embedding)

	// 向量索引可检索到该块
	hits, err := w.index.Search([][]float32{embedder.embed(got.Chunks[0].Text)}, 1)
	require.NoError(t, err)
	require.Len(t, hits[0], 1)
	assert.Equal(t, got.Chunks[0].ID, hits[0][0].ChunkID)

	// 任务进度记录了处理的块数
	require.NotEmpty(t, store.updates)
	assert.Equal(t, "已处理 1 个块", store.updates[len(store.updates)-1].message)
}

func TestProcessTranscript_ChunksLongText(t *testing.T) {
	embedder := &fakeEmbedder{dim: 8}
	w := newTestWorker(t, embedder)

	ep := &model.Episode{Title: "长节目", Status: model.EpisodeUploaded}
	require.NoError(t, dao.CreateEpisode(ep))

	transcript := ""
	for i := 0; i < 20; i++ {
		transcript += "这是一个足够长的测试句子用来验证分块行为。 "
	}
	tracker := NewTaskTracker(&fakeTaskStore{}, 1)
	require.NoError(t, w.ProcessTranscript(context.Background(), tracker, ep.ID, transcript))

	got, err := dao.GetEpisodeByID(ep.ID)
	require.NoError(t, err)
	assert.Greater(t, len(got.Chunks), 1)
	assert.Equal(t, len(got.Chunks), w.index.Count())
}

func TestProcessTranscript_EmptyAfterCleaning(t *testing.T) {
	embedder := &fakeEmbedder{dim: 8}
	w := newTestWorker(t, embedder)

	ep := &model.Episode{Title: "空节目", Status: model.EpisodeUploaded}
	require.NoError(t, dao.CreateEpisode(ep))

	store := &fakeTaskStore{}
	tracker := NewTaskTracker(store, 1)
	require.NoError(t, w.ProcessTranscript(context.Background(), tracker, ep.ID, "嗯 啊 然后"))

	got, err := dao.GetEpisodeByID(ep.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EpisodeProcessed, got.Status)
	assert.Empty(t, got.Chunks)
	assert.Equal(t, 0, embedder.calls)

	require.NotEmpty(t, store.updates)
	assert.Equal(t, "清洗后无有效文本", store.updates[len(store.updates)-1].message)
}

func TestProcessTranscript_UnknownEpisode(t *testing.T) {
	embedder := &fakeEmbedder{dim: 8}
	w := newTestWorker(t, embedder)

	tracker := NewTaskTracker(&fakeTaskStore{}, 1)
	err := w.ProcessTranscript(context.Background(), tracker, 9999, "文本")
	assert.ErrorContains(t, err, "not found")
}

func TestProcessSubmittedTranscript_CompletesTask(t *testing.T) {
	embedder := &fakeEmbedder{dim: 8}
	w := newTestWorker(t, embedder)

	ep := &model.Episode{Title: "节目", Status: model.EpisodeUploaded}
	require.NoError(t, dao.CreateEpisode(ep))

	task := &model.Task{Type: model.TaskTranscriptProcess, Status: model.TaskPending}
	require.NoError(t, dao.CreateTask(task))

	require.NoError(t, w.ProcessSubmittedTranscript(context.Background(), task.ID, ep.ID, "完整的一句话。"))

	got, err := dao.GetTaskByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskCompleted, got.Status)
	assert.Equal(t, "字幕处理完成", got.Message)
	require.NotNil(t, got.EpisodeID)
	assert.Equal(t, ep.ID, *got.EpisodeID)
}
