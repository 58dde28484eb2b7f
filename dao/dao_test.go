package dao

import (
	"cognito-backend/model"
	"cognito-backend/utils"
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
	require.NoError(t, AutoMigrate(db))
	DB = db
}

func TestEpisodeLifecycle(t *testing.T) {
	setupTestDB(t)

	ep := &model.Episode{Title: "第一期", Status: model.EpisodeUploaded}
	require.NoError(t, CreateEpisode(ep))
	require.NotZero(t, ep.ID)

	require.NoError(t, UpdateEpisodeStatus(ep.ID, model.EpisodeProcessed))
	require.NoError(t, UpdateEpisodeSummary(ep.ID, "本期摘要"))

	got, err := GetEpisodeByID(ep.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.EpisodeProcessed, got.Status)
	assert.Equal(t, "本期摘要", got.Summary)
}

func TestGetEpisodeByID_NotFound(t *testing.T) {
	setupTestDB(t)

	got, err := GetEpisodeByID(42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListEpisodes_PaginationAndFilter(t *testing.T) {
	setupTestDB(t)

	for i := 0; i < 5; i++ {
		status := model.EpisodeProcessed
		if i%2 == 0 {
			status = model.EpisodeUploaded
		}
		require.NoError(t, CreateEpisode(&model.Episode{Title: "节目", Status: status}))
	}

	episodes, total, err := ListEpisodes(1, 2, "")
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, episodes, 2)

	episodes, total, err = ListEpisodes(1, 10, model.EpisodeProcessed)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, episodes, 2)
}

func TestDeleteEpisode_CascadesChunks(t *testing.T) {
	setupTestDB(t)

	ep := &model.Episode{Title: "节目", Status: model.EpisodeProcessed}
	require.NoError(t, CreateEpisode(ep))
	require.NoError(t, CreateChunks([]*model.Chunk{
		{EpisodeID: ep.ID, Text: "第一块"},
		{EpisodeID: ep.ID, Text: "第二块"},
	}))

	require.NoError(t, DeleteEpisode(ep.ID))

	got, err := GetEpisodeByID(ep.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	var count int64
	require.NoError(t, DB.Model(&model.Chunk{}).Where("episode_id = ?", ep.ID).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestSearchChunksByText(t *testing.T) {
	setupTestDB(t)

	ep := &model.Episode{Title: "节目", Status: model.EpisodeProcessed}
	require.NoError(t, CreateEpisode(ep))
	require.NoError(t, CreateChunks([]*model.Chunk{
		{EpisodeID: ep.ID, Text: "讨论睡眠质量的片段"},
		{EpisodeID: ep.ID, Text: "讨论饮食习惯的片段"},
		{EpisodeID: ep.ID, Text: "又一个睡眠相关的片段"},
	}))

	chunks, err := SearchChunksByText("睡眠", 10)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)

	chunks, err = SearchChunksByText("睡眠", 1)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)

	chunks, err = SearchChunksByText("不存在", 10)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSaveChunkEmbeddings(t *testing.T) {
	setupTestDB(t)

	ep := &model.Episode{Title: "节目", Status: model.EpisodeProcessed}
	require.NoError(t, CreateEpisode(ep))
	chunks := []*model.Chunk{
		{EpisodeID: ep.ID, Text: "块一"},
		{EpisodeID: ep.ID, Text: "块二"},
	}
	require.NoError(t, CreateChunks(chunks))

	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}
	require.NoError(t, SaveChunkEmbeddings([]uint{chunks[0].ID, chunks[1].ID}, vectors))

	got, err := GetChunksByIDs([]uint{chunks[0].ID, chunks[1].ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i, c := range got {
		assert.Equal(t, vectors[i], utils.BytesToFloats(c.Embedding))
	}
}

func TestSaveChunkEmbeddings_LengthMismatch(t *testing.T) {
	setupTestDB(t)
	err := SaveChunkEmbeddings([]uint{1}, [][]float32{{1}, {2}})
	assert.Error(t, err)
}

func TestUpdateTask_TerminalGuard(t *testing.T) {
	setupTestDB(t)

	task := &model.Task{Type: model.TaskIntakeURL, Status: model.TaskPending}
	require.NoError(t, CreateTask(task))

	epID := uint(7)
	require.NoError(t, UpdateTask(task.ID, model.TaskDownloading, "下载中", &epID))
	require.NoError(t, UpdateTask(task.ID, model.TaskCompleted, "处理完成", &epID))

	// 终态之后的更新全部被忽略
	require.NoError(t, UpdateTask(task.ID, model.TaskFailed, "不应生效", nil))

	got, err := GetTaskByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskCompleted, got.Status)
	assert.Equal(t, "处理完成", got.Message)
	require.NotNil(t, got.EpisodeID)
	assert.Equal(t, epID, *got.EpisodeID)
}

func TestUpdateTask_MissingTaskIsNoop(t *testing.T) {
	setupTestDB(t)
	assert.NoError(t, UpdateTask(12345, model.TaskProcessing, "x", nil))
}

func TestUserUniqueness(t *testing.T) {
	setupTestDB(t)

	require.NoError(t, CreateUser(&model.User{Username: "alice", PasswordHash: "h", Role: model.RoleCreator}))
	err := CreateUser(&model.User{Username: "alice", PasswordHash: "h2", Role: model.RoleViewer})
	assert.Error(t, err)

	got, err := GetUserByUsername("alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.RoleCreator, got.Role)

	missing, err := GetUserByUsername("bob")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
