package ingest

import (
	"cognito-backend/model"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taskUpdate struct {
	status  model.TaskStatus
	message string
}

type fakeTaskStore struct {
	updates []taskUpdate
}

func (f *fakeTaskStore) UpdateTask(id uint, status model.TaskStatus, message string, episodeID *uint) error {
	f.updates = append(f.updates, taskUpdate{status: status, message: message})
	return nil
}

func fakeEngine(name, text string, err error) SpeechEngine {
	return engineFunc{name: name, text: text, err: err}
}

type engineFunc struct {
	name string
	text string
	err  error
}

func (e engineFunc) Name() string {
	return e.name
}

func (e engineFunc) Recognize(ctx context.Context, audioPath string) (string, error) {
	return e.text, e.err
}

func TestTranscribe_FirstStrategyWins(t *testing.T) {
	store := &fakeTaskStore{}
	tracker := NewTaskTracker(store, 1)
	chain := NewFallbackChain(
		EngineStrategy(fakeEngine("primary", "识别结果", nil), "ASR进行中（主引擎）"),
		EngineStrategy(fakeEngine("secondary", "不应被调用", nil), "主引擎失败，尝试次级引擎"),
	)

	result := chain.Transcribe(context.Background(), "/tmp/a.m4a", tracker)
	assert.Equal(t, "识别结果", result.Text)
	assert.Equal(t, "primary", result.Strategy)
	assert.False(t, result.Degraded)
}

func TestTranscribe_FallsThroughOnError(t *testing.T) {
	store := &fakeTaskStore{}
	tracker := NewTaskTracker(store, 1)
	chain := NewFallbackChain(
		EngineStrategy(fakeEngine("primary", "", errors.New("connection refused")), "ASR进行中（主引擎）"),
		EngineStrategy(fakeEngine("secondary", "次级结果", nil), "主引擎失败，尝试次级引擎"),
	)

	result := chain.Transcribe(context.Background(), "/tmp/a.m4a", tracker)
	assert.Equal(t, "次级结果", result.Text)
	assert.Equal(t, "secondary", result.Strategy)
}

func TestTranscribe_EmptyTextTreatedAsFailure(t *testing.T) {
	store := &fakeTaskStore{}
	tracker := NewTaskTracker(store, 1)
	chain := NewFallbackChain(
		EngineStrategy(fakeEngine("primary", "   ", nil), "ASR进行中（主引擎）"),
		EngineStrategy(fakeEngine("secondary", "有效结果", nil), "主引擎失败，尝试次级引擎"),
	)

	result := chain.Transcribe(context.Background(), "/tmp/a.m4a", tracker)
	assert.Equal(t, "有效结果", result.Text)
}

func TestTranscribe_AllStrategiesFailProducesPlaceholder(t *testing.T) {
	store := &fakeTaskStore{}
	tracker := NewTaskTracker(store, 1)
	chain := NewFallbackChain(
		EngineStrategy(fakeEngine("primary", "", errors.New("timeout")), "ASR进行中（主引擎）"),
		EngineStrategy(fakeEngine("secondary", "", errors.New("service unavailable")), "主引擎失败，尝试次级引擎"),
	)

	result := chain.Transcribe(context.Background(), "/tmp/a.m4a", tracker)
	assert.True(t, result.Degraded)
	assert.Equal(t, "placeholder", result.Strategy)
	assert.True(t, strings.HasPrefix(result.Text, PlaceholderPrefix))
	assert.Contains(t, result.Text, "service unavailable")

	// 降级后任务进入文本处理而非失败
	require.NotEmpty(t, store.updates)
	last := store.updates[len(store.updates)-1]
	assert.Equal(t, model.TaskProcessing, last.status)
}

func TestTranscribe_UpdatesTaskPerStrategy(t *testing.T) {
	store := &fakeTaskStore{}
	tracker := NewTaskTracker(store, 1)
	chain := NewFallbackChain(
		EngineStrategy(fakeEngine("primary", "", errors.New("down")), "ASR进行中（主引擎）"),
		EngineStrategy(fakeEngine("secondary", "结果", nil), "主引擎失败，尝试次级引擎"),
	)

	chain.Transcribe(context.Background(), "/tmp/a.m4a", tracker)

	require.Len(t, store.updates, 2)
	assert.Equal(t, "ASR进行中（主引擎）", store.updates[0].message)
	assert.Equal(t, model.TaskTranscribing, store.updates[0].status)
	assert.Equal(t, "主引擎失败，尝试次级引擎", store.updates[1].message)
}

func TestTaskTracker_TerminalGuard(t *testing.T) {
	store := &fakeTaskStore{}
	tracker := NewTaskTracker(store, 1)

	tracker.Update(model.TaskDownloading, "下载中")
	tracker.Complete("完成")
	tracker.Update(model.TaskProcessing, "不应写入")
	tracker.Fail("也不应写入")

	require.Len(t, store.updates, 2)
	assert.Equal(t, model.TaskCompleted, store.updates[1].status)
}
