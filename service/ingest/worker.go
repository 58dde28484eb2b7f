package ingest

import (
	"cognito-backend/model"
	"cognito-backend/service/captions"
	"cognito-backend/service/textproc"
	"cognito-backend/service/vectorindex"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/apache/rocketmq-client-go/v2/primitive"
)

// Store 摄取流水线依赖的持久层操作集合
type Store interface {
	TaskStore
	CreateEpisode(episode *model.Episode) error
	GetEpisode(id uint) (*model.Episode, error)
	UpdateEpisodeStatus(id uint, status model.EpisodeStatus) error
	CreateChunks(chunks []*model.Chunk) error
	SaveChunkEmbeddings(ids []uint, vectors [][]float32) error
}

// PassageEmbedder 将知识块文本批量转换为向量
type PassageEmbedder interface {
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)
}

// BlobStore 对象存储读取接口，用于恢复本地缺失的音频文件
type BlobStore interface {
	GetObject(ctx context.Context, objectName string) (io.ReadCloser, error)
}

// IntakeMessage URL摄取任务消息
type IntakeMessage struct {
	TaskID    uint   `json:"task_id"`
	SourceURL string `json:"source_url"`
}

// TranscribeMessage 上传音频转录任务消息
type TranscribeMessage struct {
	TaskID     uint   `json:"task_id"`
	EpisodeID  uint   `json:"episode_id"`
	ObjectName string `json:"object_name"`
}

// TranscriptMessage 已有转录文本的处理任务消息
type TranscriptMessage struct {
	TaskID     uint   `json:"task_id"`
	EpisodeID  uint   `json:"episode_id"`
	Transcript string `json:"transcript"`
}

// Worker 消费摄取任务并驱动完整流水线
type Worker struct {
	store         Store
	normalizer    *textproc.Normalizer
	embedder      PassageEmbedder
	index         *vectorindex.Index
	chain         *FallbackChain
	acquisition   *Acquisition
	blobs         BlobStore
	audioDir      string
	maxChunkChars int
}

// NewWorker 创建摄取工作器
func NewWorker(store Store, normalizer *textproc.Normalizer, embedder PassageEmbedder, index *vectorindex.Index, chain *FallbackChain, acquisition *Acquisition, blobs BlobStore, audioDir string, maxChunkChars int) *Worker {
	return &Worker{
		store:         store,
		normalizer:    normalizer,
		embedder:      embedder,
		index:         index,
		chain:         chain,
		acquisition:   acquisition,
		blobs:         blobs,
		audioDir:      audioDir,
		maxChunkChars: maxChunkChars,
	}
}

// HandleIntakeMessage 解析并处理URL摄取消息
func (w *Worker) HandleIntakeMessage(ctx context.Context, msg *primitive.MessageExt) error {
	var m IntakeMessage
	if err := json.Unmarshal(msg.Body, &m); err != nil {
		slog.Error("failed to unmarshal intake message", "error", err)
		return err
	}
	return w.IntakeURL(ctx, m.TaskID, m.SourceURL)
}

// HandleTranscribeMessage 解析并处理上传音频转录消息
func (w *Worker) HandleTranscribeMessage(ctx context.Context, msg *primitive.MessageExt) error {
	var m TranscribeMessage
	if err := json.Unmarshal(msg.Body, &m); err != nil {
		slog.Error("failed to unmarshal transcribe message", "error", err)
		return err
	}
	return w.TranscribeUpload(ctx, m.TaskID, m.EpisodeID, m.ObjectName)
}

// HandleTranscriptMessage 解析并处理转录文本消息
func (w *Worker) HandleTranscriptMessage(ctx context.Context, msg *primitive.MessageExt) error {
	var m TranscriptMessage
	if err := json.Unmarshal(msg.Body, &m); err != nil {
		slog.Error("failed to unmarshal transcript message", "error", err)
		return err
	}
	return w.ProcessSubmittedTranscript(ctx, m.TaskID, m.EpisodeID, m.Transcript)
}

// IntakeURL 执行URL摄取全流程：抓取→字幕或ASR→文本处理
func (w *Worker) IntakeURL(ctx context.Context, taskID uint, sourceURL string) error {
	tracker := NewTaskTracker(w.store, taskID)
	tracker.Update(model.TaskDownloading, "正在抓取音频与字幕")

	resolved, err := w.acquisition.Resolve(ctx, sourceURL)
	if err != nil {
		tracker.Fail(fmt.Sprintf("抓取失败: %v", err))
		return err
	}
	if resolved.CacheHit {
		tracker.Update(model.TaskDownloading, "检测到本地缓存，跳过下载")
	}

	episode := &model.Episode{
		Title:     resolved.Title,
		FilePath:  resolved.AudioPath,
		SourceURL: sourceURL,
		Status:    model.EpisodeUploaded,
	}
	if err := w.store.CreateEpisode(episode); err != nil {
		tracker.Fail(fmt.Sprintf("处理失败: %v", err))
		return err
	}
	tracker.Attach(episode.ID)

	if text := w.captionTranscript(resolved.CaptionPaths); text != "" {
		tracker.Update(model.TaskProcessing, "已有字幕，进入文本处理")
		if err := w.ProcessTranscript(ctx, tracker, episode.ID, text); err != nil {
			tracker.Fail(fmt.Sprintf("处理失败: %v", err))
			return err
		}
		tracker.Complete("字幕处理完成")
		return nil
	}

	tracker.Update(model.TaskTranscribing, "无字幕，进入ASR")
	result := w.chain.Transcribe(ctx, resolved.AudioPath, tracker)
	if err := w.ProcessTranscript(ctx, tracker, episode.ID, result.Text); err != nil {
		tracker.Fail(fmt.Sprintf("处理失败: %v", err))
		return err
	}
	tracker.Complete("处理完成")
	return nil
}

// TranscribeUpload 处理已上传音频：必要时从对象存储恢复本地文件，再走ASR与文本处理
func (w *Worker) TranscribeUpload(ctx context.Context, taskID, episodeID uint, objectName string) error {
	tracker := NewTaskTracker(w.store, taskID)
	tracker.Attach(episodeID)

	ep, err := w.store.GetEpisode(episodeID)
	if err != nil {
		tracker.Fail(fmt.Sprintf("处理失败: %v", err))
		return err
	}
	if ep == nil {
		err := fmt.Errorf("episode %d not found", episodeID)
		tracker.Fail(fmt.Sprintf("处理失败: %v", err))
		return err
	}

	audioPath := ep.FilePath
	if _, statErr := os.Stat(audioPath); statErr != nil && objectName != "" && w.blobs != nil {
		audioPath, err = w.restoreAudio(ctx, objectName)
		if err != nil {
			tracker.Fail(fmt.Sprintf("处理失败: %v", err))
			return err
		}
	}

	tracker.Update(model.TaskTranscribing, "无字幕，进入ASR")
	result := w.chain.Transcribe(ctx, audioPath, tracker)
	if err := w.ProcessTranscript(ctx, tracker, episodeID, result.Text); err != nil {
		tracker.Fail(fmt.Sprintf("处理失败: %v", err))
		return err
	}
	tracker.Complete("处理完成")
	return nil
}

// ProcessSubmittedTranscript 处理用户直接提交的转录文本
func (w *Worker) ProcessSubmittedTranscript(ctx context.Context, taskID, episodeID uint, transcript string) error {
	tracker := NewTaskTracker(w.store, taskID)
	tracker.Attach(episodeID)
	tracker.Update(model.TaskProcessing, "已有字幕，进入文本处理")

	if err := w.ProcessTranscript(ctx, tracker, episodeID, transcript); err != nil {
		tracker.Fail(fmt.Sprintf("处理失败: %v", err))
		return err
	}
	tracker.Complete("字幕处理完成")
	return nil
}

// captionTranscript 依次尝试抓取到的字幕文件，返回第一份非空文本
func (w *Worker) captionTranscript(paths []string) string {
	for _, p := range paths {
		if !captions.SupportedSubtitle(filepath.Ext(p)) {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			slog.Warn("failed to read caption file", "path", p, "error", err)
			continue
		}
		if text := captions.FromSubtitles(string(data)); text != "" {
			return text
		}
	}
	return ""
}

// restoreAudio 从对象存储拉取音频到本地音频目录
func (w *Worker) restoreAudio(ctx context.Context, objectName string) (string, error) {
	reader, err := w.blobs.GetObject(ctx, objectName)
	if err != nil {
		return "", fmt.Errorf("failed to fetch audio from object storage: %v", err)
	}
	defer reader.Close()

	if err := os.MkdirAll(w.audioDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create audio dir: %v", err)
	}
	dest := filepath.Join(w.audioDir, filepath.Base(objectName))
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create local audio file: %v", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, reader); err != nil {
		return "", fmt.Errorf("failed to write local audio file: %v", err)
	}
	return dest, nil
}
