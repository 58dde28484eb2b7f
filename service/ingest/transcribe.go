package ingest

import (
	"cognito-backend/model"
	"cognito-backend/service/captions"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// PlaceholderPrefix 所有转写策略失败时产出的占位文本前缀，
// 后接最后一次失败的错误信息；流水线借此端到端走通而不是卡死
const PlaceholderPrefix = "占位文本：ASR暂不可用，错误："

// SpeechEngine 语音识别引擎
type SpeechEngine interface {
	Name() string
	Recognize(ctx context.Context, audioPath string) (string, error)
}

// Strategy 具名转写策略，按优先级依次尝试
type Strategy struct {
	Name    string
	Message string
	Run     func(ctx context.Context, audioPath string) (string, error)
}

// ChainResult 转写链结果；Strategy记录产出文本的策略名，可检视可测试
type ChainResult struct {
	Text     string
	Strategy string
	Degraded bool
}

// FallbackChain 转写回退链：逐个尝试策略，首个成功者胜出；
// 全部失败时降级为占位文本。ASR类错误从不越过链的边界。
type FallbackChain struct {
	strategies []Strategy
}

func NewFallbackChain(strategies ...Strategy) *FallbackChain {
	return &FallbackChain{strategies: strategies}
}

// NewDefaultChain 默认优先级：本地弹幕文本（避免任何网络调用）→
// 主ASR引擎 → 次级ASR引擎
func NewDefaultChain(mediaDir string, primary, secondary SpeechEngine) *FallbackChain {
	return NewFallbackChain(
		CommentTrackStrategy(mediaDir),
		EngineStrategy(primary, "ASR进行中（主引擎）"),
		EngineStrategy(secondary, "主引擎失败，尝试次级引擎"),
	)
}

// Transcribe 执行回退链。每次策略切换都会更新任务状态。
func (c *FallbackChain) Transcribe(ctx context.Context, audioPath string, tracker *TaskTracker) ChainResult {
	lastErr := fmt.Errorf("no transcription strategy configured")

	for _, s := range c.strategies {
		tracker.Update(model.TaskTranscribing, s.Message)

		text, err := s.Run(ctx, audioPath)
		if err != nil {
			slog.Warn("Transcription strategy failed",
				"strategy", s.Name,
				"audio", audioPath,
				"err", err,
			)
			lastErr = err
			continue
		}
		if strings.TrimSpace(text) == "" {
			lastErr = fmt.Errorf("strategy %s produced empty text", s.Name)
			continue
		}

		return ChainResult{Text: text, Strategy: s.Name}
	}

	tracker.Update(model.TaskProcessing, "ASR不可用，使用占位文本回退，进入文本处理")
	return ChainResult{
		Text:     PlaceholderPrefix + lastErr.Error(),
		Strategy: "placeholder",
		Degraded: true,
	}
}

// CommentTrackStrategy 在媒体文件旁查找弹幕XML并抽取文本；
// 命中时完全跳过ASR，避免为下载模型而联网
func CommentTrackStrategy(mediaDir string) Strategy {
	return Strategy{
		Name:    "comment_track",
		Message: "检查弹幕文本",
		Run: func(ctx context.Context, audioPath string) (string, error) {
			path := findCommentTrack(mediaDir, audioPath)
			if path == "" {
				return "", fmt.Errorf("no comment track beside %s", audioPath)
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("failed to read comment track: %v", err)
			}
			return captions.FromCommentTrack(raw)
		},
	}
}

func EngineStrategy(engine SpeechEngine, message string) Strategy {
	return Strategy{
		Name:    engine.Name(),
		Message: message,
		Run:     engine.Recognize,
	}
}

// findCommentTrack 以音频文件名为锚点查找同基名的弹幕XML
func findCommentTrack(mediaDir, audioPath string) string {
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	dir := filepath.Dir(audioPath)
	if dir == "." || dir == "" {
		dir = mediaDir
	}

	candidates := []string{
		filepath.Join(dir, base+".xml"),
		filepath.Join(dir, base+".danmaku.xml"),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	// 再扫描目录中以同基名开头的xml
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, base) && strings.HasSuffix(name, ".xml") {
			return filepath.Join(dir, name)
		}
	}
	return ""
}
