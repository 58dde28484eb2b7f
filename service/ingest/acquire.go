package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/avast/retry-go/v4"
)

const fetchAttempts = 2

// 可识别的平台内容ID形态（B站BV号）
var bvPattern = regexp.MustCompile(`bilibili\.com/video/(BV\w+)`)

// StableID 从URL推导平台稳定标识，无法识别时返回空串
func StableID(sourceURL string) string {
	m := bvPattern.FindStringSubmatch(sourceURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// FetchResult 远端抓取产物
type FetchResult struct {
	Title        string
	AudioPath    string
	CaptionPaths []string
}

// RemoteFetcher 远端媒体源：解析最优音频流并下载，附带字幕轨。
// 随时可能失败或不可达。
type RemoteFetcher interface {
	Fetch(ctx context.Context, sourceURL, destDir string) (*FetchResult, error)
}

// Resolved 媒体获取阶段的解析结果
type Resolved struct {
	Title        string
	AudioPath    string
	CaptionPaths []string

	// 命中本地缓存，未发生任何网络访问
	CacheHit bool

	// 仅推断出期望路径，主媒体文件可能不存在；
	// 后续以该路径为锚点查找同基名的字幕/弹幕文件
	MediaMissing bool
}

// Acquisition 把来源URL解析为本地媒体文件路径，
// 以平台稳定标识为键做内容寻址缓存
type Acquisition struct {
	mediaDir string
	fetcher  RemoteFetcher
}

func NewAcquisition(mediaDir string, fetcher RemoteFetcher) *Acquisition {
	return &Acquisition{
		mediaDir: mediaDir,
		fetcher:  fetcher,
	}
}

func (a *Acquisition) Resolve(ctx context.Context, sourceURL string) (*Resolved, error) {
	if id := StableID(sourceURL); id != "" {
		candidate := filepath.Join(a.mediaDir, id+".m4a")

		// 快速路径：缓存命中时完全跳过网络
		if _, err := os.Stat(candidate); err == nil {
			slog.Info("Media cache hit", "id", id, "path", candidate)
			return &Resolved{Title: id, AudioPath: candidate, CacheHit: true}, nil
		}

		// 未命中但ID可推导：以期望路径为锚点继续，
		// 让弹幕优先的转写链避免网络下载阻塞
		return &Resolved{Title: id, AudioPath: candidate, MediaMissing: true}, nil
	}

	if err := os.MkdirAll(a.mediaDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %v", err)
	}

	var result *FetchResult
	err := retry.Do(
		func() error {
			r, err := a.fetcher.Fetch(ctx, sourceURL, a.mediaDir)
			if err != nil {
				return err
			}
			result = r
			return nil
		},
		retry.Attempts(fetchAttempts),
		retry.Context(ctx),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("Retrying media fetch",
				"attempt", n+1,
				"url", sourceURL,
				"err", err,
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch media: %v", err)
	}

	title := result.Title
	if title == "" {
		title = "Untitled"
	}
	return &Resolved{
		Title:        title,
		AudioPath:    result.AudioPath,
		CaptionPaths: result.CaptionPaths,
	}, nil
}
