package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// YtDlpFetcher 通过yt-dlp子进程抓取最优音频流与字幕轨
type YtDlpFetcher struct {
	cookieFile string
}

func NewYtDlpFetcher(cookieFile string) *YtDlpFetcher {
	return &YtDlpFetcher{cookieFile: cookieFile}
}

var _ RemoteFetcher = &YtDlpFetcher{}

func (f *YtDlpFetcher) Fetch(ctx context.Context, sourceURL, destDir string) (*FetchResult, error) {
	args := []string{
		"--no-playlist",
		"-f", "bestaudio/best",
		"--write-subs",
		"--write-auto-subs",
		"--sub-format", "vtt",
		"-o", filepath.Join(destDir, "%(id)s.%(ext)s"),
		"--no-simulate",
		"--print", "after_move:filepath",
		"--print", "title",
	}
	if f.cookieFile != "" {
		args = append(args, "--cookies", f.cookieFile)
	}
	args = append(args, sourceURL)

	cmd := exec.CommandContext(ctx, "yt-dlp", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp failed: %v: %s", err, truncate(stderr.String(), 280))
	}

	lines := nonEmptyLines(stdout.String())
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty yt-dlp output")
	}

	result := &FetchResult{AudioPath: lines[0]}
	if len(lines) > 1 {
		result.Title = lines[1]
	}

	result.CaptionPaths = findCaptionFiles(result.AudioPath)
	return result, nil
}

// findCaptionFiles 查找与音频同基名的字幕文件（yt-dlp命名为 <id>.<lang>.vtt）
func findCaptionFiles(audioPath string) []string {
	base := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	var paths []string
	for _, pattern := range []string{base + "*.vtt", base + "*.srt"} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		paths = append(paths, matches...)
	}
	return paths
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
