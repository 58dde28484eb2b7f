// Package captions 把定时文本轨道（VTT/SRT字幕、弹幕）转为纯文本
package captions

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var (
	headerLinePattern    = regexp.MustCompile(`(?m)^WEBVTT[^\n]*\n?`)
	cueNumberPattern     = regexp.MustCompile(`(?m)^\s*\d+\s*$`)
	timestampPattern     = regexp.MustCompile(`(?m)^.*-->.*$`)
	markupPattern        = regexp.MustCompile(`<[^>]+>`)
	supportedSubtitleExt = map[string]bool{".vtt": true, ".srt": true}
)

// SupportedSubtitle 仅接受 .vtt / .srt（弹幕XML不算字幕，精度更低，另走回退）
func SupportedSubtitle(ext string) bool {
	return supportedSubtitleExt[strings.ToLower(ext)]
}

// FromSubtitles 去掉头部、序号、时间轴与标记，按原顺序拼接剩余非空行
func FromSubtitles(raw string) string {
	text := headerLinePattern.ReplaceAllString(raw, "")
	text = timestampPattern.ReplaceAllString(text, "")
	text = cueNumberPattern.ReplaceAllString(text, "")
	text = markupPattern.ReplaceAllString(text, "")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// FromCommentTrack 解析弹幕XML（<d>元素的文本载荷），按文件顺序拼接。
// 这是最后手段的转录来源：仅在既无字幕轨也无ASR产出时使用。
func FromCommentTrack(raw []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(raw))

	var lines []string
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse comment track: %v", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "d" {
			continue
		}

		var payload string
		if err := decoder.DecodeElement(&payload, &start); err != nil {
			return "", fmt.Errorf("failed to decode comment entry: %v", err)
		}

		payload = markupPattern.ReplaceAllString(payload, "")
		if payload = strings.TrimSpace(payload); payload != "" {
			lines = append(lines, payload)
		}
	}

	return strings.Join(lines, "\n"), nil
}
