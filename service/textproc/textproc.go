// Package textproc 文本规范化与分块
package textproc

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultFillers 默认剔除的口语词
var DefaultFillers = []string{"嗯", "啊", "那个", "就是", "然后", "um", "uh"}

var (
	markupTagPattern = regexp.MustCompile(`<[^>]+>`)

	// 形如 "00:01:02.500 --> 00:01:05.000" 的时间轴行（含行内出现的时间轴）
	timestampRangePattern = regexp.MustCompile(`\d{1,2}:\d{2}(?::\d{2})?(?:[.,]\d+)?\s+-->\s+\d{1,2}:\d{2}(?::\d{2})?(?:[.,]\d+)?[^\n]*`)

	// 独立的时间戳行，例如 "[00:01:02]" 或 "00:01:02"
	timestampLinePattern = regexp.MustCompile(`(?m)^\s*\[?\d{1,2}:\d{2}(?::\d{2})?(?:[.,]\d+)?\]?\s*$`)

	// 字幕序号行
	sequenceLinePattern = regexp.MustCompile(`(?m)^\s*\d+\s*$`)

	// 行首说话人标注，例如 "说话人1：" 或 "Speaker 2:"
	speakerLabelPattern = regexp.MustCompile(`(?m)^[\p{L}\p{N}][\p{L}\p{N} _-]{0,15}[:：]\s*`)
)

type Normalizer struct {
	fillers        []string
	fillerPatterns []*regexp.Regexp
}

type Option func(*Normalizer)

func WithFillers(fillers []string) Option {
	return func(n *Normalizer) {
		if len(fillers) > 0 {
			n.fillers = fillers
		}
	}
}

func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		fillers: DefaultFillers,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.fillerPatterns = compileFillers(n.fillers)
	return n
}

// compileFillers ASCII口语词按词边界匹配，避免吃掉普通单词里的子串
// （如"um"之于"number"）；CJK无词边界概念，保持子串替换
func compileFillers(fillers []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(fillers))
	for i, f := range fillers {
		if isASCIIWord(f) {
			patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(f) + `\b`)
		}
	}
	return patterns
}

func isASCIIWord(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return s != ""
}

// Clean 清洗原始转录/字幕文本
// 顺序固定：标记与时间轴先于口语词剔除，因为口语词可能出现在本身会被整行丢弃的文本里
func (n *Normalizer) Clean(raw string) string {
	text := markupTagPattern.ReplaceAllString(raw, "")
	text = timestampRangePattern.ReplaceAllString(text, "")
	text = timestampLinePattern.ReplaceAllString(text, "")
	text = sequenceLinePattern.ReplaceAllString(text, "")
	// 说话人标注循环剥离到不动点，保证Clean幂等
	for {
		stripped := speakerLabelPattern.ReplaceAllString(text, "")
		if stripped == text {
			break
		}
		text = stripped
	}

	for i, f := range n.fillers {
		if p := n.fillerPatterns[i]; p != nil {
			text = p.ReplaceAllString(text, "")
		} else {
			text = strings.ReplaceAll(text, f, "")
		}
	}

	return strings.Join(strings.Fields(text), " ")
}

// ChunkText 把文本切分为长度不超过maxChars（按字符计）的块。
// 先按段落再按句子切分，句子按序贪心装箱；单句超长时独立成块，不再细分。
// 保证每个输入句子恰好出现在一个输出块中，块按输入顺序排列且非空。
func ChunkText(text string, maxChars int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []string
	var buf []string
	bufLen := 0

	flush := func() {
		if len(buf) > 0 {
			chunks = append(chunks, strings.Join(buf, " "))
			buf = buf[:0]
			bufLen = 0
		}
	}

	for _, para := range splitParagraphs(text) {
		for _, sentence := range SplitSentences(para) {
			sLen := utf8.RuneCountInString(sentence)
			if bufLen > 0 && bufLen+sLen+1 > maxChars {
				flush()
			}
			buf = append(buf, sentence)
			if bufLen == 0 {
				bufLen = sLen
			} else {
				bufLen += sLen + 1
			}
		}
	}
	flush()

	return chunks
}

var paragraphPattern = regexp.MustCompile(`\n\s*\n`)

func splitParagraphs(text string) []string {
	var paras []string
	for _, p := range paragraphPattern.Split(text, -1) {
		if strings.TrimSpace(p) != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

// 句末标点，其后跟空白（或文本结束）即视为句子边界
var sentenceTerminals = map[rune]bool{
	'.': true, '!': true, '?': true, ';': true,
	'。': true, '！': true, '？': true, '；': true, '…': true,
}

// SplitSentences 按"句末标点+空白"切句，保留标点
func SplitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		if !sentenceTerminals[runes[i]] {
			continue
		}
		atEnd := i == len(runes)-1
		if atEnd || unicode.IsSpace(runes[i+1]) {
			s := strings.TrimSpace(string(runes[start : i+1]))
			if s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}

	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}

	return sentences
}
