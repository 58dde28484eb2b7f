// Package embedding 文本嵌入服务，封装OpenAI兼容的嵌入接口
package embedding

import (
	"cognito-backend/config"
	"cognito-backend/utils"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	// 部分模型族要求查询/文档前缀标记，摄入与查询必须使用同一约定
	queryPrefix   = "query: "
	passagePrefix = "passage: "
)

type Service struct {
	embedder *embeddings.EmbedderImpl
	model    string

	// 是否启用前缀约定；记录下来以保证查询侧与摄入侧一致
	prefixed bool
}

// NewService 初始化主模型；主模型不可用时回退到固定的次级模型，
// 两者都失败则返回错误（静默返回空结果会把错误维度的向量灌进索引）
func NewService() (*Service, error) {
	primary := config.Cfg.Model.EmbeddingModel
	s, err := newForModel(primary)
	if err == nil {
		return s, nil
	}

	fallback := config.Cfg.Model.FallbackEmbeddingModel
	slog.Warn("primary embedding model unavailable, trying fallback",
		"primary", primary,
		"fallback", fallback,
		"err", err,
	)

	s, fallbackErr := newForModel(fallback)
	if fallbackErr != nil {
		return nil, fmt.Errorf("embedding models unavailable: primary %s: %v; fallback %s: %v",
			primary, err, fallback, fallbackErr)
	}
	return s, nil
}

func newForModel(model string) (*Service, error) {
	if model == "" {
		return nil, fmt.Errorf("embedding model not configured")
	}

	client, err := openai.New(
		openai.WithEmbeddingModel(model),
		openai.WithToken(config.Cfg.Model.APIKey),
		openai.WithBaseURL(config.Cfg.Model.BaseURL),
		openai.WithHTTPClient(utils.NewHTTPClient(
			utils.WithTimeout(60 * time.Second),
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %v", err)
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(config.Cfg.Model.BatchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %v", err)
	}

	return &Service{
		embedder: embedder,
		model:    model,
		prefixed: modelRequiresPrefix(model),
	}, nil
}

// modelRequiresPrefix bge/e5系列模型按其训练约定需要query/passage标记
func modelRequiresPrefix(model string) bool {
	m := strings.ToLower(model)
	return strings.Contains(m, "bge") || strings.Contains(m, "e5")
}

func (s *Service) Model() string {
	return s.model
}

// Prefixed 本服务是否启用了前缀约定
func (s *Service) Prefixed() bool {
	return s.prefixed
}

// EmbedPassages 对文档文本生成嵌入，行数与输入一致，列数由模型决定
func (s *Service) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts to embed")
	}

	inputs := texts
	if s.prefixed {
		inputs = make([]string, len(texts))
		for i, t := range texts {
			inputs[i] = passagePrefix + t
		}
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %d passages with %s: %v", len(texts), s.model, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding row count %d does not match input count %d", len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedQuery 对查询文本生成嵌入，与摄入端使用同一前缀约定
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if s.prefixed {
		text = queryPrefix + text
	}
	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query with %s: %v", s.model, err)
	}
	return vector, nil
}
