package asr

import (
	"bytes"
	"cognito-backend/config"
	"cognito-backend/utils"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// HTTPEngine 次级ASR引擎：一次性上传整个音频的HTTP识别，
// 作为低资源回退，不做流式
type HTTPEngine struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

func NewHTTPEngine() *HTTPEngine {
	cfg := config.Cfg.ASR
	return &HTTPEngine{
		endpoint: cfg.HTTPEndpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.HTTPModel,
		client: utils.NewHTTPClient(
			utils.WithTimeout(120 * time.Second),
		),
	}
}

func (e *HTTPEngine) Name() string {
	return "http:" + e.model
}

type httpResponse struct {
	Text  string `json:"text"`
	Error string `json:"error_message"`
}

func (e *HTTPEngine) Recognize(ctx context.Context, audioPath string) (string, error) {
	if e.endpoint == "" {
		return "", fmt.Errorf("http asr endpoint not configured")
	}

	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("failed to read audio file: %v", err)
	}

	url := fmt.Sprintf("%s?model=%s", e.endpoint, e.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("asr request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("asr http %d: %s", resp.StatusCode, raw)
	}

	var parsed httpResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse asr response: %v", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("asr error: %s", parsed.Error)
	}

	return parsed.Text, nil
}
