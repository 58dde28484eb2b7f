// Package asr 语音识别引擎客户端
package asr

import (
	"cognito-backend/config"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	taskStartTimeout = 10 * time.Second

	// 每帧发送的音频字节数
	audioFrameSize = 1024
)

type Header struct {
	Action       string `json:"action"`
	TaskID       string `json:"task_id"`
	Streaming    string `json:"streaming"`
	Event        string `json:"event"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type Output struct {
	Sentence struct {
		BeginTime   int64  `json:"begin_time"`
		EndTime     *int64 `json:"end_time"`
		Text        string `json:"text"`
		SentenceEnd bool   `json:"sentence_end"`
	} `json:"sentence"`
}

type Payload struct {
	TaskGroup  string `json:"task_group"`
	Task       string `json:"task"`
	Function   string `json:"function"`
	Model      string `json:"model"`
	Parameters Params `json:"parameters"`
	Input      Input  `json:"input"`
	Output     Output `json:"output,omitempty"`
}

type Params struct {
	Format        string   `json:"format"`
	SampleRate    int      `json:"sample_rate"`
	LanguageHints []string `json:"language_hints,omitempty"`
}

type Input struct {
}

type Event struct {
	Header  Header  `json:"header"`
	Payload Payload `json:"payload"`
}

// WSEngine 主ASR引擎：WebSocket流式识别
type WSEngine struct {
	endpoint   string
	apiKey     string
	model      string
	sampleRate int
}

func NewWSEngine() *WSEngine {
	cfg := config.Cfg.ASR
	return &WSEngine{
		endpoint:   cfg.WSEndpoint,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		sampleRate: cfg.SampleRate,
	}
}

func (e *WSEngine) Name() string {
	return "ws:" + e.model
}

// Recognize 识别本地音频文件，返回全文
func (e *WSEngine) Recognize(ctx context.Context, audioPath string) (string, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+e.apiKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, e.endpoint, header)
	if err != nil {
		return "", fmt.Errorf("failed to dial asr endpoint: %v", err)
	}
	defer conn.Close()

	// 带缓冲：等待方超时放弃后，接收goroutine的通知发送不会永久阻塞
	taskStarted := make(chan bool, 1)
	taskDone := make(chan error, 1)
	var result strings.Builder

	go e.receiveResults(conn, taskStarted, taskDone, &result)

	taskID, err := e.sendRunTaskCmd(conn, audioPath)
	if err != nil {
		return "", fmt.Errorf("failed to send run-task cmd: %v", err)
	}

	if err := waitForTaskStarted(ctx, taskStarted); err != nil {
		return "", err
	}

	if err := e.sendAudioData(conn, audioPath); err != nil {
		return "", fmt.Errorf("failed to send audio data: %v", err)
	}

	if err := e.sendFinishTaskCmd(conn, taskID); err != nil {
		return "", fmt.Errorf("failed to send finish-task cmd: %v", err)
	}

	select {
	case err := <-taskDone:
		if err != nil {
			return "", err
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}

	return result.String(), nil
}

func (e *WSEngine) receiveResults(conn *websocket.Conn, taskStarted chan<- bool, taskDone chan<- error, result *strings.Builder) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			taskDone <- fmt.Errorf("failed to read server message: %v", err)
			return
		}

		var event Event
		if err = json.Unmarshal(message, &event); err != nil {
			slog.Error("Failed to parse asr event", "err", err)
			continue
		}

		switch event.Header.Event {
		case "task-started":
			taskStarted <- true
		case "result-generated":
			// 只收完整句子
			if event.Payload.Output.Sentence.SentenceEnd {
				result.WriteString(event.Payload.Output.Sentence.Text)
			}
		case "task-finished":
			taskDone <- nil
			return
		case "task-failed":
			msg := event.Header.ErrorMessage
			if msg == "" {
				msg = "unknown reason"
			}
			taskDone <- fmt.Errorf("asr task failed: %s", msg)
			return
		default:
			slog.Info("unexpected asr event", "event", event.Header.Event)
		}
	}
}

func waitForTaskStarted(ctx context.Context, taskStarted <-chan bool) error {
	select {
	case <-taskStarted:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(taskStartTimeout):
		return fmt.Errorf("timeout waiting for task-started")
	}
}

func (e *WSEngine) sendRunTaskCmd(conn *websocket.Conn, audioPath string) (string, error) {
	taskID := uuid.New().String()
	runTaskCmd := Event{
		Header: Header{
			Action:    "run-task",
			TaskID:    taskID,
			Streaming: "duplex",
		},
		Payload: Payload{
			TaskGroup: "audio",
			Task:      "asr",
			Function:  "recognition",
			Model:     e.model,
			Parameters: Params{
				Format:     audioFormat(audioPath),
				SampleRate: e.sampleRate,
			},
			Input: Input{},
		},
	}

	data, err := json.Marshal(runTaskCmd)
	if err != nil {
		return "", err
	}
	return taskID, conn.WriteMessage(websocket.TextMessage, data)
}

func (e *WSEngine) sendAudioData(conn *websocket.Conn, audioPath string) error {
	file, err := os.Open(audioPath)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %v", err)
	}
	defer file.Close()

	buf := make([]byte, audioFrameSize)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			if err := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); err != nil {
				return fmt.Errorf("failed to send audio frame: %v", err)
			}
		}

		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("error reading audio file: %v", err)
		}
	}
}

func (e *WSEngine) sendFinishTaskCmd(conn *websocket.Conn, taskID string) error {
	finishTaskCmd := Event{
		Header: Header{
			Action:    "finish-task",
			TaskID:    taskID,
			Streaming: "duplex",
		},
		Payload: Payload{
			Input: Input{},
		},
	}

	data, err := json.Marshal(finishTaskCmd)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func audioFormat(audioPath string) string {
	if i := strings.LastIndex(audioPath, "."); i >= 0 {
		return strings.ToLower(audioPath[i+1:])
	}
	return "wav"
}
