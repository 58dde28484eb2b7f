package controller

import (
	"cognito-backend/config"
	"cognito-backend/dao"
	"cognito-backend/model"
	"cognito-backend/response"
	"cognito-backend/service/ingest"
	"cognito-backend/service/mq"
	"cognito-backend/service/storage"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var allowedAudioExts = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".wav":  true,
	".aac":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
}

// UploadAudio 受理音频上传：本地落盘并镜像到OSS，随后投递转写任务
func UploadAudio(blobs *storage.OSSStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("audio")
		if err != nil {
			slog.Error(ErrGetAudioFile.Error(), "err", err)
			c.AbortWithStatusJSON(http.StatusBadRequest, response.Response{
				Msg: ErrGetAudioFile.Error(),
			})
			return
		}

		ext := strings.ToLower(filepath.Ext(file.Filename))
		if !allowedAudioExts[ext] {
			slog.Error(ErrUploadAudio.Error(), "filename", file.Filename, "err", "unsupported audio format")
			c.AbortWithStatusJSON(http.StatusBadRequest, response.Response{
				Msg: ErrUploadAudio.Error(),
			})
			return
		}

		objectName := uuid.NewString() + ext
		localPath := filepath.Join(config.Cfg.Media.AudioDir, objectName)
		if err := os.MkdirAll(config.Cfg.Media.AudioDir, 0o755); err != nil {
			abortUpload(c, err)
			return
		}
		if err := c.SaveUploadedFile(file, localPath); err != nil {
			abortUpload(c, err)
			return
		}

		f, err := os.Open(localPath)
		if err != nil {
			abortUpload(c, err)
			return
		}
		err = blobs.PutObject(c.Request.Context(), objectName, f)
		f.Close()
		if err != nil {
			abortUpload(c, err)
			return
		}

		title := strings.TrimSuffix(filepath.Base(file.Filename), ext)
		if title == "" {
			title = "Untitled"
		}
		episode := &model.Episode{
			Title:    title,
			FilePath: localPath,
			Status:   model.EpisodeUploaded,
		}
		if err := dao.CreateEpisode(episode); err != nil {
			abortUpload(c, err)
			return
		}

		task := &model.Task{
			EpisodeID: &episode.ID,
			Type:      model.TaskUploadAudio,
			Status:    model.TaskPending,
			Message:   "任务已创建，等待调度",
		}
		if err := dao.CreateTask(task); err != nil {
			abortUpload(c, err)
			return
		}

		err = mq.SendMessage(c.Request.Context(), &mq.Message{
			Topic: mq.TopicIngest,
			Tag:   mq.TagTranscribe,
			Payload: ingest.TranscribeMessage{
				TaskID:     task.ID,
				EpisodeID:  episode.ID,
				ObjectName: objectName,
			},
		})
		if err != nil {
			slog.Error(ErrUploadAudio.Error(), "task_id", task.ID, "err", err)
			if uerr := dao.UpdateTask(task.ID, model.TaskFailed, "任务投递失败", &episode.ID); uerr != nil {
				slog.Error("Failed to mark task failed", "task_id", task.ID, "err", uerr)
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
				Msg: ErrUploadAudio.Error(),
			})
			return
		}

		c.JSON(http.StatusAccepted, response.Response{
			Data: response.TaskResponse{
				ID:        task.ID,
				CreatedAt: task.CreatedAt,
				UpdatedAt: task.UpdatedAt,
				Type:      string(task.Type),
				Status:    string(task.Status),
				Message:   task.Message,
				EpisodeID: task.EpisodeID,
			},
		})
	}
}

func abortUpload(c *gin.Context, err error) {
	slog.Error(ErrUploadAudio.Error(), "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
		Msg: ErrUploadAudio.Error(),
	})
}
