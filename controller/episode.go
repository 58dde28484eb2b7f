package controller

import (
	"cognito-backend/dao"
	"cognito-backend/model"
	"cognito-backend/request"
	"cognito-backend/response"
	"cognito-backend/service/ingest"
	"cognito-backend/service/mq"
	"cognito-backend/service/storage"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListEpisodes 分页查询节目，可按状态过滤
func ListEpisodes(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	status := model.EpisodeStatus(c.Query("status"))

	episodes, total, err := dao.ListEpisodes(page, size, status)
	if err != nil {
		slog.Error(ErrGetEpisodes.Error(), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrGetEpisodes.Error(),
		})
		return
	}

	items := make([]response.EpisodeResponse, len(episodes))
	for i, ep := range episodes {
		items[i] = episodeView(&ep)
	}
	c.JSON(http.StatusOK, response.Response{
		Data: response.ListEpisodesResponse{
			Total:    total,
			Episodes: items,
		},
	})
}

// GetEpisode 查询单个节目详情
func GetEpisode(c *gin.Context) {
	id, ok := episodeID(c)
	if !ok {
		return
	}

	ep, err := dao.GetEpisodeByID(id)
	if err != nil {
		slog.Error(ErrGetEpisodes.Error(), "episode_id", id, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrGetEpisodes.Error(),
		})
		return
	}
	if ep == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, response.Response{
			Msg: ErrEpisodeNotFound.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.Response{
		Data: response.EpisodeDetailResponse{
			EpisodeResponse: episodeView(ep),
			ChunkCount:      len(ep.Chunks),
		},
	})
}

// DeleteEpisode 删除节目及其知识块
func DeleteEpisode(c *gin.Context) {
	id, ok := episodeID(c)
	if !ok {
		return
	}

	if err := dao.DeleteEpisode(id); err != nil {
		slog.Error(ErrDeleteEpisode.Error(), "episode_id", id, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrDeleteEpisode.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, response.Response{Msg: "ok"})
}

// SubmitTranscript 为已有节目直接提交转录文本，跳过下载与ASR
func SubmitTranscript(c *gin.Context) {
	id, ok := episodeID(c)
	if !ok {
		return
	}

	var req request.SubmitTranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error(ErrParseRequest.Error(), "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, response.Response{
			Msg: ErrParseRequest.Error(),
		})
		return
	}

	ep, err := dao.GetEpisodeByID(id)
	if err != nil {
		slog.Error(ErrSubmitTranscript.Error(), "episode_id", id, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrSubmitTranscript.Error(),
		})
		return
	}
	if ep == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, response.Response{
			Msg: ErrEpisodeNotFound.Error(),
		})
		return
	}

	task := &model.Task{
		EpisodeID: &ep.ID,
		Type:      model.TaskTranscriptProcess,
		Status:    model.TaskPending,
		Message:   "任务已创建，等待调度",
	}
	if err := dao.CreateTask(task); err != nil {
		slog.Error(ErrSubmitTranscript.Error(), "episode_id", id, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrSubmitTranscript.Error(),
		})
		return
	}

	err = mq.SendMessage(c.Request.Context(), &mq.Message{
		Topic: mq.TopicIngest,
		Tag:   mq.TagTranscript,
		Payload: ingest.TranscriptMessage{
			TaskID:     task.ID,
			EpisodeID:  ep.ID,
			Transcript: req.Transcript,
		},
	})
	if err != nil {
		slog.Error(ErrSubmitTranscript.Error(), "task_id", task.ID, "err", err)
		if uerr := dao.UpdateTask(task.ID, model.TaskFailed, "任务投递失败", &ep.ID); uerr != nil {
			slog.Error("Failed to mark task failed", "task_id", task.ID, "err", uerr)
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrSubmitTranscript.Error(),
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

// GetEpisodeDownloadURL 生成节目音频的限时下载链接
func GetEpisodeDownloadURL(blobs *storage.OSSStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := episodeID(c)
		if !ok {
			return
		}

		ep, err := dao.GetEpisodeByID(id)
		if err != nil {
			slog.Error(ErrGetPreSignedURL.Error(), "episode_id", id, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
				Msg: ErrGetPreSignedURL.Error(),
			})
			return
		}
		if ep == nil || ep.FilePath == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, response.Response{
				Msg: ErrEpisodeNotFound.Error(),
			})
			return
		}

		url, err := blobs.PresignGetURL(c.Request.Context(), filepath.Base(ep.FilePath))
		if err != nil {
			slog.Error(ErrGetPreSignedURL.Error(), "episode_id", id, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
				Msg: ErrGetPreSignedURL.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, response.Response{
			Data: response.DownloadURLResponse{URL: url},
		})
	}
}

func episodeID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		slog.Error(ErrParseRequest.Error(), "id", c.Param("id"), "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, response.Response{
			Msg: ErrParseRequest.Error(),
		})
		return 0, false
	}
	return uint(id), true
}

func episodeView(ep *model.Episode) response.EpisodeResponse {
	return response.EpisodeResponse{
		ID:        ep.ID,
		CreatedAt: ep.CreatedAt,
		Title:     ep.Title,
		SourceURL: ep.SourceURL,
		Status:    string(ep.Status),
		Summary:   ep.Summary,
	}
}
