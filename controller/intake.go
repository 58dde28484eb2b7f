package controller

import (
	"cognito-backend/dao"
	"cognito-backend/model"
	"cognito-backend/request"
	"cognito-backend/response"
	"cognito-backend/service/ingest"
	"cognito-backend/service/mq"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SubmitURL 受理来源URL，创建任务并投递到MQ异步处理
func SubmitURL(c *gin.Context) {
	var req request.SubmitURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error(ErrParseRequest.Error(), "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, response.Response{
			Msg: ErrParseRequest.Error(),
		})
		return
	}

	task := &model.Task{
		Type:    model.TaskIntakeURL,
		Status:  model.TaskPending,
		Message: "任务已创建，等待调度",
	}
	if err := dao.CreateTask(task); err != nil {
		slog.Error(ErrSubmitURL.Error(), "url", req.URL, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrSubmitURL.Error(),
		})
		return
	}

	err := mq.SendMessage(c.Request.Context(), &mq.Message{
		Topic: mq.TopicIngest,
		Tag:   mq.TagIntakeURL,
		Payload: ingest.IntakeMessage{
			TaskID:    task.ID,
			SourceURL: req.URL,
		},
	})
	if err != nil {
		slog.Error(ErrSubmitURL.Error(), "task_id", task.ID, "err", err)
		if uerr := dao.UpdateTask(task.ID, model.TaskFailed, "任务投递失败", nil); uerr != nil {
			slog.Error("Failed to mark task failed", "task_id", task.ID, "err", uerr)
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrSubmitURL.Error(),
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
		},
	})
}
