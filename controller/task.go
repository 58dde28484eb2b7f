package controller

import (
	"cognito-backend/dao"
	"cognito-backend/response"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetTask 轮询任务进度
func GetTask(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		slog.Error(ErrParseRequest.Error(), "id", c.Param("id"), "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, response.Response{
			Msg: ErrParseRequest.Error(),
		})
		return
	}

	task, err := dao.GetTaskByID(uint(id))
	if err != nil {
		slog.Error(ErrGetTask.Error(), "task_id", id, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrGetTask.Error(),
		})
		return
	}
	if task == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, response.Response{
			Msg: ErrTaskNotFound.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.Response{
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
