package controller

import (
	"cognito-backend/config"
	"cognito-backend/request"
	"cognito-backend/response"
	"cognito-backend/service/query"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Query 知识检索入口
func Query(engine *query.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req request.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			slog.Error(ErrParseRequest.Error(), "err", err)
			c.AbortWithStatusJSON(http.StatusBadRequest, response.Response{
				Msg: ErrParseRequest.Error(),
			})
			return
		}

		topK := req.TopK
		if topK <= 0 {
			topK = config.Cfg.Pipeline.DefaultTopK
		}

		answer, results, err := engine.Answer(c.Request.Context(), req.Question, topK)
		if err != nil {
			slog.Error(ErrQuery.Error(), "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
				Msg: ErrQuery.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, response.Response{
			Data: response.QueryResponse{
				Answer:  answer,
				Results: results,
			},
		})
	}
}
