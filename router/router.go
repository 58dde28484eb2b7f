package router

import (
	"cognito-backend/controller"
	"cognito-backend/middleware"
	"cognito-backend/service/query"
	"cognito-backend/service/storage"

	"github.com/gin-gonic/gin"
)

func Register(engine *query.Engine, blobs *storage.OSSStore) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.CORSMiddleware())

	api := r.Group("/api")
	{
		public := api.Group("/user")
		{
			public.POST("/register", controller.UserRegister)
			public.POST("/login", controller.UserLogin)
		}

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			protected.POST("/intake/submit_url", controller.SubmitURL)
			protected.POST("/upload/audio", controller.UploadAudio(blobs))

			protected.GET("/episodes", controller.ListEpisodes)
			protected.GET("/episodes/:id", controller.GetEpisode)
			protected.DELETE("/episodes/:id", controller.DeleteEpisode)
			protected.POST("/episodes/:id/transcript", controller.SubmitTranscript)
			protected.GET("/episodes/:id/download-link", controller.GetEpisodeDownloadURL(blobs))

			protected.GET("/tasks/:id", controller.GetTask)

			protected.POST("/query", controller.Query(engine))
		}
	}

	return r
}
