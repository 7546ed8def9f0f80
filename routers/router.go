package routers

import (
	"VideoPipeline-server/routers/api"

	"github.com/gin-gonic/gin"
)

func InitRouter(h *api.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), api.RequestLogger(h.Logger))
	v1 := r.Group("/v1/api")
	{
		v1.POST("/projects", h.CreateProject)
		v1.GET("/projects/:project_id", h.GetProject)
		v1.GET("/projects/:project_id/scenes", h.GetScenes)
		v1.POST("/projects/:project_id/images", h.GenerateImages)
		v1.POST("/projects/:project_id/voiceover", h.GenerateVoiceover)
		v1.POST("/projects/:project_id/music", h.SelectMusic)
		v1.POST("/projects/:project_id/render", h.CreateRender)
		v1.GET("/renders/:render_id", h.GetRender)
	}
	r.GET("/renders/:render_id/wss", h.RenderLogWebSocket)
	return r
}
