package api

import (
	"net/http"

	"VideoPipeline-server/service"

	"github.com/gin-gonic/gin"
)

// GenerateVoiceover enqueues narration for the project's scenes.
// POST /v1/api/projects/:project_id/voiceover
func (h *Handler) GenerateVoiceover(c *gin.Context) {
	projectID := c.Param("project_id")
	var req struct {
		UseMock *bool `json:"useMock"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if _, err := h.Store.GetProject(c.Request.Context(), projectID); err != nil {
		h.writeError(c, err)
		return
	}

	taskID, err := h.Queue.EnqueueVoiceover(c.Request.Context(), service.VoiceoverPayload{
		ProjectID: projectID,
		UseMock:   useMock(req.UseMock, h.VoiceoverMock),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID, "project_id": projectID})
}

// SelectMusic enqueues music selection, replacing any current track.
// POST /v1/api/projects/:project_id/music
func (h *Handler) SelectMusic(c *gin.Context) {
	projectID := c.Param("project_id")
	var req struct {
		Mood    *string `json:"mood"`
		UseMock *bool   `json:"useMock"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if _, err := h.Store.GetProject(c.Request.Context(), projectID); err != nil {
		h.writeError(c, err)
		return
	}

	taskID, err := h.Queue.EnqueueMusic(c.Request.Context(), service.MusicPayload{
		ProjectID: projectID,
		Mood:      req.Mood,
		UseMock:   useMock(req.UseMock, h.MusicMock),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID, "project_id": projectID})
}
