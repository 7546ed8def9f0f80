package api

import (
	"net/http"

	"VideoPipeline-server/service"

	"github.com/gin-gonic/gin"
)

// GetScenes lists a project's scenes in index order.
// GET /v1/api/projects/:project_id/scenes
func (h *Handler) GetScenes(c *gin.Context) {
	projectID := c.Param("project_id")
	if _, err := h.Store.GetProject(c.Request.Context(), projectID); err != nil {
		h.writeError(c, err)
		return
	}
	scenes, err := h.Store.ListScenes(c.Request.Context(), projectID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scenes":       scenes,
		"project_id":   projectID,
		"total_scenes": len(scenes),
	})
}

// GenerateImages enqueues image generation for the given scenes, or for all
// of them when none are named.
// POST /v1/api/projects/:project_id/images
func (h *Handler) GenerateImages(c *gin.Context) {
	projectID := c.Param("project_id")
	var req struct {
		SceneIDs []string `json:"sceneIds"`
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
	ids := req.SceneIDs
	if len(ids) == 0 {
		scenes, err := h.Store.ListScenes(c.Request.Context(), projectID)
		if err != nil {
			h.writeError(c, err)
			return
		}
		for _, s := range scenes {
			ids = append(ids, s.ID)
		}
	}
	if _, err := h.Store.GetScenes(c.Request.Context(), projectID, ids); err != nil {
		h.writeError(c, err)
		return
	}
	if len(ids) == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "project has no scenes yet", "project_id": projectID})
		return
	}

	taskID, err := h.Queue.EnqueueImages(c.Request.Context(), service.ImagesPayload{ProjectID: projectID, SceneIDs: ids})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID, "project_id": projectID, "scene_ids": ids})
}
