package api

import (
	"net/http"
	"strings"

	"VideoPipeline-server/apperr"
	"VideoPipeline-server/models"
	"VideoPipeline-server/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createProjectRequest struct {
	Title       string `json:"title" binding:"required"`
	Brief       string `json:"brief"`
	AspectRatio string `json:"aspectRatio"`
}

// CreateProject persists a project and starts the storyboard stage.
// POST /v1/api/projects
func (h *Handler) CreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	aspect := models.AspectVertical
	if strings.TrimSpace(req.AspectRatio) != "" {
		parsed, ok := models.ParseAspectRatio(req.AspectRatio)
		if !ok {
			h.writeError(c, apperr.Wrap(apperr.ErrValidation, "api", "create project", "unknown aspect ratio "+req.AspectRatio, nil))
			return
		}
		aspect = parsed
	}

	project := &models.Project{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(req.Title),
		AspectRatio: aspect,
		Status:      models.ProjectStatusCreated,
	}
	if err := h.Store.CreateProject(c.Request.Context(), project); err != nil {
		h.writeError(c, err)
		return
	}

	taskID, err := h.Queue.EnqueueStoryboard(c.Request.Context(), service.StoryboardPayload{ProjectID: project.ID, Brief: req.Brief})
	if err != nil {
		h.Logger.Error().Err(err).Str("project_id", project.ID).Msg("enqueue storyboard")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "project created but storyboard could not be enqueued: " + err.Error(),
			"project_id": project.ID,
		})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"project": project, "task_id": taskID})
}

// GetProject returns the project graph with scenes in index order.
// GET /v1/api/projects/:project_id
func (h *Handler) GetProject(c *gin.Context) {
	project, err := h.Store.LoadProjectGraph(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project, "total_duration_ms": project.TotalDurationMs()})
}
