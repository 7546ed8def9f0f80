package pipeline

import (
	"context"
	"fmt"

	"VideoPipeline-server/apperr"
	"VideoPipeline-server/models"
	"VideoPipeline-server/service"

	"github.com/google/uuid"
)

// GenerateStoryboard plans scenes from the brief, persists them with index in
// plan order and chains image generation for every scene. Scenes left by an
// earlier delivery of the same job are reused rather than duplicated.
func (s *Stages) GenerateStoryboard(ctx context.Context, p service.StoryboardPayload) error {
	logger := s.stageLogger("director", p.ProjectID)

	lease, err := s.acquire(ctx, service.ProjectLeaseKey("director", p.ProjectID))
	if err != nil {
		return err
	}
	defer release(lease, logger)

	project, err := s.Store.GetProject(ctx, p.ProjectID)
	if err != nil {
		return s.failProject(ctx, logger, p.ProjectID, err)
	}

	existing, err := s.Store.ListScenes(ctx, project.ID)
	if err != nil {
		return s.failProject(ctx, logger, project.ID, err)
	}

	var sceneIDs []string
	if len(existing) > 0 {
		logger.Info().Int("scenes", len(existing)).Msg("scenes already exist, skipping creation")
		for _, sc := range existing {
			sceneIDs = append(sceneIDs, sc.ID)
		}
		if project.Status == models.ProjectStatusCreated || project.Status == models.ProjectStatusFailed {
			if err := s.Store.UpdateProjectStatus(ctx, project.ID, models.ProjectStatusStoryboardGenerated); err != nil {
				return s.failProject(ctx, logger, project.ID, err)
			}
		}
	} else {
		plan, err := s.Planner.Plan(ctx, p.Brief)
		if err != nil {
			return s.failProject(ctx, logger, project.ID, fmt.Errorf("plan storyboard: %w", err))
		}
		if len(plan) == 0 {
			return s.failProject(ctx, logger, project.ID,
				apperr.Wrap(apperr.ErrEmptyInput, "director", "plan", "planner returned no scenes", nil))
		}
		scenes := make([]models.Scene, 0, len(plan))
		for i, sp := range plan {
			if sp.DurationMs <= 0 {
				return s.failProject(ctx, logger, project.ID, apperr.Wrap(apperr.ErrValidation, "director", "plan",
					fmt.Sprintf("scene %d has duration %dms", i, sp.DurationMs), nil))
			}
			sc := models.Scene{
				ID:          uuid.NewString(),
				ProjectID:   project.ID,
				Index:       i,
				DurationMs:  sp.DurationMs,
				Description: sp.Description,
				Narration:   sp.Narration,
			}
			if sp.OverlayText != "" {
				overlay := sp.OverlayText
				sc.OverlayText = &overlay
			}
			scenes = append(scenes, sc)
			sceneIDs = append(sceneIDs, sc.ID)
		}
		if err := s.Store.CreateScenes(ctx, scenes); err != nil {
			return s.failProject(ctx, logger, project.ID, fmt.Errorf("create scenes: %w", err))
		}
		if err := s.Store.UpdateProjectStatus(ctx, project.ID, models.ProjectStatusStoryboardGenerated); err != nil {
			return s.failProject(ctx, logger, project.ID, err)
		}
		logger.Info().Int("scenes", len(scenes)).Msg("storyboard generated")
	}

	if _, err := s.Queue.EnqueueImages(ctx, service.ImagesPayload{ProjectID: project.ID, SceneIDs: sceneIDs}); err != nil {
		return s.failProject(ctx, logger, project.ID, err)
	}
	return nil
}
