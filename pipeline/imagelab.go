package pipeline

import (
	"context"
	"fmt"
	"strings"

	"VideoPipeline-server/models"
	"VideoPipeline-server/providers"
	"VideoPipeline-server/service"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ScenePrompt is the text an image is generated from: the overlay text, or
// "Scene N" counting from one.
func ScenePrompt(scene *models.Scene) string {
	if text := strings.TrimSpace(scene.Overlay()); text != "" {
		return text
	}
	return fmt.Sprintf("Scene %d", scene.Index+1)
}

// GenerateImages creates one image per targeted scene at the project's
// output size and attaches it. An empty target list means every scene.
func (s *Stages) GenerateImages(ctx context.Context, p service.ImagesPayload) error {
	logger := s.stageLogger("imagelab", p.ProjectID)

	project, err := s.Store.GetProject(ctx, p.ProjectID)
	if err != nil {
		return s.failProject(ctx, logger, p.ProjectID, err)
	}
	var scenes []models.Scene
	if len(p.SceneIDs) == 0 {
		scenes, err = s.Store.ListScenes(ctx, project.ID)
	} else {
		scenes, err = s.Store.GetScenes(ctx, project.ID, p.SceneIDs)
	}
	if err != nil {
		return s.failProject(ctx, logger, project.ID, err)
	}

	width, height := project.AspectRatio.Dimensions()
	provider := s.Providers.Image(nil)
	for i := range scenes {
		scene := &scenes[i]
		prompt := ScenePrompt(scene)
		res, err := provider.Generate(ctx, providers.ImageRequest{Prompt: prompt, Width: width, Height: height})
		if err != nil {
			return s.failProject(ctx, logger, project.ID, fmt.Errorf("scene %d image: %w", scene.Index, err))
		}
		asset := &models.Asset{
			ID:        uuid.NewString(),
			ProjectID: project.ID,
			Kind:      models.AssetKindImage,
			Role:      models.AssetRoleSceneImage,
			URL:       res.ImageURL,
			Metadata: datatypes.JSONMap{
				"width":    res.Width,
				"height":   res.Height,
				"format":   res.Format,
				"prompt":   prompt,
				"provider": provider.Name(),
				"sceneId":  scene.ID,
			},
		}
		if err := s.Store.CreateAsset(ctx, asset); err != nil {
			return s.failProject(ctx, logger, project.ID, err)
		}
		if err := s.Store.AttachSceneImage(ctx, scene.ID, asset.ID); err != nil {
			return s.failProject(ctx, logger, project.ID, err)
		}
		logger.Debug().Str("scene_id", scene.ID).Str("asset_id", asset.ID).Msg("scene image attached")
	}
	logger.Info().Int("scenes", len(scenes)).Str("provider", provider.Name()).Msg("images generated")
	return nil
}
