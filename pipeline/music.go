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

// SelectMusic picks a track covering the whole timeline and makes it the
// project's only music reference.
func (s *Stages) SelectMusic(ctx context.Context, p service.MusicPayload) error {
	logger := s.stageLogger("music", p.ProjectID)

	project, err := s.Store.LoadProjectGraph(ctx, p.ProjectID)
	if err != nil {
		return s.failProject(ctx, logger, p.ProjectID, err)
	}

	mood := providers.DefaultMood
	if p.Mood != nil && strings.TrimSpace(*p.Mood) != "" {
		mood = strings.TrimSpace(*p.Mood)
	}
	useMock := p.UseMock
	provider := s.Providers.Music(&useMock)
	res, err := provider.Select(ctx, providers.MusicRequest{Mood: mood, DurationMs: project.TotalDurationMs()})
	if err != nil {
		return s.failProject(ctx, logger, project.ID, fmt.Errorf("select music: %w", err))
	}

	asset := &models.Asset{
		ID:        uuid.NewString(),
		ProjectID: project.ID,
		Kind:      models.AssetKindAudio,
		Role:      models.AssetRoleMusic,
		URL:       res.AudioURL,
		Metadata: datatypes.JSONMap{
			"title":      res.Title,
			"artist":     res.Artist,
			"mood":       res.Mood,
			"durationMs": res.DurationMs,
			"provider":   provider.Name(),
		},
	}
	if err := s.Store.CreateAsset(ctx, asset); err != nil {
		return s.failProject(ctx, logger, project.ID, err)
	}
	if err := s.Store.SetProjectMusic(ctx, project.ID, asset.ID, models.ProjectStatusMusicSelected); err != nil {
		return s.failProject(ctx, logger, project.ID, err)
	}
	logger.Info().Str("title", res.Title).Str("mood", res.Mood).Msg("music selected")
	return nil
}
