package pipeline

import (
	"context"
	"fmt"
	"strings"

	"VideoPipeline-server/models"
	"VideoPipeline-server/providers"
	"VideoPipeline-server/service"

	"github.com/google/uuid"
)

// GenerateVoiceover narrates every scene that has overlay text, replacing any
// segment a previous run attached. The script line at a scene's position is
// spoken; past the end of the script the overlay text is. The project moves to
// vo_generated only when at least one segment was produced.
func (s *Stages) GenerateVoiceover(ctx context.Context, p service.VoiceoverPayload) error {
	logger := s.stageLogger("scriptvo", p.ProjectID)

	project, err := s.Store.LoadProjectGraph(ctx, p.ProjectID)
	if err != nil {
		return s.failProject(ctx, logger, p.ProjectID, err)
	}
	script, err := s.Scriptwriter.Script(ctx, project)
	if err != nil {
		return s.failProject(ctx, logger, project.ID, fmt.Errorf("write script: %w", err))
	}

	useMock := p.UseMock
	provider := s.Providers.TTS(&useMock)
	created := 0
	for i := range project.Scenes {
		scene := &project.Scenes[i]
		overlay := strings.TrimSpace(scene.Overlay())
		if overlay == "" {
			continue
		}
		text := overlay
		if i < len(script) && strings.TrimSpace(script[i]) != "" {
			text = script[i]
		}
		res, err := provider.Synthesize(ctx, providers.SpeechRequest{Text: text})
		if err != nil {
			return s.failProject(ctx, logger, project.ID, fmt.Errorf("scene %d voiceover: %w", scene.Index, err))
		}
		seg := &models.VoSegment{
			ID:         uuid.NewString(),
			SceneID:    scene.ID,
			Text:       text,
			AudioURL:   res.AudioURL,
			DurationMs: res.DurationMs,
		}
		if err := s.Store.ReplaceSceneVoSegment(ctx, seg); err != nil {
			return s.failProject(ctx, logger, project.ID, err)
		}
		created++
	}

	if created == 0 {
		logger.Info().Msg("no scene has overlay text, nothing to narrate")
		return nil
	}
	if err := s.Store.UpdateProjectStatus(ctx, project.ID, models.ProjectStatusVOGenerated); err != nil {
		return s.failProject(ctx, logger, project.ID, err)
	}
	logger.Info().Int("segments", created).Str("provider", provider.Name()).Msg("voiceover generated")
	return nil
}
