// Package pipeline holds the stage workers (Director, ImageLab, ScriptVO,
// Music, Editor) and the asynq processor that dispatches queue tasks to them.
package pipeline

import (
	"context"
	"errors"
	"time"

	"VideoPipeline-server/apperr"
	"VideoPipeline-server/logging"
	"VideoPipeline-server/models"
	"VideoPipeline-server/providers"
	"VideoPipeline-server/render"
	"VideoPipeline-server/service"
)

// Stages carries the collaborators every stage worker needs. All of them are
// constructed by the caller so tests can swap in fakes.
type Stages struct {
	Store        *models.Store
	Providers    *providers.Registry
	Blobs        service.BlobStore
	Queue        service.Enqueuer
	Locker       service.Locker
	LeaseTTL     time.Duration
	Engine       *render.Engine
	Planner      Planner
	Scriptwriter Scriptwriter
	ScratchRoot  string
	Logger       logging.Logger
}

func (s *Stages) stageLogger(stage, projectID string) logging.Logger {
	return s.Logger.With().Str("stage", stage).Str("project_id", projectID).Logger()
}

func (s *Stages) acquire(ctx context.Context, key string) (service.Lease, error) {
	ttl := s.LeaseTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return s.Locker.Acquire(ctx, key, ttl)
}

func release(lease service.Lease, logger logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := lease.Release(ctx); err != nil {
		logger.Warn().Err(err).Msg("lease release failed")
	}
}

// failProject records the failure on the project and hands err back so the
// queue applies its retry policy. A missing project has nothing to mark.
func (s *Stages) failProject(ctx context.Context, logger logging.Logger, projectID string, err error) error {
	logger.Error().Err(err).Msg("stage failed")
	if errors.Is(err, apperr.ErrNotFound) && isProjectMissing(ctx, s.Store, projectID) {
		return err
	}
	if uerr := s.Store.UpdateProjectStatus(context.WithoutCancel(ctx), projectID, models.ProjectStatusFailed); uerr != nil {
		logger.Error().Err(uerr).Msg("mark project failed")
	}
	return err
}

func isProjectMissing(ctx context.Context, store *models.Store, projectID string) bool {
	_, err := store.GetProject(context.WithoutCancel(ctx), projectID)
	return errors.Is(err, apperr.ErrNotFound)
}
