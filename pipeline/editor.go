package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"VideoPipeline-server/apperr"
	"VideoPipeline-server/logging"
	"VideoPipeline-server/models"
	"VideoPipeline-server/render"
	"VideoPipeline-server/service"
)

// RenderVideo runs one RenderJob from processing to exactly one terminal
// state. A second run for the same job while the first holds the render lease
// returns ErrLeaseHeld and leaves the job alone.
func (s *Stages) RenderVideo(ctx context.Context, p service.RenderPayload) error {
	logger := s.stageLogger("editor", p.ProjectID).With().Str("render_job_id", p.RenderJobID).Logger()

	lease, err := s.acquire(ctx, service.RenderLeaseKey(p.RenderJobID))
	if err != nil {
		logger.Warn().Err(err).Msg("render already running")
		return err
	}
	defer release(lease, logger)

	job, err := s.Store.StartRenderJob(ctx, p.RenderJobID)
	if err != nil {
		logger.Error().Err(err).Msg("render job cannot start")
		return err
	}

	logf := s.renderLog(ctx, logger, job.ID)
	logf("starting render")

	artifacts, err := s.render(ctx, logger, job, p, logf)
	if err != nil {
		return s.failRender(ctx, logger, job, err)
	}

	if err := s.Store.CompleteRenderJob(ctx, job.ID, artifacts); err != nil {
		return s.failRender(ctx, logger, job, err)
	}
	if err := s.settleProject(ctx, logger, job, models.ProjectStatusCompleted); err != nil {
		return err
	}
	logger.Info().Interface("artifacts", artifacts).Msg("render completed")
	return nil
}

func (s *Stages) render(ctx context.Context, logger logging.Logger, job *models.RenderJob, p service.RenderPayload, logf func(string)) (map[string]string, error) {
	if p.ProjectID != "" && p.ProjectID != job.ProjectID {
		return nil, apperr.Wrap(apperr.ErrValidation, "editor", "load job",
			fmt.Sprintf("render job %s belongs to project %s, not %s", job.ID, job.ProjectID, p.ProjectID), nil)
	}
	if err := s.Store.UpdateProjectStatus(ctx, job.ProjectID, models.ProjectStatusRendering); err != nil {
		return nil, err
	}
	project, err := s.Store.LoadProjectGraph(ctx, job.ProjectID)
	if err != nil {
		return nil, err
	}
	logf(fmt.Sprintf("loaded %d scenes", len(project.Scenes)))

	workDir, err := os.MkdirTemp(s.ScratchRoot, "render-"+job.ID+"-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn().Err(err).Str("dir", workDir).Msg("scratch cleanup failed")
		}
	}()

	opts := render.Options{ExportFCPXML: job.ExportFCPXML, ExportEDL: job.ExportEDL}
	if p.ExportFCPXML != nil {
		opts.ExportFCPXML = *p.ExportFCPXML
	}
	if p.ExportEDL != nil {
		opts.ExportEDL = *p.ExportEDL
	}

	out, err := s.Engine.Render(ctx, project, workDir, opts, logf)
	if err != nil {
		return nil, err
	}

	artifacts := map[string]string{}
	uploads := []struct{ kind, path string }{
		{models.ArtifactMP4, out.VideoPath},
		{models.ArtifactFCPXML, out.FCPXMLPath},
		{models.ArtifactEDL, out.EDLPath},
	}
	for _, u := range uploads {
		if u.path == "" {
			continue
		}
		key := service.ObjectKey(project.ID, "renders", job.ID+filepath.Ext(u.path))
		url, err := s.Blobs.PutFile(ctx, key, u.path, service.ContentTypeFor(key))
		if err != nil {
			return nil, err
		}
		artifacts[u.kind] = url
		logf(fmt.Sprintf("uploaded %s", u.kind))
	}
	return artifacts, nil
}

// failRender marks both the job and the project failed and returns err.
func (s *Stages) failRender(ctx context.Context, logger logging.Logger, job *models.RenderJob, err error) error {
	logger.Error().Err(err).Msg("render failed")
	bg := context.WithoutCancel(ctx)
	if aerr := s.Store.AppendRenderLog(bg, job.ID, "render failed: "+err.Error()); aerr != nil {
		logger.Error().Err(aerr).Msg("append render log")
	}
	if ferr := s.Store.FailRenderJob(bg, job.ID, err.Error()); ferr != nil {
		logger.Error().Err(ferr).Msg("mark render job failed")
	}
	_ = s.settleProject(ctx, logger, job, models.ProjectStatusFailed)
	return err
}

const settleAttempts = 3

// settleProject moves the project to the status mirroring a job that is
// already terminal. Writes are retried detached from the task context; if they
// still fail the divergence is logged under a fixed state name and recorded on
// the job's log.
func (s *Stages) settleProject(ctx context.Context, logger logging.Logger, job *models.RenderJob, status string) error {
	bg := context.WithoutCancel(ctx)
	var err error
	for attempt := 1; attempt <= settleAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(time.Duration(attempt-1) * 100 * time.Millisecond)
		}
		if err = s.Store.UpdateProjectStatus(bg, job.ProjectID, status); err == nil {
			return nil
		}
		if errors.Is(err, apperr.ErrNotFound) {
			break
		}
		logger.Warn().Err(err).Int("attempt", attempt).Str("want", status).Msg("update project status")
	}
	logger.Error().Err(err).
		Str("state", "project_status_diverged").
		Str("want", status).
		Msg("project status does not mirror render job")
	if aerr := s.Store.AppendRenderLog(bg, job.ID, fmt.Sprintf("project status diverged: want %s: %v", status, err)); aerr != nil {
		logger.Error().Err(aerr).Msg("append render log")
	}
	return err
}

// renderLog appends each line to the job's log. A failed append is logged and
// the render carries on.
func (s *Stages) renderLog(ctx context.Context, logger logging.Logger, jobID string) func(string) {
	return func(line string) {
		logger.Info().Msg(line)
		if err := s.Store.AppendRenderLog(ctx, jobID, line); err != nil {
			logger.Warn().Err(err).Str("line", line).Msg("append render log")
		}
	}
}
