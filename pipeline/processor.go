package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"VideoPipeline-server/apperr"
	"VideoPipeline-server/config"
	"VideoPipeline-server/logging"
	"VideoPipeline-server/service"

	"github.com/hibiken/asynq"
)

// Processor consumes the five stage queues and dispatches to Stages.
type Processor struct {
	server *asynq.Server
	stages *Stages
	logger logging.Logger
}

func NewProcessor(opt asynq.RedisConnOpt, cfg config.QueueConfig, stages *Stages, logger logging.Logger) *Processor {
	logger = logger.With().Str("component", "processor").Logger()
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          cfg.Weights,
		ShutdownTimeout: 30 * time.Second,
		Logger:          asynqLogger{logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			taskID, _ := asynq.GetTaskID(ctx)
			logger.Error().Err(err).
				Str("task_type", task.Type()).
				Str("task_id", taskID).
				Int("retried", retried).
				Int("max_retry", maxRetry).
				Msg("task failed")
		}),
	})
	return &Processor{server: srv, stages: stages, logger: logger}
}

// Mux routes every pipeline task type to its handler.
func (p *Processor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TypeGenerateStoryboard, p.HandleStoryboard)
	mux.HandleFunc(service.TypeGenerateImages, p.HandleImages)
	mux.HandleFunc(service.TypeGenerateVoiceover, p.HandleVoiceover)
	mux.HandleFunc(service.TypeSelectMusic, p.HandleMusic)
	mux.HandleFunc(service.TypeRenderVideo, p.HandleRender)
	return mux
}

// Start begins processing in the background.
func (p *Processor) Start() error {
	p.logger.Info().Msg("starting task processor")
	return p.server.Start(p.Mux())
}

// Shutdown waits for in-flight tasks up to the shutdown timeout.
func (p *Processor) Shutdown() {
	p.server.Shutdown()
	p.logger.Info().Msg("task processor stopped")
}

func (p *Processor) HandleStoryboard(ctx context.Context, t *asynq.Task) error {
	var payload service.StoryboardPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	return outcome(p.stages.GenerateStoryboard(ctx, payload))
}

func (p *Processor) HandleImages(ctx context.Context, t *asynq.Task) error {
	var payload service.ImagesPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	return outcome(p.stages.GenerateImages(ctx, payload))
}

func (p *Processor) HandleVoiceover(ctx context.Context, t *asynq.Task) error {
	var payload service.VoiceoverPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	return outcome(p.stages.GenerateVoiceover(ctx, payload))
}

func (p *Processor) HandleMusic(ctx context.Context, t *asynq.Task) error {
	var payload service.MusicPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	return outcome(p.stages.SelectMusic(ctx, payload))
}

func (p *Processor) HandleRender(ctx context.Context, t *asynq.Task) error {
	var payload service.RenderPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	return outcome(p.stages.RenderVideo(ctx, payload))
}

func decode(t *asynq.Task, v any) error {
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}

// outcome stops retries for errors a rerun cannot fix.
func outcome(err error) error {
	if err != nil && apperr.Permanent(err) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

// asynqLogger routes asynq's internal logging through zerolog.
type asynqLogger struct {
	logger logging.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }
