package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"VideoPipeline-server/config"
	"VideoPipeline-server/logging"

	"github.com/hibiken/asynq"
)

// One durable queue per stage.
const (
	QueueStoryboard = "storyboard"
	QueueImages     = "images"
	QueueVoiceover  = "voiceover"
	QueueMusic      = "music"
	QueueRender     = "render"
)

const (
	TypeGenerateStoryboard = "pipeline:storyboard"
	TypeGenerateImages     = "pipeline:images"
	TypeGenerateVoiceover  = "pipeline:voiceover"
	TypeSelectMusic        = "pipeline:music"
	TypeRenderVideo        = "pipeline:render"
)

type StoryboardPayload struct {
	ProjectID string `json:"projectId"`
	Brief     string `json:"brief"`
}

type ImagesPayload struct {
	ProjectID string   `json:"projectId"`
	SceneIDs  []string `json:"sceneIds"`
}

type VoiceoverPayload struct {
	ProjectID string `json:"projectId"`
	UseMock   bool   `json:"useMock"`
}

type MusicPayload struct {
	ProjectID string  `json:"projectId"`
	Mood      *string `json:"mood,omitempty"`
	UseMock   bool    `json:"useMock"`
}

type RenderPayload struct {
	ProjectID    string `json:"projectId"`
	RenderJobID  string `json:"renderJobId"`
	ExportFCPXML *bool  `json:"exportFcpxml,omitempty"`
	ExportEDL    *bool  `json:"exportEdl,omitempty"`
}

// Enqueuer is the Enqueue API: one call per stage.
type Enqueuer interface {
	EnqueueStoryboard(ctx context.Context, p StoryboardPayload) (string, error)
	EnqueueImages(ctx context.Context, p ImagesPayload) (string, error)
	EnqueueVoiceover(ctx context.Context, p VoiceoverPayload) (string, error)
	EnqueueMusic(ctx context.Context, p MusicPayload) (string, error)
	EnqueueRender(ctx context.Context, p RenderPayload) (string, error)
}

// Queue places stage jobs on their asynq queues.
type Queue struct {
	client *asynq.Client
	cfg    config.QueueConfig
	logger logging.Logger
}

// RedisOpt converts the redis section into asynq connection options.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

func NewQueue(opt asynq.RedisConnOpt, cfg config.QueueConfig, logger logging.Logger) *Queue {
	return &Queue{
		client: asynq.NewClient(opt),
		cfg:    cfg,
		logger: logger.With().Str("component", "queue").Logger(),
	}
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) EnqueueStoryboard(ctx context.Context, p StoryboardPayload) (string, error) {
	return q.enqueue(ctx, TypeGenerateStoryboard, QueueStoryboard, p.ProjectID, p)
}

func (q *Queue) EnqueueImages(ctx context.Context, p ImagesPayload) (string, error) {
	return q.enqueue(ctx, TypeGenerateImages, QueueImages, p.ProjectID, p)
}

func (q *Queue) EnqueueVoiceover(ctx context.Context, p VoiceoverPayload) (string, error) {
	return q.enqueue(ctx, TypeGenerateVoiceover, QueueVoiceover, p.ProjectID, p)
}

func (q *Queue) EnqueueMusic(ctx context.Context, p MusicPayload) (string, error) {
	return q.enqueue(ctx, TypeSelectMusic, QueueMusic, p.ProjectID, p)
}

func (q *Queue) EnqueueRender(ctx context.Context, p RenderPayload) (string, error) {
	return q.enqueue(ctx, TypeRenderVideo, QueueRender, p.ProjectID, p)
}

func (q *Queue) enqueue(ctx context.Context, taskType, queue, projectID string, payload any) (string, error) {
	task, err := NewTask(taskType, payload, TaskOptions(q.cfg, queue)...)
	if err != nil {
		return "", err
	}
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	q.logger.Info().
		Str("task_type", taskType).
		Str("queue", info.Queue).
		Str("task_id", info.ID).
		Str("project_id", projectID).
		Msg("task enqueued")
	return info.ID, nil
}

// NewTask marshals payload into an asynq task.
func NewTask(taskType string, payload any, opts ...asynq.Option) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, b, opts...), nil
}

// TaskOptions returns the per-queue retry, timeout and retention policy.
// Render jobs are not retried: a failed RenderJob is terminal.
func TaskOptions(cfg config.QueueConfig, queue string) []asynq.Option {
	maxRetry := cfg.MaxRetry
	if queue == QueueRender {
		maxRetry = 0
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Minute
	}
	return []asynq.Option{
		asynq.Queue(queue),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(timeout),
		asynq.Retention(cfg.Retention),
	}
}
