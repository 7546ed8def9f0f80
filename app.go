package main

import (
	"context"
	"errors"
	"fmt"

	"VideoPipeline-server/config"
	"VideoPipeline-server/logging"
	"VideoPipeline-server/models"
	"VideoPipeline-server/pipeline"
	"VideoPipeline-server/providers"
	"VideoPipeline-server/render"
	"VideoPipeline-server/service"

	"github.com/redis/go-redis/v9"
)

// app owns every long-lived client. Constructed once per command and closed
// in reverse order on exit.
type app struct {
	cfg    *config.Config
	logger logging.Logger
	store  *models.Store
	queue  *service.Queue

	closers []func() error
}

func openApp(cfg *config.Config, logger logging.Logger) (*app, error) {
	store, err := models.Open(cfg.MySQL.DSN, cfg.MySQL.MaxOpenConns, cfg.MySQL.MaxIdleConns)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("database connected")

	a := &app{cfg: cfg, logger: logger, store: store}
	a.closers = append(a.closers, store.Close)

	a.queue = service.NewQueue(service.RedisOpt(cfg), cfg.Queue, logger)
	a.closers = append(a.closers, a.queue.Close)
	return a, nil
}

// stages builds the worker collaborators.
func (a *app) stages() (*pipeline.Stages, error) {
	cfg := a.cfg
	blobs, err := service.NewBlobStore(cfg, a.logger)
	if err != nil {
		return nil, err
	}

	var locker service.Locker
	switch cfg.Lease.Backend {
	case "local":
		locker = service.NewLocalLocker()
	default:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.closers = append(a.closers, rdb.Close)
		locker = service.NewRedisLocker(rdb)
	}

	fetcher := render.NewHTTPFetcher(cfg.Render.MaxDownloadBytes)
	compositor, err := render.NewCompositor(cfg.Render, fetcher)
	if err != nil {
		return nil, err
	}
	engine := render.NewEngine(cfg.Render, render.NewFFmpeg(cfg.Render), compositor, fetcher)

	return &pipeline.Stages{
		Store:        a.store,
		Providers:    providers.NewRegistry(cfg.Providers.Image, cfg.Providers.TTS, cfg.Providers.Music, a.logger),
		Blobs:        blobs,
		Queue:        a.queue,
		Locker:       locker,
		LeaseTTL:     cfg.Lease.TTL,
		Engine:       engine,
		Planner:      pipeline.TemplatePlanner{},
		Scriptwriter: pipeline.TemplateScriptwriter{},
		ScratchRoot:  cfg.Render.ScratchRoot,
		Logger:       a.logger,
	}, nil
}

func (a *app) startProcessor() (*pipeline.Processor, error) {
	stages, err := a.stages()
	if err != nil {
		return nil, err
	}
	processor := pipeline.NewProcessor(service.RedisOpt(a.cfg), a.cfg.Queue, stages, a.logger)
	if err := processor.Start(); err != nil {
		return nil, fmt.Errorf("start processor: %w", err)
	}
	return processor, nil
}

func (a *app) migrate(ctx context.Context) error {
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.logger.Info().Msg("schema migrated")
	return nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
