package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"VideoPipeline-server/config"
	"VideoPipeline-server/logging"
	"VideoPipeline-server/routers"
	"VideoPipeline-server/routers/api"

	"github.com/spf13/cobra"
)

type commandContext struct {
	configFlag string
	cfg        *config.Config
	logger     logging.Logger
}

func (c *commandContext) load() error {
	cfg, err := config.Load(c.configFlag)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logging.New(cfg.Env, cfg.Log.Level)
	return nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "videopipeline",
		Short:         "Video production pipeline server and worker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newWorkerCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newRenderStatusCommand(ctx))
	return rootCmd
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var withWorker bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the stage worker unless --worker=false)",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := openApp(ctx.cfg, ctx.logger)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.migrate(runCtx); err != nil {
				return err
			}

			if withWorker {
				processor, err := a.startProcessor()
				if err != nil {
					return err
				}
				defer processor.Shutdown()
			}

			handler := &api.Handler{
				Store:         a.store,
				Queue:         a.queue,
				Logger:        ctx.logger,
				VoiceoverMock: ctx.cfg.Providers.TTS.MockEnabled(),
				MusicMock:     ctx.cfg.Providers.Music.MockEnabled(),
				PollInterval:  time.Second,
				StreamTimeout: ctx.cfg.Queue.Timeout + time.Minute,
			}
			srv := &http.Server{
				Addr:              ctx.cfg.Server.Port,
				Handler:           routers.InitRouter(handler),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				ctx.logger.Info().Str("addr", srv.Addr).Msg("http server listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-runCtx.Done():
			}
			ctx.logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&withWorker, "worker", true, "Also run the stage worker in this process")
	return cmd
}

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the stage worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := openApp(ctx.cfg, ctx.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			processor, err := a.startProcessor()
			if err != nil {
				return err
			}
			<-runCtx.Done()
			processor.Shutdown()
			return nil
		},
	}
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(ctx.cfg, ctx.logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.migrate(cmd.Context())
		},
	}
}

func newRenderStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "render-status <render-job-id>",
		Short: "Show a render job's state, artifacts and log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(ctx.cfg, ctx.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			job, err := a.store.GetRenderJob(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderJobTable(job))
			return nil
		},
	}
}
