package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"vision-relay/config"
	telegram "vision-relay/internal/api"
	app "vision-relay/internal/application"
	"vision-relay/internal/container"
	"vision-relay/internal/domain/port"
	"vision-relay/internal/infrastructure/logging"
)

type cli struct {
	cfg    *config.Config
	logger *logrus.Logger
}

func newRootCmd() *cobra.Command {
	rt := &cli{}

	rootCmd := &cobra.Command{
		Use:           "vision-relay",
		Short:         "Telegram bot and worker for object detection on photos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			rt.cfg = cfg
			rt.logger = logging.New(cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "worker",
			Short: "Poll the job queue and run detection",
			RunE:  rt.wrap(rt.runWorker),
		},
		&cobra.Command{
			Use:   "bot",
			Short: "Run the Telegram gateway",
			RunE:  rt.wrap(rt.runBot),
		},
		&cobra.Command{
			Use:   "standalone",
			Short: "Run gateway and worker in one process over in-memory queue",
			RunE:  rt.wrap(rt.runStandalone),
		},
	)

	return rootCmd
}

// wrap отменяет контекст по SIGINT/SIGTERM и логирует фатальную ошибку
func (rt *cli) wrap(run func(ctx context.Context) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := run(ctx); err != nil {
			rt.logger.WithError(err).Error(cmd.Name() + " stopped with error")
			return err
		}
		return nil
	}
}

func (rt *cli) runWorker(ctx context.Context) error {
	if err := rt.cfg.ValidateWorker(); err != nil {
		return err
	}

	backends, err := container.NewBackends(ctx, rt.cfg)
	if err != nil {
		return err
	}
	defer backends.Close()

	c := container.New(rt.cfg, rt.logger, backends)
	notifier, err := c.NewHTTPNotifier()
	if err != nil {
		return err
	}

	orch, engine, err := c.NewOrchestrator(notifier)
	if err != nil {
		return err
	}
	defer engine.Close()

	g, ctx := errgroup.WithContext(ctx)
	if rt.cfg.MetricsAddr != "" {
		r := mux.NewRouter()
		r.Handle("/metrics", c.Metrics.Handler())
		g.Go(func() error {
			return telegram.Serve(ctx, rt.cfg.MetricsAddr, r, rt.logger)
		})
	}
	g.Go(func() error {
		return app.RunPool(ctx, rt.cfg.Worker.Concurrency, c.NewWorkerFactory(orch))
	})
	return g.Wait()
}

func (rt *cli) runBot(ctx context.Context) error {
	if err := rt.cfg.ValidateBot(); err != nil {
		return err
	}

	backends := &container.Backends{}
	if rt.cfg.Telegram.Mode != app.ModeEcho {
		var err error
		backends, err = container.NewBackends(ctx, rt.cfg)
		if err != nil {
			return err
		}
	}
	defer backends.Close()

	c := container.New(rt.cfg, rt.logger, backends)
	gw, err := rt.newGateway(c)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return telegram.Serve(ctx, rt.cfg.HTTPAddr, gw.router, rt.logger)
	})
	g.Go(func() error {
		return gw.bot.Run(ctx, rt.cfg.Telegram.AppURL, rt.cfg.Telegram.Token, rt.cfg.Telegram.CertPath)
	})
	return g.Wait()
}

func (rt *cli) runStandalone(ctx context.Context) error {
	rt.cfg.Telegram.Mode = app.ModeDetection
	if rt.cfg.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	backends, err := container.NewMemoryBackends(rt.cfg)
	if err != nil {
		return err
	}
	defer backends.Close()

	c := container.New(rt.cfg, rt.logger, backends)
	gw, err := rt.newGateway(c)
	if err != nil {
		return err
	}

	// итог доставляется в чат напрямую, без HTTP-вызова
	orch, engine, err := c.NewOrchestrator(port.NotifierFunc(gw.results.Deliver))
	if err != nil {
		return err
	}
	defer engine.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return telegram.Serve(ctx, rt.cfg.HTTPAddr, gw.router, rt.logger)
	})
	g.Go(func() error {
		return gw.bot.Poll(ctx)
	})
	g.Go(func() error {
		return app.RunPool(ctx, rt.cfg.Worker.Concurrency, c.NewWorkerFactory(orch))
	})
	return g.Wait()
}

type gateway struct {
	bot     *telegram.Bot
	results *app.ResultsService
	router  *mux.Router
}

func (rt *cli) newGateway(c *container.Container) (*gateway, error) {
	api, err := telegram.Authorize(rt.cfg.Telegram.Token, rt.logger)
	if err != nil {
		return nil, err
	}
	client := telegram.NewClient(api)

	handler, err := c.NewMessageHandler(client)
	if err != nil {
		return nil, err
	}

	gw := &gateway{bot: telegram.NewBot(api, handler, rt.logger)}
	routerCfg := telegram.RouterConfig{
		Token:   rt.cfg.Telegram.Token,
		Bot:     gw.bot,
		Metrics: c.Metrics.Handler(),
		Logger:  rt.logger,
	}
	if c.Backends.Results != nil {
		gw.results = c.NewResultsService(client)
		routerCfg.Results = gw.results
	}
	gw.router = telegram.NewRouter(routerCfg)
	return gw, nil
}
