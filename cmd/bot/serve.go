package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	migrations "github.com/memohai/sticker-export-bot/db"
	"github.com/memohai/sticker-export-bot/internal/boot"
	"github.com/memohai/sticker-export-bot/internal/config"
	"github.com/memohai/sticker-export-bot/internal/convert"
	"github.com/memohai/sticker-export-bot/internal/db"
	"github.com/memohai/sticker-export-bot/internal/dialogue"
	"github.com/memohai/sticker-export-bot/internal/export"
	"github.com/memohai/sticker-export-bot/internal/handlers"
	"github.com/memohai/sticker-export-bot/internal/limiter"
	"github.com/memohai/sticker-export-bot/internal/logger"
	"github.com/memohai/sticker-export-bot/internal/pack"
	"github.com/memohai/sticker-export-bot/internal/server"
	"github.com/memohai/sticker-export-bot/internal/state"
	"github.com/memohai/sticker-export-bot/internal/telegram"
	"github.com/memohai/sticker-export-bot/internal/version"
)

const storeOpenTimeout = 30 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot with long polling",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			app := newApp(cfg)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func newApp(cfg config.Config) *fx.App {
	return fx.New(
		fx.Supply(cfg),
		fx.Provide(
			boot.ProvideRuntimeConfig,
			provideLogger,

			provideStateStore,
			provideLimiter,
			provideTelegramClient,
			provideTranscoder,
			provideConverter,
			provideExporter,
			provideOrchestrator,
			provideMachine,

			provideServerHandler(provideHealthHandler),
			provideServerHandler(handlers.NewMetricsHandler),
			provideServer,
		),
		fx.Invoke(
			checkTranscoder,
			startServer,
			startBot,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	)
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideStateStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) (state.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeOpenTimeout)
	defer cancel()

	switch rc.StateDriver {
	case config.StateDriverSQLite:
		store, err := state.OpenSQLite(ctx, cfg.State.SQLitePath)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return store.Close() }})
		log.Info("state store ready", slog.String("driver", rc.StateDriver), slog.String("path", cfg.State.SQLitePath))
		return store, nil

	case config.StateDriverPostgres:
		if err := db.RunMigrate(log, db.DSN(cfg.Postgres), migrations.MigrationsFS, "migrations", db.MigrateUp, nil); err != nil {
			return nil, err
		}
		pool, err := db.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error {
			pool.Close()
			return nil
		}})
		log.Info("state store ready", slog.String("driver", rc.StateDriver), slog.String("host", cfg.Postgres.Host))
		return state.NewPostgresStore(pool), nil

	default:
		log.Info("state store ready", slog.String("driver", rc.StateDriver))
		return state.NewMemoryStore(), nil
	}
}

func provideLimiter(rc *boot.RuntimeConfig) *limiter.Limiter[int64] {
	return limiter.New[int64](rc.RatePerMinute, rc.RateBurst,
		limiter.WithMaxKeys(rc.RateMaxKeys),
		limiter.WithIdleTTL(rc.RateIdleTTL),
	)
}

func provideTelegramClient(log *slog.Logger, rc *boot.RuntimeConfig) (*telegram.Client, error) {
	return telegram.NewClient(log, rc)
}

func provideTranscoder(cfg config.Config) *convert.FFmpegTranscoder {
	return convert.NewFFmpegTranscoder(cfg.Export.FFmpegPath)
}

func provideConverter(log *slog.Logger, transcoder *convert.FFmpegTranscoder, cfg config.Config) *convert.Converter {
	return convert.NewConverter(log, transcoder, cfg.Export.TempDir)
}

func provideExporter(log *slog.Logger, client *telegram.Client, converter *convert.Converter, rc *boot.RuntimeConfig) *export.Exporter {
	return export.NewExporter(log, client, converter, export.Options{
		LocalFiles:    rc.LocalFiles,
		MaxAssetBytes: rc.MaxAssetBytes,
	})
}

func provideOrchestrator(log *slog.Logger, exporter *export.Exporter, cfg config.Config) *pack.Orchestrator {
	return pack.NewOrchestrator(log, exporter, cfg.Export.PackConcurrency)
}

func provideMachine(
	log *slog.Logger,
	store state.Store,
	lim *limiter.Limiter[int64],
	client *telegram.Client,
	exporter *export.Exporter,
	orchestrator *pack.Orchestrator,
) *dialogue.Machine {
	return dialogue.NewMachine(log, store, lim, client, client, exporter, orchestrator)
}

func provideHealthHandler(log *slog.Logger, transcoder *convert.FFmpegTranscoder) *handlers.HealthHandler {
	return handlers.NewHealthHandler(log, map[string]handlers.Check{
		"ffmpeg": transcoder.Check,
	})
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	RuntimeConfig  *boot.RuntimeConfig
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.RuntimeConfig.ServerAddr, params.ServerHandlers...)
}

func checkTranscoder(lc fx.Lifecycle, log *slog.Logger, transcoder *convert.FFmpegTranscoder) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := transcoder.Check(ctx); err != nil {
				log.Warn("ffmpeg unavailable, video stickers will fail", slog.String("binary", transcoder.Binary), slog.Any("error", err))
			}
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	if !srv.Enabled() {
		log.Info("http server disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Stop(ctx)
		},
	})
}

func startBot(lc fx.Lifecycle, log *slog.Logger, client *telegram.Client, machine *dialogue.Machine) {
	var stop func(context.Context) error
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting sticker export bot", slog.String("version", version.GetInfo()))
			stop = client.Listen(context.Background(), machine.Handle)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if stop == nil {
				return nil
			}
			return stop(ctx)
		},
	})
}
