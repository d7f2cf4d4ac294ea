package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"bookkeeping/internal/archive"
	"bookkeeping/internal/config"
	"bookkeeping/internal/importer"
	"bookkeeping/internal/ledger"
	"bookkeeping/internal/logger"
	"bookkeeping/internal/matching"
	"bookkeeping/internal/reporting"
	"bookkeeping/internal/routes"
	"bookkeeping/internal/transfer"
	"bookkeeping/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var configModule = fx.Module("config",
	fx.Provide(func() config.Config { return config.Load() }),
	fx.Invoke(initLogger),
)

var infrastructureModule = fx.Module("infrastructure",
	fx.Provide(
		initDB,
		newSystemCategories,
		newArchiveStore,
		newProfiles,
	),
)

var domainModule = fx.Module("domain",
	fx.Provide(
		ledger.NewService,
		transfer.NewService,
		reporting.NewService,
		importer.NewService,
		func(db *gorm.DB, sys models.SystemCategories, cfg config.Config) *matching.Service {
			return matching.NewService(db, sys, cfg.TaxRate)
		},
	),
)

var serverModule = fx.Module("server",
	fx.Provide(newRouter),
	fx.Invoke(startServer),
)

func initLogger(cfg config.Config) {
	logger.Init(logger.Options{Level: cfg.LogLevel, JSON: cfg.IsProduction()})
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
}

func newArchiveStore(cfg config.Config) (archive.Store, error) {
	if cfg.ArchiveBlobURL == "" {
		return archive.Noop{}, nil
	}
	return archive.NewBlobStore(cfg.ArchiveBlobURL, cfg.ArchiveContainer)
}

func newProfiles(cfg config.Config) (importer.Profiles, error) {
	p, err := importer.LoadProfiles(cfg.ImportProfiles)
	if err != nil {
		return nil, err
	}
	logger.Info().Strs("profiles", p.Names()).Msg("import profiles loaded")
	return p, nil
}

type routerParams struct {
	fx.In

	Config    config.Config
	Ledger    *ledger.Service
	Importer  *importer.Service
	Profiles  importer.Profiles
	Transfers *transfer.Service
	Matching  *matching.Service
	Reports   *reporting.Service
}

func newRouter(p routerParams) *gin.Engine {
	return routes.Register(routes.Services{
		Ledger:    p.Ledger,
		Importer:  p.Importer,
		Profiles:  p.Profiles,
		Transfers: p.Transfers,
		Matching:  p.Matching,
		Reports:   p.Reports,
	}, p.Config.CORSOrigins)
}

func startServer(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, db *gorm.DB) {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			logger.Info().Str("address", cfg.Addr).Str("environment", cfg.Env).Msg("listening")
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal().Err(err).Msg("server stopped")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down")
			if err := srv.Shutdown(ctx); err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
}

func main() {
	fx.New(
		configModule,
		infrastructureModule,
		domainModule,
		serverModule,
		fx.NopLogger,
	).Run()
}
