package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/opsdeck/internal/api"
	"github.com/charlesng35/opsdeck/internal/app"
	"github.com/charlesng35/opsdeck/internal/app/maintenance"
	iauth "github.com/charlesng35/opsdeck/internal/auth"
	"github.com/charlesng35/opsdeck/internal/authz"
	"github.com/charlesng35/opsdeck/internal/cache"
	"github.com/charlesng35/opsdeck/internal/database"
	"github.com/charlesng35/opsdeck/internal/events"
	"github.com/charlesng35/opsdeck/internal/models"
	"github.com/charlesng35/opsdeck/internal/services"
	"github.com/charlesng35/opsdeck/internal/teamctx"
	"github.com/charlesng35/opsdeck/internal/tenant"
	"github.com/charlesng35/opsdeck/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Redis   cache.Store
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine
}

// bootstrapRuntime initialises the database, cache, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisClient(cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	var store cache.Store = dbStore
	if stack.Redis != nil {
		store = stack.Redis
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	resolver, err := authz.NewResolver(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise resolver: %w", err)
	}

	teamCtx, err := teamctx.NewService(stack.DB, store, resolver)
	if err != nil {
		return nil, fmt.Errorf("initialise team context: %w", err)
	}

	scope, err := tenant.NewScope(teamCtx)
	if err != nil {
		return nil, fmt.Errorf("initialise tenant scope: %w", err)
	}

	serverRepo, err := tenant.NewRepository[models.Server, *models.Server](stack.DB, scope)
	if err != nil {
		return nil, fmt.Errorf("initialise server repository: %w", err)
	}

	providerRepo, err := tenant.NewRepository[models.ServerProvider, *models.ServerProvider](stack.DB, scope)
	if err != nil {
		return nil, fmt.Errorf("initialise provider repository: %w", err)
	}

	dispatcher := events.NewDispatcher()
	services.RegisterActivityListeners(dispatcher, stack.DB)

	teamSvc, err := services.NewTeamService(stack.DB, resolver, teamCtx, dispatcher)
	if err != nil {
		return nil, fmt.Errorf("initialise team service: %w", err)
	}

	userSvc, err := services.NewUserService(stack.DB, teamSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}

	serverSvc, err := services.NewServerService(serverRepo, resolver, teamCtx)
	if err != nil {
		return nil, fmt.Errorf("initialise server service: %w", err)
	}

	providerSvc, err := services.NewServerProviderService(providerRepo, resolver, teamCtx)
	if err != nil {
		return nil, fmt.Errorf("initialise provider service: %w", err)
	}

	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(stack.DB, dbStore,
			maintenance.WithCacheSchedule(cfg.Maintenance.CacheSchedule),
			maintenance.WithInvitationSchedule(cfg.Maintenance.InvitationSchedule),
		)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(jwtSvc, api.Services{
		Users:     userSvc,
		Teams:     teamSvc,
		Servers:   serverSvc,
		Providers: providerSvc,
		Resolver:  resolver,
		TeamCtx:   teamCtx,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		if stopCtx := s.Cleaner.Stop(); stopCtx != nil {
			// Wait for in-flight jobs to drain before the final sweep.
			select {
			case <-stopCtx.Done():
			case <-ctx.Done():
			}
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if rc, ok := s.Redis.(*cache.RedisClient); ok && rc != nil {
		if err := rc.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
