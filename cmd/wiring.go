package cmd

import (
	"context"
	"fmt"
	"time"

	"Tunora/cache"
	"Tunora/config"
	"Tunora/core/auth"
	"Tunora/core/catalog"
	"Tunora/core/notify"
	"Tunora/core/playcount"
	"Tunora/core/ranking"
	"Tunora/db"
	"Tunora/logger"
	"Tunora/repository"
	"Tunora/server"
	"Tunora/storage"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app holds the process-wide dependencies.
type app struct {
	cfg   *config.Config
	gdb   *gorm.DB
	redis *redis.Client
	blobs *storage.MinioStore

	tracks   repository.TrackRepository
	releases repository.ReleaseRepository
	ledger   repository.PlayHistoryRepository
	users    repository.UserRepository
	tx       repository.Transactor
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	gdb, err := db.ConnectGormDB(cfg)
	if err != nil {
		return nil, err
	}
	rdb, err := cache.ConnectRedis(cfg)
	if err != nil {
		db.CloseGormDB()
		return nil, err
	}
	blobs, err := storage.NewMinioStore(ctx, cfg)
	if err != nil {
		cache.CloseRedis()
		db.CloseGormDB()
		return nil, fmt.Errorf("无法连接到MinIO: %w", err)
	}

	return &app{
		cfg:      cfg,
		gdb:      gdb,
		redis:    rdb,
		blobs:    blobs,
		tracks:   repository.NewGormTrackRepository(gdb),
		releases: repository.NewGormReleaseRepository(gdb),
		ledger:   repository.NewGormPlayHistoryRepository(gdb),
		users:    repository.NewGormUserRepository(gdb),
		tx:       repository.NewGormTransactor(gdb),
	}, nil
}

func (a *app) close() {
	if err := cache.CloseRedis(); err != nil {
		logger.Warn("关闭Redis连接时发生错误", zap.Error(err))
	}
	if err := db.CloseGormDB(); err != nil {
		logger.Warn("关闭数据库连接时发生错误", zap.Error(err))
	}
}

func (a *app) router() (*server.CatalogHandler, *auth.TokenManager, error) {
	tokens, err := auth.NewTokenManager(a.cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		return nil, nil, err
	}
	queue := cache.NewNotificationQueue(a.redis)
	svc := catalog.NewService(a.tracks, a.releases, a.users, a.blobs, notify.NewQueueDispatcher(queue))
	plays := playcount.NewEngine(a.tracks, a.releases, a.ledger, a.users, a.tx)
	rankings := ranking.NewEngine(a.tracks, a.releases, a.ledger, a.users, ranking.WithQueryTimeout(a.cfg.QueryTimeout))
	replays := cache.NewIdempotencyStore(a.redis, a.cfg.IdempotencyTTL)
	return server.NewCatalogHandler(svc, plays, rankings, replays), tokens, nil
}

func (a *app) healthChecks() map[string]server.HealthCheck {
	return map[string]server.HealthCheck{
		"mysql": func(ctx context.Context) error { return db.Ping(ctx, a.gdb) },
		"redis": func(ctx context.Context) error { return a.redis.Ping(ctx).Err() },
		"minio": a.blobs.Check,
	}
}

func runServer(ctx context.Context, cfg *config.Config) error {
	defer logger.Sync()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	handler, tokens, err := a.router()
	if err != nil {
		return err
	}
	return server.Start(ctx, ":"+cfg.ServerPort, server.NewRouter(handler, tokens, a.healthChecks()))
}
