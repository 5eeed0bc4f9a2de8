package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Tunora/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlayHistoryRepository is the play history ledger. At most one row exists
// per (user, track, release) key.
type PlayHistoryRepository interface {
	// Find returns nil, nil when no row exists. It is a plain read: callers
	// serialize on the track row (TrackRepository.Lock) instead, since a
	// locking read of a missing key takes a gap lock that deadlocks against
	// the concurrent insert.
	Find(ctx context.Context, userID, trackID, releaseID int64) (*model.PlayHistory, error)
	// RecordPlay inserts the row with a count of 1, or increments the
	// existing row's count and stamps playedAt.
	RecordPlay(ctx context.Context, userID, trackID, releaseID int64, playedAt time.Time) error
	// PersonalPlayCounts sums the user's counted plays per track across the
	// direct row and every release-scoped row.
	PersonalPlayCounts(ctx context.Context, userID int64) (map[int64]int64, error)
	// ListRecent returns the user's rows by last play, newest first.
	ListRecent(ctx context.Context, userID int64, limit int) ([]model.PlayHistory, error)
}

type gormPlayHistoryRepository struct {
	db *gorm.DB
}

// NewGormPlayHistoryRepository 创建 GORM 播放记录仓库
func NewGormPlayHistoryRepository(db *gorm.DB) PlayHistoryRepository {
	return &gormPlayHistoryRepository{db: db}
}

func (r *gormPlayHistoryRepository) Find(ctx context.Context, userID, trackID, releaseID int64) (*model.PlayHistory, error) {
	var row model.PlayHistory
	err := conn(ctx, r.db).Where("user_id = ? AND track_id = ? AND release_id = ?", userID, trackID, releaseID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find play history (user=%d track=%d release=%d): %w", userID, trackID, releaseID, err)
	}
	return &row, nil
}

func (r *gormPlayHistoryRepository) RecordPlay(ctx context.Context, userID, trackID, releaseID int64, playedAt time.Time) error {
	row := &model.PlayHistory{
		UserID:       userID,
		TrackID:      trackID,
		ReleaseID:    releaseID,
		PlayCount:    1,
		LastPlayedAt: playedAt,
	}
	err := conn(ctx, r.db).Clauses(clause.OnConflict{
		DoUpdates: clause.Assignments(map[string]interface{}{
			"play_count":     gorm.Expr("play_count + ?", 1),
			"last_played_at": playedAt,
			"updated_at":     playedAt,
		}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to record play (user=%d track=%d release=%d): %w", userID, trackID, releaseID, err)
	}
	return nil
}

type trackPlays struct {
	TrackID int64
	Plays   int64
}

func (r *gormPlayHistoryRepository) PersonalPlayCounts(ctx context.Context, userID int64) (map[int64]int64, error) {
	var rows []trackPlays
	err := conn(ctx, r.db).Model(&model.PlayHistory{}).
		Select("track_id, SUM(play_count) AS plays").
		Where("user_id = ?", userID).
		Group("track_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate plays for user %d: %w", userID, err)
	}

	counts := make(map[int64]int64, len(rows))
	for _, row := range rows {
		counts[row.TrackID] = row.Plays
	}
	return counts, nil
}

func (r *gormPlayHistoryRepository) ListRecent(ctx context.Context, userID int64, limit int) ([]model.PlayHistory, error) {
	var rows []model.PlayHistory
	err := conn(ctx, r.db).
		Where("user_id = ?", userID).
		Order("last_played_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent plays for user %d: %w", userID, err)
	}
	return rows, nil
}
