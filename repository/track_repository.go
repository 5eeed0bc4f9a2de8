package repository

import (
	"context"
	"errors"
	"fmt"

	"Tunora/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TrackFilter narrows TrackRepository.List. Zero values mean "no filter".
type TrackFilter struct {
	UploadedBy int64
	Genres     []model.Genre
	// OrphansOnly keeps tracks that are not bundled in any release.
	OrphansOnly bool
}

// TrackRepository 曲目数据访问接口
type TrackRepository interface {
	Create(ctx context.Context, track *model.Track) error
	GetByID(ctx context.Context, id int64) (*model.Track, error)
	GetByIDs(ctx context.Context, ids []int64) ([]model.Track, error)
	List(ctx context.Context, filter TrackFilter) ([]model.Track, error)
	// Lock reads the track with SELECT ... FOR UPDATE, holding the row lock
	// until the surrounding transaction ends. Returns nil, nil when missing.
	Lock(ctx context.Context, id int64) (*model.Track, error)
	// IncrementPlayCount atomically adds one play and returns the new total.
	IncrementPlayCount(ctx context.Context, id int64) (int64, error)
}

type gormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository 创建 GORM 曲目仓库
func NewGormTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

func (r *gormTrackRepository) Create(ctx context.Context, track *model.Track) error {
	if err := conn(ctx, r.db).Create(track).Error; err != nil {
		return fmt.Errorf("failed to create track %q: %w", track.Title, err)
	}
	return nil
}

// GetByID returns nil, nil when the track does not exist.
func (r *gormTrackRepository) GetByID(ctx context.Context, id int64) (*model.Track, error) {
	var track model.Track
	err := conn(ctx, r.db).Where("id = ?", id).First(&track).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get track %d: %w", id, err)
	}
	return &track, nil
}

func (r *gormTrackRepository) GetByIDs(ctx context.Context, ids []int64) ([]model.Track, error) {
	if len(ids) == 0 {
		return []model.Track{}, nil
	}
	var tracks []model.Track
	if err := conn(ctx, r.db).Where("id IN ?", ids).Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("failed to get tracks by ids: %w", err)
	}
	return tracks, nil
}

func (r *gormTrackRepository) List(ctx context.Context, filter TrackFilter) ([]model.Track, error) {
	q := conn(ctx, r.db).Model(&model.Track{})
	if filter.UploadedBy != 0 {
		q = q.Where("uploaded_by = ?", filter.UploadedBy)
	}
	if len(filter.Genres) > 0 {
		q = q.Where("genre IN ?", filter.Genres)
	}
	if filter.OrphansOnly {
		q = q.Where("NOT EXISTS (SELECT 1 FROM release_tracks rt WHERE rt.track_id = tracks.id)")
	}

	var tracks []model.Track
	if err := q.Order("created_at DESC, id DESC").Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	return tracks, nil
}

func (r *gormTrackRepository) Lock(ctx context.Context, id int64) (*model.Track, error) {
	var track model.Track
	err := conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&track).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock track %d: %w", id, err)
	}
	return &track, nil
}

func (r *gormTrackRepository) IncrementPlayCount(ctx context.Context, id int64) (int64, error) {
	db := conn(ctx, r.db)
	res := db.Model(&model.Track{}).
		Where("id = ?", id).
		UpdateColumn("play_count", gorm.Expr("play_count + ?", 1))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to increment play count for track %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("track %d: %w", id, gorm.ErrRecordNotFound)
	}

	var count int64
	if err := db.Model(&model.Track{}).Select("play_count").Where("id = ?", id).Scan(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to read play count for track %d: %w", id, err)
	}
	return count, nil
}
