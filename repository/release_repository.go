package repository

import (
	"context"
	"errors"
	"fmt"

	"Tunora/model"

	"gorm.io/gorm"
)

// ReleaseFilter narrows ReleaseRepository.List and Count. Limit <= 0 means
// no paging.
type ReleaseFilter struct {
	UploadedBy int64
	Genres     []model.Genre
	Offset     int
	Limit      int
}

// ReleaseRepository 发行数据访问接口. Releases are always returned with
// their bundled tracks in position order.
type ReleaseRepository interface {
	// CreateWithTracks inserts release.Tracks, the release and the bundle rows
	// atomically. IDs are written back into release and its tracks.
	CreateWithTracks(ctx context.Context, release *model.Release) error
	GetByID(ctx context.Context, id int64) (*model.Release, error)
	GetByIDs(ctx context.Context, ids []int64) ([]model.Release, error)
	List(ctx context.Context, filter ReleaseFilter) ([]model.Release, error)
	Count(ctx context.Context, filter ReleaseFilter) (int64, error)
}

type gormReleaseRepository struct {
	db *gorm.DB
	tx Transactor
}

// NewGormReleaseRepository 创建 GORM 发行仓库
func NewGormReleaseRepository(db *gorm.DB) ReleaseRepository {
	return &gormReleaseRepository{db: db, tx: NewGormTransactor(db)}
}

func (r *gormReleaseRepository) CreateWithTracks(ctx context.Context, release *model.Release) error {
	if len(release.Tracks) == 0 {
		return fmt.Errorf("release %q has no tracks", release.Title)
	}
	return r.tx.Transaction(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.db)
		for i := range release.Tracks {
			if err := db.Create(&release.Tracks[i]).Error; err != nil {
				return fmt.Errorf("failed to create track %d of release %q: %w", i, release.Title, err)
			}
		}
		if err := db.Create(release).Error; err != nil {
			return fmt.Errorf("failed to create release %q: %w", release.Title, err)
		}
		links := make([]model.ReleaseTrack, len(release.Tracks))
		for i, t := range release.Tracks {
			links[i] = model.ReleaseTrack{ReleaseID: release.ID, TrackID: t.ID, Position: i}
		}
		if err := db.Create(&links).Error; err != nil {
			return fmt.Errorf("failed to bundle tracks into release %d: %w", release.ID, err)
		}
		return nil
	})
}

// GetByID returns nil, nil when the release does not exist.
func (r *gormReleaseRepository) GetByID(ctx context.Context, id int64) (*model.Release, error) {
	var release model.Release
	err := conn(ctx, r.db).Where("id = ?", id).First(&release).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get release %d: %w", id, err)
	}
	releases := []model.Release{release}
	if err := r.attachTracks(ctx, releases); err != nil {
		return nil, err
	}
	return &releases[0], nil
}

func (r *gormReleaseRepository) GetByIDs(ctx context.Context, ids []int64) ([]model.Release, error) {
	if len(ids) == 0 {
		return []model.Release{}, nil
	}
	var releases []model.Release
	if err := conn(ctx, r.db).Where("id IN ?", ids).Find(&releases).Error; err != nil {
		return nil, fmt.Errorf("failed to get releases by ids: %w", err)
	}
	if err := r.attachTracks(ctx, releases); err != nil {
		return nil, err
	}
	return releases, nil
}

func (r *gormReleaseRepository) List(ctx context.Context, filter ReleaseFilter) ([]model.Release, error) {
	q := r.filtered(ctx, filter).Order("created_at DESC, id DESC")
	if filter.Limit > 0 {
		q = q.Offset(filter.Offset).Limit(filter.Limit)
	}
	var releases []model.Release
	if err := q.Find(&releases).Error; err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}
	if err := r.attachTracks(ctx, releases); err != nil {
		return nil, err
	}
	return releases, nil
}

func (r *gormReleaseRepository) Count(ctx context.Context, filter ReleaseFilter) (int64, error) {
	var count int64
	if err := r.filtered(ctx, filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count releases: %w", err)
	}
	return count, nil
}

func (r *gormReleaseRepository) filtered(ctx context.Context, filter ReleaseFilter) *gorm.DB {
	q := conn(ctx, r.db).Model(&model.Release{})
	if filter.UploadedBy != 0 {
		q = q.Where("uploaded_by = ?", filter.UploadedBy)
	}
	if len(filter.Genres) > 0 {
		q = q.Where("genre IN ?", filter.Genres)
	}
	return q
}

// bundledTrack is a track row joined with its bundle position.
type bundledTrack struct {
	model.Track `gorm:"embedded"`
	ReleaseID   int64
	Position    int
}

// attachTracks loads the bundled tracks of every release with one query.
func (r *gormReleaseRepository) attachTracks(ctx context.Context, releases []model.Release) error {
	if len(releases) == 0 {
		return nil
	}
	ids := make([]int64, len(releases))
	for i := range releases {
		ids[i] = releases[i].ID
	}

	var rows []bundledTrack
	err := conn(ctx, r.db).Table("tracks").
		Select("tracks.*, release_tracks.release_id, release_tracks.position").
		Joins("JOIN release_tracks ON release_tracks.track_id = tracks.id").
		Where("release_tracks.release_id IN ?", ids).
		Order("release_tracks.release_id, release_tracks.position").
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to load bundled tracks: %w", err)
	}

	byRelease := make(map[int64][]model.Track, len(releases))
	for _, row := range rows {
		byRelease[row.ReleaseID] = append(byRelease[row.ReleaseID], row.Track)
	}
	for i := range releases {
		tracks := byRelease[releases[i].ID]
		if tracks == nil {
			tracks = []model.Track{}
		}
		releases[i].Tracks = tracks
	}
	return nil
}
