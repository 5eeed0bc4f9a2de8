package ranking

import (
	"context"
	"time"

	"Tunora/core/apperr"
	"Tunora/logger"
	"Tunora/metrics"
	"Tunora/model"
	"Tunora/repository"

	"go.uber.org/zap"
)

// Engine serves the ranking views.
type Engine struct {
	tracks   repository.TrackRepository
	releases repository.ReleaseRepository
	ledger   repository.PlayHistoryRepository
	users    repository.UserRepository

	timeout time.Duration
	log     *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithQueryTimeout bounds the store calls of every view. Zero disables it.
func WithQueryTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// NewEngine wires the engine to its stores.
func NewEngine(
	tracks repository.TrackRepository,
	releases repository.ReleaseRepository,
	ledger repository.PlayHistoryRepository,
	users repository.UserRepository,
	opts ...Option,
) *Engine {
	e := &Engine{
		tracks:   tracks,
		releases: releases,
		ledger:   ledger,
		users:    users,
		timeout:  5 * time.Second,
		log:      logger.Named("ranking"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// TopResult is the global chart.
type TopResult struct {
	TotalStreams  int64           `json:"totalStreams"`
	Singles       []ScoredTrack   `json:"singles"`
	Releases      []ScoredRelease `json:"releases"`
	TotalSingles  int64           `json:"totalSingles"`
	TotalReleases int64           `json:"totalReleases"`
}

// RecentResult is the global recent-uploads view.
type RecentResult struct {
	Singles       []ScoredTrack   `json:"singles"`
	Releases      []ScoredRelease `json:"releases"`
	TotalSingles  int64           `json:"totalSingles"`
	TotalReleases int64           `json:"totalReleases"`
}

// ArtistResult is an artist's top or recent view.
type ArtistResult struct {
	TotalStreams int64           `json:"totalStreams"`
	Singles      []ScoredTrack   `json:"singles"`
	Releases     []ScoredRelease `json:"releases"`
}

// ReleasePage is one page of releases with paging metadata.
type ReleasePage struct {
	Data        []model.Release `json:"data"`
	Total       int64           `json:"total"`
	CurrentPage int             `json:"currentPage"`
	TotalPages  int64           `json:"totalPages"`
}

// CatalogResult is an artist's full discography view.
type CatalogResult struct {
	Singles  []model.Track `json:"singles"`
	Releases ReleasePage   `json:"releases"`
}

// catalog loads standalone tracks and releases, optionally narrowed.
func (e *Engine) catalog(ctx context.Context, tf repository.TrackFilter, rf repository.ReleaseFilter) ([]model.Track, []model.Release, error) {
	tracks, err := e.tracks.List(ctx, tf)
	if err != nil {
		return nil, nil, apperr.FromStore(err)
	}
	releases, err := e.releases.List(ctx, rf)
	if err != nil {
		return nil, nil, apperr.FromStore(err)
	}
	return tracks, releases, nil
}

// GlobalTop ranks standalone tracks by counter and releases by the sum of
// their tracks' counters. Each list is paged independently. TotalStreams
// counts every track exactly once.
func (e *Engine) GlobalTop(ctx context.Context, page Page) (*TopResult, error) {
	defer metrics.ObserveRanking("global_top", time.Now())
	ctx, cancel := e.bound(ctx)
	defer cancel()

	tracks, releases, err := e.catalog(ctx, repository.TrackFilter{OrphansOnly: true}, repository.ReleaseFilter{})
	if err != nil {
		return nil, err
	}
	singles := scoreTracks(tracks, nil)
	bundles := scoreReleases(releases, nil)
	sortByScore(singles)
	sortByScore(bundles)

	return &TopResult{
		TotalStreams:  totalScore(singles) + totalScore(bundles),
		Singles:       paginate(singles, page),
		Releases:      paginate(bundles, page),
		TotalSingles:  int64(len(singles)),
		TotalReleases: int64(len(bundles)),
	}, nil
}

// GlobalRecent lists standalone tracks and releases newest first.
func (e *Engine) GlobalRecent(ctx context.Context, page Page) (*RecentResult, error) {
	defer metrics.ObserveRanking("global_recent", time.Now())
	ctx, cancel := e.bound(ctx)
	defer cancel()

	tracks, releases, err := e.catalog(ctx, repository.TrackFilter{OrphansOnly: true}, repository.ReleaseFilter{})
	if err != nil {
		return nil, err
	}
	singles := scoreTracks(tracks, nil)
	bundles := scoreReleases(releases, nil)
	sortByRecency(singles)
	sortByRecency(bundles)

	return &RecentResult{
		Singles:       paginate(singles, page),
		Releases:      paginate(bundles, page),
		TotalSingles:  int64(len(singles)),
		TotalReleases: int64(len(bundles)),
	}, nil
}

// requireArtist loads the caller and checks the artist role.
func (e *Engine) requireArtist(ctx context.Context, id int64) (*model.User, error) {
	user, err := e.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	if user == nil {
		return nil, apperr.ErrAccountNotFound
	}
	if !user.IsArtist() {
		return nil, apperr.ErrNotArtist
	}
	return user, nil
}

// artistCatalog splits an artist's uploads into orphan tracks and releases.
func (e *Engine) artistCatalog(ctx context.Context, artistID int64) ([]ScoredTrack, []ScoredRelease, error) {
	if _, err := e.requireArtist(ctx, artistID); err != nil {
		return nil, nil, err
	}
	tracks, releases, err := e.catalog(ctx,
		repository.TrackFilter{UploadedBy: artistID, OrphansOnly: true},
		repository.ReleaseFilter{UploadedBy: artistID},
	)
	if err != nil {
		return nil, nil, err
	}
	return scoreTracks(tracks, nil), scoreReleases(releases, nil), nil
}

// ArtistTop returns the artist's top limit releases and orphan tracks.
// TotalStreams sums the returned lists.
func (e *Engine) ArtistTop(ctx context.Context, artistID int64, limit int) (*ArtistResult, error) {
	defer metrics.ObserveRanking("artist_top", time.Now())
	ctx, cancel := e.bound(ctx)
	defer cancel()

	singles, bundles, err := e.artistCatalog(ctx, artistID)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit)
	sortByScore(singles)
	sortByScore(bundles)
	singles, bundles = top(singles, limit), top(bundles, limit)

	return &ArtistResult{
		TotalStreams: totalScore(singles) + totalScore(bundles),
		Singles:      singles,
		Releases:     bundles,
	}, nil
}

// ArtistRecent returns the artist's newest limit releases and orphan tracks.
func (e *Engine) ArtistRecent(ctx context.Context, artistID int64, limit int) (*ArtistResult, error) {
	defer metrics.ObserveRanking("artist_recent", time.Now())
	ctx, cancel := e.bound(ctx)
	defer cancel()

	singles, bundles, err := e.artistCatalog(ctx, artistID)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit)
	sortByRecency(singles)
	sortByRecency(bundles)
	singles, bundles = top(singles, limit), top(bundles, limit)

	return &ArtistResult{
		TotalStreams: totalScore(singles) + totalScore(bundles),
		Singles:      singles,
		Releases:     bundles,
	}, nil
}

// ArtistCatalog returns every orphan track plus one page of releases, both
// newest first.
func (e *Engine) ArtistCatalog(ctx context.Context, artistID int64, page Page) (*CatalogResult, error) {
	defer metrics.ObserveRanking("artist_catalog", time.Now())
	ctx, cancel := e.bound(ctx)
	defer cancel()

	if _, err := e.requireArtist(ctx, artistID); err != nil {
		return nil, err
	}
	page = page.normalized()

	singles, err := e.tracks.List(ctx, repository.TrackFilter{UploadedBy: artistID, OrphansOnly: true})
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	filter := repository.ReleaseFilter{UploadedBy: artistID}
	total, err := e.releases.Count(ctx, filter)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	filter.Offset, filter.Limit = page.Offset(), page.Limit
	releases, err := e.releases.List(ctx, filter)
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	e.log.Debug("artist catalog",
		zap.Int64("artist", artistID),
		zap.Int("singles", len(singles)),
		zap.Int64("releases", total),
	)
	return &CatalogResult{
		Singles: singles,
		Releases: ReleasePage{
			Data:        releases,
			Total:       total,
			CurrentPage: page.Page,
			TotalPages:  page.TotalPages(total),
		},
	}, nil
}
