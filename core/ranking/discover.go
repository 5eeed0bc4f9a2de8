package ranking

import (
	"context"
	"time"

	"Tunora/core/apperr"
	"Tunora/core/genre"
	"Tunora/metrics"
	"Tunora/model"
	"Tunora/repository"
)

// RecentPlaysLimit caps RecentPlays.
const RecentPlaysLimit = 30

// DiscoverResult is one page of discovery results.
type DiscoverResult struct {
	Category      string          `json:"category"`
	Singles       []ScoredTrack   `json:"singles"`
	Releases      []ScoredRelease `json:"releases"`
	TotalSingles  int64           `json:"totalSingles"`
	TotalReleases int64           `json:"totalReleases"`
}

// Discover browses the catalog by category: "for_you" ranks the listener's
// favorite genres by 2*personalPlays + playCount, "all" and genre names rank
// by popularity. Discovery covers every track, bundled or not.
func (e *Engine) Discover(ctx context.Context, listenerID int64, category string, page Page) (*DiscoverResult, error) {
	res, err := genre.Resolve(category)
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.bound(ctx)
	defer cancel()

	user, err := e.users.GetUserByID(ctx, listenerID)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	if user == nil {
		return nil, apperr.ErrAccountNotFound
	}

	switch res.Mode {
	case genre.ModeForYou:
		defer metrics.ObserveRanking("discover_for_you", time.Now())
		return e.forYou(ctx, user, page)
	case genre.ModeAll:
		defer metrics.ObserveRanking("discover_all", time.Now())
		return e.popular(ctx, genre.CategoryAll, nil, page)
	default:
		defer metrics.ObserveRanking("discover_genre", time.Now())
		return e.popular(ctx, string(res.Genre), []model.Genre{res.Genre}, page)
	}
}

func (e *Engine) forYou(ctx context.Context, user *model.User, page Page) (*DiscoverResult, error) {
	genres := favoriteGenres(user.FavoriteGenres)
	if len(genres) == 0 {
		return nil, apperr.ErrNoPreferredGenres
	}

	plays, err := e.ledger.PersonalPlayCounts(ctx, user.ID)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return e.rank(ctx, genre.CategoryForYou, genres, personal(plays), page)
}

// favoriteGenres maps stored preferences onto canonical genres so the
// genre filter matches what tracks were saved with. Unknown values are dropped.
func favoriteGenres(stored model.GenreList) []model.Genre {
	out := make([]model.Genre, 0, len(stored))
	seen := make(map[model.Genre]bool, len(stored))
	for _, g := range stored {
		n, ok := genre.Normalize(string(g))
		if !ok || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func (e *Engine) popular(ctx context.Context, category string, genres []model.Genre, page Page) (*DiscoverResult, error) {
	return e.rank(ctx, category, genres, nil, page)
}

func (e *Engine) rank(ctx context.Context, category string, genres []model.Genre, p personal, page Page) (*DiscoverResult, error) {
	tracks, releases, err := e.catalog(ctx,
		repository.TrackFilter{Genres: genres},
		repository.ReleaseFilter{Genres: genres},
	)
	if err != nil {
		return nil, err
	}
	singles := scoreTracks(tracks, p)
	bundles := scoreReleases(releases, p)
	sortByScore(singles)
	sortByScore(bundles)

	return &DiscoverResult{
		Category:      category,
		Singles:       paginate(singles, page),
		Releases:      paginate(bundles, page),
		TotalSingles:  int64(len(singles)),
		TotalReleases: int64(len(bundles)),
	}, nil
}

// RecentPlay is a ledger row resolved to its track and, for release-scoped
// plays, its release.
type RecentPlay struct {
	model.PlayHistory
	Track   *model.Track   `json:"track,omitempty"`
	Release *model.Release `json:"release,omitempty"`
}

// RecentPlays returns the listener's last RecentPlaysLimit ledger rows by
// last play.
func (e *Engine) RecentPlays(ctx context.Context, listenerID int64) ([]RecentPlay, error) {
	defer metrics.ObserveRanking("recent_plays", time.Now())
	ctx, cancel := e.bound(ctx)
	defer cancel()

	rows, err := e.ledger.ListRecent(ctx, listenerID, RecentPlaysLimit)
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	var trackIDs, releaseIDs []int64
	for _, row := range rows {
		trackIDs = append(trackIDs, row.TrackID)
		if row.ViaRelease() {
			releaseIDs = append(releaseIDs, row.ReleaseID)
		}
	}
	tracks, err := e.tracks.GetByIDs(ctx, trackIDs)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	releases, err := e.releases.GetByIDs(ctx, releaseIDs)
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	trackByID := make(map[int64]*model.Track, len(tracks))
	for i := range tracks {
		trackByID[tracks[i].ID] = &tracks[i]
	}
	releaseByID := make(map[int64]*model.Release, len(releases))
	for i := range releases {
		releaseByID[releases[i].ID] = &releases[i]
	}

	out := make([]RecentPlay, 0, len(rows))
	for _, row := range rows {
		out = append(out, RecentPlay{
			PlayHistory: row,
			Track:       trackByID[row.TrackID],
			Release:     releaseByID[row.ReleaseID],
		})
	}
	return out, nil
}
