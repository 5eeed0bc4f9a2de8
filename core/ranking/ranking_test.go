package ranking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"Tunora/core/apperr"
	"Tunora/model"
	"Tunora/repository"
	"Tunora/repository/memstore"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type world struct {
	t      *testing.T
	store  *memstore.Store
	engine *Engine
	tick   int
}

func newWorld(t *testing.T) *world {
	t.Helper()
	store := memstore.New()
	return &world{
		t:      t,
		store:  store,
		engine: NewEngine(store.Tracks(), store.Releases(), store.PlayHistory(), store.Users()),
	}
}

// next returns strictly increasing creation times.
func (w *world) next() time.Time {
	w.tick++
	return epoch.Add(time.Duration(w.tick) * time.Minute)
}

func (w *world) user(role string, genres ...model.Genre) int64 {
	return w.store.AddUser(model.User{
		Username:       fmt.Sprintf("u%d", w.tick),
		Role:           role,
		FavoriteGenres: genres,
	}).ID
}

func (w *world) track(owner int64, g model.Genre, plays int64) model.Track {
	w.t.Helper()
	tr := &model.Track{Title: "t", Genre: g, UploadedBy: owner, PlayCount: plays, CreatedAt: w.next()}
	if err := w.store.Tracks().Create(context.Background(), tr); err != nil {
		w.t.Fatalf("create track: %v", err)
	}
	return *tr
}

func (w *world) release(owner int64, g model.Genre, plays ...int64) model.Release {
	w.t.Helper()
	r := &model.Release{Title: "r", Kind: model.ReleaseKindEP, Genre: g, UploadedBy: owner, CreatedAt: w.next()}
	for _, p := range plays {
		r.Tracks = append(r.Tracks, model.Track{Title: "rt", Genre: g, UploadedBy: owner, PlayCount: p})
	}
	if err := w.store.Releases().CreateWithTracks(context.Background(), r); err != nil {
		w.t.Fatalf("create release: %v", err)
	}
	return *r
}

func (w *world) play(listener, trackID, releaseID int64) {
	w.t.Helper()
	if err := w.store.RecordPlay(context.Background(), listener, trackID, releaseID, w.next()); err != nil {
		w.t.Fatalf("record play: %v", err)
	}
}

func ids[T Rankable](items []T) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.RankID()
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestForYouPrefersOwnListening(t *testing.T) {
	w := newWorld(t)
	artist := w.user(model.RoleArtist)
	listener := w.user(model.RoleUser, model.GenrePop)
	a := w.track(artist, model.GenrePop, 5)
	b := w.track(artist, model.GenrePop, 3)
	w.track(artist, model.GenreRock, 100) // not a favorite genre
	w.play(listener, b.ID, model.DirectRelease)
	w.play(listener, b.ID, model.DirectRelease)

	res, err := w.engine.Discover(context.Background(), listener, "for_you", Page{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(res.Singles) != 2 || res.TotalSingles != 2 {
		t.Fatalf("expected only Pop tracks, got %+v", ids(res.Singles))
	}
	if res.Singles[0].ID != b.ID || res.Singles[0].Score != 7 {
		t.Fatalf("first = %d (score %d), want B with 7", res.Singles[0].ID, res.Singles[0].Score)
	}
	if res.Singles[1].ID != a.ID || res.Singles[1].Score != 5 {
		t.Fatalf("second = %d (score %d), want A with 5", res.Singles[1].ID, res.Singles[1].Score)
	}
}

func TestPersonalPlayAddsExactlyTwo(t *testing.T) {
	w := newWorld(t)
	artist := w.user(model.RoleArtist)
	listener := w.user(model.RoleUser, model.GenreJazz)
	tr := w.track(artist, model.GenreJazz, 11)
	rel := w.release(artist, model.GenreJazz, 1, 1)

	score := func() (int64, int64) {
		res, err := w.engine.Discover(context.Background(), listener, "for_you", Page{Page: 1, Limit: 10})
		if err != nil {
			t.Fatalf("Discover: %v", err)
		}
		var single, release int64
		for _, s := range res.Singles {
			if s.ID == tr.ID {
				single = s.Score
			}
		}
		for _, r := range res.Releases {
			if r.ID == rel.ID {
				release = r.Score
			}
		}
		return single, release
	}

	beforeSingle, beforeRelease := score()
	w.play(listener, tr.ID, model.DirectRelease)
	w.play(listener, rel.Tracks[0].ID, rel.ID)
	afterSingle, afterRelease := score()

	if afterSingle-beforeSingle != 2 {
		t.Fatalf("track score moved by %d, want 2", afterSingle-beforeSingle)
	}
	if afterRelease-beforeRelease != 2 {
		t.Fatalf("release score moved by %d, want 2", afterRelease-beforeRelease)
	}
}

func TestForYouRequiresFavoriteGenres(t *testing.T) {
	w := newWorld(t)
	listener := w.user(model.RoleUser)

	_, err := w.engine.Discover(context.Background(), listener, "for_you", Page{Page: 1, Limit: 10})
	if !errors.Is(err, apperr.ErrNoPreferredGenres) {
		t.Fatalf("err = %v, want ErrNoPreferredGenres", err)
	}
	_, err = w.engine.Discover(context.Background(), 999, "for_you", Page{Page: 1, Limit: 10})
	if !errors.Is(err, apperr.ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestDiscoverByGenreAndAll(t *testing.T) {
	w := newWorld(t)
	artist := w.user(model.RoleArtist)
	listener := w.user(model.RoleUser)
	hip := w.track(artist, model.GenreHipHop, 4)
	w.track(artist, model.GenrePop, 9)
	rel := w.release(artist, model.GenreHipHop, 1, 2)

	for _, category := range []string{"hiphop", "Hip-Hop", "HIP-HOP"} {
		res, err := w.engine.Discover(context.Background(), listener, category, Page{Page: 1, Limit: 20})
		if err != nil {
			t.Fatalf("Discover(%q): %v", category, err)
		}
		// bundled tracks are discoverable too
		want := []int64{hip.ID, rel.Tracks[1].ID, rel.Tracks[0].ID}
		if !equalIDs(ids(res.Singles), want) {
			t.Fatalf("Discover(%q) singles = %v, want %v", category, ids(res.Singles), want)
		}
		if len(res.Releases) != 1 || res.Releases[0].Score != 3 {
			t.Fatalf("Discover(%q) releases = %+v", category, res.Releases)
		}
	}

	all, err := w.engine.Discover(context.Background(), listener, "all", Page{Page: 1, Limit: 20})
	if err != nil {
		t.Fatalf("Discover(all): %v", err)
	}
	if all.TotalSingles != 4 || all.Singles[0].Score != 9 {
		t.Fatalf("all = %d singles, top score %d", all.TotalSingles, all.Singles[0].Score)
	}

	if _, err := w.engine.Discover(context.Background(), listener, "mambo", Page{Page: 1, Limit: 20}); !errors.Is(err, apperr.ErrInvalidCategory) {
		t.Fatalf("err = %v, want ErrInvalidCategory", err)
	}
}

func TestDiscoverRequiresAccountForEveryCategory(t *testing.T) {
	w := newWorld(t)
	artist := w.user(model.RoleArtist)
	w.track(artist, model.GenrePop, 1)

	for _, category := range []string{"for_you", "all", "pop"} {
		_, err := w.engine.Discover(context.Background(), 999, category, Page{Page: 1, Limit: 10})
		if !errors.Is(err, apperr.ErrAccountNotFound) {
			t.Fatalf("Discover(%q) err = %v, want ErrAccountNotFound", category, err)
		}
	}
}

func TestForYouNormalizesStoredFavorites(t *testing.T) {
	w := newWorld(t)
	artist := w.user(model.RoleArtist)
	// preferences saved before canonicalization, plus one unknown value
	listener := w.user(model.RoleUser, "hiphop", "Hip Hop", "polka")
	hip := w.track(artist, model.GenreHipHop, 2)
	w.track(artist, model.GenrePop, 50)

	res, err := w.engine.Discover(context.Background(), listener, "for_you", Page{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if !equalIDs(ids(res.Singles), []int64{hip.ID}) {
		t.Fatalf("singles = %v, want [%d]", ids(res.Singles), hip.ID)
	}

	unknown := w.user(model.RoleUser, "polka")
	if _, err := w.engine.Discover(context.Background(), unknown, "for_you", Page{Page: 1, Limit: 10}); !errors.Is(err, apperr.ErrNoPreferredGenres) {
		t.Fatalf("err = %v, want ErrNoPreferredGenres", err)
	}
}

func TestArtistTopSumsReleaseTracks(t *testing.T) {
	w := newWorld(t)
	artist := w.user(model.RoleArtist)
	other := w.user(model.RoleArtist)
	orphan := w.track(artist, model.GenrePop, 8)
	rel := w.release(artist, model.GenrePop, 2, 3, 4)
	w.track(other, model.GenrePop, 50)

	res, err := w.engine.ArtistTop(context.Background(), artist, 10)
	if err != nil {
		t.Fatalf("ArtistTop: %v", err)
	}
	if len(res.Releases) != 1 || res.Releases[0].ID != rel.ID || res.Releases[0].Score != 9 {
		t.Fatalf("releases = %+v", res.Releases)
	}
	if res.Releases[0].Score <= orphan.PlayCount {
		t.Fatalf("release score %d should outrank orphan %d", res.Releases[0].Score, orphan.PlayCount)
	}
	if len(res.Singles) != 1 || res.Singles[0].ID != orphan.ID {
		t.Fatalf("singles = %v, want only the orphan", ids(res.Singles))
	}
	if res.TotalStreams != 17 {
		t.Fatalf("TotalStreams = %d, want 17", res.TotalStreams)
	}
}

func TestArtistTopLimitAndRecent(t *testing.T) {
	w := newWorld(t)
	artist := w.user(model.RoleArtist)
	w.track(artist, model.GenrePop, 1)
	second := w.track(artist, model.GenrePop, 3)
	third := w.track(artist, model.GenrePop, 2)

	topRes, err := w.engine.ArtistTop(context.Background(), artist, 2)
	if err != nil {
		t.Fatalf("ArtistTop: %v", err)
	}
	if !equalIDs(ids(topRes.Singles), []int64{second.ID, third.ID}) || topRes.TotalStreams != 5 {
		t.Fatalf("top = %v / %d", ids(topRes.Singles), topRes.TotalStreams)
	}

	recent, err := w.engine.ArtistRecent(context.Background(), artist, 2)
	if err != nil {
		t.Fatalf("ArtistRecent: %v", err)
	}
	if !equalIDs(ids(recent.Singles), []int64{third.ID, second.ID}) {
		t.Fatalf("recent = %v, want newest first", ids(recent.Singles))
	}
}

func TestArtistViewsRequireArtistRole(t *testing.T) {
	w := newWorld(t)
	listener := w.user(model.RoleUser)
	ctx := context.Background()

	if _, err := w.engine.ArtistTop(ctx, listener, 10); !errors.Is(err, apperr.ErrNotArtist) {
		t.Fatalf("ArtistTop err = %v", err)
	}
	if _, err := w.engine.ArtistRecent(ctx, listener, 10); !errors.Is(err, apperr.ErrNotArtist) {
		t.Fatalf("ArtistRecent err = %v", err)
	}
	if _, err := w.engine.ArtistCatalog(ctx, listener, Page{Page: 1, Limit: 10}); !errors.Is(err, apperr.ErrNotArtist) {
		t.Fatalf("ArtistCatalog err = %v", err)
	}
	if _, err := w.engine.ArtistTop(ctx, 999, 10); !errors.Is(err, apperr.ErrAccountNotFound) {
		t.Fatalf("ArtistTop(missing) err = %v", err)
	}
}

func TestArtistCatalogPartitionsTracks(t *testing.T) {
	w := newWorld(t)
	artist := w.user(model.RoleArtist)
	o1 := w.track(artist, model.GenrePop, 0)
	r1 := w.release(artist, model.GenrePop, 1, 1)
	o2 := w.track(artist, model.GenreRock, 0)
	r2 := w.release(artist, model.GenreRock, 1)
	r3 := w.release(artist, model.GenreRock, 1, 2, 3)

	res, err := w.engine.ArtistCatalog(context.Background(), artist, Page{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("ArtistCatalog: %v", err)
	}

	if len(res.Singles) != 2 || res.Singles[0].ID != o2.ID || res.Singles[1].ID != o1.ID {
		t.Fatalf("singles = %+v, want orphans newest first", res.Singles)
	}
	if res.Releases.Total != 3 || res.Releases.TotalPages != 2 || res.Releases.CurrentPage != 1 {
		t.Fatalf("paging = %+v", res.Releases)
	}
	if len(res.Releases.Data) != 2 || res.Releases.Data[0].ID != r3.ID || res.Releases.Data[1].ID != r2.ID {
		t.Fatalf("release page = %+v", res.Releases.Data)
	}

	seen := map[int64]int{}
	for _, s := range res.Singles {
		seen[s.ID]++
	}
	for _, rel := range []model.Release{r1, r2, r3} {
		for _, tr := range rel.Tracks {
			seen[tr.ID]++
		}
	}
	all, _ := w.store.Tracks().List(context.Background(), repository.TrackFilter{UploadedBy: artist})
	if len(seen) != len(all) {
		t.Fatalf("partition covers %d of %d tracks", len(seen), len(all))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("track %d appears %d times across singles and releases", id, n)
		}
	}

	page2, err := w.engine.ArtistCatalog(context.Background(), artist, Page{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("ArtistCatalog page 2: %v", err)
	}
	if len(page2.Releases.Data) != 1 || page2.Releases.Data[0].ID != r1.ID || len(page2.Releases.Data[0].Tracks) != 2 {
		t.Fatalf("page 2 = %+v", page2.Releases.Data)
	}
}

func TestGlobalTopCountsEveryTrackOnce(t *testing.T) {
	w := newWorld(t)
	artist := w.user(model.RoleArtist)
	w.track(artist, model.GenrePop, 1)
	w.track(artist, model.GenreRock, 2)
	w.release(artist, model.GenrePop, 3, 4)

	res, err := w.engine.GlobalTop(context.Background(), Page{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("GlobalTop: %v", err)
	}
	if res.TotalStreams != 10 {
		t.Fatalf("TotalStreams = %d, want 10", res.TotalStreams)
	}
	if res.TotalSingles != 2 || res.TotalReleases != 1 {
		t.Fatalf("totals = %d/%d", res.TotalSingles, res.TotalReleases)
	}
	if res.Singles[0].Score != 2 || res.Releases[0].Score != 7 {
		t.Fatalf("unexpected order: %+v", res)
	}
}

func TestGlobalRecentNewestFirst(t *testing.T) {
	w := newWorld(t)
	artist := w.user(model.RoleArtist)
	older := w.track(artist, model.GenrePop, 100)
	newer := w.track(artist, model.GenrePop, 0)
	r1 := w.release(artist, model.GenrePop, 1)
	r2 := w.release(artist, model.GenrePop, 1)

	res, err := w.engine.GlobalRecent(context.Background(), Page{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("GlobalRecent: %v", err)
	}
	if !equalIDs(ids(res.Singles), []int64{newer.ID, older.ID}) {
		t.Fatalf("singles = %v", ids(res.Singles))
	}
	if !equalIDs(ids(res.Releases), []int64{r2.ID, r1.ID}) {
		t.Fatalf("releases = %v", ids(res.Releases))
	}
}

func TestPaginationIsIdempotentAndComplete(t *testing.T) {
	w := newWorld(t)
	artist := w.user(model.RoleArtist)
	for _, plays := range []int64{5, 1, 5, 3, 2} {
		w.track(artist, model.GenrePop, plays)
	}
	ctx := context.Background()

	full, err := w.engine.GlobalTop(ctx, Page{Page: 1, Limit: 100})
	if err != nil {
		t.Fatalf("GlobalTop: %v", err)
	}

	var paged []int64
	for page := 1; page <= 3; page++ {
		a, err := w.engine.GlobalTop(ctx, Page{Page: page, Limit: 2})
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		b, _ := w.engine.GlobalTop(ctx, Page{Page: page, Limit: 2})
		if !equalIDs(ids(a.Singles), ids(b.Singles)) {
			t.Fatalf("page %d not idempotent: %v vs %v", page, ids(a.Singles), ids(b.Singles))
		}
		paged = append(paged, ids(a.Singles)...)
	}
	if !equalIDs(paged, ids(full.Singles)) {
		t.Fatalf("pages %v do not reassemble %v", paged, ids(full.Singles))
	}

	beyond, err := w.engine.GlobalTop(ctx, Page{Page: 9, Limit: 2})
	if err != nil {
		t.Fatalf("page 9: %v", err)
	}
	if len(beyond.Singles) != 0 || beyond.Singles == nil {
		t.Fatalf("expected empty, non-nil page, got %v", beyond.Singles)
	}
}

func TestScoreTieBreaksByCreation(t *testing.T) {
	w := newWorld(t)
	artist := w.user(model.RoleArtist)
	first := w.track(artist, model.GenrePop, 4)
	second := w.track(artist, model.GenrePop, 4)

	res, err := w.engine.GlobalTop(context.Background(), Page{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("GlobalTop: %v", err)
	}
	if !equalIDs(ids(res.Singles), []int64{first.ID, second.ID}) {
		t.Fatalf("tie order = %v, want oldest first", ids(res.Singles))
	}
}

func TestRecentPlaysCappedAndResolved(t *testing.T) {
	w := newWorld(t)
	artist := w.user(model.RoleArtist)
	listener := w.user(model.RoleUser)

	var last model.Track
	for i := 0; i < RecentPlaysLimit+5; i++ {
		last = w.track(artist, model.GenrePop, 0)
		w.play(listener, last.ID, model.DirectRelease)
	}
	rel := w.release(artist, model.GenrePop, 0)
	w.play(listener, rel.Tracks[0].ID, rel.ID)

	plays, err := w.engine.RecentPlays(context.Background(), listener)
	if err != nil {
		t.Fatalf("RecentPlays: %v", err)
	}
	if len(plays) != RecentPlaysLimit {
		t.Fatalf("len = %d, want %d", len(plays), RecentPlaysLimit)
	}
	if plays[0].Release == nil || plays[0].Release.ID != rel.ID || plays[0].Track.ID != rel.Tracks[0].ID {
		t.Fatalf("newest play not resolved to its release: %+v", plays[0])
	}
	if plays[1].Release != nil || plays[1].Track == nil || plays[1].Track.ID != last.ID {
		t.Fatalf("second play = %+v, want direct play of %d", plays[1], last.ID)
	}
	for i := 1; i < len(plays); i++ {
		if plays[i].LastPlayedAt.After(plays[i-1].LastPlayedAt) {
			t.Fatalf("plays not sorted by last play at %d", i)
		}
	}
}

func TestNewPage(t *testing.T) {
	valid := []Page{{1, 1}, {3, 100}}
	for _, p := range valid {
		if _, err := NewPage(p.Page, p.Limit); err != nil {
			t.Errorf("NewPage(%d, %d): %v", p.Page, p.Limit, err)
		}
	}
	invalid := []Page{{0, 10}, {1, 0}, {1, 101}, {-1, 5}}
	for _, p := range invalid {
		if _, err := NewPage(p.Page, p.Limit); !errors.Is(err, apperr.ErrInvalidPage) {
			t.Errorf("NewPage(%d, %d) err = %v", p.Page, p.Limit, err)
		}
	}
	if got := (Page{Page: 3, Limit: 4}).Offset(); got != 8 {
		t.Errorf("Offset = %d, want 8", got)
	}
	if got := (Page{Page: 1, Limit: 4}).TotalPages(9); got != 3 {
		t.Errorf("TotalPages = %d, want 3", got)
	}
}
