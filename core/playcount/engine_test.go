package playcount

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Tunora/core/apperr"
	"Tunora/metrics"
	"Tunora/model"
	"Tunora/repository/memstore"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store    *memstore.Store
	engine   *Engine
	clock    *fakeClock
	listener int64
	single   *model.Track
	release  *model.Release
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)}

	listener := store.AddUser(model.User{Username: "listener", Role: model.RoleUser})
	artist := store.AddUser(model.User{Username: "artist", Role: model.RoleArtist})

	single := &model.Track{Title: "Loose", Genre: model.GenrePop, UploadedBy: artist.ID}
	if err := store.Tracks().Create(ctx, single); err != nil {
		t.Fatalf("create track: %v", err)
	}
	release := &model.Release{
		Title:      "Bundle",
		Kind:       model.ReleaseKindEP,
		Genre:      model.GenrePop,
		UploadedBy: artist.ID,
		Tracks: []model.Track{
			{Title: "One", Genre: model.GenrePop, UploadedBy: artist.ID},
			{Title: "Two", Genre: model.GenrePop, UploadedBy: artist.ID},
		},
	}
	if err := store.Releases().CreateWithTracks(ctx, release); err != nil {
		t.Fatalf("create release: %v", err)
	}

	engine := NewEngine(store.Tracks(), store.Releases(), store.PlayHistory(), store.Users(), store,
		WithClock(clock.Now))
	return &fixture{store: store, engine: engine, clock: clock, listener: listener.ID, single: single, release: release}
}

func (f *fixture) trackCount(t *testing.T, id int64) int64 {
	t.Helper()
	tr, err := f.store.Tracks().GetByID(context.Background(), id)
	if err != nil || tr == nil {
		t.Fatalf("get track %d: %v", id, err)
	}
	return tr.PlayCount
}

func TestSpacedPlaysAllCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 4
	for i := 0; i < n; i++ {
		res, err := f.engine.RecordPlay(ctx, f.listener, f.single.ID)
		if err != nil {
			t.Fatalf("play %d: %v", i, err)
		}
		if !res.Counted || res.PlayCount != int64(i+1) {
			t.Fatalf("play %d: got %+v", i, res)
		}
		f.clock.Advance(11 * time.Minute)
	}

	if got := f.trackCount(t, f.single.ID); got != n {
		t.Fatalf("counter = %d, want %d", got, n)
	}
	row := f.store.PlayRow(f.listener, f.single.ID, model.DirectRelease)
	if row == nil || row.PlayCount != n {
		t.Fatalf("ledger row = %+v, want count %d", row, n)
	}
}

func TestRepeatWithinCooldownIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.RecordPlay(ctx, f.listener, f.single.ID)
	if err != nil {
		t.Fatalf("first play: %v", err)
	}
	firstPlayedAt := f.store.PlayRow(f.listener, f.single.ID, model.DirectRelease).LastPlayedAt

	f.clock.Advance(9*time.Minute + 59*time.Second)
	second, err := f.engine.RecordPlay(ctx, f.listener, f.single.ID)
	if err != nil {
		t.Fatalf("second play: %v", err)
	}

	if !first.Counted || second.Counted {
		t.Fatalf("counted flags = %v, %v; want true, false", first.Counted, second.Counted)
	}
	if second.PlayCount != 1 || f.trackCount(t, f.single.ID) != 1 {
		t.Fatalf("counter moved on a repeat: %+v", second)
	}
	row := f.store.PlayRow(f.listener, f.single.ID, model.DirectRelease)
	if row.PlayCount != 1 || !row.LastPlayedAt.Equal(firstPlayedAt) {
		t.Fatalf("ledger row touched by a repeat: %+v", row)
	}
}

func TestCooldownBoundaryCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.RecordPlay(ctx, f.listener, f.single.ID); err != nil {
		t.Fatalf("first play: %v", err)
	}
	f.clock.Advance(Cooldown)
	res, err := f.engine.RecordPlay(ctx, f.listener, f.single.ID)
	if err != nil {
		t.Fatalf("second play: %v", err)
	}
	if !res.Counted || res.PlayCount != 2 {
		t.Fatalf("play exactly one cooldown later should count, got %+v", res)
	}
}

func TestDirectAndReleasePathsAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bundled := f.release.Tracks[1]

	direct, err := f.engine.RecordPlay(ctx, f.listener, bundled.ID)
	if err != nil {
		t.Fatalf("direct play: %v", err)
	}
	viaRelease, err := f.engine.RecordReleasePlay(ctx, f.listener, f.release.ID, 1)
	if err != nil {
		t.Fatalf("release play: %v", err)
	}
	repeat, err := f.engine.RecordReleasePlay(ctx, f.listener, f.release.ID, 1)
	if err != nil {
		t.Fatalf("repeat release play: %v", err)
	}

	if !direct.Counted || !viaRelease.Counted || repeat.Counted {
		t.Fatalf("counted = %v/%v/%v, want true/true/false", direct.Counted, viaRelease.Counted, repeat.Counted)
	}
	if got := f.trackCount(t, bundled.ID); got != 2 {
		t.Fatalf("counter = %d, want 2", got)
	}
	if f.store.PlayRow(f.listener, bundled.ID, model.DirectRelease) == nil ||
		f.store.PlayRow(f.listener, bundled.ID, f.release.ID) == nil {
		t.Fatalf("expected one direct and one release-scoped row")
	}
	if f.store.PlayRows() != 2 {
		t.Fatalf("ledger rows = %d, want 2", f.store.PlayRows())
	}
}

func TestRecordPlayNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() (*Result, error)
		want error
	}{
		{"unknown track", func() (*Result, error) { return f.engine.RecordPlay(ctx, f.listener, 999) }, apperr.ErrTrackNotFound},
		{"unknown listener", func() (*Result, error) { return f.engine.RecordPlay(ctx, 999, f.single.ID) }, apperr.ErrAccountNotFound},
		{"unknown release", func() (*Result, error) { return f.engine.RecordReleasePlay(ctx, f.listener, 999, 0) }, apperr.ErrTrackNotFound},
		{"index too large", func() (*Result, error) { return f.engine.RecordReleasePlay(ctx, f.listener, f.release.ID, 2) }, apperr.ErrTrackNotFound},
		{"negative index", func() (*Result, error) { return f.engine.RecordReleasePlay(ctx, f.listener, f.release.ID, -1) }, apperr.ErrTrackNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.call()
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if res != nil {
				t.Fatalf("expected nil result, got %+v", res)
			}
		})
	}
	if f.store.PlayRows() != 0 {
		t.Fatalf("failed plays must not write the ledger")
	}
}

func TestPlayMetrics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	recorded := metrics.PlaysRecorded.WithLabelValues(metrics.PathRelease)
	deduped := metrics.PlaysDeduplicated.WithLabelValues(metrics.PathRelease)
	beforeRecorded := testutil.ToFloat64(recorded)
	beforeDeduped := testutil.ToFloat64(deduped)

	for i := 0; i < 3; i++ {
		if _, err := f.engine.RecordReleasePlay(ctx, f.listener, f.release.ID, 0); err != nil {
			t.Fatalf("play: %v", err)
		}
	}

	if got := testutil.ToFloat64(recorded) - beforeRecorded; got != 1 {
		t.Fatalf("recorded delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(deduped) - beforeDeduped; got != 2 {
		t.Fatalf("deduplicated delta = %v, want 2", got)
	}
}

func TestConcurrentFirstPlays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.RecordPlay(ctx, f.listener, f.single.ID); err != nil {
				t.Errorf("play: %v", err)
			}
		}()
	}
	wg.Wait()

	// plays of one track serialize on the track row
	if got := f.trackCount(t, f.single.ID); got != 1 {
		t.Fatalf("counter = %d, want 1", got)
	}
	if f.store.PlayRows() != 1 {
		t.Fatalf("ledger rows = %d, want 1", f.store.PlayRows())
	}
}
