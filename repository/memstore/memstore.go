// Package memstore is an in-memory implementation of the repository
// interfaces, used by engine and handler tests and by local demos.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"Tunora/model"
	"Tunora/repository"
)

type playKey struct {
	user, track, release int64
}

type txKey struct{}

// Store holds every table in maps guarded by one mutex. Transactions are
// serialized.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	nextID   int64
	tracks   map[int64]*model.Track
	releases map[int64]*model.Release
	bundles  map[int64][]int64 // release id -> track ids in position order
	owner    map[int64]int64   // track id -> release id
	plays    map[playKey]*model.PlayHistory
	users    map[int64]*model.User
	follows  map[int64][]int64 // artist id -> follower ids

	// Now stamps created_at when the caller left it zero.
	Now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tracks:   make(map[int64]*model.Track),
		releases: make(map[int64]*model.Release),
		bundles:  make(map[int64][]int64),
		owner:    make(map[int64]int64),
		plays:    make(map[playKey]*model.PlayHistory),
		users:    make(map[int64]*model.User),
		follows:  make(map[int64][]int64),
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

var (
	_ repository.TrackRepository       = trackView{}
	_ repository.ReleaseRepository     = releaseView{}
	_ repository.PlayHistoryRepository = (*Store)(nil)
	_ repository.UserRepository        = (*Store)(nil)
	_ repository.Transactor            = (*Store)(nil)
)

// Tracks, Releases, PlayHistory and Users expose the store under the
// repository interface names, which share method names.
func (s *Store) Tracks() repository.TrackRepository            { return trackView{s} }
func (s *Store) Releases() repository.ReleaseRepository        { return releaseView{s} }
func (s *Store) PlayHistory() repository.PlayHistoryRepository { return s }
func (s *Store) Users() repository.UserRepository              { return s }

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// ---- seeding helpers ----

// AddUser inserts or replaces an account.
func (s *Store) AddUser(u model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.id()
	} else if u.ID > s.nextID {
		s.nextID = u.ID
	}
	s.users[u.ID] = &u
	return &u
}

// Follow records follower -> artist.
func (s *Store) Follow(followerID, artistID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.follows[artistID] = append(s.follows[artistID], followerID)
}

// PlayRow returns a copy of a ledger row, or nil.
func (s *Store) PlayRow(userID, trackID, releaseID int64) *model.PlayHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.plays[playKey{userID, trackID, releaseID}]
	if !ok {
		return nil
	}
	cp := *row
	return &cp
}

// PlayRows counts ledger rows.
func (s *Store) PlayRows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plays)
}

// ---- Transactor ----

func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

// ---- tracks ----

type trackView struct{ s *Store }

func (v trackView) Create(ctx context.Context, track *model.Track) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.insertTrack(track)
	return ctx.Err()
}

func (s *Store) insertTrack(track *model.Track) {
	track.ID = s.id()
	if track.CreatedAt.IsZero() {
		track.CreatedAt = s.Now()
	}
	track.UpdatedAt = track.CreatedAt
	cp := *track
	s.tracks[track.ID] = &cp
}

func (v trackView) GetByID(ctx context.Context, id int64) (*model.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.tracks[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (v trackView) GetByIDs(ctx context.Context, ids []int64) ([]model.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := []model.Track{}
	for _, id := range ids {
		if t, ok := v.s.tracks[id]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (v trackView) List(ctx context.Context, filter repository.TrackFilter) ([]model.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := []model.Track{}
	for _, t := range v.s.tracks {
		if filter.UploadedBy != 0 && t.UploadedBy != filter.UploadedBy {
			continue
		}
		if len(filter.Genres) > 0 && !slices.Contains(filter.Genres, t.Genre) {
			continue
		}
		if _, bundled := v.s.owner[t.ID]; filter.OrphansOnly && bundled {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Lock reads the track. Transactions are already serialized by txMu.
func (v trackView) Lock(ctx context.Context, id int64) (*model.Track, error) {
	return v.GetByID(ctx, id)
}

func (v trackView) IncrementPlayCount(ctx context.Context, id int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.tracks[id]
	if !ok {
		return 0, fmt.Errorf("track %d not found", id)
	}
	t.PlayCount++
	return t.PlayCount, nil
}

// SetPlayCount overwrites a track counter for seeding.
func (s *Store) SetPlayCount(trackID, count int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tracks[trackID]; ok {
		t.PlayCount = count
	}
}

// ---- releases ----

type releaseView struct{ s *Store }

func (v releaseView) CreateWithTracks(ctx context.Context, release *model.Release) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(release.Tracks) == 0 {
		return fmt.Errorf("release %q has no tracks", release.Title)
	}
	s := v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if release.CreatedAt.IsZero() {
		release.CreatedAt = s.Now()
	}
	ids := make([]int64, len(release.Tracks))
	for i := range release.Tracks {
		if release.Tracks[i].CreatedAt.IsZero() {
			release.Tracks[i].CreatedAt = release.CreatedAt
		}
		s.insertTrack(&release.Tracks[i])
		ids[i] = release.Tracks[i].ID
	}
	release.ID = s.id()
	release.UpdatedAt = release.CreatedAt
	for _, tid := range ids {
		s.owner[tid] = release.ID
	}
	s.bundles[release.ID] = ids
	cp := *release
	cp.Tracks = nil
	s.releases[release.ID] = &cp
	return nil
}

func (v releaseView) GetByID(ctx context.Context, id int64) (*model.Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.releases[id]; !ok {
		return nil, nil
	}
	r := v.s.withTracks(id)
	return &r, nil
}

func (v releaseView) GetByIDs(ctx context.Context, ids []int64) ([]model.Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := []model.Release{}
	for _, id := range ids {
		if _, ok := v.s.releases[id]; ok {
			out = append(out, v.s.withTracks(id))
		}
	}
	return out, nil
}

func (s *Store) withTracks(id int64) model.Release {
	r := *s.releases[id]
	r.Tracks = make([]model.Track, 0, len(s.bundles[id]))
	for _, tid := range s.bundles[id] {
		r.Tracks = append(r.Tracks, *s.tracks[tid])
	}
	return r
}

func (v releaseView) matching(filter repository.ReleaseFilter) []model.Release {
	out := []model.Release{}
	for id, r := range v.s.releases {
		if filter.UploadedBy != 0 && r.UploadedBy != filter.UploadedBy {
			continue
		}
		if len(filter.Genres) > 0 && !slices.Contains(filter.Genres, r.Genre) {
			continue
		}
		out = append(out, v.s.withTracks(id))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (v releaseView) List(ctx context.Context, filter repository.ReleaseFilter) ([]model.Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := v.matching(filter)
	if filter.Limit > 0 {
		start := min(filter.Offset, len(out))
		end := min(start+filter.Limit, len(out))
		out = out[start:end]
	}
	return out, nil
}

func (v releaseView) Count(ctx context.Context, filter repository.ReleaseFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return int64(len(v.matching(filter))), nil
}

// ---- play history ----

func (s *Store) Find(ctx context.Context, userID, trackID, releaseID int64) (*model.PlayHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.PlayRow(userID, trackID, releaseID), nil
}

func (s *Store) RecordPlay(ctx context.Context, userID, trackID, releaseID int64, playedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := playKey{userID, trackID, releaseID}
	if row, ok := s.plays[key]; ok {
		row.PlayCount++
		row.LastPlayedAt = playedAt
		row.UpdatedAt = playedAt
		return nil
	}
	s.plays[key] = &model.PlayHistory{
		ID:           s.id(),
		UserID:       userID,
		TrackID:      trackID,
		ReleaseID:    releaseID,
		PlayCount:    1,
		LastPlayedAt: playedAt,
		CreatedAt:    playedAt,
		UpdatedAt:    playedAt,
	}
	return nil
}

func (s *Store) PersonalPlayCounts(ctx context.Context, userID int64) (map[int64]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[int64]int64)
	for key, row := range s.plays {
		if key.user == userID {
			counts[key.track] += row.PlayCount
		}
	}
	return counts, nil
}

func (s *Store) ListRecent(ctx context.Context, userID int64, limit int) ([]model.PlayHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.PlayHistory{}
	for key, row := range s.plays {
		if key.user == userID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastPlayedAt.Equal(out[j].LastPlayedAt) {
			return out[i].LastPlayedAt.After(out[j].LastPlayedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- users ----

func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.findUser(ctx, func(u *model.User) bool { return u.ID == id })
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findUser(ctx, func(u *model.User) bool { return u.Email == email })
}

func (s *Store) GetUserByReferralCode(ctx context.Context, code string) (*model.User, error) {
	return s.findUser(ctx, func(u *model.User) bool { return u.ReferralCode != "" && u.ReferralCode == code })
}

func (s *Store) findUser(ctx context.Context, match func(*model.User) bool) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) GetFollowerIDs(ctx context.Context, artistID int64) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.follows[artistID]), nil
}
