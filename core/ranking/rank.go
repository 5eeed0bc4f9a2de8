// Package ranking orders tracks and releases for charts, artist views and
// discovery. Every operation is read-only.
package ranking

import (
	"cmp"
	"slices"
	"time"

	"Tunora/core/apperr"
	"Tunora/model"
)

// Rankable is anything the ranking views can order.
type Rankable interface {
	RankID() int64
	RankOwner() int64
	RankGenre() model.Genre
	RankCreatedAt() time.Time
	RankScore() int64
}

// ScoredTrack is a track with the score it was ranked by.
type ScoredTrack struct {
	model.Track
	Score int64 `json:"score"`
}

func (t ScoredTrack) RankID() int64            { return t.ID }
func (t ScoredTrack) RankOwner() int64         { return t.UploadedBy }
func (t ScoredTrack) RankGenre() model.Genre   { return t.Genre }
func (t ScoredTrack) RankCreatedAt() time.Time { return t.CreatedAt }
func (t ScoredTrack) RankScore() int64         { return t.Score }

// ScoredRelease is a release with the summed score of its bundled tracks.
type ScoredRelease struct {
	model.Release
	Score int64 `json:"score"`
}

func (r ScoredRelease) RankID() int64            { return r.ID }
func (r ScoredRelease) RankOwner() int64         { return r.UploadedBy }
func (r ScoredRelease) RankGenre() model.Genre   { return r.Genre }
func (r ScoredRelease) RankCreatedAt() time.Time { return r.CreatedAt }
func (r ScoredRelease) RankScore() int64         { return r.Score }

// personal maps track id to the listener's counted plays. nil means
// unpersonalized.
type personal map[int64]int64

// trackScore is playCount, plus twice the listener's own plays when
// personalized.
func (p personal) trackScore(t *model.Track) int64 {
	return 2*p[t.ID] + t.PlayCount
}

func scoreTracks(tracks []model.Track, p personal) []ScoredTrack {
	out := make([]ScoredTrack, len(tracks))
	for i := range tracks {
		out[i] = ScoredTrack{Track: tracks[i], Score: p.trackScore(&tracks[i])}
	}
	return out
}

func scoreReleases(releases []model.Release, p personal) []ScoredRelease {
	out := make([]ScoredRelease, len(releases))
	for i := range releases {
		var score int64
		for j := range releases[i].Tracks {
			score += p.trackScore(&releases[i].Tracks[j])
		}
		out[i] = ScoredRelease{Release: releases[i], Score: score}
	}
	return out
}

// byScore orders by score desc, then created_at asc, then id asc.
func byScore[T Rankable](a, b T) int {
	if c := cmp.Compare(b.RankScore(), a.RankScore()); c != 0 {
		return c
	}
	if c := a.RankCreatedAt().Compare(b.RankCreatedAt()); c != 0 {
		return c
	}
	return cmp.Compare(a.RankID(), b.RankID())
}

// byRecency orders by created_at desc, then id desc.
func byRecency[T Rankable](a, b T) int {
	if c := b.RankCreatedAt().Compare(a.RankCreatedAt()); c != 0 {
		return c
	}
	return cmp.Compare(b.RankID(), a.RankID())
}

func sortByScore[T Rankable](items []T) {
	slices.SortStableFunc(items, byScore[T])
}

func sortByRecency[T Rankable](items []T) {
	slices.SortStableFunc(items, byRecency[T])
}

func totalScore[T Rankable](items []T) int64 {
	var total int64
	for _, it := range items {
		total += it.RankScore()
	}
	return total
}

// top returns at most n leading items.
func top[T any](items []T, n int) []T {
	if n < 0 {
		n = 0
	}
	return items[:min(n, len(items))]
}

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Page selects a window: skip (Page-1)*Limit, take Limit.
type Page struct {
	Page  int
	Limit int
}

// NewPage validates client-supplied paging.
func NewPage(page, limit int) (Page, error) {
	if page < 1 || limit < 1 || limit > MaxLimit {
		return Page{}, apperr.ErrInvalidPage
	}
	return Page{Page: page, Limit: limit}, nil
}

func (p Page) normalized() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset is the number of items skipped.
func (p Page) Offset() int {
	n := p.normalized()
	return (n.Page - 1) * n.Limit
}

// TotalPages is ceil(total/limit).
func (p Page) TotalPages(total int64) int64 {
	limit := int64(p.normalized().Limit)
	return (total + limit - 1) / limit
}

func paginate[T any](items []T, p Page) []T {
	p = p.normalized()
	start := min(p.Offset(), len(items))
	end := min(start+p.Limit, len(items))
	return items[start:end]
}

func clampLimit(limit int) int {
	if limit < 1 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}
