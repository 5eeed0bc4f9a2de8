// Package playcount records listens, deduplicating repeats of the same
// (listener, track, release) within a cooldown window.
package playcount

import (
	"context"
	"fmt"
	"time"

	"Tunora/core/apperr"
	"Tunora/logger"
	"Tunora/metrics"
	"Tunora/model"
	"Tunora/repository"

	"go.uber.org/zap"
)

// Cooldown is the minimum gap between two counted plays of the same key.
const Cooldown = 10 * time.Minute

// Result is the outcome of a play request.
type Result struct {
	// PlayCount is the track's aggregate counter after the request.
	PlayCount int64 `json:"playCount"`
	// Counted is false when the play repeated within the cooldown.
	Counted bool `json:"counted"`
}

// Engine applies the play accounting rules.
type Engine struct {
	tracks   repository.TrackRepository
	releases repository.ReleaseRepository
	ledger   repository.PlayHistoryRepository
	users    repository.UserRepository
	tx       repository.Transactor

	now      func() time.Time
	cooldown time.Duration
	log      *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCooldown overrides Cooldown.
func WithCooldown(d time.Duration) Option {
	return func(e *Engine) { e.cooldown = d }
}

// NewEngine wires the engine to its stores.
func NewEngine(
	tracks repository.TrackRepository,
	releases repository.ReleaseRepository,
	ledger repository.PlayHistoryRepository,
	users repository.UserRepository,
	tx repository.Transactor,
	opts ...Option,
) *Engine {
	e := &Engine{
		tracks:   tracks,
		releases: releases,
		ledger:   ledger,
		users:    users,
		tx:       tx,
		now:      func() time.Time { return time.Now().UTC() },
		cooldown: Cooldown,
		log:      logger.Named("playcount"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RecordPlay counts a play of a track reached directly.
func (e *Engine) RecordPlay(ctx context.Context, listenerID, trackID int64) (*Result, error) {
	track, err := e.tracks.GetByID(ctx, trackID)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	if track == nil {
		return nil, apperr.ErrTrackNotFound
	}
	if err := e.requireAccount(ctx, listenerID); err != nil {
		return nil, err
	}
	return e.record(ctx, listenerID, track, model.DirectRelease, metrics.PathDirect)
}

// RecordReleasePlay counts a play of the track at trackIndex (zero-based)
// inside a release. A missing release or an out-of-range index is reported
// as a missing track.
func (e *Engine) RecordReleasePlay(ctx context.Context, listenerID, releaseID int64, trackIndex int) (*Result, error) {
	release, err := e.releases.GetByID(ctx, releaseID)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	if release == nil {
		return nil, apperr.ErrTrackNotFound
	}
	track, ok := release.TrackAt(trackIndex)
	if !ok {
		return nil, apperr.ErrTrackNotFound
	}
	if err := e.requireAccount(ctx, listenerID); err != nil {
		return nil, err
	}
	return e.record(ctx, listenerID, track, release.ID, metrics.PathRelease)
}

func (e *Engine) requireAccount(ctx context.Context, id int64) error {
	user, err := e.users.GetUserByID(ctx, id)
	if err != nil {
		return apperr.FromStore(err)
	}
	if user == nil {
		return apperr.ErrAccountNotFound
	}
	return nil
}

// record runs the cooldown check and both writes in one transaction. The
// track row lock must be the first statement: it serializes every play of
// the track, so the ledger read that follows sees the previous play's commit.
func (e *Engine) record(ctx context.Context, listenerID int64, track *model.Track, releaseID int64, path string) (*Result, error) {
	now := e.now()
	var result Result

	err := e.tx.Transaction(ctx, func(ctx context.Context) error {
		locked, err := e.tracks.Lock(ctx, track.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return apperr.ErrTrackNotFound
		}

		row, err := e.ledger.Find(ctx, listenerID, track.ID, releaseID)
		if err != nil {
			return err
		}
		if row != nil && now.Sub(row.LastPlayedAt) < e.cooldown {
			result = Result{PlayCount: locked.PlayCount, Counted: false}
			return nil
		}

		count, err := e.tracks.IncrementPlayCount(ctx, track.ID)
		if err != nil {
			return err
		}
		if err := e.ledger.RecordPlay(ctx, listenerID, track.ID, releaseID, now); err != nil {
			return err
		}
		result = Result{PlayCount: count, Counted: true}
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(fmt.Errorf("record play of track %d: %w", track.ID, err))
	}

	if result.Counted {
		metrics.PlaysRecorded.WithLabelValues(path).Inc()
	} else {
		metrics.PlaysDeduplicated.WithLabelValues(path).Inc()
	}
	e.log.Debug("play processed",
		zap.Int64("listener", listenerID),
		zap.Int64("track", track.ID),
		zap.Int64("release", releaseID),
		zap.Bool("counted", result.Counted),
		zap.Int64("playCount", result.PlayCount),
	)
	return &result, nil
}
