// Package catalog creates and looks up tracks and releases and handles
// media uploads.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Tunora/cache"
	"Tunora/core/apperr"
	"Tunora/core/genre"
	"Tunora/core/notify"
	"Tunora/logger"
	"Tunora/model"
	"Tunora/repository"
	"Tunora/storage"

	"go.uber.org/zap"
)

// MaxUploadSize is the largest accepted media file.
const MaxUploadSize = 80 << 20

// CreateTrackInput is the payload for a standalone track.
type CreateTrackInput struct {
	Title           string     `json:"title" validate:"required,max=255"`
	PrimaryArtist   string     `json:"primaryArtist" validate:"required,max=255"`
	FeaturedArtists []string   `json:"featuredArtists"`
	IsJointRelease  bool       `json:"isJointRelease"`
	Genre           string     `json:"genre" validate:"required,genre"`
	CoverArtURL     string     `json:"coverArtUrl" validate:"omitempty,url"`
	AudioFileURL    string     `json:"audioFileUrl" validate:"required,url"`
	RecordLabel     string     `json:"recordLabel" validate:"max=255"`
	Composer        string     `json:"composer" validate:"max=255"`
	SongWriter      string     `json:"songWriter" validate:"max=255"`
	Producer        string     `json:"producer" validate:"max=255"`
	Lyrics          string     `json:"lyrics"`
	ReleaseDate     *time.Time `json:"releaseDate"`
}

// ReleaseTrackInput is one track inside a release payload. Empty artist,
// genre, cover art and release date are inherited from the release.
type ReleaseTrackInput struct {
	Title           string     `json:"title" validate:"required,max=255"`
	PrimaryArtist   string     `json:"primaryArtist" validate:"max=255"`
	FeaturedArtists []string   `json:"featuredArtists"`
	Genre           string     `json:"genre" validate:"omitempty,genre"`
	CoverArtURL     string     `json:"coverArtUrl" validate:"omitempty,url"`
	AudioFileURL    string     `json:"audioFileUrl" validate:"required,url"`
	RecordLabel     string     `json:"recordLabel" validate:"max=255"`
	Composer        string     `json:"composer" validate:"max=255"`
	SongWriter      string     `json:"songWriter" validate:"max=255"`
	Producer        string     `json:"producer" validate:"max=255"`
	Lyrics          string     `json:"lyrics"`
	ReleaseDate     *time.Time `json:"releaseDate"`
}

// CreateReleaseInput is the payload for a release and its tracks.
type CreateReleaseInput struct {
	Title           string              `json:"title" validate:"required,max=255"`
	Kind            string              `json:"type" validate:"required,releasekind"`
	PrimaryArtist   string              `json:"primaryArtist" validate:"required,max=255"`
	FeaturedArtists []string            `json:"featuredArtists"`
	IsJointRelease  bool                `json:"isJointRelease"`
	Genre           string              `json:"genre" validate:"required,genre"`
	CoverArtURL     string              `json:"coverArtUrl" validate:"omitempty,url"`
	Copyright       string              `json:"copyright" validate:"max=255"`
	Phonographic    string              `json:"phonographic" validate:"max=255"`
	ReleaseDate     *time.Time          `json:"releaseDate"`
	Tracks          []ReleaseTrackInput `json:"tracks" validate:"required,min=1,dive"`
}

// File is an uploaded blob.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// MetadataOptions lists the values clients may choose from.
type MetadataOptions struct {
	Genres       []model.Genre       `json:"genres"`
	ReleaseKinds []model.ReleaseKind `json:"releaseKinds"`
}

// Service orchestrates catalog writes and lookups.
type Service struct {
	tracks   repository.TrackRepository
	releases repository.ReleaseRepository
	users    repository.UserRepository
	blobs    storage.BlobStore
	notifier notify.Dispatcher
	log      *zap.Logger
}

// NewService wires the catalog service.
func NewService(
	tracks repository.TrackRepository,
	releases repository.ReleaseRepository,
	users repository.UserRepository,
	blobs storage.BlobStore,
	notifier notify.Dispatcher,
) *Service {
	return &Service{
		tracks:   tracks,
		releases: releases,
		users:    users,
		blobs:    blobs,
		notifier: notifier,
		log:      logger.Named("catalog"),
	}
}

func (s *Service) requireArtist(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
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

// CreateTrack publishes a standalone track owned by uploaderID.
func (s *Service) CreateTrack(ctx context.Context, uploaderID int64, in CreateTrackInput) (*model.Track, error) {
	if _, err := s.requireArtist(ctx, uploaderID); err != nil {
		return nil, err
	}
	if err := validateStruct(&in); err != nil {
		return nil, err
	}

	track := &model.Track{
		Title:           strings.TrimSpace(in.Title),
		PrimaryArtist:   strings.TrimSpace(in.PrimaryArtist),
		FeaturedArtists: model.StringList(in.FeaturedArtists),
		IsJointRelease:  in.IsJointRelease,
		Genre:           model.Genre(in.Genre),
		CoverArtURL:     in.CoverArtURL,
		AudioFileURL:    in.AudioFileURL,
		RecordLabel:     in.RecordLabel,
		Composer:        in.Composer,
		SongWriter:      in.SongWriter,
		Producer:        in.Producer,
		Lyrics:          in.Lyrics,
		UploadedBy:      uploaderID,
		ReleaseDate:     in.ReleaseDate,
	}
	if err := s.tracks.Create(ctx, track); err != nil {
		return nil, apperr.FromStore(err)
	}
	s.log.Info("track created",
		zap.Int64("track", track.ID),
		zap.Int64("uploader", uploaderID),
		zap.String("genre", string(track.Genre)),
	)
	return track, nil
}

// CreateRelease publishes a release and all of its tracks atomically, then
// notifies the artist's followers. Notification failures are logged only.
func (s *Service) CreateRelease(ctx context.Context, uploaderID int64, in CreateReleaseInput) (*model.Release, error) {
	artist, err := s.requireArtist(ctx, uploaderID)
	if err != nil {
		return nil, err
	}
	if err := validateStruct(&in); err != nil {
		return nil, err
	}

	release := &model.Release{
		Title:           strings.TrimSpace(in.Title),
		Kind:            model.ReleaseKind(in.Kind),
		PrimaryArtist:   strings.TrimSpace(in.PrimaryArtist),
		FeaturedArtists: model.StringList(in.FeaturedArtists),
		IsJointRelease:  in.IsJointRelease,
		Genre:           model.Genre(in.Genre),
		CoverArtURL:     in.CoverArtURL,
		Copyright:       in.Copyright,
		Phonographic:    in.Phonographic,
		UploadedBy:      uploaderID,
		ReleaseDate:     in.ReleaseDate,
		Tracks:          make([]model.Track, len(in.Tracks)),
	}
	for i, t := range in.Tracks {
		release.Tracks[i] = model.Track{
			Title:           strings.TrimSpace(t.Title),
			PrimaryArtist:   firstNonEmpty(strings.TrimSpace(t.PrimaryArtist), release.PrimaryArtist),
			FeaturedArtists: model.StringList(t.FeaturedArtists),
			IsJointRelease:  release.IsJointRelease,
			Genre:           model.Genre(firstNonEmpty(t.Genre, in.Genre)),
			CoverArtURL:     firstNonEmpty(t.CoverArtURL, release.CoverArtURL),
			AudioFileURL:    t.AudioFileURL,
			RecordLabel:     t.RecordLabel,
			Composer:        t.Composer,
			SongWriter:      t.SongWriter,
			Producer:        t.Producer,
			Lyrics:          t.Lyrics,
			UploadedBy:      uploaderID,
			ReleaseDate:     firstNonNil(t.ReleaseDate, release.ReleaseDate),
		}
	}

	if err := s.releases.CreateWithTracks(ctx, release); err != nil {
		return nil, apperr.FromStore(err)
	}
	s.log.Info("release created",
		zap.Int64("release", release.ID),
		zap.Int64("uploader", uploaderID),
		zap.Int("tracks", len(release.Tracks)),
	)

	s.announce(ctx, artist, release)
	return release, nil
}

// announce queues one notification per follower plus a confirmation for
// the artist.
func (s *Service) announce(ctx context.Context, artist *model.User, release *model.Release) {
	if s.notifier == nil {
		return
	}
	payload := map[string]interface{}{
		"releaseId":  release.ID,
		"title":      release.Title,
		"kind":       string(release.Kind),
		"artistId":   artist.ID,
		"artistName": artist.DisplayName(),
	}

	followers, err := s.users.GetFollowerIDs(ctx, artist.ID)
	if err != nil {
		s.log.Warn("failed to load followers", zap.Int64("artist", artist.ID), zap.Error(err))
	} else if err := s.notifier.Notify(ctx, followers, cache.KindReleasePublished, payload); err != nil {
		s.log.Warn("failed to notify followers", zap.Int64("release", release.ID), zap.Error(err))
	}

	if err := s.notifier.Notify(ctx, []int64{artist.ID}, cache.KindReleaseUploaded, payload); err != nil {
		s.log.Warn("failed to notify artist", zap.Int64("release", release.ID), zap.Error(err))
	}
}

// GetTrack returns a track by id.
func (s *Service) GetTrack(ctx context.Context, id int64) (*model.Track, error) {
	track, err := s.tracks.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	if track == nil {
		return nil, apperr.ErrTrackNotFound
	}
	return track, nil
}

// GetRelease returns a release with its tracks.
func (s *Service) GetRelease(ctx context.Context, id int64) (*model.Release, error) {
	release, err := s.releases.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	if release == nil {
		return nil, apperr.ErrReleaseNotFound
	}
	return release, nil
}

// MetadataOptions returns the canonical genres and release kinds.
func (s *Service) MetadataOptions() MetadataOptions {
	return MetadataOptions{
		Genres:       genre.All(),
		ReleaseKinds: model.ReleaseKinds(),
	}
}

// UploadFile stores one media file for uploaderID.
func (s *Service) UploadFile(ctx context.Context, uploaderID int64, f File) (*storage.Object, error) {
	folder, err := folderFor(f)
	if err != nil {
		return nil, err
	}
	obj, err := s.blobs.Store(ctx, f.Data, f.ContentType, folder)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to store file", err)
	}
	s.log.Info("file uploaded",
		zap.Int64("uploader", uploaderID),
		zap.String("key", obj.Key),
		zap.Int("bytes", len(f.Data)),
	)
	return obj, nil
}

// UploadFiles stores every file, stopping at the first failure.
func (s *Service) UploadFiles(ctx context.Context, uploaderID int64, files []File) ([]storage.Object, error) {
	if len(files) == 0 {
		return nil, apperr.Invalid("no files provided")
	}
	out := make([]storage.Object, 0, len(files))
	for i, f := range files {
		obj, err := s.UploadFile(ctx, uploaderID, f)
		if err != nil {
			return nil, fmt.Errorf("file %d (%s): %w", i, f.Name, err)
		}
		out = append(out, *obj)
	}
	return out, nil
}

func folderFor(f File) (string, error) {
	if len(f.Data) == 0 {
		return "", apperr.Invalid("file %q is empty", f.Name)
	}
	if len(f.Data) > MaxUploadSize {
		return "", apperr.Invalid("file %q exceeds %d MB", f.Name, MaxUploadSize>>20)
	}
	switch {
	case strings.HasPrefix(f.ContentType, "audio/"):
		return "audio", nil
	case strings.HasPrefix(f.ContentType, "image/"):
		return "images", nil
	default:
		return "", apperr.Invalid("unsupported content type %q", f.ContentType)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonNil(values ...*time.Time) *time.Time {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
