package model

import "time"

// DirectRelease is the ReleaseID of a ledger row for a track played directly.
const DirectRelease int64 = 0

// PlayHistory is one listener's ledger entry for a track, reached either
// directly (ReleaseID == DirectRelease) or through a release.
type PlayHistory struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID       int64     `json:"userId" gorm:"uniqueIndex:idx_play_histories_key,priority:1;not null"`
	TrackID      int64     `json:"trackId" gorm:"uniqueIndex:idx_play_histories_key,priority:2;index;not null"`
	ReleaseID    int64     `json:"releaseId" gorm:"uniqueIndex:idx_play_histories_key,priority:3;not null;default:0"`
	PlayCount    int64     `json:"playCount" gorm:"not null;default:1"`
	LastPlayedAt time.Time `json:"lastPlayedAt" gorm:"index;not null"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (PlayHistory) TableName() string {
	return "play_histories"
}

// ViaRelease reports whether the play was reached through a release.
func (p *PlayHistory) ViaRelease() bool {
	return p.ReleaseID != DirectRelease
}
