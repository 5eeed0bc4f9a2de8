package model

import "time"

// Release is an ordered bundle of tracks (EP, album, compilation, ...).
// Its popularity is derived from the bundled tracks and never stored.
type Release struct {
	ID              int64       `json:"id" gorm:"primaryKey;autoIncrement"`
	Title           string      `json:"title" gorm:"size:255;not null"`
	Kind            ReleaseKind `json:"kind" gorm:"size:32;not null"`
	PrimaryArtist   string      `json:"primaryArtist" gorm:"size:255;not null"`
	FeaturedArtists StringList  `json:"featuredArtists" gorm:"type:json"`
	IsJointRelease  bool        `json:"isJointRelease" gorm:"default:false"`
	Genre           Genre       `json:"genre" gorm:"size:32;index;not null"`
	CoverArtURL     string      `json:"coverArtUrl" gorm:"size:1024"`
	Copyright       string      `json:"copyright,omitempty" gorm:"size:255"`
	Phonographic    string      `json:"phonographic,omitempty" gorm:"size:255"`
	UploadedBy      int64       `json:"uploadedBy" gorm:"index;not null"`
	ReleaseDate     *time.Time  `json:"releaseDate,omitempty"`
	CreatedAt       time.Time   `json:"createdAt" gorm:"index"`
	UpdatedAt       time.Time   `json:"updatedAt"`

	// Tracks 按 position 排序, 由仓库层填充
	Tracks []Track `json:"tracks" gorm:"-"`
}

// TableName 指定表名
func (Release) TableName() string {
	return "releases"
}

// TrackAt returns the bundled track at a zero-based position.
func (r *Release) TrackAt(index int) (*Track, bool) {
	if index < 0 || index >= len(r.Tracks) {
		return nil, false
	}
	return &r.Tracks[index], true
}

// ReleaseTrack 发行与曲目的关联, 一首曲目最多属于一个发行
type ReleaseTrack struct {
	ReleaseID int64 `json:"releaseId" gorm:"primaryKey;autoIncrement:false"`
	TrackID   int64 `json:"trackId" gorm:"uniqueIndex;not null"`
	Position  int   `json:"position" gorm:"primaryKey;autoIncrement:false"`
}

// TableName 指定表名
func (ReleaseTrack) TableName() string {
	return "release_tracks"
}
