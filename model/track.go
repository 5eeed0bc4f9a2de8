package model

import "time"

// Track is a single audio work. PlayCount only ever grows, and only through
// the play accounting engine.
type Track struct {
	ID              int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	Title           string     `json:"title" gorm:"size:255;not null"`
	PrimaryArtist   string     `json:"primaryArtist" gorm:"size:255;not null"`
	FeaturedArtists StringList `json:"featuredArtists" gorm:"type:json"`
	IsJointRelease  bool       `json:"isJointRelease" gorm:"default:false"`
	Genre           Genre      `json:"genre" gorm:"size:32;index;not null"`
	CoverArtURL     string     `json:"coverArtUrl" gorm:"size:1024"`
	AudioFileURL    string     `json:"audioFileUrl" gorm:"size:1024;not null"`
	RecordLabel     string     `json:"recordLabel,omitempty" gorm:"size:255"`
	Composer        string     `json:"composer,omitempty" gorm:"size:255"`
	SongWriter      string     `json:"songWriter,omitempty" gorm:"size:255"`
	Producer        string     `json:"producer,omitempty" gorm:"size:255"`
	Lyrics          string     `json:"lyrics,omitempty" gorm:"type:text"`
	UploadedBy      int64      `json:"uploadedBy" gorm:"index;not null"`
	PlayCount       int64      `json:"playCount" gorm:"default:0;not null"`
	ReleaseDate     *time.Time `json:"releaseDate,omitempty"`
	CreatedAt       time.Time  `json:"createdAt" gorm:"index"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// TableName 指定表名
func (Track) TableName() string {
	return "tracks"
}
