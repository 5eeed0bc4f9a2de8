package model

import "time"

// Account roles.
const (
	RoleUser   = "user"
	RoleArtist = "artist"
	RoleAdmin  = "admin"
)

// User is the account record. It is owned by the account service; this
// module only reads it.
type User struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Username       string    `json:"username" gorm:"size:64;uniqueIndex"`
	Email          string    `json:"email" gorm:"size:255;uniqueIndex"`
	StageName      string    `json:"stageName,omitempty" gorm:"size:255"`
	Role           string    `json:"role" gorm:"size:16;default:'user'"`
	FavoriteGenres GenreList `json:"favoriteGenres" gorm:"type:json"`
	ReferralCode   string    `json:"referralCode,omitempty" gorm:"size:32;index"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// IsArtist reports whether the account may publish and see artist views.
func (u *User) IsArtist() bool {
	return u.Role == RoleArtist
}

// DisplayName prefers the stage name.
func (u *User) DisplayName() string {
	if u.StageName != "" {
		return u.StageName
	}
	return u.Username
}

// UserFollow 关注关系
type UserFollow struct {
	FollowerID int64     `json:"followerId" gorm:"primaryKey;autoIncrement:false"`
	ArtistID   int64     `json:"artistId" gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName 指定表名
func (UserFollow) TableName() string {
	return "user_follows"
}
