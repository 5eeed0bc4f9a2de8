package model

// Genre is a canonical catalog genre. Free text from clients is mapped onto
// these values by core/genre.
type Genre string

const (
	GenreAfrobeat  Genre = "Afrobeat"
	GenrePop       Genre = "Pop"
	GenreHipHop    Genre = "Hip-Hop"
	GenreRnB       Genre = "R&B"
	GenreReggae    Genre = "Reggae"
	GenreRock      Genre = "Rock"
	GenreEDM       Genre = "EDM"
	GenreJazz      Genre = "Jazz"
	GenreGospel    Genre = "Gospel"
	GenreCountry   Genre = "Country"
	GenreClassical Genre = "Classical"
	GenreOther     Genre = "Other"
)

// ReleaseKind 发行类型
type ReleaseKind string

const (
	ReleaseKindSingle      ReleaseKind = "Single"
	ReleaseKindEP          ReleaseKind = "EP"
	ReleaseKindAlbum       ReleaseKind = "Album"
	ReleaseKindCompilation ReleaseKind = "Compilation"
	ReleaseKindPlaylist    ReleaseKind = "Playlist"
	ReleaseKindOther       ReleaseKind = "Other"
)

// ReleaseKinds lists every release kind in display order.
func ReleaseKinds() []ReleaseKind {
	return []ReleaseKind{
		ReleaseKindSingle,
		ReleaseKindEP,
		ReleaseKindAlbum,
		ReleaseKindCompilation,
		ReleaseKindPlaylist,
		ReleaseKindOther,
	}
}
