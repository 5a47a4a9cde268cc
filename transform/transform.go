// Package transform derives the star schema rows from staging rows in
// memory, following the warehouse INSERT statements row for row. The preview
// command runs it on a sample before a full load.
package transform

import (
	"cmp"
	"slices"
	"time"

	"github.com/gurre/redshift-dwh/catalog"
	"github.com/gurre/redshift-dwh/staging"
)

// User is a row of users.
type User struct {
	UserID    int64
	FirstName string
	LastName  string
	Gender    string
	Level     string
}

// Artist is a row of artists.
type Artist struct {
	ArtistID  string
	Name      string
	Location  string
	Latitude  *float64
	Longitude *float64
}

// Song is a row of songs.
type Song struct {
	SongID   string
	Title    string
	ArtistID string
	Year     int
	Duration float64
}

// Time is a row of time.
type Time struct {
	StartTime time.Time
	Hour      int
	Day       int
	Week      int
	Month     int
	Year      int
	Weekday   int // 0 is Sunday
}

// Songplay is a row of songplays.
type Songplay struct {
	SongplayID int64
	StartTime  time.Time
	UserID     staging.UserID
	Level      string
	SongID     string
	ArtistID   string
	SessionID  int
	Location   string
	UserAgent  string
}

// Star holds every derived table.
type Star struct {
	Users     []User
	Artists   []Artist
	Songs     []Song
	Times     []Time
	Songplays []Songplay
}

// Build derives all final tables in insert order.
func Build(events []staging.Event, songs []staging.Song) Star {
	artists := Artists(songs)
	dimSongs := Songs(songs)
	return Star{
		Users:     Users(events),
		Artists:   artists,
		Songs:     dimSongs,
		Times:     Times(events),
		Songplays: Songplays(events, artists, dimSongs),
	}
}

// Counts returns the row count of each final table keyed by table name.
func (s Star) Counts() map[string]int64 {
	return map[string]int64{
		catalog.Users:     int64(len(s.Users)),
		catalog.Artists:   int64(len(s.Artists)),
		catalog.Songs:     int64(len(s.Songs)),
		catalog.Time:      int64(len(s.Times)),
		catalog.Songplays: int64(len(s.Songplays)),
	}
}

// StartTime converts an event timestamp in milliseconds to UTC time.
func StartTime(ts int64) time.Time {
	return time.UnixMilli(ts).UTC()
}

// Users returns one row per distinct user attributes, carrying the level of
// the user's latest event. Events without a user id are skipped. If several
// events share the latest timestamp with different levels, each level yields
// a row. Rows are ordered by user id.
func Users(events []staging.Event) []User {
	latest := make(map[int64]int64)
	for _, e := range events {
		if !e.UserID.Valid {
			continue
		}
		if ts, ok := latest[e.UserID.Value]; !ok || e.TS > ts {
			latest[e.UserID.Value] = e.TS
		}
	}

	levels := make(map[int64][]string)
	for _, e := range events {
		if !e.UserID.Valid || e.TS != latest[e.UserID.Value] {
			continue
		}
		id := e.UserID.Value
		if !slices.Contains(levels[id], e.Level) {
			levels[id] = append(levels[id], e.Level)
		}
	}

	seen := make(map[User]bool)
	var users []User
	for _, e := range events {
		if !e.UserID.Valid {
			continue
		}
		for _, level := range levels[e.UserID.Value] {
			u := User{
				UserID:    e.UserID.Value,
				FirstName: e.FirstName,
				LastName:  e.LastName,
				Gender:    e.Gender,
				Level:     level,
			}
			if !seen[u] {
				seen[u] = true
				users = append(users, u)
			}
		}
	}

	slices.SortStableFunc(users, func(a, b User) int {
		return cmp.Compare(a.UserID, b.UserID)
	})
	return users
}

type artistKey struct {
	id, name, location string
	lat, long          float64
	hasLat, hasLong    bool
}

// Artists returns the distinct artist tuples in first-seen order.
func Artists(songs []staging.Song) []Artist {
	seen := make(map[artistKey]bool)
	var artists []Artist
	for _, s := range songs {
		k := artistKey{id: s.ArtistID, name: s.ArtistName, location: s.ArtistLocation}
		if s.ArtistLatitude != nil {
			k.lat, k.hasLat = *s.ArtistLatitude, true
		}
		if s.ArtistLongitude != nil {
			k.long, k.hasLong = *s.ArtistLongitude, true
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		artists = append(artists, Artist{
			ArtistID:  s.ArtistID,
			Name:      s.ArtistName,
			Location:  s.ArtistLocation,
			Latitude:  s.ArtistLatitude,
			Longitude: s.ArtistLongitude,
		})
	}
	return artists
}

// Songs returns the distinct song tuples in first-seen order.
func Songs(songs []staging.Song) []Song {
	seen := make(map[Song]bool)
	var out []Song
	for _, s := range songs {
		row := Song{
			SongID:   s.SongID,
			Title:    s.Title,
			ArtistID: s.ArtistID,
			Year:     s.Year,
			Duration: s.Duration,
		}
		if seen[row] {
			continue
		}
		seen[row] = true
		out = append(out, row)
	}
	return out
}

// Times returns one row per distinct event timestamp, from every event
// regardless of page, in first-seen order.
func Times(events []staging.Event) []Time {
	seen := make(map[int64]bool)
	var times []Time
	for _, e := range events {
		if seen[e.TS] {
			continue
		}
		seen[e.TS] = true
		times = append(times, decompose(StartTime(e.TS)))
	}
	return times
}

func decompose(t time.Time) Time {
	_, week := t.ISOWeek()
	return Time{
		StartTime: t,
		Hour:      t.Hour(),
		Day:       t.Day(),
		Week:      week,
		Month:     int(t.Month()),
		Year:      t.Year(),
		Weekday:   int(t.Weekday()),
	}
}

// Songplays returns a row for each NextSong event, artist whose name equals
// the event's artist exactly, and song of that artist. Events whose artist
// name does not match byte for byte produce no rows. An artist without a
// name joins nothing, as a NULL never compares equal. Identifiers start at 0.
func Songplays(events []staging.Event, artists []Artist, songs []Song) []Songplay {
	byName := make(map[string][]Artist)
	for _, a := range artists {
		if a.Name == "" {
			continue
		}
		byName[a.Name] = append(byName[a.Name], a)
	}
	byArtist := make(map[string][]Song)
	for _, s := range songs {
		byArtist[s.ArtistID] = append(byArtist[s.ArtistID], s)
	}

	var plays []Songplay
	var next int64
	for _, e := range events {
		if !e.IsSongPlay() || e.Artist == nil {
			continue
		}
		for _, a := range byName[*e.Artist] {
			for _, s := range byArtist[a.ArtistID] {
				plays = append(plays, Songplay{
					SongplayID: next,
					StartTime:  StartTime(e.TS),
					UserID:     e.UserID,
					Level:      e.Level,
					SongID:     s.SongID,
					ArtistID:   a.ArtistID,
					SessionID:  e.SessionID,
					Location:   e.Location,
					UserAgent:  e.UserAgent,
				})
				next++
			}
		}
	}
	return plays
}
