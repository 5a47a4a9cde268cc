// Package staging decodes the raw dataset records that COPY loads into the
// staging tables. Event logs are JSON lines, one page view per line; song
// metadata files hold one JSON document per song. Field names match case
// insensitively, as the COPY option json 'auto ignorecase' does.
package staging

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
)

// ErrCorrupt is returned when a record cannot be decoded or lacks the fields
// the transforms depend on.
var ErrCorrupt = errors.New("corrupt record")

// PageNextSong marks an event that played a song.
const PageNextSong = "NextSong"

// UserID is the event's user identifier. The logs encode it as a string,
// empty for logged-out visitors, so it is optional.
type UserID struct {
	Value int64
	Valid bool
}

// UnmarshalJSON accepts a number, a numeric string, an empty string or null.
func (u *UserID) UnmarshalJSON(data []byte) error {
	*u = UserID{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		data = []byte(s)
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", data, err)
	}
	*u = UserID{Value: v, Valid: true}
	return nil
}

// MarshalJSON writes the logs' string form.
func (u UserID) MarshalJSON() ([]byte, error) {
	if !u.Valid {
		return []byte(`""`), nil
	}
	return []byte(strconv.Quote(strconv.FormatInt(u.Value, 10))), nil
}

// Event is one row of staging_events.
type Event struct {
	Artist        *string  `json:"artist"`
	Auth          string   `json:"auth"`
	FirstName     string   `json:"firstName"`
	Gender        string   `json:"gender"`
	ItemInSession int      `json:"itemInSession"`
	LastName      string   `json:"lastName"`
	Length        *float64 `json:"length"`
	Level         string   `json:"level"`
	Location      string   `json:"location"`
	Method        string   `json:"method"`
	Page          string   `json:"page"`
	Registration  *float64 `json:"registration"`
	SessionID     int      `json:"sessionId"`
	Song          *string  `json:"song"`
	Status        int      `json:"status"`
	TS            int64    `json:"ts"` // milliseconds since the Unix epoch
	UserAgent     string   `json:"userAgent"`
	UserID        UserID   `json:"userId"`
}

// IsSongPlay reports whether the event contributes a songplay.
func (e Event) IsSongPlay() bool {
	return e.Page == PageNextSong
}

// Song is one row of staging_songs.
type Song struct {
	NumSongs        int      `json:"num_songs"`
	ArtistID        string   `json:"artist_id"`
	ArtistLatitude  *float64 `json:"artist_latitude"`
	ArtistLongitude *float64 `json:"artist_longitude"`
	ArtistLocation  string   `json:"artist_location"`
	ArtistName      string   `json:"artist_name"`
	SongID          string   `json:"song_id"`
	Title           string   `json:"title"`
	Duration        float64  `json:"duration"`
	Year            int      `json:"year"`
}

// Decoder decodes one raw record.
type Decoder[T any] interface {
	Decode(line []byte) (T, error)
}

// EventDecoder decodes event log lines.
type EventDecoder struct{}

// Decode parses a line into an Event. Lines without a timestamp are corrupt.
func (EventDecoder) Decode(line []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(line, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	// A zero ts is a valid epoch, so presence is checked on its own.
	var ts struct {
		TS *int64 `json:"ts"`
	}
	if err := json.Unmarshal(line, &ts); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if ts.TS == nil {
		return Event{}, fmt.Errorf("%w: event has no ts", ErrCorrupt)
	}
	return e, nil
}

// SongDecoder decodes song metadata documents.
type SongDecoder struct{}

// Decode parses a document into a Song. Songs without a song or artist id
// are corrupt.
func (SongDecoder) Decode(line []byte) (Song, error) {
	var s Song
	if err := json.Unmarshal(line, &s); err != nil {
		return Song{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if s.SongID == "" || s.ArtistID == "" {
		return Song{}, fmt.Errorf("%w: song has no song_id or artist_id", ErrCorrupt)
	}
	return s, nil
}

var (
	_ Decoder[Event] = EventDecoder{}
	_ Decoder[Song]  = SongDecoder{}
)
