// Package main generates synthetic song metadata and event logs in the layout
// of the Million Song and Sparkify event datasets. Output goes to a local
// directory or an s3:// prefix and can be loaded with dwh etl.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gurre/redshift-dwh/aws"
	"github.com/gurre/redshift-dwh/source"
	"github.com/gurre/redshift-dwh/staging"
)

// Config holds the command-line configuration for the data generator.
type Config struct {
	Output   string // directory or s3://bucket/prefix
	Region   string
	Artists  int
	Songs    int
	Users    int
	Sessions int
	Start    time.Time
	Days     int
	Seed     int64
}

// Sink stores one generated object.
type Sink interface {
	Put(ctx context.Context, key string, data []byte) error
}

type dirSink struct {
	root string
}

func (s dirSink) Put(ctx context.Context, key string, data []byte) error {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

type s3Sink struct {
	client aws.S3Client
	loc    source.Location
}

func (s s3Sink) Put(ctx context.Context, key string, data []byte) error {
	if s.loc.Prefix != "" {
		key = strings.TrimSuffix(s.loc.Prefix, "/") + "/" + key
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      sdkaws.String(s.loc.Bucket),
		Key:         sdkaws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: sdkaws.String("application/json"),
	})
	return err
}

var (
	firstNames = []string{"Lily", "Kaylee", "Jacob", "Ryan", "Chloe", "Tegan", "Aleena", "Jayden", "Ava", "Mohammad"}
	lastNames  = []string{"Koch", "Summers", "Klein", "Smith", "Cuevas", "Levine", "Kirby", "Graves", "Robinson", "Rodriguez"}
	locations  = []string{
		"San Francisco-Oakland-Hayward, CA",
		"Chicago-Naperville-Elgin, IL-IN-WI",
		"Phoenix-Mesa-Scottsdale, AZ",
		"Portland-South Portland, ME",
		"Lansing-East Lansing, MI",
	}
	userAgents = []string{
		`"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_9_4) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/36.0.1985.143 Safari/537.36"`,
		`"Mozilla/5.0 (Windows NT 6.1; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/35.0.1916.153 Safari/537.36"`,
		`Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:31.0) Gecko/20100101 Firefox/31.0`,
	}
	otherPages = []string{"Home", "Logout", "Settings", "About", "Help", "Upgrade"}
)

func randomString(r *rand.Rand, n int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[r.Intn(len(letters))]
	}
	return string(b)
}

func randomNumber(r *rand.Rand, min, max int) int {
	return min + r.Intn(max-min+1)
}

func pick[T any](r *rand.Rand, items []T) T {
	return items[r.Intn(len(items))]
}

// randomTitle builds a two or three word title.
func randomTitle(r *rand.Rand) string {
	words := []string{"Night", "Blue", "Dancing", "River", "Echo", "Golden", "Fire", "Lonely", "Summer", "Heart", "Road", "Stars"}
	n := randomNumber(r, 2, 3)
	parts := make([]string, n)
	for i := range parts {
		parts[i] = pick(r, words)
	}
	return strings.Join(parts, " ")
}

// generateSongs returns cfg.Songs songs spread over cfg.Artists artists. An
// artist's name, location and coordinates are identical across its songs.
func generateSongs(r *rand.Rand, cfg Config) []staging.Song {
	type artist struct {
		id, name, location string
		lat, long          *float64
	}
	artists := make([]artist, cfg.Artists)
	for i := range artists {
		a := artist{
			id:   "AR" + randomString(r, 16),
			name: fmt.Sprintf("%s %s", pick(r, []string{"The", "DJ", "Los", "Mr."}), randomTitle(r)),
		}
		// Roughly half of the catalog has no location data.
		if r.Intn(2) == 0 {
			lat, long := r.Float64()*180-90, r.Float64()*360-180
			a.lat, a.long = &lat, &long
			a.location = pick(r, locations)
		}
		artists[i] = a
	}

	songs := make([]staging.Song, cfg.Songs)
	for i := range songs {
		a := artists[i%len(artists)]
		songs[i] = staging.Song{
			NumSongs:        1,
			ArtistID:        a.id,
			ArtistLatitude:  a.lat,
			ArtistLongitude: a.long,
			ArtistLocation:  a.location,
			ArtistName:      a.name,
			SongID:          "SO" + randomString(r, 16),
			Title:           randomTitle(r),
			Duration:        float64(randomNumber(r, 90_000, 420_000)) / 1000,
			Year:            pick(r, []int{0, 1969, 1985, 1999, 2004, 2008}),
		}
	}
	return songs
}

type user struct {
	id                          int64
	firstName, lastName, gender string
	level, location, userAgent  string
	registration                float64
}

// generateEvents simulates listening sessions. Each session belongs to one
// user and mixes NextSong plays of known songs with other page views. A free
// user may upgrade to paid during a session.
func generateEvents(r *rand.Rand, cfg Config, songs []staging.Song) []staging.Event {
	users := make([]user, cfg.Users)
	for i := range users {
		users[i] = user{
			id:           int64(i + 2),
			firstName:    pick(r, firstNames),
			lastName:     pick(r, lastNames),
			gender:       pick(r, []string{"F", "M"}),
			level:        pick(r, []string{"free", "free", "paid"}),
			location:     pick(r, locations),
			userAgent:    pick(r, userAgents),
			registration: float64(cfg.Start.AddDate(0, -1, 0).UnixMilli()),
		}
	}

	span := int64(cfg.Days) * 24 * int64(time.Hour/time.Millisecond)
	var events []staging.Event
	for session := 1; session <= cfg.Sessions; session++ {
		u := &users[r.Intn(len(users))]
		ts := cfg.Start.UnixMilli() + r.Int63n(span)
		items := randomNumber(r, 1, 20)

		for item := 0; item < items; item++ {
			e := staging.Event{
				Auth:          "Logged In",
				FirstName:     u.firstName,
				Gender:        u.gender,
				ItemInSession: item,
				LastName:      u.lastName,
				Level:         u.level,
				Location:      u.location,
				Method:        "GET",
				Page:          pick(r, otherPages),
				Registration:  &u.registration,
				SessionID:     session,
				Status:        200,
				TS:            ts,
				UserAgent:     u.userAgent,
				UserID:        staging.UserID{Value: u.id, Valid: true},
			}
			if r.Intn(4) != 0 {
				s := songs[r.Intn(len(songs))]
				e.Page = staging.PageNextSong
				e.Method = "PUT"
				e.Artist, e.Song, e.Length = &s.ArtistName, &s.Title, &s.Duration
				ts += int64(s.Duration * 1000)
			} else {
				if e.Page == "Upgrade" {
					u.level = "paid"
				}
				ts += int64(randomNumber(r, 1_000, 60_000))
			}
			events = append(events, e)
		}
	}
	return events
}

// songKey follows the dataset layout: song_data/<3rd>/<4th>/<5th>/<track>.json.
func songKey(trackID string) string {
	return fmt.Sprintf("song_data/%c/%c/%c/%s.json", trackID[2], trackID[3], trackID[4], trackID)
}

// eventKey follows the dataset layout: log_data/<year>/<month>/<date>-events.json.
func eventKey(day time.Time) string {
	return fmt.Sprintf("log_data/%d/%02d/%s-events.json", day.Year(), int(day.Month()), day.Format(time.DateOnly))
}

// write stores one document per song and one newline-delimited file per day
// of events, returning the number of objects written.
func write(ctx context.Context, sink Sink, songs []staging.Song, events []staging.Event) (int, error) {
	written := 0
	for _, s := range songs {
		data, err := json.Marshal(s)
		if err != nil {
			return written, fmt.Errorf("failed to encode song %s: %w", s.SongID, err)
		}
		trackID := "TR" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:16]
		if err := sink.Put(ctx, songKey(trackID), data); err != nil {
			return written, fmt.Errorf("failed to write song %s: %w", s.SongID, err)
		}
		written++
	}

	days := make(map[string]*bytes.Buffer)
	var order []string
	for _, e := range events {
		key := eventKey(time.UnixMilli(e.TS).UTC())
		buf, ok := days[key]
		if !ok {
			buf = &bytes.Buffer{}
			days[key] = buf
			order = append(order, key)
		}
		line, err := json.Marshal(e)
		if err != nil {
			return written, fmt.Errorf("failed to encode event: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	for _, key := range order {
		if err := sink.Put(ctx, key, days[key].Bytes()); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", key, err)
		}
		written++
	}
	return written, nil
}

func newSink(ctx context.Context, cfg Config) (Sink, error) {
	if !strings.HasPrefix(cfg.Output, "s3://") {
		return dirSink{root: cfg.Output}, nil
	}

	loc, err := source.ParseURI(cfg.Output)
	if err != nil {
		return nil, err
	}
	awsCfg, err := aws.LoadConfig(ctx, aws.Credentials{Region: cfg.Region})
	if err != nil {
		return nil, err
	}
	return s3Sink{client: aws.NewClients(awsCfg).S3, loc: loc}, nil
}

func main() {
	cfg := Config{}
	var start string

	flag.StringVar(&cfg.Output, "out", "data", "Output directory or s3://bucket/prefix")
	flag.StringVar(&cfg.Region, "region", os.Getenv("AWS_REGION"), "AWS region for s3:// output")
	flag.IntVar(&cfg.Artists, "artists", 20, "Number of artists")
	flag.IntVar(&cfg.Songs, "songs", 100, "Number of songs")
	flag.IntVar(&cfg.Users, "users", 25, "Number of users")
	flag.IntVar(&cfg.Sessions, "sessions", 200, "Number of listening sessions")
	flag.StringVar(&start, "start", "2018-11-01", "First day of events (YYYY-MM-DD)")
	flag.IntVar(&cfg.Days, "days", 30, "Number of days the events span")
	flag.Int64Var(&cfg.Seed, "seed", 0, "Random seed (0 = time-based)")
	flag.Parse()

	var err error
	cfg.Start, err = time.Parse(time.DateOnly, start)
	if err != nil {
		log.Fatalf("Invalid start date %q: %v", start, err)
	}
	if cfg.Artists < 1 || cfg.Songs < 1 || cfg.Users < 1 || cfg.Sessions < 1 || cfg.Days < 1 {
		log.Fatalf("artists, songs, users, sessions and days must be positive")
	}

	// Initialize random source
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(seed))
	fmt.Printf("Using seed: %d\n", seed)

	ctx := context.Background()
	sink, err := newSink(ctx, cfg)
	if err != nil {
		log.Fatalf("Unable to open output %s: %v", cfg.Output, err)
	}

	songs := generateSongs(r, cfg)
	events := generateEvents(r, cfg, songs)
	fmt.Printf("Generated %d songs and %d events\n", len(songs), len(events))

	n, err := write(ctx, sink, songs, events)
	if err != nil {
		log.Fatalf("Write failed after %d objects: %v", n, err)
	}
	fmt.Printf("Objects written: %d\nOutput: %s\n", n, cfg.Output)
}
