package preview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gurre/redshift-dwh/catalog"
	"github.com/gurre/redshift-dwh/logging"
	"github.com/gurre/redshift-dwh/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLister struct {
	summaries map[string]source.Summary
}

func (m *mockLister) List(ctx context.Context, uri string) (source.Summary, error) {
	s, ok := m.summaries[uri]
	if !ok {
		return source.Summary{}, fmt.Errorf("%w: %s", source.ErrInvalidURI, uri)
	}
	return s, nil
}

type mockStreamer struct {
	files map[string]string
}

func (m *mockStreamer) Stream(ctx context.Context, bucket, key string, offset int64, fn func([]byte, int64) error) error {
	content, ok := m.files[bucket+"/"+key]
	if !ok {
		return errors.New("NoSuchKey")
	}
	var pos int64
	for _, line := range strings.Split(content, "\n") {
		if err := fn([]byte(line), pos); err != nil {
			return err
		}
		pos += int64(len(line)) + 1
	}
	return nil
}

func fixture() (*mockLister, *mockStreamer) {
	lister := &mockLister{summaries: map[string]source.Summary{
		"s3://dend/log_data": {
			Location: source.Location{Bucket: "dend", Prefix: "log_data"},
			Count:    1,
			Sample:   []source.Object{{Key: "log_data/2018-11-01-events.json"}},
		},
		"s3://dend/song_data": {
			Location: source.Location{Bucket: "dend", Prefix: "song_data"},
			Count:    2,
			Sample: []source.Object{
				{Key: "song_data/A/TRAAAAW128F429D538.json"},
				{Key: "song_data/A/TRAAABD128F429CF47.json"},
			},
		},
	}}

	streamer := &mockStreamer{files: map[string]string{
		"dend/log_data/2018-11-01-events.json": strings.Join([]string{
			`{"artist":"Casual","page":"NextSong","ts":1541105830796,"userId":"39","level":"free","sessionId":38}`,
			`{"artist":null,"page":"Login","ts":1541105830797,"userId":"","level":"free","sessionId":38}`,
			`{"artist":"Casual","page":"NextSong","ts":1541105830798,"userId":"39","level":"paid","sessionId":38}`,
			`not json`,
			``,
		}, "\n"),
		"dend/song_data/A/TRAAAAW128F429D538.json": `{"num_songs": 1, "artist_id": "ARD7TVE1187B99BFB1", "artist_name": "Casual", "artist_location": "California - LA", "song_id": "SOMZWCG12A8C13C480", "title": "I Didn't Mean To", "duration": 218.93179, "year": 0}`,
		"dend/song_data/A/TRAAABD128F429CF47.json": `{"num_songs": 1, "artist_id": "ARD7TVE1187B99BFB1", "artist_name": "Casual", "artist_location": "California - LA", "song_id": "SOCIWDW12A8C13D406", "title": "Soul Deep", "duration": 148.03546, "year": 1969}`,
	}}
	return lister, streamer
}

func TestPreviewRun(t *testing.T) {
	lister, streamer := fixture()
	p := NewPreviewer(lister, streamer, logging.Discard())

	res, err := p.Run(context.Background(), "s3://dend/log_data", "s3://dend/song_data")
	require.NoError(t, err)

	assert.Equal(t, 1, res.EventObjects)
	assert.Equal(t, 2, res.SongObjects)
	assert.Equal(t, int64(3), res.Events)
	assert.Equal(t, int64(1), res.CorruptEvents)
	assert.Equal(t, int64(2), res.Songs)

	assert.Equal(t, int64(1), res.Counts[catalog.Users])
	assert.Equal(t, int64(1), res.Counts[catalog.Artists])
	assert.Equal(t, int64(2), res.Counts[catalog.Songs])
	assert.Equal(t, int64(3), res.Counts[catalog.Time])
	// Two plays, each joined to both songs of the artist.
	assert.Equal(t, int64(4), res.Counts[catalog.Songplays])

	assert.Contains(t, res.String(), "songplays: 4 rows")
}

func TestPreviewStreamError(t *testing.T) {
	lister, streamer := fixture()
	delete(streamer.files, "dend/song_data/A/TRAAABD128F429CF47.json")
	p := NewPreviewer(lister, streamer, logging.Discard())

	_, err := p.Run(context.Background(), "s3://dend/log_data", "s3://dend/song_data")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRAAABD128F429CF47")
}

func TestPreviewListError(t *testing.T) {
	lister, streamer := fixture()
	p := NewPreviewer(lister, streamer, logging.Discard())

	_, err := p.Run(context.Background(), "s3://dend/missing", "s3://dend/song_data")
	assert.ErrorIs(t, err, source.ErrInvalidURI)
}
