// Package preview runs the transforms on a sample of the raw datasets so the
// shape of a load can be checked before paying for a full COPY.
package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gurre/redshift-dwh/source"
	"github.com/gurre/redshift-dwh/staging"
	"github.com/gurre/redshift-dwh/transform"
	"github.com/gurre/s3streamer"
)

// Result summarizes a preview run.
type Result struct {
	EventObjects  int
	SongObjects   int
	Events        int64
	Songs         int64
	CorruptEvents int64
	CorruptSongs  int64
	Counts        map[string]int64 // derived rows per final table
}

// String returns the console form of the result.
func (r Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sampled %d event objects (%d events, %d corrupt)\n", r.EventObjects, r.Events, r.CorruptEvents)
	fmt.Fprintf(&b, "Sampled %d song objects (%d songs, %d corrupt)", r.SongObjects, r.Songs, r.CorruptSongs)
	for _, table := range slices.Sorted(maps.Keys(r.Counts)) {
		fmt.Fprintf(&b, "\n  %s: %d rows", table, r.Counts[table])
	}
	return b.String()
}

// Previewer lists a sample of objects under each dataset prefix, streams them
// line by line and derives the final tables in memory.
type Previewer struct {
	lister   source.Lister
	streamer s3streamer.Streamer
	logger   *log.Logger
}

// NewPreviewer creates a Previewer. The lister's sample size bounds the
// number of objects read per dataset.
func NewPreviewer(lister source.Lister, streamer s3streamer.Streamer, logger *log.Logger) *Previewer {
	return &Previewer{lister: lister, streamer: streamer, logger: logger}
}

// Run samples logData and songData and derives the star schema from them.
// Corrupt records are counted and skipped.
func (p *Previewer) Run(ctx context.Context, logData, songData string) (Result, error) {
	var res Result

	events, objects, corrupt, err := sample(ctx, p, logData, staging.EventDecoder{})
	if err != nil {
		return Result{}, fmt.Errorf("failed to sample events: %w", err)
	}
	res.EventObjects, res.Events, res.CorruptEvents = objects, int64(len(events)), corrupt

	songs, objects, corrupt, err := sample(ctx, p, songData, staging.SongDecoder{})
	if err != nil {
		return Result{}, fmt.Errorf("failed to sample songs: %w", err)
	}
	res.SongObjects, res.Songs, res.CorruptSongs = objects, int64(len(songs)), corrupt

	res.Counts = transform.Build(events, songs).Counts()
	return res, nil
}

func sample[T any](ctx context.Context, p *Previewer, uri string, dec staging.Decoder[T]) ([]T, int, int64, error) {
	summary, err := p.lister.List(ctx, uri)
	if err != nil {
		return nil, 0, 0, err
	}

	var (
		records []T
		corrupt int64
	)
	for _, obj := range summary.Sample {
		p.logger.Debug("Streaming object", "bucket", summary.Location.Bucket, "key", obj.Key, "size", obj.Size)
		err := p.streamer.Stream(ctx, summary.Location.Bucket, obj.Key, 0, func(line []byte, _ int64) error {
			if len(bytes.TrimSpace(line)) == 0 {
				return nil
			}
			rec, err := dec.Decode(line)
			if errors.Is(err, staging.ErrCorrupt) {
				corrupt++
				p.logger.Warn("Skipping corrupt record", "key", obj.Key, "err", err)
				return nil
			}
			if err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
		if err != nil {
			return nil, 0, 0, fmt.Errorf("failed to stream %s: %w", obj.Key, err)
		}
	}
	return records, len(summary.Sample), corrupt, nil
}
