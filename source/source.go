// Package source inspects the raw datasets in object storage before they are
// bulk-loaded: it resolves s3:// locations and lists the objects under them.
package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gurre/redshift-dwh/aws"
)

// ErrInvalidURI is returned for locations that are not s3://bucket[/prefix].
var ErrInvalidURI = errors.New("invalid S3 URI")

var s3URIPattern = regexp.MustCompile(`^s3://([^/]+)/?(.*)$`)

// Location is a bucket and key prefix.
type Location struct {
	Bucket string
	Prefix string
}

// String returns the s3:// form of the location.
func (l Location) String() string {
	if l.Prefix == "" {
		return "s3://" + l.Bucket
	}
	return "s3://" + l.Bucket + "/" + l.Prefix
}

// ParseURI splits an s3:// URI into bucket and prefix. The prefix may be empty.
func ParseURI(uri string) (Location, error) {
	matches := s3URIPattern.FindStringSubmatch(uri)
	if len(matches) != 3 {
		return Location{}, fmt.Errorf("%w: %s (must be s3://bucket/prefix)", ErrInvalidURI, uri)
	}
	return Location{Bucket: matches[1], Prefix: matches[2]}, nil
}

// ParseObjectURI is ParseURI for a single object: the key must not be empty.
func ParseObjectURI(uri string) (Location, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return Location{}, err
	}
	if loc.Prefix == "" || strings.HasSuffix(loc.Prefix, "/") {
		return Location{}, fmt.Errorf("%w: %s (must name an object)", ErrInvalidURI, uri)
	}
	return loc, nil
}

// Object is one listed object.
type Object struct {
	Key  string
	Size int64
}

// Summary describes the objects under a location.
type Summary struct {
	Location Location
	Count    int64
	Bytes    int64
	Sample   []Object // first objects in key order, at most the lister's sample size
}

// String returns the console form of the summary.
func (s Summary) String() string {
	return fmt.Sprintf("%s: %d objects, %d bytes", s.Location, s.Count, s.Bytes)
}

// Lister lists the objects under an s3:// location.
type Lister interface {
	List(ctx context.Context, uri string) (Summary, error)
}

// S3Lister implements Lister with paginated ListObjectsV2 calls.
type S3Lister struct {
	client     aws.S3Client
	sampleSize int
}

// NewS3Lister creates an S3Lister that keeps up to sampleSize objects per
// summary. Counting always covers every object.
func NewS3Lister(client aws.S3Client, sampleSize int) *S3Lister {
	return &S3Lister{client: client, sampleSize: sampleSize}
}

// List counts the objects and bytes under uri. Directory placeholder keys
// (ending in "/") are skipped.
func (l *S3Lister) List(ctx context.Context, uri string) (Summary, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return Summary{}, err
	}

	input := &s3.ListObjectsV2Input{Bucket: sdkaws.String(loc.Bucket)}
	if loc.Prefix != "" {
		input.Prefix = sdkaws.String(loc.Prefix)
	}

	summary := Summary{Location: loc}
	paginator := s3.NewListObjectsV2Paginator(l.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return Summary{}, fmt.Errorf("failed to list %s: %w", loc, err)
		}
		for _, obj := range page.Contents {
			key := sdkaws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			size := sdkaws.ToInt64(obj.Size)
			summary.Count++
			summary.Bytes += size
			if len(summary.Sample) < l.sampleSize {
				summary.Sample = append(summary.Sample, Object{Key: key, Size: size})
			}
		}
	}

	return summary, nil
}
