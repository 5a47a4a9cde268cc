// Package report persists pipeline run reports so the last run can be
// inspected after the process exits. Reports are stored as JSON in S3 or on
// the local filesystem.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	json "github.com/goccy/go-json"
	"github.com/gurre/redshift-dwh/aws"
	"github.com/gurre/redshift-dwh/metrics"
	"github.com/gurre/redshift-dwh/source"
)

// ErrNoReport is returned by Load when nothing has been saved yet.
var ErrNoReport = errors.New("no report saved")

// Store saves and loads the most recent run report.
//
//	store, err := report.NewStore(client, "s3://my-bucket/dwh/last-run.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = store.Save(ctx, m.GenerateReport())
type Store interface {
	Load(ctx context.Context) (metrics.Report, error)
	Save(ctx context.Context, r metrics.Report) error
}

// NewStore picks the store for uri by scheme: s3:// or file://.
func NewStore(client aws.S3Client, uri string) (Store, error) {
	switch {
	case strings.HasPrefix(uri, "s3://"):
		return NewS3Store(client, uri)
	case strings.HasPrefix(uri, "file://"):
		return NewFileStore(uri)
	default:
		return nil, fmt.Errorf("unsupported report URI: %s", uri)
	}
}

// S3Store keeps the report in one S3 object.
type S3Store struct {
	client aws.S3Client
	bucket string
	key    string
}

// NewS3Store creates an S3Store from an s3://bucket/key URI.
func NewS3Store(client aws.S3Client, uri string) (*S3Store, error) {
	loc, err := source.ParseObjectURI(uri)
	if err != nil {
		return nil, err
	}
	return &S3Store{client: client, bucket: loc.Bucket, key: loc.Prefix}, nil
}

// Load reads the report object. A missing object yields ErrNoReport.
func (s *S3Store) Load(ctx context.Context) (metrics.Report, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &s.key,
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return metrics.Report{}, ErrNoReport
		}
		// Some S3-compatible stores answer NotFound instead.
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return metrics.Report{}, ErrNoReport
		}
		return metrics.Report{}, fmt.Errorf("failed to get report: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var r metrics.Report
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return metrics.Report{}, fmt.Errorf("failed to decode report: %w", err)
	}
	return r, nil
}

// Save overwrites the report object.
func (s *S3Store) Save(ctx context.Context, r metrics.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &s.key,
		Body:        bytes.NewReader(data),
		ContentType: sdkaws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// FileStore keeps the report in a local file.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore from a file:// URI with an absolute path.
// The parent directory is created if missing.
func NewFileStore(uri string) (*FileStore, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid file URI: %w", err)
	}
	if u.Scheme != "file" {
		return nil, fmt.Errorf("invalid file URI scheme: %s", u.Scheme)
	}

	cleanPath := filepath.Clean(u.Path)
	if !filepath.IsAbs(cleanPath) {
		return nil, fmt.Errorf("report path must be absolute: %s", cleanPath)
	}
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &FileStore{path: cleanPath}, nil
}

// Load reads the report file. A missing file yields ErrNoReport.
func (f *FileStore) Load(ctx context.Context) (metrics.Report, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return metrics.Report{}, ErrNoReport
		}
		return metrics.Report{}, fmt.Errorf("failed to read report file: %w", err)
	}

	var r metrics.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return metrics.Report{}, fmt.Errorf("failed to decode report: %w", err)
	}
	return r, nil
}

// Save overwrites the report file.
func (f *FileStore) Save(ctx context.Context, r metrics.Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}
