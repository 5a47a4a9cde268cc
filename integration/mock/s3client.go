package mock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Client is an in-memory bucket store implementing aws.S3Client and
// s3streamer.Streamer.
type S3Client struct {
	mu sync.Mutex

	// Maps bucket/key to file content
	Files map[string][]byte
	// Maps bucket/key to content type
	ContentTypes map[string]string
	// PageSize caps the keys returned per ListObjectsV2 call.
	PageSize int
	// ListCalls counts ListObjectsV2 requests.
	ListCalls int
}

// NewS3Client creates an empty mock S3 client.
func NewS3Client() *S3Client {
	return &S3Client{
		Files:        make(map[string][]byte),
		ContentTypes: make(map[string]string),
		PageSize:     1000,
	}
}

// AddFile stores content under bucket/key.
func (m *S3Client) AddFile(bucket, key string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Files[bucket+"/"+key] = content
}

// LoadDir uploads every regular file below dir into bucket, keyed by its
// path relative to dir.
func (m *S3Client) LoadDir(bucket, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("test data directory does not exist: %s", dir)
	}

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		m.AddFile(bucket, filepath.ToSlash(rel), data)
		return nil
	})
}

// Object returns the content stored under bucket/key.
func (m *S3Client) Object(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Files[bucket+"/"+key]
	return data, ok
}

// ListObjectsV2 returns keys in lexical order. The continuation token is the
// index of the next key.
func (m *S3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++

	bucket := aws.ToString(params.Bucket)
	prefix := bucket + "/" + aws.ToString(params.Prefix)

	var keys []string
	for k := range m.Files {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	start := 0
	if token := aws.ToString(params.ContinuationToken); token != "" {
		n, err := strconv.Atoi(token)
		if err != nil || n > len(keys) {
			return nil, fmt.Errorf("mock S3: invalid continuation token %q", token)
		}
		start = n
	}
	pageSize := m.PageSize
	if params.MaxKeys != nil && int(*params.MaxKeys) < pageSize {
		pageSize = int(*params.MaxKeys)
	}
	end := min(start+pageSize, len(keys))

	out := &s3.ListObjectsV2Output{
		Name:        aws.String(bucket),
		Prefix:      params.Prefix,
		KeyCount:    aws.Int32(int32(end - start)),
		IsTruncated: aws.Bool(end < len(keys)),
	}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(strings.TrimPrefix(k, bucket+"/")),
			Size: aws.Int64(int64(len(m.Files[k]))),
		})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

// GetObject implements the S3Client interface for reading objects
func (m *S3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucketKey := fmt.Sprintf("%s/%s", aws.ToString(params.Bucket), aws.ToString(params.Key))
	content, ok := m.Files[bucketKey]
	if !ok {
		return nil, &types.NoSuchKey{
			Message: aws.String(fmt.Sprintf("The specified key does not exist: %s", aws.ToString(params.Key))),
		}
	}

	contentLength := int64(len(content))
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(content)),
		ContentType:   aws.String(m.ContentTypes[bucketKey]),
		ContentLength: &contentLength,
	}, nil
}

// PutObject implements the S3Client interface for writing objects
func (m *S3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bucketKey := fmt.Sprintf("%s/%s", aws.ToString(params.Bucket), aws.ToString(params.Key))
	m.Files[bucketKey] = data
	m.ContentTypes[bucketKey] = aws.ToString(params.ContentType)

	return &s3.PutObjectOutput{
		ETag: aws.String(fmt.Sprintf("\"%x\"", len(data))),
	}, nil
}
