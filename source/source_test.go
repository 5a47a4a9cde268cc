package source

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedS3Client serves keys in pages of pageSize, continuing by index.
type pagedS3Client struct {
	keys     []string
	pageSize int
	err      error
	requests []*s3.ListObjectsV2Input
}

func (m *pagedS3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.requests = append(m.requests, params)
	if m.err != nil {
		return nil, m.err
	}

	start := 0
	if params.ContinuationToken != nil {
		_, _ = fmt.Sscanf(*params.ContinuationToken, "%d", &start)
	}
	end := min(start+m.pageSize, len(m.keys))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(m.keys))}
	for _, k := range m.keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(10)})
	}
	if end < len(m.keys) {
		out.NextContinuationToken = aws.String(fmt.Sprintf("%d", end))
	}
	return out, nil
}

func (m *pagedS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *pagedS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return nil, errors.New("not implemented")
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri     string
		want    Location
		wantErr bool
	}{
		{uri: "s3://udacity-dend/log_data", want: Location{Bucket: "udacity-dend", Prefix: "log_data"}},
		{uri: "s3://udacity-dend/song_data/A/B/", want: Location{Bucket: "udacity-dend", Prefix: "song_data/A/B/"}},
		{uri: "s3://udacity-dend", want: Location{Bucket: "udacity-dend"}},
		{uri: "s3://udacity-dend/", want: Location{Bucket: "udacity-dend"}},
		{uri: "https://udacity-dend/log_data", wantErr: true},
		{uri: "udacity-dend/log_data", wantErr: true},
		{uri: "s3:///log_data", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ParseURI(tt.uri)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURI)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseObjectURI(t *testing.T) {
	loc, err := ParseObjectURI("s3://reports/dwh/last.json")
	require.NoError(t, err)
	assert.Equal(t, "dwh/last.json", loc.Prefix)
	assert.Equal(t, "s3://reports/dwh/last.json", loc.String())

	_, err = ParseObjectURI("s3://reports")
	assert.ErrorIs(t, err, ErrInvalidURI)
	_, err = ParseObjectURI("s3://reports/dwh/")
	assert.ErrorIs(t, err, ErrInvalidURI)
}

func TestS3ListerPaginates(t *testing.T) {
	client := &pagedS3Client{
		keys: []string{
			"log_data/",
			"log_data/2018/11/2018-11-01-events.json",
			"log_data/2018/11/2018-11-02-events.json",
			"log_data/2018/11/2018-11-03-events.json",
			"log_data/2018/11/2018-11-04-events.json",
			"log_data/2018/11/2018-11-05-events.json",
		},
		pageSize: 2,
	}
	lister := NewS3Lister(client, 3)

	summary, err := lister.List(context.Background(), "s3://udacity-dend/log_data")
	require.NoError(t, err)

	assert.Equal(t, int64(5), summary.Count)
	assert.Equal(t, int64(50), summary.Bytes)
	require.Len(t, summary.Sample, 3)
	assert.Equal(t, "log_data/2018/11/2018-11-01-events.json", summary.Sample[0].Key)
	assert.Len(t, client.requests, 3)
	assert.Equal(t, "log_data", aws.ToString(client.requests[0].Prefix))
	assert.Equal(t, "s3://udacity-dend/log_data: 5 objects, 50 bytes", summary.String())
}

func TestS3ListerErrors(t *testing.T) {
	client := &pagedS3Client{err: errors.New("AccessDenied"), pageSize: 1}
	lister := NewS3Lister(client, 1)

	_, err := lister.List(context.Background(), "s3://udacity-dend/log_data")
	assert.ErrorContains(t, err, "AccessDenied")

	_, err = lister.List(context.Background(), "log_data")
	assert.ErrorIs(t, err, ErrInvalidURI)
}
