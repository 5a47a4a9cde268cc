package mock

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
)

// Stream reads an object line by line, passing each line and its byte offset
// to fn. Lines that start before offset are skipped.
func (m *S3Client) Stream(ctx context.Context, bucket, key string, offset int64, fn func([]byte, int64) error) error {
	content, ok := m.Object(bucket, key)
	if !ok {
		return fmt.Errorf("mock S3: key not found: %s/%s", bucket, key)
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB buffer

	var pos int64
	for scanner.Scan() {
		line := scanner.Bytes()
		start := pos
		pos += int64(len(line)) + 1
		if start < offset {
			continue
		}

		if err := fn(line, start); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error scanning lines: %w", err)
	}
	return nil
}
