package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		verbose   bool
		wantDebug bool
	}{
		{name: "default level", verbose: false, wantDebug: false},
		{name: "verbose level", verbose: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, tt.verbose)

			logger.Debug("statement executed", "name", "users_table_create")
			logger.Info("cluster requested")

			out := buf.String()
			assert.Contains(t, out, "cluster requested")
			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("users_table_create")))
		})
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("dropped")
}
