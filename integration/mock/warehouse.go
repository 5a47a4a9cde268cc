package mock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrSessionClosed is returned by Warehouse after Close.
var ErrSessionClosed = errors.New("mock warehouse: session closed")

// Warehouse is a SQL session that records statements instead of running them.
// Each Exec opens a pending transaction that Commit moves into Committed.
type Warehouse struct {
	mu sync.Mutex

	// FailOn makes Exec fail for any statement containing the substring.
	FailOn string
	// Rows is returned by Count per table.
	Rows map[string]int64

	Committed []string
	pending   []string
	Closed    bool
}

// NewWarehouse creates an open session.
func NewWarehouse() *Warehouse {
	return &Warehouse{Rows: make(map[string]int64)}
}

func (w *Warehouse) Exec(ctx context.Context, sql string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Closed {
		return ErrSessionClosed
	}
	if w.FailOn != "" && strings.Contains(sql, w.FailOn) {
		w.pending = nil
		return fmt.Errorf("mock warehouse: statement rejected: %q", w.FailOn)
	}
	w.pending = append(w.pending, sql)
	return nil
}

func (w *Warehouse) Commit(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Closed {
		return ErrSessionClosed
	}
	w.Committed = append(w.Committed, w.pending...)
	w.pending = nil
	return nil
}

func (w *Warehouse) Count(ctx context.Context, table string) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Closed {
		return 0, ErrSessionClosed
	}
	return w.Rows[table], nil
}

// Close discards any uncommitted statement.
func (w *Warehouse) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = nil
	w.Closed = true
	return nil
}
