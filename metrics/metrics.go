// Package metrics records what a pipeline procedure executed: one entry per
// statement with its duration and outcome, plus run-level counters. The
// resulting Report is printed after each procedure and optionally persisted.
package metrics

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// StatementResult is the record of one executed statement.
type StatementResult struct {
	Name     string        `json:"name"`
	Table    string        `json:"table"`
	Kind     string        `json:"kind"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// MarshalJSON renders the duration in its string form.
func (s StatementResult) MarshalJSON() ([]byte, error) {
	type Alias StatementResult
	return json.Marshal(&struct {
		Alias
		Duration string `json:"duration"`
	}{
		Alias:    Alias(s),
		Duration: s.Duration.String(),
	})
}

// UnmarshalJSON accepts the string duration written by MarshalJSON.
func (s *StatementResult) UnmarshalJSON(data []byte) error {
	type Alias StatementResult
	aux := &struct {
		*Alias
		Duration string `json:"duration"`
	}{Alias: (*Alias)(s)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	d, err := parseDuration(aux.Duration)
	if err != nil {
		return err
	}
	s.Duration = d
	return nil
}

// Metrics collects the statements run by one procedure.
type Metrics struct {
	mu sync.Mutex

	runID     string
	procedure string
	startTime time.Time

	executed int64 // statements committed
	failed   int64 // statements that returned an error

	statements []StatementResult
	rowCounts  map[string]int64
}

// NewMetrics starts a run of the named procedure.
func NewMetrics(procedure string) *Metrics {
	return &Metrics{
		runID:     uuid.New().String(),
		procedure: procedure,
		startTime: time.Now(),
	}
}

// RunID identifies the run in logs and persisted reports.
func (m *Metrics) RunID() string {
	return m.runID
}

// RecordStatement records a committed statement.
func (m *Metrics) RecordStatement(name, table, kind string, d time.Duration) {
	atomic.AddInt64(&m.executed, 1)
	m.append(StatementResult{Name: name, Table: table, Kind: kind, Duration: d})
}

// RecordFailure records a statement that aborted the run.
func (m *Metrics) RecordFailure(name, table, kind string, d time.Duration, err error) {
	atomic.AddInt64(&m.failed, 1)
	m.append(StatementResult{Name: name, Table: table, Kind: kind, Duration: d, Error: err.Error()})
}

// RecordRowCount records the row count of a table after the run.
func (m *Metrics) RecordRowCount(table string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rowCounts == nil {
		m.rowCounts = make(map[string]int64)
	}
	m.rowCounts[table] = n
}

func (m *Metrics) append(r StatementResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statements = append(m.statements, r)
}

// Report is the summary of one procedure run.
type Report struct {
	RunID      string            `json:"runId"`
	Procedure  string            `json:"procedure"`
	StartTime  time.Time         `json:"startTime"`
	EndTime    time.Time         `json:"endTime"`
	Duration   time.Duration     `json:"duration"`
	Executed   int64             `json:"executed"`
	Failed     int64             `json:"failed"`
	Statements []StatementResult `json:"statements"`
	RowCounts  map[string]int64  `json:"rowCounts,omitempty"`
}

// GenerateReport snapshots the run so far.
func (m *Metrics) GenerateReport() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	endTime := time.Now()
	statements := make([]StatementResult, len(m.statements))
	copy(statements, m.statements)

	var counts map[string]int64
	if len(m.rowCounts) > 0 {
		counts = make(map[string]int64, len(m.rowCounts))
		for k, v := range m.rowCounts {
			counts[k] = v
		}
	}

	return Report{
		RunID:      m.runID,
		Procedure:  m.procedure,
		StartTime:  m.startTime,
		EndTime:    endTime,
		Duration:   endTime.Sub(m.startTime),
		Executed:   atomic.LoadInt64(&m.executed),
		Failed:     atomic.LoadInt64(&m.failed),
		Statements: statements,
		RowCounts:  counts,
	}
}

// Succeeded reports whether no statement failed.
func (r Report) Succeeded() bool {
	return r.Failed == 0
}

// MarshalJSON renders the duration in its string form.
func (r Report) MarshalJSON() ([]byte, error) {
	type Alias Report
	return json.Marshal(&struct {
		Alias
		Duration string `json:"duration"`
	}{
		Alias:    Alias(r),
		Duration: r.Duration.String(),
	})
}

// UnmarshalJSON accepts the string duration written by MarshalJSON.
func (r *Report) UnmarshalJSON(data []byte) error {
	type Alias Report
	aux := &struct {
		*Alias
		Duration string `json:"duration"`
	}{Alias: (*Alias)(r)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	d, err := parseDuration(aux.Duration)
	if err != nil {
		return err
	}
	r.Duration = d
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// String returns the console form of the report.
func (r Report) String() string {
	var b strings.Builder
	status := "completed"
	if !r.Succeeded() {
		status = "failed"
	}
	fmt.Fprintf(&b, "%s %s in %s (run %s)\n", r.Procedure, status, r.Duration, r.RunID)
	fmt.Fprintf(&b, "Statements executed: %d\n", r.Executed)
	fmt.Fprintf(&b, "Statements failed: %d", r.Failed)
	for _, s := range r.Statements {
		line := fmt.Sprintf("\n  %-28s %-8s %s", s.Name, s.Kind, s.Duration)
		if s.Error != "" {
			line += "  error: " + s.Error
		}
		b.WriteString(line)
	}
	for _, table := range slices.Sorted(maps.Keys(r.RowCounts)) {
		fmt.Fprintf(&b, "\n  rows in %s: %d", table, r.RowCounts[table])
	}
	return b.String()
}
