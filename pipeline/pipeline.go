// Package pipeline runs the warehouse procedures: rebuilding the schema and
// loading then transforming the raw datasets. Each procedure is a fixed
// statement sequence executed on one session, one committed transaction per
// statement, stopping at the first error.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gurre/redshift-dwh/catalog"
	"github.com/gurre/redshift-dwh/metrics"
	"github.com/gurre/redshift-dwh/report"
)

// Procedure names used in logs and reports.
const (
	ProcedureRebuild = "createtables"
	ProcedureLoad    = "etl"
)

// Session is the database connection a procedure runs on.
type Session interface {
	Exec(ctx context.Context, sql string) error
	Commit(ctx context.Context) error
}

// Counter is implemented by sessions that can count table rows. When the
// session supports it, a successful load records the final table sizes.
type Counter interface {
	Count(ctx context.Context, table string) (int64, error)
}

// finalTables are counted after a load, in insert order.
var finalTables = []string{catalog.Users, catalog.Artists, catalog.Songs, catalog.Time, catalog.Songplays}

// Runner executes procedures on one session.
type Runner struct {
	session Session
	store   report.Store
	logger  *log.Logger
	out     io.Writer
}

// NewRunner creates a Runner. The store may be nil to skip report persistence.
func NewRunner(session Session, store report.Store, logger *log.Logger, out io.Writer) *Runner {
	return &Runner{
		session: session,
		store:   store,
		logger:  logger,
		out:     out,
	}
}

// RebuildSchema drops every table, dependents first, then creates every
// table, dependencies first.
func (r *Runner) RebuildSchema(ctx context.Context) (metrics.Report, error) {
	rep, err := r.Run(ctx, ProcedureRebuild, catalog.RebuildStatements(), nil)
	if err != nil {
		return rep, err
	}
	_, err = fmt.Fprintln(r.out, "Tables successfully created")
	return rep, err
}

// LoadAndTransform copies both datasets into the staging tables and then
// fills the dimension tables before the fact table.
func (r *Runner) LoadAndTransform(ctx context.Context, src catalog.CopySource) (metrics.Report, error) {
	rep, err := r.Run(ctx, ProcedureLoad, catalog.LoadStatements(src), finalTables)
	if err != nil {
		return rep, err
	}
	_, err = fmt.Fprintln(r.out, "ETL process finished")
	return rep, err
}

// Run validates the statement order and executes each statement followed by
// a commit. The first failure aborts the sequence and is returned wrapped
// with the statement name. The run report is printed and, when a store is
// configured, saved whether or not the run succeeded.
func (r *Runner) Run(ctx context.Context, procedure string, stmts []catalog.Statement, countTables []string) (metrics.Report, error) {
	if err := catalog.ValidateOrder(stmts); err != nil {
		return metrics.Report{}, err
	}

	m := metrics.NewMetrics(procedure)
	logger := r.logger.With("run", m.RunID(), "procedure", procedure)
	logger.Info("Starting procedure", "statements", len(stmts))

	runErr := r.execute(ctx, logger, m, stmts)
	if runErr == nil {
		r.countRows(ctx, logger, m, countTables)
	}

	rep := m.GenerateReport()
	if _, err := fmt.Fprintln(r.out, rep); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to write report: %w", err)
	}

	if r.store != nil {
		if err := r.store.Save(ctx, rep); err != nil {
			if runErr == nil {
				runErr = fmt.Errorf("failed to save report: %w", err)
			} else {
				logger.Warn("Failed to save report", "err", err)
			}
		}
	}

	return rep, runErr
}

func (r *Runner) execute(ctx context.Context, logger *log.Logger, m *metrics.Metrics, stmts []catalog.Statement) error {
	for _, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		logger.Debug("Executing statement", "name", stmt.Name, "order", stmt.Order)
		err := r.session.Exec(ctx, stmt.SQL)
		if err == nil {
			err = r.session.Commit(ctx)
		}
		elapsed := time.Since(start)

		if err != nil {
			m.RecordFailure(stmt.Name, stmt.Table, stmt.Kind.String(), elapsed, err)
			logger.Error("Statement failed", "name", stmt.Name, "err", err)
			return fmt.Errorf("statement %s: %w", stmt.Name, err)
		}

		m.RecordStatement(stmt.Name, stmt.Table, stmt.Kind.String(), elapsed)
		logger.Info("Statement committed", "name", stmt.Name, "duration", elapsed)
	}
	return nil
}

// countRows records table sizes. Counting is informational, so failures are
// logged and skipped.
func (r *Runner) countRows(ctx context.Context, logger *log.Logger, m *metrics.Metrics, tables []string) {
	counter, ok := r.session.(Counter)
	if !ok {
		return
	}
	for _, table := range tables {
		n, err := counter.Count(ctx, table)
		if err != nil {
			logger.Warn("Failed to count rows", "table", table, "err", err)
			continue
		}
		m.RecordRowCount(table, n)
	}
}
