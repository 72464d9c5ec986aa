// Package database persists compliance runs to Postgres so past verdicts
// can be audited. Persistence is optional; the pipeline works without it.
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bylaw-check/internal/models"
)

// DB represents the database connection.
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB creates a new database connection.
func NewDB(connStr string) (*DB, error) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Initialize sets up the run-history tables and indices.
func (db *DB) Initialize(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS compliance_runs (
            id UUID PRIMARY KEY,
            created_at TIMESTAMPTZ NOT NULL,
            bylaws_path TEXT NOT NULL,
            plan_path TEXT NOT NULL,
            plot_path TEXT NOT NULL,
            approved BOOLEAN NOT NULL,
            within_plot BOOLEAN NOT NULL,
            plot_area_m2 DOUBLE PRECISION NOT NULL,
            footprint_area_m2 DOUBLE PRECISION NOT NULL,
            total_area_m2 DOUBLE PRECISION NOT NULL,
            height_m DOUBLE PRECISION NOT NULL,
            violation_count INTEGER NOT NULL
        )
    `)
	if err != nil {
		return fmt.Errorf("failed to create compliance_runs table: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS run_violations (
            run_id UUID NOT NULL REFERENCES compliance_runs(id) ON DELETE CASCADE,
            position INTEGER NOT NULL,
            check_name TEXT NOT NULL,
            severity TEXT NOT NULL,
            message TEXT NOT NULL,
            PRIMARY KEY (run_id, position)
        )
    `)
	if err != nil {
		return fmt.Errorf("failed to create run_violations table: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS compliance_runs_created_at_idx ON compliance_runs (created_at DESC);
		CREATE INDEX IF NOT EXISTS compliance_runs_approved_idx ON compliance_runs (approved);
	`)
	if err != nil {
		return fmt.Errorf("failed to create indices: %w", err)
	}

	return nil
}

// StoreRun stores a compliance run with its violations in one transaction.
func (db *DB) StoreRun(ctx context.Context, rec models.RunRecord) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", rec.ID, err)
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
        INSERT INTO compliance_runs (
            id, created_at, bylaws_path, plan_path, plot_path,
            approved, within_plot, plot_area_m2, footprint_area_m2,
            total_area_m2, height_m, violation_count
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `,
		id,
		rec.CreatedAt,
		rec.BylawsPath,
		rec.PlanPath,
		rec.PlotPath,
		rec.Verdict.Approved,
		rec.Boundary.WithinPlot,
		rec.Boundary.PlotAreaM2,
		rec.Metrics.FootprintAreaM2,
		rec.Metrics.TotalAreaM2,
		rec.Metrics.HeightM,
		len(rec.Verdict.Violations))
	if err != nil {
		return fmt.Errorf("failed to store run: %w", err)
	}

	for i, violation := range rec.Verdict.Violations {
		_, err = tx.Exec(ctx, `
            INSERT INTO run_violations (run_id, position, check_name, severity, message)
            VALUES ($1, $2, $3, $4, $5)
        `, id, i+1, violation.Check, string(violation.Severity), violation.Message)
		if err != nil {
			return fmt.Errorf("failed to store violation %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// RecentRuns lists the most recent runs, newest first.
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT id, created_at, plan_path, approved, violation_count
        FROM compliance_runs
        ORDER BY created_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	return processRunRows(rows)
}

// RunViolations returns the stored violations of a run in evaluation order.
func (db *DB) RunViolations(ctx context.Context, runID string) ([]models.Violation, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", runID, err)
	}

	rows, err := db.Pool.Query(ctx, `
        SELECT check_name, severity, message
        FROM run_violations
        WHERE run_id = $1
        ORDER BY position
    `, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	var violations []models.Violation
	for rows.Next() {
		var v models.Violation
		var severity string
		if err := rows.Scan(&v.Check, &severity, &v.Message); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		v.Severity = models.Severity(severity)
		violations = append(violations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating violations: %w", err)
	}
	return violations, nil
}

func processRunRows(rows pgx.Rows) ([]models.RunSummary, error) {
	defer rows.Close()

	var runs []models.RunSummary
	for rows.Next() {
		var summary models.RunSummary
		var id uuid.UUID
		if err := rows.Scan(&id, &summary.CreatedAt, &summary.PlanPath, &summary.Approved, &summary.ViolationCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		summary.ID = id.String()
		runs = append(runs, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// Close closes the database connection.
func (db *DB) Close() {
	db.Pool.Close()
}
