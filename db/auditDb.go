package db

import (
	"database/sql"
	"fmt"

	"finplan/models"

	_ "github.com/lib/pq"
)

// AuditRepository records completed planning requests. Write-only at request
// time: nothing is ever read back while serving traffic.
type AuditRepository interface {
	RecordPlan(audit *models.PlanAudit) error
	Close() error
}

type PostgresAuditRepository struct {
	db *sql.DB
}

func NewPostgresAuditRepository(databaseURL string) (*PostgresAuditRepository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &PostgresAuditRepository{db: db}
	if err := repo.ensureSchema(); err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *PostgresAuditRepository) ensureSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS plan_audit (
			id SERIAL PRIMARY KEY,
			route TEXT NOT NULL,
			model TEXT NOT NULL,
			rounds INT NOT NULL,
			duration_ms BIGINT NOT NULL,
			answer_chars INT NOT NULL,
			createdAt TIMESTAMP NOT NULL DEFAULT NOW()
		)`

	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to ensure plan_audit table: %w", err)
	}
	return nil
}

func (r *PostgresAuditRepository) RecordPlan(audit *models.PlanAudit) error {
	query := `
		INSERT INTO plan_audit (route, model, rounds, duration_ms, answer_chars)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, createdAt`

	row := r.db.QueryRow(query, audit.Route, audit.Model, audit.Rounds, audit.DurationMs, audit.AnswerChars)

	if err := row.Scan(&audit.ID, &audit.CreatedAt); err != nil {
		return fmt.Errorf("failed to record plan audit: %w", err)
	}

	return nil
}

func (r *PostgresAuditRepository) Close() error {
	return r.db.Close()
}
