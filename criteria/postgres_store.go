package criteria

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore implements Store backed by the custom_criteria table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed Store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectColumns = `
	SELECT id, project_id, ruleset_id, name, description, error_code, severity,
	       is_active, logic_type, rule_config, error_message_template, priority,
	       created_at, updated_at
	FROM custom_criteria`

// uniqueViolation is the SQLSTATE for a duplicate primary key.
const uniqueViolation = "23505"

// Add inserts a new criterion.
func (s *PostgresStore) Add(c *Criterion) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	config, err := encodeConfig(c)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO custom_criteria (id, project_id, ruleset_id, name, description,
			error_code, severity, is_active, logic_type, rule_config,
			error_message_template, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, c.ID, nullString(c.ProjectID), nullString(c.RulesetID), c.Name, c.Description,
		c.ErrorCode, string(c.Severity), c.IsActive, string(c.LogicType), string(config),
		c.ErrorMessageTemplate, c.Priority, c.CreatedAt, c.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, c.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert criterion: %w", err)
	}
	return nil
}

// Get retrieves a criterion by ID.
func (s *PostgresStore) Get(id string) (*Criterion, error) {
	c, err := scanCriterion(s.db.QueryRow(selectColumns+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get criterion: %w", err)
	}
	return c, nil
}

// List returns every criterion ordered by creation time.
func (s *PostgresStore) List() ([]*Criterion, error) {
	return s.query(selectColumns + ` ORDER BY created_at ASC, id ASC`)
}

// ListActive returns active criteria whose project and ruleset are either
// NULL or equal to the given ids.
func (s *PostgresStore) ListActive(projectID, rulesetID string) ([]*Criterion, error) {
	return s.query(selectColumns+`
		WHERE is_active = true
		  AND (project_id IS NULL OR project_id = $1)
		  AND (ruleset_id IS NULL OR ruleset_id = $2)
		ORDER BY created_at ASC, id ASC`, projectID, rulesetID)
}

func (s *PostgresStore) query(q string, args ...any) ([]*Criterion, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list criteria: %w", err)
	}
	defer rows.Close()

	var out []*Criterion
	for rows.Next() {
		c, err := scanCriterion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan criterion: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating criteria: %w", err)
	}
	return out, nil
}

// Update modifies an existing criterion, preserving CreatedAt.
func (s *PostgresStore) Update(c *Criterion) error {
	config, err := encodeConfig(c)
	if err != nil {
		return err
	}
	c.UpdatedAt = time.Now().UTC()

	err = s.db.QueryRow(`
		UPDATE custom_criteria
		SET project_id = $1, ruleset_id = $2, name = $3, description = $4,
		    error_code = $5, severity = $6, is_active = $7, logic_type = $8,
		    rule_config = $9, error_message_template = $10, priority = $11,
		    updated_at = $12
		WHERE id = $13
		RETURNING created_at
	`, nullString(c.ProjectID), nullString(c.RulesetID), c.Name, c.Description,
		c.ErrorCode, string(c.Severity), c.IsActive, string(c.LogicType), string(config),
		c.ErrorMessageTemplate, c.Priority, c.UpdatedAt, c.ID).Scan(&c.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, c.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update criterion: %w", err)
	}
	return nil
}

// Delete removes a criterion.
func (s *PostgresStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM custom_criteria WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete criterion: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCriterion(row rowScanner) (*Criterion, error) {
	var (
		c         Criterion
		projectID sql.NullString
		rulesetID sql.NullString
		severity  string
		logicType string
		config    []byte
	)
	err := row.Scan(&c.ID, &projectID, &rulesetID, &c.Name, &c.Description,
		&c.ErrorCode, &severity, &c.IsActive, &logicType, &config,
		&c.ErrorMessageTemplate, &c.Priority, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.ProjectID = stringPtr(projectID)
	c.RulesetID = stringPtr(rulesetID)
	c.Severity = Severity(severity)
	c.LogicType = LogicType(logicType)
	c.RuleConfig, err = DecodeRuleConfig(c.LogicType, config)
	if err != nil {
		return nil, fmt.Errorf("criterion %s: %w", c.ID, err)
	}
	return &c, nil
}

func encodeConfig(c *Criterion) ([]byte, error) {
	if c.RuleConfig == nil {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(c.RuleConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rule_config: %w", err)
	}
	return raw, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
