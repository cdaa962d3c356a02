// Package projects keeps one criteria engine per project, bound to the
// project's date context.
package projects

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/liamcoop/precheck/criteria"
)

// ErrNotFound is returned for an unknown project id.
var ErrNotFound = errors.New("project not found")

// Project is a funding project whose dates bound the criteria date references.
type Project struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Context returns the criteria context for the project.
func (p Project) Context() criteria.ProjectContext {
	return criteria.ProjectContext{StartDate: p.StartDate, EndDate: p.EndDate}
}

type projectEngine struct {
	project Project
	engine  *criteria.Engine
}

// Manager holds the engines for all known projects. A nil db keeps projects
// in memory only.
type Manager struct {
	engines map[string]*projectEngine
	db      *sql.DB
	opts    []criteria.Option
	now     func() time.Time
	mu      sync.RWMutex
}

// NewManager creates a manager. The options are applied to every engine it
// builds.
func NewManager(db *sql.DB, opts ...criteria.Option) *Manager {
	return &Manager{
		engines: make(map[string]*projectEngine),
		db:      db,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// LoadAll loads every project from the database and builds its engine.
func (m *Manager) LoadAll() error {
	if m.db == nil {
		return nil
	}
	rows, err := m.db.Query(`
		SELECT id, name, start_date, end_date, created_at, updated_at
		FROM projects
	`)
	if err != nil {
		return fmt.Errorf("failed to fetch projects: %w", err)
	}
	defer rows.Close()

	loaded := make(map[string]*projectEngine)
	for rows.Next() {
		var (
			p          Project
			start, end sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.Name, &start, &end, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan project row: %w", err)
		}
		p.StartDate = timePtr(start)
		p.EndDate = timePtr(end)
		loaded[p.ID] = m.build(p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating project rows: %w", err)
	}

	m.mu.Lock()
	for id, pe := range loaded {
		m.engines[id] = pe
	}
	m.mu.Unlock()
	return nil
}

// Put creates or replaces a project. The new engine is swapped in atomically;
// callers holding the old engine finish with the old dates.
func (m *Manager) Put(p Project) (Project, error) {
	if err := ValidateProject(p); err != nil {
		return Project{}, err
	}
	p.StartDate = dateOnly(p.StartDate)
	p.EndDate = dateOnly(p.EndDate)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	p.CreatedAt = now
	if existing, ok := m.engines[p.ID]; ok {
		p.CreatedAt = existing.project.CreatedAt
	}
	p.UpdatedAt = now

	if m.db != nil {
		err := m.db.QueryRow(`
			INSERT INTO projects (id, name, start_date, end_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, start_date = EXCLUDED.start_date,
			    end_date = EXCLUDED.end_date, updated_at = EXCLUDED.updated_at
			RETURNING created_at
		`, p.ID, p.Name, nullTime(p.StartDate), nullTime(p.EndDate), p.CreatedAt, p.UpdatedAt).Scan(&p.CreatedAt)
		if err != nil {
			return Project{}, fmt.Errorf("failed to save project %s: %w", p.ID, err)
		}
	}

	m.engines[p.ID] = m.build(p)
	return p, nil
}

// Get returns a project by id.
func (m *Manager) Get(id string) (Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pe, ok := m.engines[id]
	if !ok {
		return Project{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return pe.project, nil
}

// Engine returns the criteria engine of a project.
func (m *Manager) Engine(id string) (*criteria.Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pe, ok := m.engines[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return pe.engine, nil
}

// List returns all projects ordered by id.
func (m *Manager) List() []Project {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Project, 0, len(m.engines))
	for _, pe := range m.engines {
		out = append(out, pe.project)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Delete removes a project and its engine.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.engines[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if m.db != nil {
		if _, err := m.db.Exec(`DELETE FROM projects WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete project %s: %w", id, err)
		}
	}
	delete(m.engines, id)
	return nil
}

func (m *Manager) build(p Project) *projectEngine {
	return &projectEngine{
		project: p,
		engine:  criteria.NewEngine(p.Context(), m.opts...),
	}
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	return dateOnly(&nt.Time)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
