// Package hierarchytest provides an in-memory RecordStore for tests.
package hierarchytest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mes/backend/internal/domain/hierarchy"
)

// MemoryStore is a hierarchy.RecordStore over in-memory tables.
// Equality compares values after formatting them as text, so a stored int 5
// matches the string "5" the way a loosely typed database column would.
type MemoryStore struct {
	mu      sync.RWMutex
	columns map[string][]string
	rows    map[string][]hierarchy.Row

	// Err, when set, is returned by every call
	Err error
	// Queries counts FindOne and FindWhere calls
	Queries atomic.Int64
	// ColumnReads counts Columns calls
	ColumnReads atomic.Int64
	// OnQuery runs before every FindOne and FindWhere
	OnQuery func(table string)
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		columns: make(map[string][]string),
		rows:    make(map[string][]hierarchy.Row),
	}
}

// CreateTable declares a table and its columns
func (s *MemoryStore) CreateTable(table string, columns ...string) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns[table] = append([]string(nil), columns...)
	if _, ok := s.rows[table]; !ok {
		s.rows[table] = nil
	}
	return s
}

// Insert appends a row to table
func (s *MemoryStore) Insert(table string, row hierarchy.Row) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[table] = append(s.rows[table], row)
	return s
}

// Columns implements hierarchy.RecordStore
func (s *MemoryStore) Columns(_ context.Context, table string) ([]string, error) {
	s.ColumnReads.Add(1)
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.columns[table]...), nil
}

// FindOne implements hierarchy.RecordStore
func (s *MemoryStore) FindOne(_ context.Context, table, column string, value any) (hierarchy.Row, bool, error) {
	s.query(table)
	if s.Err != nil {
		return nil, false, s.Err
	}
	want := hierarchy.Row{"v": value}
	target, _ := want.Value("v")

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.rows[table] {
		if v, ok := row.Value(column); ok && v == target {
			return row, true, nil
		}
	}
	return nil, false, nil
}

// FindWhere implements hierarchy.RecordStore
func (s *MemoryStore) FindWhere(_ context.Context, table, column string, values []any) ([]hierarchy.Row, error) {
	s.query(table)
	if s.Err != nil {
		return nil, s.Err
	}
	targets := make(map[string]struct{}, len(values))
	for _, value := range values {
		if v, ok := (hierarchy.Row{"v": value}).Value("v"); ok {
			targets[v] = struct{}{}
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []hierarchy.Row
	for _, row := range s.rows[table] {
		if v, ok := row.Value(column); ok {
			if _, hit := targets[v]; hit {
				out = append(out, row)
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) query(table string) {
	s.Queries.Add(1)
	if s.OnQuery != nil {
		s.OnQuery(table)
	}
}
