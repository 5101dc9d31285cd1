package persistence

import (
	"context"
	"fmt"
	"regexp"

	"github.com/mes/backend/internal/domain/hierarchy"
	"github.com/mes/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxInValues bounds the size of one IN list; longer lists are split.
const MaxInValues = 500

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// GormRecordStore reads raw hierarchy rows through gorm. Tables and columns
// are addressed by name because their layout differs between schema
// generations, so results are generic rows instead of mapped models.
type GormRecordStore struct {
	db *gorm.DB
}

// NewGormRecordStore creates a record store over db
func NewGormRecordStore(db *gorm.DB) *GormRecordStore {
	return &GormRecordStore{db: db}
}

var _ hierarchy.RecordStore = (*GormRecordStore)(nil)

// Columns lists the columns of table in storage order.
func (s *GormRecordStore) Columns(ctx context.Context, table string) ([]string, error) {
	if err := checkIdentifier("table", table); err != nil {
		return nil, err
	}

	rows, err := s.db.WithContext(ctx).Table(table).Limit(0).Rows()
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	return columns, nil
}

// FindOne returns the first row of table where column equals value.
func (s *GormRecordStore) FindOne(ctx context.Context, table, column string, value any) (hierarchy.Row, bool, error) {
	if err := checkIdentifiers(table, column); err != nil {
		return nil, false, err
	}

	var results []map[string]any
	err := s.db.WithContext(ctx).
		Table(table).
		Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).
		Limit(1).
		Find(&results).Error
	if err != nil {
		return nil, false, fmt.Errorf("find %s by %s: %w", table, column, err)
	}
	if len(results) == 0 {
		return nil, false, nil
	}
	return hierarchy.Row(results[0]), true, nil
}

// FindWhere returns every row of table whose column is one of values.
func (s *GormRecordStore) FindWhere(ctx context.Context, table, column string, values []any) ([]hierarchy.Row, error) {
	if err := checkIdentifiers(table, column); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}

	var out []hierarchy.Row
	for start := 0; start < len(values); start += MaxInValues {
		end := min(start+MaxInValues, len(values))

		var results []map[string]any
		err := s.db.WithContext(ctx).
			Table(table).
			Where(clause.IN{Column: clause.Column{Name: column}, Values: values[start:end]}).
			Find(&results).Error
		if err != nil {
			return nil, fmt.Errorf("find %s where %s in (%d values): %w", table, column, end-start, err)
		}
		for _, r := range results {
			out = append(out, hierarchy.Row(r))
		}
	}
	return out, nil
}

func checkIdentifiers(table, column string) error {
	if err := checkIdentifier("table", table); err != nil {
		return err
	}
	return checkIdentifier("column", column)
}

func checkIdentifier(kind, name string) error {
	if !identifierPattern.MatchString(name) {
		return shared.InvalidInput(fmt.Sprintf("invalid %s name %q", kind, name))
	}
	return nil
}
