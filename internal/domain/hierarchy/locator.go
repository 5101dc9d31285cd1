package hierarchy

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// KeyType is the storage type of a key field
type KeyType int

// Key types
const (
	KeyString KeyType = iota
	KeyInt
	KeyInt64
	KeyUUID
)

// String returns the key type name
func (k KeyType) String() string {
	switch k {
	case KeyInt:
		return "int"
	case KeyInt64:
		return "int64"
	case KeyUUID:
		return "uuid"
	default:
		return "string"
	}
}

// ParseKey converts value into the Go type matching k
func (k KeyType) ParseKey(value string) (any, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, false
	}
	switch k {
	case KeyInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, false
		}
		return n, true
	case KeyInt64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, false
		}
		return n, true
	case KeyUUID:
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, false
		}
		return id, true
	default:
		return value, true
	}
}

// ResolveFields maps candidate field names onto the actual columns.
// For each candidate an exact match wins, otherwise the first column equal
// under case folding is used. The result keeps candidate order and holds no
// duplicates.
func ResolveFields(columns, candidates []string) []string {
	exact := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		exact[c] = struct{}{}
	}

	resolved := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	add := func(field string) {
		if _, dup := seen[field]; dup {
			return
		}
		seen[field] = struct{}{}
		resolved = append(resolved, field)
	}

	for _, candidate := range candidates {
		if _, ok := exact[candidate]; ok {
			add(candidate)
			continue
		}
		for _, c := range columns {
			if strings.EqualFold(c, candidate) {
				add(c)
				break
			}
		}
	}
	return resolved
}

// Locator finds records by trying several candidate key fields. Column
// lists and resolved field lists are cached per table after the first
// schema read; a Locator is safe for concurrent use.
type Locator struct {
	store RecordStore

	mu       sync.RWMutex
	columns  map[string][]string
	resolved map[string][]string
}

// NewLocator creates a locator over store
func NewLocator(store RecordStore) *Locator {
	return &Locator{
		store:    store,
		columns:  make(map[string][]string),
		resolved: make(map[string][]string),
	}
}

// Fields returns the resolved fields of collection for candidates
func (l *Locator) Fields(ctx context.Context, collection Collection, candidates []string) ([]string, error) {
	key := collection.Table + "\x00" + strings.Join(candidates, "\x00")

	l.mu.RLock()
	fields, ok := l.resolved[key]
	l.mu.RUnlock()
	if ok {
		return fields, nil
	}

	columns, err := l.tableColumns(ctx, collection.Table)
	if err != nil {
		return nil, err
	}
	fields = ResolveFields(columns, candidates)

	l.mu.Lock()
	l.resolved[key] = fields
	l.mu.Unlock()
	return fields, nil
}

func (l *Locator) tableColumns(ctx context.Context, table string) ([]string, error) {
	l.mu.RLock()
	columns, ok := l.columns[table]
	l.mu.RUnlock()
	if ok {
		return columns, nil
	}

	columns, err := l.store.Columns(ctx, table)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.columns[table] = columns
	l.mu.Unlock()
	return columns, nil
}

// FindByCandidateKeys finds the first record of collection whose key equals
// value. Each resolved field is tried with the value verbatim, then upper
// cased when that differs. No match is reported as found == false.
func (l *Locator) FindByCandidateKeys(ctx context.Context, collection Collection, candidates []string, value string) (Row, bool, error) {
	if strings.TrimSpace(value) == "" {
		return nil, false, nil
	}
	fields, err := l.Fields(ctx, collection, candidates)
	if err != nil {
		return nil, false, err
	}

	attempts := []string{value}
	if upper := strings.ToUpper(value); upper != value {
		attempts = append(attempts, upper)
	}

	for _, field := range fields {
		for _, v := range attempts {
			row, found, err := l.store.FindOne(ctx, collection.Table, field, v)
			if err != nil {
				return nil, false, err
			}
			if found {
				return row, true, nil
			}
		}
	}
	return nil, false, nil
}

// FindByTypedKey is FindByCandidateKeys for non-string keys. A value that
// does not parse as keyType is a miss rather than an error.
func (l *Locator) FindByTypedKey(ctx context.Context, collection Collection, candidates []string, value string, keyType KeyType) (Row, bool, error) {
	if keyType == KeyString {
		return l.FindByCandidateKeys(ctx, collection, candidates, value)
	}
	key, ok := keyType.ParseKey(value)
	if !ok {
		return nil, false, nil
	}
	fields, err := l.Fields(ctx, collection, candidates)
	if err != nil {
		return nil, false, err
	}
	for _, field := range fields {
		row, found, err := l.store.FindOne(ctx, collection.Table, field, key)
		if err != nil {
			return nil, false, err
		}
		if found {
			return row, true, nil
		}
	}
	return nil, false, nil
}

// FindAllByCandidateKeys returns every record of collection whose key is one
// of values under any resolved field. Values are matched verbatim first; a
// value that matched no record is then retried upper cased. A record matched
// through several fields is returned once, in first-match order.
func (l *Locator) FindAllByCandidateKeys(ctx context.Context, collection Collection, candidates []string, values []string) ([]Row, error) {
	originals := make([]string, 0, len(values))
	queued := make(map[string]struct{}, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if _, dup := queued[v]; dup {
			continue
		}
		queued[v] = struct{}{}
		originals = append(originals, v)
	}
	if len(originals) == 0 {
		return nil, nil
	}
	fields, err := l.Fields(ctx, collection, candidates)
	if err != nil {
		return nil, err
	}

	var out []Row
	seen := make(map[string]struct{})
	matched := make(map[string]struct{})
	query := func(keys []string) error {
		args := make([]any, len(keys))
		for i, k := range keys {
			args[i] = k
		}
		for _, field := range fields {
			rows, err := l.store.FindWhere(ctx, collection.Table, field, args)
			if err != nil {
				return err
			}
			for _, row := range rows {
				if v, ok := row.Value(field); ok {
					matched[v] = struct{}{}
				}
				id := row.identity()
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				out = append(out, row)
			}
		}
		return nil
	}

	if err := query(originals); err != nil {
		return nil, err
	}

	var retry []string
	for _, v := range originals {
		if _, hit := matched[v]; hit {
			continue
		}
		upper := strings.ToUpper(v)
		if _, dup := queued[upper]; dup {
			continue
		}
		queued[upper] = struct{}{}
		retry = append(retry, upper)
	}
	if len(retry) > 0 {
		if err := query(retry); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Field reads a logical field from row. The first resolved field holding a
// non-blank value wins.
func (l *Locator) Field(ctx context.Context, row Row, collection Collection, candidates []string) (string, bool, error) {
	if row == nil {
		return "", false, nil
	}
	fields, err := l.Fields(ctx, collection, candidates)
	if err != nil {
		return "", false, err
	}
	for _, field := range fields {
		if v, ok := row.Value(field); ok {
			return v, true, nil
		}
	}
	return "", false, nil
}
