// Package hierarchy locates records in the Task, Palm, Finger, Motor/Servo and
// inspection collections when the key field names vary between tables and
// schema generations.
package hierarchy

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Row is one raw record keyed by column name
type Row map[string]any

// Value returns the value stored under field formatted as text.
// A missing field, a nil value or a blank string reports false.
func (r Row) Value(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}
	s := formatValue(v)
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// identity renders every column of r, so two copies of the same record
// compare equal whichever query loaded them.
func (r Row) identity() string {
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(r)) {
		b.WriteString(k)
		b.WriteByte('=')
		if r[k] != nil {
			b.WriteString(formatValue(r[k]))
		}
		b.WriteByte(0)
	}
	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case *string:
		if val == nil {
			return ""
		}
		return *val
	case []byte:
		return string(val)
	case int:
		return strconv.Itoa(val)
	case int8:
		return strconv.FormatInt(int64(val), 10)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint8:
		return strconv.FormatUint(uint64(val), 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case uuid.UUID:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// RecordStore is the read-only storage collaborator the locator queries.
// Implementations return storage errors unchanged and report a miss as
// found == false with a nil error.
type RecordStore interface {
	// Columns lists the column names of table
	Columns(ctx context.Context, table string) ([]string, error)
	// FindOne returns the first row of table where column equals value
	FindOne(ctx context.Context, table, column string, value any) (Row, bool, error)
	// FindWhere returns all rows of table where column is one of values
	FindWhere(ctx context.Context, table, column string, values []any) ([]Row, error)
}
