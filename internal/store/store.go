// Package store defines the backing-store contract the repositories are
// written against. Implementations exist for PostgreSQL (production) and
// an in-memory table (tests, local development). Rows travel as flat
// attribute maps in the entities' canonical wire form.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store errors
var (
	// ErrDuplicateKey signals a natural-key uniqueness violation on insert.
	ErrDuplicateKey = errors.New("duplicate natural key")
)

// StoreError wraps a low-level driver failure so callers can match the
// category while keeping the original detail for diagnostics.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// WrapErr wraps err in a StoreError unless it is nil or already a
// recognized store sentinel.
func WrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDuplicateKey) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// Row is one stored record: the synthetic key plus the attribute map.
type Row struct {
	ID        int64
	Attrs     map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Criteria selects rows by attribute. A string value means equality; a
// []string value means IN; a NotEq value means inequality.
type Criteria map[string]any

// NotEq excludes rows whose attribute equals the wrapped value.
type NotEq string

// Matches reports whether the attribute map satisfies the criteria.
// Shared by the memory store and by bulk operations that re-check rows.
func (c Criteria) Matches(attrs map[string]string) bool {
	for field, want := range c {
		got := attrs[field]
		switch w := want.(type) {
		case string:
			if got != w {
				return false
			}
		case []string:
			found := false
			for _, v := range w {
				if got == v {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case NotEq:
			if got == string(w) {
				return false
			}
		default:
			if got != fmt.Sprint(w) {
				return false
			}
		}
	}
	return true
}

// Options shapes a query: ordering and pagination.
type Options struct {
	OrderBy    string
	Descending bool
	Limit      int
	Offset     int
}

// Store is the per-table backing-store contract.
type Store interface {
	// FindByID returns the row with the synthetic key, or nil when absent.
	FindByID(ctx context.Context, id int64) (*Row, error)

	// Query returns the rows matching criteria, shaped by opts.
	Query(ctx context.Context, criteria Criteria, opts Options) ([]Row, error)

	// QueryDateRange returns rows whose date attribute falls in [from, to].
	QueryDateRange(ctx context.Context, field string, from, to time.Time, opts Options) ([]Row, error)

	// QuerySpecialNeeds returns rows carrying medical or dietary notes.
	QuerySpecialNeeds(ctx context.Context) ([]Row, error)

	// Count returns the number of rows matching criteria.
	Count(ctx context.Context, criteria Criteria) (int, error)

	// Insert stores a new row and returns its synthetic key. Returns
	// ErrDuplicateKey when the table's natural key is already taken.
	Insert(ctx context.Context, attrs map[string]string) (int64, error)

	// UpdateByID writes only the changed attributes; false when no row
	// has the given key.
	UpdateByID(ctx context.Context, id int64, changes map[string]string) (bool, error)

	// DeleteByID removes one row; false when absent.
	DeleteByID(ctx context.Context, id int64) (bool, error)

	// DeleteByCriteria removes matching rows and returns the count.
	DeleteByCriteria(ctx context.Context, criteria Criteria) (int, error)

	// WithTx runs fn against a transactional view of the store. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// ColumnKind is the declared type of a table column, driving parameter
// conversion from the wire form.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindInt
	KindDate
	KindBool
)

// Table describes one stored entity type: its columns and the natural
// key enforced on insert.
type Table struct {
	Name       string
	Columns    map[string]ColumnKind
	NaturalKey []string
}

// NaturalKeyOf renders the natural-key tuple of an attribute map, or
// "" when the table declares none.
func (t Table) NaturalKeyOf(attrs map[string]string) string {
	if len(t.NaturalKey) == 0 {
		return ""
	}
	key := ""
	for i, field := range t.NaturalKey {
		if i > 0 {
			key += ":"
		}
		key += attrs[field]
	}
	return key
}

// Players is the table descriptor for player rows.
var Players = Table{
	Name: "players",
	Columns: map[string]ColumnKind{
		"customer_id":        KindInt,
		"player_index":       KindInt,
		"first_name":         KindText,
		"last_name":          KindText,
		"date_of_birth":      KindDate,
		"gender":             KindText,
		"medical_conditions": KindText,
		"dietary_needs":      KindText,
		"emergency_contact":  KindText,
		"emergency_phone":    KindText,
		"national_id":        KindText,
		"event_count":        KindInt,
	},
	NaturalKey: []string{"customer_id", "player_index"},
}

// RosterEntries is the table descriptor for roster entry rows.
var RosterEntries = Table{
	Name: "roster_entries",
	Columns: map[string]ColumnKind{
		"order_id":           KindInt,
		"order_item_id":      KindInt,
		"product_id":         KindInt,
		"customer_id":        KindInt,
		"player_index":       KindInt,
		"first_name":         KindText,
		"last_name":          KindText,
		"date_of_birth":      KindDate,
		"gender":             KindText,
		"medical_conditions": KindText,
		"dietary_needs":      KindText,
		"activity_type":      KindText,
		"venue":              KindText,
		"age_group":          KindText,
		"start_date":         KindDate,
		"end_date":           KindDate,
		"booking_type":       KindText,
		"selected_days":      KindText,
		"season":             KindText,
		"region":             KindText,
		"parent_email":       KindText,
		"parent_phone":       KindText,
		"emergency_contact":  KindText,
		"emergency_phone":    KindText,
		"order_status":       KindText,
		"discount_applied":   KindBool,
		"rebuild_batch":      KindText,
	},
	NaturalKey: []string{"order_id", "order_item_id", "player_index"},
}
