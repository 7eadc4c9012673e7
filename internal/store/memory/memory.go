// Package memory provides a mutex-guarded in-memory Store used by tests
// and local development. It enforces the same natural-key uniqueness the
// PostgreSQL store does, and gives WithTx snapshot-rollback semantics.
package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/roster-engine/internal/store"
)

// Memory is an in-memory implementation of store.Store for one table.
type Memory struct {
	table store.Table

	mu         sync.Mutex
	rows       map[int64]store.Row
	naturalIdx map[string]int64
	nextID     int64
}

// New creates an empty in-memory store for the given table.
func New(table store.Table) *Memory {
	return &Memory{
		table:      table,
		rows:       make(map[int64]store.Row),
		naturalIdx: make(map[string]int64),
		nextID:     1,
	}
}

func copyAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func (m *Memory) FindByID(ctx context.Context, id int64) (*store.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findByID(id)
}

func (m *Memory) findByID(id int64) (*store.Row, error) {
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	out := row
	out.Attrs = copyAttrs(row.Attrs)
	return &out, nil
}

func (m *Memory) Query(ctx context.Context, criteria store.Criteria, opts store.Options) ([]store.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.query(criteria, opts)
}

func (m *Memory) query(criteria store.Criteria, opts store.Options) ([]store.Row, error) {
	matched := m.matching(func(attrs map[string]string) bool {
		return criteria.Matches(attrs)
	})
	m.order(matched, opts)
	return paginate(matched, opts), nil
}

// matching returns copies of all rows satisfying pred, in insertion order.
func (m *Memory) matching(pred func(map[string]string) bool) []store.Row {
	ids := make([]int64, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []store.Row
	for _, id := range ids {
		row := m.rows[id]
		if pred(row.Attrs) {
			cp := row
			cp.Attrs = copyAttrs(row.Attrs)
			out = append(out, cp)
		}
	}
	return out
}

func (m *Memory) order(rows []store.Row, opts store.Options) {
	if opts.OrderBy == "" {
		return
	}
	numeric := m.table.Columns[opts.OrderBy] == store.KindInt
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Attrs[opts.OrderBy], rows[j].Attrs[opts.OrderBy]
		var cmp int
		if numeric {
			na, _ := strconv.ParseInt(a, 10, 64)
			nb, _ := strconv.ParseInt(b, 10, 64)
			switch {
			case na < nb:
				cmp = -1
			case na > nb:
				cmp = 1
			}
		} else {
			cmp = strings.Compare(a, b)
		}
		if opts.Descending {
			return cmp > 0
		}
		return cmp < 0
	})
}

func paginate(rows []store.Row, opts store.Options) []store.Row {
	if opts.Offset > 0 {
		if opts.Offset >= len(rows) {
			return nil
		}
		rows = rows[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(rows) {
		rows = rows[:opts.Limit]
	}
	return rows
}

func (m *Memory) QueryDateRange(ctx context.Context, field string, from, to time.Time, opts store.Options) ([]store.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fromStr := from.Format("2006-01-02")
	toStr := to.Format("2006-01-02")
	matched := m.matching(func(attrs map[string]string) bool {
		v := attrs[field]
		return v != "" && v >= fromStr && v <= toStr
	})
	m.order(matched, opts)
	return paginate(matched, opts), nil
}

func (m *Memory) QuerySpecialNeeds(ctx context.Context) ([]store.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.matching(func(attrs map[string]string) bool {
		return attrs["medical_conditions"] != "" || attrs["dietary_needs"] != ""
	}), nil
}

func (m *Memory) Count(ctx context.Context, criteria store.Criteria) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count(criteria)
}

func (m *Memory) count(criteria store.Criteria) (int, error) {
	n := 0
	for _, row := range m.rows {
		if criteria.Matches(row.Attrs) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Insert(ctx context.Context, attrs map[string]string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(attrs)
}

func (m *Memory) insert(attrs map[string]string) (int64, error) {
	key := m.table.NaturalKeyOf(attrs)
	if key != "" {
		if _, taken := m.naturalIdx[key]; taken {
			return 0, store.ErrDuplicateKey
		}
	}

	id := m.nextID
	m.nextID++
	now := time.Now()
	m.rows[id] = store.Row{
		ID:        id,
		Attrs:     copyAttrs(attrs),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if key != "" {
		m.naturalIdx[key] = id
	}
	return id, nil
}

func (m *Memory) UpdateByID(ctx context.Context, id int64, changes map[string]string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateByID(id, changes)
}

func (m *Memory) updateByID(id int64, changes map[string]string) (bool, error) {
	row, ok := m.rows[id]
	if !ok {
		return false, nil
	}

	oldKey := m.table.NaturalKeyOf(row.Attrs)
	attrs := copyAttrs(row.Attrs)
	for k, v := range changes {
		attrs[k] = v
	}
	newKey := m.table.NaturalKeyOf(attrs)
	if newKey != oldKey {
		if _, taken := m.naturalIdx[newKey]; taken {
			return false, store.ErrDuplicateKey
		}
		delete(m.naturalIdx, oldKey)
		m.naturalIdx[newKey] = id
	}

	row.Attrs = attrs
	row.UpdatedAt = time.Now()
	m.rows[id] = row
	return true, nil
}

func (m *Memory) DeleteByID(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteByID(id)
}

func (m *Memory) deleteByID(id int64) (bool, error) {
	row, ok := m.rows[id]
	if !ok {
		return false, nil
	}
	delete(m.naturalIdx, m.table.NaturalKeyOf(row.Attrs))
	delete(m.rows, id)
	return true, nil
}

func (m *Memory) DeleteByCriteria(ctx context.Context, criteria store.Criteria) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteByCriteria(criteria)
}

func (m *Memory) deleteByCriteria(criteria store.Criteria) (int, error) {
	n := 0
	for id, row := range m.rows {
		if criteria.Matches(row.Attrs) {
			delete(m.naturalIdx, m.table.NaturalKeyOf(row.Attrs))
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

// WithTx runs fn against a transactional view. The whole store is
// snapshotted up front and restored when fn fails, giving the same
// all-or-nothing behavior as a database transaction.
func (m *Memory) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapRows := make(map[int64]store.Row, len(m.rows))
	for id, row := range m.rows {
		cp := row
		cp.Attrs = copyAttrs(row.Attrs)
		snapRows[id] = cp
	}
	snapNatural := make(map[string]int64, len(m.naturalIdx))
	for k, v := range m.naturalIdx {
		snapNatural[k] = v
	}
	snapNext := m.nextID

	if err := fn(&txView{m: m}); err != nil {
		m.rows = snapRows
		m.naturalIdx = snapNatural
		m.nextID = snapNext
		return err
	}
	return nil
}

// txView exposes the store's unlocked core while WithTx holds the lock.
type txView struct {
	m *Memory
}

func (t *txView) FindByID(ctx context.Context, id int64) (*store.Row, error) {
	return t.m.findByID(id)
}

func (t *txView) Query(ctx context.Context, criteria store.Criteria, opts store.Options) ([]store.Row, error) {
	return t.m.query(criteria, opts)
}

func (t *txView) QueryDateRange(ctx context.Context, field string, from, to time.Time, opts store.Options) ([]store.Row, error) {
	fromStr := from.Format("2006-01-02")
	toStr := to.Format("2006-01-02")
	matched := t.m.matching(func(attrs map[string]string) bool {
		v := attrs[field]
		return v != "" && v >= fromStr && v <= toStr
	})
	t.m.order(matched, opts)
	return paginate(matched, opts), nil
}

func (t *txView) QuerySpecialNeeds(ctx context.Context) ([]store.Row, error) {
	return t.m.matching(func(attrs map[string]string) bool {
		return attrs["medical_conditions"] != "" || attrs["dietary_needs"] != ""
	}), nil
}

func (t *txView) Count(ctx context.Context, criteria store.Criteria) (int, error) {
	return t.m.count(criteria)
}

func (t *txView) Insert(ctx context.Context, attrs map[string]string) (int64, error) {
	return t.m.insert(attrs)
}

func (t *txView) UpdateByID(ctx context.Context, id int64, changes map[string]string) (bool, error) {
	return t.m.updateByID(id, changes)
}

func (t *txView) DeleteByID(ctx context.Context, id int64) (bool, error) {
	return t.m.deleteByID(id)
}

func (t *txView) DeleteByCriteria(ctx context.Context, criteria store.Criteria) (int, error) {
	return t.m.deleteByCriteria(criteria)
}

// WithTx inside a transaction joins the enclosing one.
func (t *txView) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}
