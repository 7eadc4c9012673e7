package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/roster-engine/internal/cache"
	"github.com/roster-engine/internal/collection"
	"github.com/roster-engine/internal/config"
	"github.com/roster-engine/internal/domain"
	"github.com/roster-engine/internal/store"
)

const (
	entryKeyPrefix = "entry:"
	rosterAllKey   = "roster:all"
	// rosterListsPat covers roster:all plus every derived list key
	// (roster:q:..., roster:dates:...). Entry keys live under entry:
	// and survive list invalidation.
	rosterListsPat  = "roster:*"
	rosterQueryPref = "roster"
)

func entryKey(id int64) string {
	return entryKeyPrefix + itoa64(id)
}

// EntryRepo is the cached repository for roster entries.
type EntryRepo struct {
	store   store.Store
	cache   *cache.Cache
	ttl     config.CacheConfig
	rebuild config.RebuildConfig
	logger  *slog.Logger
}

// NewEntryRepo creates a roster-entry repository over the given store
// and cache.
func NewEntryRepo(st store.Store, c *cache.Cache, ttl config.CacheConfig, rebuild config.RebuildConfig, logger *slog.Logger) *EntryRepo {
	return &EntryRepo{store: st, cache: c, ttl: ttl, rebuild: rebuild, logger: logger}
}

func entryFromRow(row *store.Row) (*domain.RosterEntry, error) {
	attrs := make(map[string]string, len(row.Attrs))
	for k, v := range row.Attrs {
		if k == "rebuild_batch" {
			continue
		}
		attrs[k] = v
	}
	e, err := domain.NewRosterEntry(attrs)
	if err != nil {
		return nil, fmt.Errorf("hydrating roster entry %d: %w", row.ID, err)
	}
	e.ID = row.ID
	e.CreatedAt = row.CreatedAt
	e.UpdatedAt = row.UpdatedAt
	e.MarkSynced()
	return e, nil
}

func entriesFromRows(rows []store.Row) ([]*domain.RosterEntry, error) {
	out := make([]*domain.RosterEntry, 0, len(rows))
	for i := range rows {
		e, err := entryFromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func naturalKeyCriteria(e *domain.RosterEntry) store.Criteria {
	return store.Criteria{
		"order_id":      itoa64(e.OrderID),
		"order_item_id": itoa64(e.OrderItemID),
		"player_index":  strconv.Itoa(e.PlayerIndex),
	}
}

// Find returns the roster entry with the given id, or nil when absent.
func (r *EntryRepo) Find(ctx context.Context, id int64) (*domain.RosterEntry, error) {
	key := entryKey(id)
	var cached domain.RosterEntry
	if r.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}
	row, err := r.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	e, err := entryFromRow(row)
	if err != nil {
		return nil, err
	}
	r.cache.Set(ctx, key, e, r.ttl.EntryTTL)
	return e, nil
}

// FindOrFail returns the roster entry or ErrNotFound.
func (r *EntryRepo) FindOrFail(ctx context.Context, id int64) (*domain.RosterEntry, error) {
	e, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("roster entry %d: %w", id, domain.ErrNotFound)
	}
	return e, nil
}

// All returns every roster entry ordered by id.
func (r *EntryRepo) All(ctx context.Context) (*collection.Collection[*domain.RosterEntry], error) {
	entries, err := cache.Remember(ctx, r.cache, rosterAllKey, r.ttl.ListTTL, func() ([]*domain.RosterEntry, error) {
		rows, err := r.store.Query(ctx, nil, store.Options{})
		if err != nil {
			return nil, err
		}
		return entriesFromRows(rows)
	})
	if err != nil {
		return nil, err
	}
	return collection.FromSlice(entries), nil
}

// Where returns the roster entries matching criteria, shaped by opts.
func (r *EntryRepo) Where(ctx context.Context, criteria store.Criteria, opts store.Options) (*collection.Collection[*domain.RosterEntry], error) {
	key := queryKey(rosterQueryPref, criteria, opts)
	entries, err := cache.Remember(ctx, r.cache, key, r.ttl.ListTTL, func() ([]*domain.RosterEntry, error) {
		rows, err := r.store.Query(ctx, criteria, opts)
		if err != nil {
			return nil, err
		}
		return entriesFromRows(rows)
	})
	if err != nil {
		return nil, err
	}
	return collection.FromSlice(entries), nil
}

// First returns the first roster entry matching criteria, or nil.
// Reads the store directly, bypassing list caches.
func (r *EntryRepo) First(ctx context.Context, criteria store.Criteria) (*domain.RosterEntry, error) {
	rows, err := r.store.Query(ctx, criteria, store.Options{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return entryFromRow(&rows[0])
}

// FirstOrFail returns the first match or ErrNotFound.
func (r *EntryRepo) FirstOrFail(ctx context.Context, criteria store.Criteria) (*domain.RosterEntry, error) {
	e, err := r.First(ctx, criteria)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("roster entry matching criteria: %w", domain.ErrNotFound)
	}
	return e, nil
}

// DateRange returns entries whose start date falls in [from, to].
func (r *EntryRepo) DateRange(ctx context.Context, from, to time.Time) (*collection.Collection[*domain.RosterEntry], error) {
	key := fmt.Sprintf("roster:dates:%s:%s",
		from.Format(domain.DateFormat), to.Format(domain.DateFormat))
	entries, err := cache.Remember(ctx, r.cache, key, r.ttl.ListTTL, func() ([]*domain.RosterEntry, error) {
		rows, err := r.store.QueryDateRange(ctx, "start_date", from, to, store.Options{OrderBy: "start_date"})
		if err != nil {
			return nil, err
		}
		return entriesFromRows(rows)
	})
	if err != nil {
		return nil, err
	}
	return collection.FromSlice(entries), nil
}

// SpecialNeeds returns entries whose participant carries medical or
// dietary notes.
func (r *EntryRepo) SpecialNeeds(ctx context.Context) (*collection.Collection[*domain.RosterEntry], error) {
	entries, err := cache.Remember(ctx, r.cache, "roster:q:special", r.ttl.ListTTL, func() ([]*domain.RosterEntry, error) {
		rows, err := r.store.QuerySpecialNeeds(ctx)
		if err != nil {
			return nil, err
		}
		return entriesFromRows(rows)
	})
	if err != nil {
		return nil, err
	}
	return collection.FromSlice(entries), nil
}

// Count returns the number of entries matching criteria.
func (r *EntryRepo) Count(ctx context.Context, criteria store.Criteria) (int, error) {
	return r.store.Count(ctx, criteria)
}

// Exists reports whether any entry matches criteria.
func (r *EntryRepo) Exists(ctx context.Context, criteria store.Criteria) (bool, error) {
	n, err := r.store.Count(ctx, criteria)
	return n > 0, err
}

// Create validates and stores a new roster entry. When a row already
// holds the (order_id, order_item_id, player_index) key, the existing
// entry comes back with created=false instead of an error.
func (r *EntryRepo) Create(ctx context.Context, attrs map[string]string) (*domain.RosterEntry, bool, error) {
	e, err := domain.NewRosterEntry(attrs)
	if err != nil {
		return nil, false, err
	}
	existing, err := r.First(ctx, naturalKeyCriteria(e))
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		r.logger.Info("roster entry already exists", "key", e.NaturalKey())
		return existing, false, nil
	}
	if err := e.Validate(); err != nil {
		return nil, false, err
	}

	id, err := r.store.Insert(ctx, e.ToMap())
	if errors.Is(err, store.ErrDuplicateKey) {
		// Lost a create race; the winner's row is the answer.
		existing, ferr := r.First(ctx, naturalKeyCriteria(e))
		if ferr != nil {
			return nil, false, ferr
		}
		if existing != nil {
			r.logger.Info("roster entry already exists", "key", e.NaturalKey())
			return existing, false, nil
		}
		return nil, false, err
	}
	if err != nil {
		return nil, false, err
	}

	created, err := r.refresh(ctx, id)
	if err != nil {
		return nil, false, err
	}
	r.invalidateLists(ctx)
	return created, true, nil
}

// CreateFromOrder converts an order-source record into roster-entry
// attributes and creates it through the duplicate-safe path.
func (r *EntryRepo) CreateFromOrder(ctx context.Context, rec domain.OrderRecord) (*domain.RosterEntry, bool, error) {
	return r.Create(ctx, rec.EntryAttrs())
}

// ApplyOrder upserts the entry for an order-source record: missing
// entries are created, existing ones receive only the fields that
// actually changed.
func (r *EntryRepo) ApplyOrder(ctx context.Context, rec domain.OrderRecord) (*domain.RosterEntry, bool, error) {
	attrs := rec.EntryAttrs()
	e, err := domain.NewRosterEntry(attrs)
	if err != nil {
		return nil, false, err
	}
	existing, err := r.First(ctx, naturalKeyCriteria(e))
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return r.Create(ctx, attrs)
	}
	changes := diffAttrs(existing.ToMap(), e.ToMap())
	if len(changes) == 0 {
		return existing, false, nil
	}
	updated, err := r.Update(ctx, existing.ID, changes)
	if err != nil {
		return nil, false, err
	}
	return updated, false, nil
}

// Update applies a partial attribute change to an existing roster
// entry, writing only the changed columns.
func (r *EntryRepo) Update(ctx context.Context, id int64, attrs map[string]string) (*domain.RosterEntry, error) {
	row, err := r.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("roster entry %d: %w", id, domain.ErrNotFound)
	}
	e, err := entryFromRow(row)
	if err != nil {
		return nil, err
	}
	if err := e.Apply(attrs); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	changes := e.Changes()
	if len(changes) == 0 {
		return e, nil
	}
	ok, err := r.store.UpdateByID(ctx, id, changes)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("roster entry %d: %w", id, domain.ErrNotFound)
	}
	updated, err := r.refresh(ctx, id)
	if err != nil {
		return nil, err
	}
	r.invalidateLists(ctx)
	return updated, nil
}

// Delete removes one roster entry. Returns false when no entry has
// the id.
func (r *EntryRepo) Delete(ctx context.Context, id int64) (bool, error) {
	ok, err := r.store.DeleteByID(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	r.cache.Forget(ctx, entryKey(id))
	r.invalidateLists(ctx)
	return true, nil
}

// CreateMany stores a batch of roster entries. A failing record is
// logged and skipped; the others still go through.
func (r *EntryRepo) CreateMany(ctx context.Context, records []map[string]string) *BulkResult {
	result := &BulkResult{}
	for i, attrs := range records {
		_, created, err := r.Create(ctx, attrs)
		switch {
		case err != nil:
			r.logger.Error("roster entry create failed in batch", "index", i, "error", err)
			result.Errors = append(result.Errors, BulkError{Index: i, Error: err.Error()})
		case created:
			result.Created++
		default:
			result.Duplicates++
		}
	}
	return result
}

// UpdateWhere applies the same attribute change to every matching
// entry inside one transaction; any failure rolls the whole batch back.
func (r *EntryRepo) UpdateWhere(ctx context.Context, criteria store.Criteria, attrs map[string]string) (int, error) {
	var touched []int64
	err := r.store.WithTx(ctx, func(tx store.Store) error {
		rows, err := tx.Query(ctx, criteria, store.Options{})
		if err != nil {
			return err
		}
		for i := range rows {
			e, err := entryFromRow(&rows[i])
			if err != nil {
				return err
			}
			if err := e.Apply(attrs); err != nil {
				return err
			}
			if err := e.Validate(); err != nil {
				return err
			}
			changes := e.Changes()
			if len(changes) == 0 {
				continue
			}
			if _, err := tx.UpdateByID(ctx, rows[i].ID, changes); err != nil {
				return err
			}
			touched = append(touched, rows[i].ID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, id := range touched {
		r.cache.Forget(ctx, entryKey(id))
	}
	r.invalidateLists(ctx)
	return len(touched), nil
}

// DeleteWhere removes every matching entry in one transaction.
func (r *EntryRepo) DeleteWhere(ctx context.Context, criteria store.Criteria) (int, error) {
	var removed []int64
	err := r.store.WithTx(ctx, func(tx store.Store) error {
		rows, err := tx.Query(ctx, criteria, store.Options{})
		if err != nil {
			return err
		}
		for i := range rows {
			removed = append(removed, rows[i].ID)
		}
		_, err = tx.DeleteByCriteria(ctx, criteria)
		return err
	})
	if err != nil {
		return 0, err
	}
	for _, id := range removed {
		r.cache.Forget(ctx, entryKey(id))
	}
	r.invalidateLists(ctx)
	return len(removed), nil
}

func (r *EntryRepo) refresh(ctx context.Context, id int64) (*domain.RosterEntry, error) {
	row, err := r.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("roster entry %d vanished after write: %w", id, domain.ErrNotFound)
	}
	e, err := entryFromRow(row)
	if err != nil {
		return nil, err
	}
	r.cache.Set(ctx, entryKey(id), e, r.ttl.EntryTTL)
	return e, nil
}

func (r *EntryRepo) invalidateLists(ctx context.Context) {
	r.cache.ForgetPattern(ctx, rosterListsPat)
}

// diffAttrs returns the entries of want whose value differs from the
// canonical form in have.
func diffAttrs(have, want map[string]string) map[string]string {
	out := make(map[string]string)
	for k, v := range want {
		if have[k] != v {
			out[k] = v
		}
	}
	return out
}
