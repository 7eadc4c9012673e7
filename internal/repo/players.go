package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/roster-engine/internal/cache"
	"github.com/roster-engine/internal/collection"
	"github.com/roster-engine/internal/config"
	"github.com/roster-engine/internal/domain"
	"github.com/roster-engine/internal/store"
)

const (
	playerKeyPrefix = "player:"
	playersAllKey   = "players:all"
	// playersListsPat covers players:all plus every players:q: key.
	// Entity keys live under player: and survive list invalidation.
	playersListsPat  = "players:*"
	playersQueryPref = "players"
)

func playerKey(id int64) string {
	return playerKeyPrefix + itoa64(id)
}

// PlayerRepo is the cached repository for player profiles.
type PlayerRepo struct {
	store  store.Store
	cache  *cache.Cache
	ttl    config.CacheConfig
	logger *slog.Logger
}

// NewPlayerRepo creates a player repository over the given store and cache.
func NewPlayerRepo(st store.Store, c *cache.Cache, ttl config.CacheConfig, logger *slog.Logger) *PlayerRepo {
	return &PlayerRepo{store: st, cache: c, ttl: ttl, logger: logger}
}

func playerFromRow(row *store.Row) (*domain.Player, error) {
	p, err := domain.NewPlayer(row.Attrs)
	if err != nil {
		return nil, fmt.Errorf("hydrating player %d: %w", row.ID, err)
	}
	p.ID = row.ID
	p.CreatedAt = row.CreatedAt
	p.UpdatedAt = row.UpdatedAt
	p.MarkSynced()
	return p, nil
}

func playersFromRows(rows []store.Row) ([]*domain.Player, error) {
	out := make([]*domain.Player, 0, len(rows))
	for i := range rows {
		p, err := playerFromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Find returns the player with the given id, or nil when absent.
func (r *PlayerRepo) Find(ctx context.Context, id int64) (*domain.Player, error) {
	key := playerKey(id)
	var cached domain.Player
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
	p, err := playerFromRow(row)
	if err != nil {
		return nil, err
	}
	r.cache.Set(ctx, key, p, r.ttl.EntryTTL)
	return p, nil
}

// FindOrFail returns the player or ErrNotFound.
func (r *PlayerRepo) FindOrFail(ctx context.Context, id int64) (*domain.Player, error) {
	p, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("player %d: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

// All returns every player ordered by id.
func (r *PlayerRepo) All(ctx context.Context) (*collection.Collection[*domain.Player], error) {
	players, err := cache.Remember(ctx, r.cache, playersAllKey, r.ttl.ListTTL, func() ([]*domain.Player, error) {
		rows, err := r.store.Query(ctx, nil, store.Options{})
		if err != nil {
			return nil, err
		}
		return playersFromRows(rows)
	})
	if err != nil {
		return nil, err
	}
	return collection.FromSlice(players), nil
}

// Where returns the players matching criteria, shaped by opts.
func (r *PlayerRepo) Where(ctx context.Context, criteria store.Criteria, opts store.Options) (*collection.Collection[*domain.Player], error) {
	key := queryKey(playersQueryPref, criteria, opts)
	players, err := cache.Remember(ctx, r.cache, key, r.ttl.ListTTL, func() ([]*domain.Player, error) {
		rows, err := r.store.Query(ctx, criteria, opts)
		if err != nil {
			return nil, err
		}
		return playersFromRows(rows)
	})
	if err != nil {
		return nil, err
	}
	return collection.FromSlice(players), nil
}

// First returns the first player matching criteria, or nil. Reads the
// store directly so mutation paths never race a stale list cache.
func (r *PlayerRepo) First(ctx context.Context, criteria store.Criteria) (*domain.Player, error) {
	rows, err := r.store.Query(ctx, criteria, store.Options{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return playerFromRow(&rows[0])
}

// FirstOrFail returns the first match or ErrNotFound.
func (r *PlayerRepo) FirstOrFail(ctx context.Context, criteria store.Criteria) (*domain.Player, error) {
	p, err := r.First(ctx, criteria)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("player matching criteria: %w", domain.ErrNotFound)
	}
	return p, nil
}

// ByCustomer returns a customer's players ordered by player index.
func (r *PlayerRepo) ByCustomer(ctx context.Context, customerID int64) (*collection.Collection[*domain.Player], error) {
	return r.Where(ctx,
		store.Criteria{"customer_id": itoa64(customerID)},
		store.Options{OrderBy: "player_index"})
}

// Count returns the number of players matching criteria.
func (r *PlayerRepo) Count(ctx context.Context, criteria store.Criteria) (int, error) {
	return r.store.Count(ctx, criteria)
}

// Exists reports whether any player matches criteria.
func (r *PlayerRepo) Exists(ctx context.Context, criteria store.Criteria) (bool, error) {
	n, err := r.store.Count(ctx, criteria)
	return n > 0, err
}

// Create validates and stores a new player. When no player_index is
// supplied the next free index for the customer is assigned. A natural
// key collision returns the existing player with created=false instead
// of an error.
func (r *PlayerRepo) Create(ctx context.Context, attrs map[string]string) (*domain.Player, bool, error) {
	p, err := domain.NewPlayer(attrs)
	if err != nil {
		return nil, false, err
	}
	if _, ok := attrs["player_index"]; !ok {
		n, err := r.store.Count(ctx, store.Criteria{"customer_id": itoa64(p.CustomerID)})
		if err != nil {
			return nil, false, err
		}
		if err := p.Set("player_index", strconv.Itoa(n)); err != nil {
			return nil, false, err
		}
	}
	if err := p.Validate(); err != nil {
		return nil, false, err
	}

	id, err := r.store.Insert(ctx, p.ToMap())
	if errors.Is(err, store.ErrDuplicateKey) {
		existing, ferr := r.First(ctx, store.Criteria{
			"customer_id":  itoa64(p.CustomerID),
			"player_index": strconv.Itoa(p.PlayerIndex),
		})
		if ferr != nil {
			return nil, false, ferr
		}
		if existing != nil {
			r.logger.Info("player already exists",
				"customer_id", p.CustomerID, "player_index", p.PlayerIndex)
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

// Update applies a partial attribute change to an existing player,
// writing only the changed columns.
func (r *PlayerRepo) Update(ctx context.Context, id int64, attrs map[string]string) (*domain.Player, error) {
	row, err := r.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("player %d: %w", id, domain.ErrNotFound)
	}
	p, err := playerFromRow(row)
	if err != nil {
		return nil, err
	}
	if err := p.Apply(attrs); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	changes := p.Changes()
	if len(changes) == 0 {
		return p, nil
	}
	ok, err := r.store.UpdateByID(ctx, id, changes)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("player %d: %w", id, domain.ErrNotFound)
	}
	updated, err := r.refresh(ctx, id)
	if err != nil {
		return nil, err
	}
	r.invalidateLists(ctx)
	return updated, nil
}

// IncrementEventCount bumps the player's completed-event counter.
func (r *PlayerRepo) IncrementEventCount(ctx context.Context, id int64) (*domain.Player, error) {
	p, err := r.FindOrFail(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.Update(ctx, id, map[string]string{
		"event_count": strconv.Itoa(p.EventCount + 1),
	})
}

// Delete removes a player and re-indexes the customer's remaining
// players to a contiguous 0..n-1 in one transaction. Returns false when
// no player has the id.
func (r *PlayerRepo) Delete(ctx context.Context, id int64) (bool, error) {
	row, err := r.store.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if row == nil {
		return false, nil
	}
	customerID := row.Attrs["customer_id"]

	var touched []int64
	err = r.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := tx.DeleteByID(ctx, id); err != nil {
			return err
		}
		siblings, err := tx.Query(ctx,
			store.Criteria{"customer_id": customerID},
			store.Options{OrderBy: "player_index"})
		if err != nil {
			return err
		}
		for i := range siblings {
			touched = append(touched, siblings[i].ID)
			if siblings[i].Attrs["player_index"] == strconv.Itoa(i) {
				continue
			}
			if _, err := tx.UpdateByID(ctx, siblings[i].ID, map[string]string{
				"player_index": strconv.Itoa(i),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	r.cache.Forget(ctx, playerKey(id))
	for _, sid := range touched {
		r.cache.Forget(ctx, playerKey(sid))
	}
	r.invalidateLists(ctx)
	return true, nil
}

// CreateMany stores a batch of players. A failing record is logged and
// skipped; the others still go through.
func (r *PlayerRepo) CreateMany(ctx context.Context, records []map[string]string) *BulkResult {
	result := &BulkResult{}
	for i, attrs := range records {
		_, created, err := r.Create(ctx, attrs)
		switch {
		case err != nil:
			r.logger.Error("player create failed in batch", "index", i, "error", err)
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
// player inside one transaction; any failure rolls the whole batch back.
func (r *PlayerRepo) UpdateWhere(ctx context.Context, criteria store.Criteria, attrs map[string]string) (int, error) {
	var touched []int64
	err := r.store.WithTx(ctx, func(tx store.Store) error {
		rows, err := tx.Query(ctx, criteria, store.Options{})
		if err != nil {
			return err
		}
		for i := range rows {
			p, err := playerFromRow(&rows[i])
			if err != nil {
				return err
			}
			if err := p.Apply(attrs); err != nil {
				return err
			}
			if err := p.Validate(); err != nil {
				return err
			}
			changes := p.Changes()
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
		r.cache.Forget(ctx, playerKey(id))
	}
	r.invalidateLists(ctx)
	return len(touched), nil
}

// DeleteWhere removes every matching player in one transaction,
// re-indexing each affected customer's remaining players.
func (r *PlayerRepo) DeleteWhere(ctx context.Context, criteria store.Criteria) (int, error) {
	var (
		removed []int64
		touched []int64
	)
	err := r.store.WithTx(ctx, func(tx store.Store) error {
		rows, err := tx.Query(ctx, criteria, store.Options{})
		if err != nil {
			return err
		}
		customers := make(map[string]bool)
		for i := range rows {
			removed = append(removed, rows[i].ID)
			customers[rows[i].Attrs["customer_id"]] = true
		}
		if _, err := tx.DeleteByCriteria(ctx, criteria); err != nil {
			return err
		}
		for customerID := range customers {
			siblings, err := tx.Query(ctx,
				store.Criteria{"customer_id": customerID},
				store.Options{OrderBy: "player_index"})
			if err != nil {
				return err
			}
			for i := range siblings {
				touched = append(touched, siblings[i].ID)
				if siblings[i].Attrs["player_index"] == strconv.Itoa(i) {
					continue
				}
				if _, err := tx.UpdateByID(ctx, siblings[i].ID, map[string]string{
					"player_index": strconv.Itoa(i),
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, id := range removed {
		r.cache.Forget(ctx, playerKey(id))
	}
	for _, id := range touched {
		r.cache.Forget(ctx, playerKey(id))
	}
	r.invalidateLists(ctx)
	return len(removed), nil
}

// refresh re-reads a row after a write so timestamps and normalized
// values come back in canonical store form, then re-primes the cache.
func (r *PlayerRepo) refresh(ctx context.Context, id int64) (*domain.Player, error) {
	row, err := r.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("player %d vanished after write: %w", id, domain.ErrNotFound)
	}
	p, err := playerFromRow(row)
	if err != nil {
		return nil, err
	}
	r.cache.Set(ctx, playerKey(id), p, r.ttl.EntryTTL)
	return p, nil
}

func (r *PlayerRepo) invalidateLists(ctx context.Context) {
	r.cache.ForgetPattern(ctx, playersListsPat)
}
