package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/roster-engine/internal/domain"
	"github.com/roster-engine/internal/store"
)

// RebuildError records one order-source record the rebuild could not
// apply.
type RebuildError struct {
	Index int    `json:"index"`
	Key   string `json:"key"`
	Error string `json:"error"`
}

// RebuildResult summarizes a full roster rebuild.
type RebuildResult struct {
	BatchID    string         `json:"batch_id"`
	Created    int            `json:"created"`
	Updated    int            `json:"updated"`
	Duplicates int            `json:"duplicates"`
	Removed    int            `json:"removed"`
	Errors     []RebuildError `json:"errors,omitempty"`
	Took       time.Duration  `json:"took_ns"`
}

// RebuildFromSource resynchronizes the roster-entry set from a full
// order-source snapshot. Every surviving row is stamped with a fresh
// batch id as it is created or reconciled, chunk by chunk; rows still
// carrying an older stamp afterwards are stale and get swept out in one
// final delete. A crash mid-rebuild leaves a fully consistent roster
// (old rows still stamped, nothing swept), so the operation can simply
// be rerun. Failed records are reported in the result, never raised.
func (r *EntryRepo) RebuildFromSource(ctx context.Context, records []domain.OrderRecord) (*RebuildResult, error) {
	start := time.Now()
	batch := uuid.NewString()
	result := &RebuildResult{BatchID: batch}

	r.logger.Info("roster rebuild started", "batch", batch, "records", len(records))

	chunkSize := r.rebuild.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 500
	}
	seen := make(map[string]bool, len(records))
	for offset := 0; offset < len(records); offset += chunkSize {
		end := offset + chunkSize
		if end > len(records) {
			end = len(records)
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		r.rebuildChunk(ctx, batch, records[offset:end], offset, seen, result)
	}

	// Sweep rows no order-source record claimed this run.
	removed, err := r.store.DeleteByCriteria(ctx, store.Criteria{
		"rebuild_batch": store.NotEq(batch),
	})
	if err != nil {
		return result, err
	}
	result.Removed = removed

	r.cache.Flush(ctx)
	result.Took = time.Since(start)

	r.logger.Info("roster rebuild finished",
		"batch", batch,
		"created", result.Created,
		"updated", result.Updated,
		"duplicates", result.Duplicates,
		"removed", result.Removed,
		"errors", len(result.Errors),
		"took", result.Took)
	return result, nil
}

// rebuildChunk applies one slice of the snapshot. seen spans the whole
// run so a source key repeated across chunks still counts as a
// duplicate rather than being reconciled twice.
func (r *EntryRepo) rebuildChunk(ctx context.Context, batch string, records []domain.OrderRecord, base int, seen map[string]bool, result *RebuildResult) {
	for i, rec := range records {
		fail := func(err error) {
			r.logger.Error("rebuild record failed",
				"batch", batch, "index", base+i, "key", rec.Key(), "error", err)
			result.Errors = append(result.Errors, RebuildError{
				Index: base + i, Key: rec.Key(), Error: err.Error(),
			})
		}

		if seen[rec.Key()] {
			result.Duplicates++
			continue
		}
		seen[rec.Key()] = true

		e, err := domain.NewRosterEntry(rec.EntryAttrs())
		if err != nil {
			fail(err)
			continue
		}

		existing, err := r.First(ctx, naturalKeyCriteria(e))
		if err != nil {
			fail(err)
			continue
		}
		if existing == nil {
			if err := e.Validate(); err != nil {
				fail(err)
				continue
			}
			attrs := e.ToMap()
			attrs["rebuild_batch"] = batch
			if _, err := r.store.Insert(ctx, attrs); err != nil {
				fail(err)
				continue
			}
			result.Created++
			continue
		}

		// Reconcile and restamp so the sweep keeps the row.
		changes := diffAttrs(existing.ToMap(), e.ToMap())
		if len(changes) > 0 {
			if err := existing.Apply(changes); err != nil {
				fail(err)
				continue
			}
			if err := existing.Validate(); err != nil {
				fail(err)
				continue
			}
		}
		changes["rebuild_batch"] = batch
		if _, err := r.store.UpdateByID(ctx, existing.ID, changes); err != nil {
			fail(err)
			continue
		}
		if len(changes) > 1 {
			result.Updated++
		} else {
			result.Duplicates++
		}
	}
}
