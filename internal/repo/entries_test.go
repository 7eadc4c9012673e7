package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roster-engine/internal/domain"
	"github.com/roster-engine/internal/store"
)

func TestEntryCreateDuplicateReturnsExisting(t *testing.T) {
	r, _, _ := newEntryRepo(t)
	ctx := context.Background()

	first, created, err := r.Create(ctx, entryAttrs(nil))
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := r.Create(ctx, entryAttrs(map[string]string{"venue": "Geneva"}))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Lausanne", again.Venue)

	n, err := r.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEntryCreateValidation(t *testing.T) {
	r, _, _ := newEntryRepo(t)

	// A camp may not span more than seven days.
	_, _, err := r.Create(context.Background(), entryAttrs(map[string]string{
		"end_date": "2026-07-20",
	}))
	verr, ok := domain.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "end_date")
}

func TestEntryUpdateRefreshesCache(t *testing.T) {
	r, _, _ := newEntryRepo(t)
	ctx := context.Background()

	e, _, err := r.Create(ctx, entryAttrs(nil))
	require.NoError(t, err)

	_, err = r.Find(ctx, e.ID)
	require.NoError(t, err)

	_, err = r.Update(ctx, e.ID, map[string]string{"venue": "Geneva"})
	require.NoError(t, err)

	got, err := r.Find(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Geneva", got.Venue)
}

func TestEntryUpdateWritesOnlyChangedColumns(t *testing.T) {
	r, st, _ := newEntryRepo(t)
	ctx := context.Background()

	e, _, err := r.Create(ctx, entryAttrs(nil))
	require.NoError(t, err)

	updated, err := r.Update(ctx, e.ID, map[string]string{"order_status": "completed"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, updated.OrderStatus)

	row, err := st.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", row.Attrs["order_status"])
	assert.Equal(t, "Lausanne", row.Attrs["venue"])
}

func TestEntryWhereInvalidatedOnCreate(t *testing.T) {
	r, _, _ := newEntryRepo(t)
	ctx := context.Background()

	_, _, err := r.Create(ctx, entryAttrs(nil))
	require.NoError(t, err)

	got, err := r.Where(ctx, store.Criteria{"venue": "Lausanne"}, store.Options{})
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())

	_, _, err = r.Create(ctx, entryAttrs(map[string]string{"order_item_id": "2", "player_index": "1"}))
	require.NoError(t, err)

	got, err = r.Where(ctx, store.Criteria{"venue": "Lausanne"}, store.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
}

func TestEntryApplyOrderUpserts(t *testing.T) {
	r, _, _ := newEntryRepo(t)
	ctx := context.Background()

	rec := orderRecord(1001, 1, 0, nil)
	e, created, err := r.ApplyOrder(ctx, rec)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.StatusProcessing, e.OrderStatus)

	// Same record again is a no-op.
	same, created, err := r.ApplyOrder(ctx, rec)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, e.ID, same.ID)

	// A status change lands as a partial update.
	rec.OrderStatus = "completed"
	updated, created, err := r.ApplyOrder(ctx, rec)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, e.ID, updated.ID)
	assert.Equal(t, domain.StatusCompleted, updated.OrderStatus)
}

func TestEntryApplyOrderNormalizesStatusSynonyms(t *testing.T) {
	r, _, _ := newEntryRepo(t)

	rec := orderRecord(1001, 1, 0, map[string]string{"order_status": "wc-complete"})
	e, _, err := r.ApplyOrder(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, e.OrderStatus)
}

func TestEntryDateRange(t *testing.T) {
	r, _, _ := newEntryRepo(t)
	ctx := context.Background()

	_, _, err := r.Create(ctx, entryAttrs(nil))
	require.NoError(t, err)
	_, _, err = r.Create(ctx, entryAttrs(map[string]string{
		"order_id":   "1002",
		"start_date": "2026-08-03",
		"end_date":   "2026-08-07",
	}))
	require.NoError(t, err)

	july, err := r.DateRange(ctx,
		time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 1, july.Len())
	first, _ := july.First()
	assert.Equal(t, int64(1001), first.OrderID)
}

func TestEntrySpecialNeeds(t *testing.T) {
	r, _, _ := newEntryRepo(t)
	ctx := context.Background()

	_, _, err := r.Create(ctx, entryAttrs(nil))
	require.NoError(t, err)
	_, _, err = r.Create(ctx, entryAttrs(map[string]string{
		"order_id":           "1002",
		"medical_conditions": "asthma",
	}))
	require.NoError(t, err)

	got, err := r.SpecialNeeds(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	first, _ := got.First()
	assert.Equal(t, "asthma", first.MedicalConditions)
	assert.True(t, first.HasSpecialNeeds())
}

func TestEntryDelete(t *testing.T) {
	r, _, _ := newEntryRepo(t)
	ctx := context.Background()

	e, _, err := r.Create(ctx, entryAttrs(nil))
	require.NoError(t, err)

	ok, err := r.Delete(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := r.Find(ctx, e.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEntryUpdateWhere(t *testing.T) {
	r, _, _ := newEntryRepo(t)
	ctx := context.Background()

	_, _, err := r.Create(ctx, entryAttrs(nil))
	require.NoError(t, err)
	_, _, err = r.Create(ctx, entryAttrs(map[string]string{"order_id": "1002"}))
	require.NoError(t, err)

	n, err := r.UpdateWhere(ctx,
		store.Criteria{"venue": "Lausanne"},
		map[string]string{"order_status": "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := r.All(ctx)
	require.NoError(t, err)
	all.Each(func(e *domain.RosterEntry) {
		assert.Equal(t, domain.StatusCancelled, e.OrderStatus)
	})
}

func TestEntryDeleteWhere(t *testing.T) {
	r, _, _ := newEntryRepo(t)
	ctx := context.Background()

	_, _, err := r.Create(ctx, entryAttrs(nil))
	require.NoError(t, err)
	_, _, err = r.Create(ctx, entryAttrs(map[string]string{"order_id": "1002", "venue": "Geneva"}))
	require.NoError(t, err)

	n, err := r.DeleteWhere(ctx, store.Criteria{"venue": "Geneva"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	remaining, err := r.All(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, remaining.Len())
	first, _ := remaining.First()
	assert.Equal(t, "Lausanne", first.Venue)
}
