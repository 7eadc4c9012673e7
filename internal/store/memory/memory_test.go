package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roster-engine/internal/store"
)

func entryAttrs(orderID, itemID, playerIndex, customerID, venue, start string) map[string]string {
	return map[string]string{
		"order_id":      orderID,
		"order_item_id": itemID,
		"player_index":  playerIndex,
		"customer_id":   customerID,
		"venue":         venue,
		"start_date":    start,
		"order_status":  "processing",
	}
}

func seed(t *testing.T) *Memory {
	t.Helper()
	m := New(store.RosterEntries)
	ctx := context.Background()
	rows := []map[string]string{
		entryAttrs("1", "1", "0", "10", "Lausanne", "2024-07-01"),
		entryAttrs("1", "2", "0", "10", "Geneva", "2024-07-08"),
		entryAttrs("2", "3", "0", "20", "Lausanne", "2024-08-01"),
	}
	for _, attrs := range rows {
		_, err := m.Insert(ctx, attrs)
		require.NoError(t, err)
	}
	return m
}

func TestInsertAssignsIDs(t *testing.T) {
	m := New(store.RosterEntries)
	ctx := context.Background()

	id1, err := m.Insert(ctx, entryAttrs("1", "1", "0", "10", "Lausanne", "2024-07-01"))
	require.NoError(t, err)
	id2, err := m.Insert(ctx, entryAttrs("1", "2", "0", "10", "Lausanne", "2024-07-01"))
	require.NoError(t, err)
	assert.Less(t, id1, id2)

	row, err := m.FindByID(ctx, id1)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "Lausanne", row.Attrs["venue"])
	assert.False(t, row.CreatedAt.IsZero())
}

func TestInsertEnforcesNaturalKey(t *testing.T) {
	m := seed(t)

	_, err := m.Insert(context.Background(), entryAttrs("1", "1", "0", "10", "Zurich", "2024-09-01"))
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestQueryCriteria(t *testing.T) {
	m := seed(t)
	ctx := context.Background()

	rows, err := m.Query(ctx, store.Criteria{"venue": "Lausanne"}, store.Options{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = m.Query(ctx, store.Criteria{"venue": []string{"Geneva", "Zurich"}}, store.Options{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = m.Query(ctx, store.Criteria{"venue": "Lausanne", "customer_id": "20"}, store.Options{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestQueryOrderAndPagination(t *testing.T) {
	m := seed(t)
	ctx := context.Background()

	rows, err := m.Query(ctx, nil, store.Options{OrderBy: "start_date", Descending: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2024-08-01", rows[0].Attrs["start_date"])

	rows, err = m.Query(ctx, nil, store.Options{OrderBy: "order_item_id", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0].Attrs["order_item_id"])
}

func TestQueryDateRange(t *testing.T) {
	m := seed(t)

	rows, err := m.QueryDateRange(context.Background(), "start_date",
		time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC),
		store.Options{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestQuerySpecialNeeds(t *testing.T) {
	m := seed(t)
	ctx := context.Background()

	attrs := entryAttrs("3", "4", "0", "30", "Bern", "2024-07-15")
	attrs["medical_conditions"] = "asthma"
	_, err := m.Insert(ctx, attrs)
	require.NoError(t, err)

	rows, err := m.QuerySpecialNeeds(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Bern", rows[0].Attrs["venue"])
}

func TestCount(t *testing.T) {
	m := seed(t)

	n, err := m.Count(context.Background(), store.Criteria{"customer_id": "10"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUpdateByID(t *testing.T) {
	m := seed(t)
	ctx := context.Background()

	rows, err := m.Query(ctx, store.Criteria{"venue": "Geneva"}, store.Options{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	id := rows[0].ID

	ok, err := m.UpdateByID(ctx, id, map[string]string{"venue": "Zurich"})
	require.NoError(t, err)
	assert.True(t, ok)

	row, err := m.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Zurich", row.Attrs["venue"])

	ok, err = m.UpdateByID(ctx, 9999, map[string]string{"venue": "Zurich"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateCannotStealNaturalKey(t *testing.T) {
	m := seed(t)
	ctx := context.Background()

	rows, err := m.Query(ctx, store.Criteria{"order_item_id": "2"}, store.Options{})
	require.NoError(t, err)
	id := rows[0].ID

	_, err = m.UpdateByID(ctx, id, map[string]string{"order_item_id": "1"})
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestDelete(t *testing.T) {
	m := seed(t)
	ctx := context.Background()

	rows, _ := m.Query(ctx, store.Criteria{"order_item_id": "1"}, store.Options{})
	ok, err := m.DeleteByID(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// The natural key is free again.
	_, err = m.Insert(ctx, entryAttrs("1", "1", "0", "10", "Basel", "2024-09-01"))
	require.NoError(t, err)

	n, err := m.DeleteByCriteria(ctx, store.Criteria{"customer_id": "10"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestWithTxCommit(t *testing.T) {
	m := seed(t)
	ctx := context.Background()

	err := m.WithTx(ctx, func(tx store.Store) error {
		_, err := tx.Insert(ctx, entryAttrs("5", "9", "0", "50", "Basel", "2024-09-01"))
		return err
	})
	require.NoError(t, err)

	n, _ := m.Count(ctx, nil)
	assert.Equal(t, 4, n)
}

func TestWithTxRollback(t *testing.T) {
	m := seed(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(tx store.Store) error {
		if _, err := tx.Insert(ctx, entryAttrs("5", "9", "0", "50", "Basel", "2024-09-01")); err != nil {
			return err
		}
		if _, err := tx.DeleteByCriteria(ctx, store.Criteria{"customer_id": "10"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, _ := m.Count(ctx, nil)
	assert.Equal(t, 3, n, "rollback restores the pre-transaction rows")

	rows, _ := m.Query(ctx, store.Criteria{"customer_id": "10"}, store.Options{})
	assert.Len(t, rows, 2)
}
