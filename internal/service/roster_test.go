package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roster-engine/internal/cache"
	"github.com/roster-engine/internal/config"
	"github.com/roster-engine/internal/repo"
	"github.com/roster-engine/internal/store"
	"github.com/roster-engine/internal/store/memory"
)

func newTestService(t *testing.T) (*RosterService, *repo.PlayerRepo, *repo.EntryRepo) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mr := miniredis.RunT(t)
	c := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), logger)
	ttl := config.CacheConfig{EntryTTL: 15 * time.Minute, ListTTL: 5 * time.Minute}

	players := repo.NewPlayerRepo(memory.New(store.Players), c, ttl, logger)
	entries := repo.NewEntryRepo(memory.New(store.RosterEntries), c, ttl, config.RebuildConfig{ChunkSize: 100}, logger)
	cfg := &config.RosterConfig{DefaultLimit: 100, MaxLimit: 1000}
	return NewRosterService(players, entries, cfg, logger), players, entries
}

func seedEntry(t *testing.T, entries *repo.EntryRepo, overrides map[string]string) {
	t.Helper()
	attrs := map[string]string{
		"order_id":          "1001",
		"order_item_id":     "1",
		"player_index":      "0",
		"product_id":        "55",
		"customer_id":       "42",
		"first_name":        "Lena",
		"last_name":         "Moser",
		"date_of_birth":     "2017-05-12",
		"gender":            "female",
		"activity_type":     "Camp",
		"venue":             "Lausanne",
		"age_group":         "6-10y",
		"start_date":        "2026-07-06",
		"end_date":          "2026-07-10",
		"booking_type":      "Full Week",
		"season":            "Summer 2026",
		"region":            "Vaud",
		"parent_email":      "petra@example.ch",
		"parent_phone":      "+41 79 555 01 01",
		"emergency_contact": "Petra Moser",
		"emergency_phone":   "+41 79 555 01 01",
		"order_status":      "processing",
	}
	for k, v := range overrides {
		attrs[k] = v
	}
	_, created, err := entries.Create(context.Background(), attrs)
	require.NoError(t, err)
	require.True(t, created)
}

func TestClampLimit(t *testing.T) {
	s, _, _ := newTestService(t)

	assert.Equal(t, 100, s.ClampLimit(0))
	assert.Equal(t, 100, s.ClampLimit(-5))
	assert.Equal(t, 250, s.ClampLimit(250))
	assert.Equal(t, 1000, s.ClampLimit(5000))
}

func TestVenueReportGroupsByAgeGroup(t *testing.T) {
	s, _, entries := newTestService(t)

	seedEntry(t, entries, nil)
	seedEntry(t, entries, map[string]string{
		"order_id":      "1002",
		"first_name":    "Noah",
		"date_of_birth": "2021-03-01",
		"age_group":     "3-5y",
	})
	seedEntry(t, entries, map[string]string{"order_id": "1003", "venue": "Geneva"})

	report, err := s.VenueReport(context.Background(), "Lausanne")
	require.NoError(t, err)

	require.Equal(t, 2, report.Len())
	kids, ok := report.Group("6-10y")
	require.True(t, ok)
	assert.Equal(t, 1, kids.Len())
	mini, ok := report.Group("3-5y")
	require.True(t, ok)
	assert.Equal(t, 1, mini.Len())
}

func TestSeasonReportGroupsByVenue(t *testing.T) {
	s, _, entries := newTestService(t)

	seedEntry(t, entries, nil)
	seedEntry(t, entries, map[string]string{"order_id": "1002", "venue": "Geneva"})

	report, err := s.SeasonReport(context.Background(), "Summer 2026")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Lausanne", "Geneva"}, report.Keys())
}

func TestWeekReportSpansMondayToSunday(t *testing.T) {
	s, _, entries := newTestService(t)

	// 2026-07-06 is a Monday.
	seedEntry(t, entries, nil)
	seedEntry(t, entries, map[string]string{
		"order_id":   "1002",
		"start_date": "2026-07-13",
		"end_date":   "2026-07-17",
	})

	report, err := s.WeekReport(context.Background(),
		time.Date(2026, 7, 8, 15, 30, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Equal(t, 1, report.Len())
	day, ok := report.Group("2026-07-06")
	require.True(t, ok)
	assert.Equal(t, 1, day.Len())
}

func TestSpecialNeedsReport(t *testing.T) {
	s, _, entries := newTestService(t)

	seedEntry(t, entries, nil)
	seedEntry(t, entries, map[string]string{
		"order_id":           "1002",
		"medical_conditions": "asthma",
	})

	report, err := s.SpecialNeedsReport(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Len())
	lausanne, ok := report.Group("Lausanne")
	require.True(t, ok)
	assert.Equal(t, 1, lausanne.Len())
}

func TestDuplicateReport(t *testing.T) {
	s, players, _ := newTestService(t)
	ctx := context.Background()

	base := map[string]string{
		"customer_id":       "42",
		"first_name":        "Lena",
		"last_name":         "Moser",
		"date_of_birth":     "2017-05-12",
		"gender":            "female",
		"emergency_contact": "Petra Moser",
		"emergency_phone":   "+41 79 555 01 01",
	}
	_, _, err := players.Create(ctx, base)
	require.NoError(t, err)

	twin := make(map[string]string, len(base))
	for k, v := range base {
		twin[k] = v
	}
	twin["customer_id"] = "77"
	_, _, err = players.Create(ctx, twin)
	require.NoError(t, err)

	groups, err := s.DuplicateReport(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Players, 2)
}

func TestConflictReport(t *testing.T) {
	s, _, entries := newTestService(t)

	seedEntry(t, entries, map[string]string{
		"start_date": "2026-07-01",
		"end_date":   "2026-07-05",
	})
	seedEntry(t, entries, map[string]string{
		"order_id":   "1002",
		"start_date": "2026-07-04",
		"end_date":   "2026-07-10",
	})

	conflicts, err := s.ConflictReport(context.Background())
	require.NoError(t, err)
	assert.Len(t, conflicts, 1)
}

func TestStats(t *testing.T) {
	s, _, entries := newTestService(t)

	seedEntry(t, entries, nil)
	seedEntry(t, entries, map[string]string{
		"order_id":      "1002",
		"activity_type": "Course",
		"booking_type":  "Single Day(s)",
		"selected_days": "Monday,Wednesday",
		"end_date":      "2026-09-28",
		"order_status":  "completed",
	})

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 1, stats.ByActivity["Camp"])
	assert.Equal(t, 1, stats.ByActivity["Course"])
	assert.Equal(t, 2, stats.ByVenue["Lausanne"])
	assert.Equal(t, 1, stats.ByStatus["processing"])
	assert.Equal(t, 0, stats.SpecialNeeds)
	assert.InDelta(t, 9.0, stats.AverageAge, 0.01)
}

func TestExportUsesDisplayNames(t *testing.T) {
	s, _, entries := newTestService(t)

	seedEntry(t, entries, nil)

	rows, err := s.Export(context.Background(), store.Criteria{"venue": "Lausanne"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Lena Moser", rows[0]["Participant"])
	assert.Equal(t, "Lausanne", rows[0]["Venue"])
}
