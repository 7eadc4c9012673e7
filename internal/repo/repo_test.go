package repo

import (
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/roster-engine/internal/cache"
	"github.com/roster-engine/internal/config"
	"github.com/roster-engine/internal/domain"
	"github.com/roster-engine/internal/store"
	"github.com/roster-engine/internal/store/memory"
)

var testTTL = config.CacheConfig{
	EntryTTL: 15 * time.Minute,
	ListTTL:  5 * time.Minute,
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return cache.NewWithClient(client, testLogger()), mr
}

func newPlayerRepo(t *testing.T) (*PlayerRepo, *memory.Memory, *miniredis.Miniredis) {
	t.Helper()
	st := memory.New(store.Players)
	c, mr := newTestCache(t)
	return NewPlayerRepo(st, c, testTTL, testLogger()), st, mr
}

func newEntryRepo(t *testing.T) (*EntryRepo, *memory.Memory, *miniredis.Miniredis) {
	t.Helper()
	st := memory.New(store.RosterEntries)
	c, mr := newTestCache(t)
	return NewEntryRepo(st, c, testTTL, config.RebuildConfig{ChunkSize: 10}, testLogger()), st, mr
}

func playerAttrs(overrides map[string]string) map[string]string {
	attrs := map[string]string{
		"customer_id":       "42",
		"first_name":        "Lena",
		"last_name":         "Moser",
		"date_of_birth":     "2017-05-12",
		"gender":            "female",
		"emergency_contact": "Petra Moser",
		"emergency_phone":   "+41 79 555 01 01",
	}
	for k, v := range overrides {
		attrs[k] = v
	}
	return attrs
}

func entryAttrs(overrides map[string]string) map[string]string {
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
	return attrs
}

func orderRecord(orderID, itemID int64, idx int, overrides map[string]string) domain.OrderRecord {
	attrs := entryAttrs(overrides)
	rec := domain.OrderRecord{
		OrderID:     orderID,
		OrderItemID: itemID,
		PlayerIndex: idx,
		ProductID:   55,
		CustomerID:  42,

		ActivityType:     attrs["activity_type"],
		Venue:            attrs["venue"],
		AgeGroup:         attrs["age_group"],
		StartDate:        attrs["start_date"],
		EndDate:          attrs["end_date"],
		BookingType:      attrs["booking_type"],
		Season:           attrs["season"],
		Region:           attrs["region"],
		ParentEmail:      attrs["parent_email"],
		ParentPhone:      attrs["parent_phone"],
		EmergencyContact: attrs["emergency_contact"],
		EmergencyPhone:   attrs["emergency_phone"],
		OrderStatus:      attrs["order_status"],

		Player: map[string]string{
			"first_name":    attrs["first_name"],
			"last_name":     attrs["last_name"],
			"date_of_birth": attrs["date_of_birth"],
			"gender":        attrs["gender"],
		},
	}
	if v, ok := attrs["customer_id"]; ok {
		n, _ := strconv.ParseInt(v, 10, 64)
		rec.CustomerID = n
	}
	return rec
}
