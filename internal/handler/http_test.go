package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roster-engine/internal/cache"
	"github.com/roster-engine/internal/config"
	"github.com/roster-engine/internal/repo"
	"github.com/roster-engine/internal/service"
	"github.com/roster-engine/internal/store"
	"github.com/roster-engine/internal/store/memory"
	"github.com/roster-engine/internal/websocket"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mr := miniredis.RunT(t)
	c := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), logger)
	ttl := config.CacheConfig{EntryTTL: 15 * time.Minute, ListTTL: 5 * time.Minute}

	players := repo.NewPlayerRepo(memory.New(store.Players), c, ttl, logger)
	entries := repo.NewEntryRepo(memory.New(store.RosterEntries), c, ttl, config.RebuildConfig{ChunkSize: 100}, logger)
	svc := service.NewRosterService(players, entries, &config.RosterConfig{DefaultLimit: 100, MaxLimit: 1000}, logger)
	hub := websocket.NewHub(logger)

	srv := httptest.NewServer(NewHandler(players, entries, svc, hub, logger).Router())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func validPlayer() map[string]string {
	return map[string]string{
		"customer_id":       "42",
		"first_name":        "Lena",
		"last_name":         "Moser",
		"date_of_birth":     "2017-05-12",
		"gender":            "female",
		"emergency_contact": "Petra Moser",
		"emergency_phone":   "+41 79 555 01 01",
	}
}

func validEntry() map[string]string {
	return map[string]string{
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
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, envelope := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)
}

func TestCreatePlayer(t *testing.T) {
	srv := newTestServer(t)

	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/v1/players", validPlayer())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, envelope.Success)

	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, "Lena", data["first_name"])
	assert.Equal(t, float64(0), data["player_index"])
}

func TestCreatePlayerValidation(t *testing.T) {
	srv := newTestServer(t)

	bad := validPlayer()
	bad["date_of_birth"] = "2031-01-01"
	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/v1/players", bad)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.False(t, envelope.Success)
	fields := envelope.Data.(map[string]interface{})
	assert.Contains(t, fields, "date_of_birth")
}

func TestCreatePlayerDuplicateReturnsOK(t *testing.T) {
	srv := newTestServer(t)

	attrs := validPlayer()
	attrs["player_index"] = "0"
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/players", attrs)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/v1/players", attrs)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)
}

func TestGetPlayerNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, envelope := doJSON(t, http.MethodGet, srv.URL+"/api/v1/players/999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, envelope.Success)
}

func TestRosterCreateAndQuery(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/roster", validEntry())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	second := validEntry()
	second["order_id"] = "1002"
	second["venue"] = "Geneva"
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/roster", second)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, envelope := doJSON(t, http.MethodGet, srv.URL+"/api/v1/roster?venue=Lausanne", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	entries := envelope.Data.([]interface{})
	require.Len(t, entries, 1)
	assert.Equal(t, "Lausanne", entries[0].(map[string]interface{})["venue"])
}

func TestRosterUpdate(t *testing.T) {
	srv := newTestServer(t)

	_, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/v1/roster", validEntry())
	id := envelope.Data.(map[string]interface{})["id"].(float64)

	resp, envelope := doJSON(t, http.MethodPut,
		srv.URL+"/api/v1/roster/"+strconv.FormatInt(int64(id), 10),
		map[string]string{"venue": "Geneva"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Geneva", envelope.Data.(map[string]interface{})["venue"])
}

func TestRosterConflictsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	first := validEntry()
	first["start_date"] = "2026-07-01"
	first["end_date"] = "2026-07-05"
	_, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/roster", first)

	second := validEntry()
	second["order_id"] = "1002"
	second["start_date"] = "2026-07-04"
	second["end_date"] = "2026-07-10"
	_, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/roster", second)

	resp, envelope := doJSON(t, http.MethodGet, srv.URL+"/api/v1/roster/conflicts", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	conflicts := envelope.Data.([]interface{})
	assert.Len(t, conflicts, 1)
}

func TestRebuildEndpoint(t *testing.T) {
	srv := newTestServer(t)

	records := []map[string]interface{}{
		{
			"order_id":      1001,
			"order_item_id": 1,
			"product_id":    55,
			"customer_id":   42,
			"player_index":  0,
			"activity_type": "Camp",
			"venue":         "Lausanne",
			"age_group":     "6-10y",
			"start_date":    "2026-07-06",
			"end_date":      "2026-07-10",
			"booking_type":  "Full Week",
			"season":        "Summer 2026",
			"region":        "Vaud",
			"order_status":  "processing",
			"parent_email":  "petra@example.ch",
			"parent_phone":  "+41 79 555 01 01",
			"player": map[string]string{
				"first_name":        "Lena",
				"last_name":         "Moser",
				"date_of_birth":     "2017-05-12",
				"gender":            "female",
				"emergency_contact": "Petra Moser",
				"emergency_phone":   "+41 79 555 01 01",
			},
		},
	}

	resp, envelope := doJSON(t, http.MethodPost, srv.URL+"/api/v1/roster/rebuild", records)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	result := envelope.Data.(map[string]interface{})
	assert.Equal(t, float64(1), result["created"])
	assert.Equal(t, float64(0), result["removed"])
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	_, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/roster", validEntry())

	resp, envelope := doJSON(t, http.MethodGet, srv.URL+"/api/v1/reports/stats", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	stats := envelope.Data.(map[string]interface{})
	assert.Equal(t, float64(1), stats["total_entries"])
}

func TestExportEndpoint(t *testing.T) {
	srv := newTestServer(t)

	_, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/roster", validEntry())

	resp, envelope := doJSON(t, http.MethodGet, srv.URL+"/api/v1/export/roster", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	rows := envelope.Data.([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, "Lena Moser", rows[0].(map[string]interface{})["Participant"])
}
