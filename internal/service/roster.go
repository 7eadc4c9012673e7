// Package service provides the reporting views over the roster: grouped
// listings, stats, duplicate and conflict reports, and tabular export
// projections. All reads go through the cached repositories.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roster-engine/internal/collection"
	"github.com/roster-engine/internal/config"
	"github.com/roster-engine/internal/detect"
	"github.com/roster-engine/internal/domain"
	"github.com/roster-engine/internal/repo"
	"github.com/roster-engine/internal/store"
)

// RosterService provides reporting and export views over the roster
type RosterService struct {
	players *repo.PlayerRepo
	entries *repo.EntryRepo
	config  *config.RosterConfig
	logger  *slog.Logger
}

// NewRosterService creates a new roster reporting service
func NewRosterService(
	players *repo.PlayerRepo,
	entries *repo.EntryRepo,
	cfg *config.RosterConfig,
	logger *slog.Logger,
) *RosterService {
	return &RosterService{
		players: players,
		entries: entries,
		config:  cfg,
		logger:  logger,
	}
}

// ClampLimit folds a requested page size into the configured bounds.
func (s *RosterService) ClampLimit(limit int) int {
	if limit <= 0 {
		return s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		return s.config.MaxLimit
	}
	return limit
}

// Roster returns the entries matching criteria, shaped by opts, with
// the limit clamped to the configured bounds.
func (s *RosterService) Roster(ctx context.Context, criteria store.Criteria, opts store.Options) (*collection.Collection[*domain.RosterEntry], error) {
	opts.Limit = s.ClampLimit(opts.Limit)
	entries, err := s.entries.Where(ctx, criteria, opts)
	if err != nil {
		return nil, fmt.Errorf("querying roster: %w", err)
	}
	return entries, nil
}

// VenueReport groups a venue's entries by age group, sorted by
// participant name within each group.
func (s *RosterService) VenueReport(ctx context.Context, venue string) (*collection.Grouped[*domain.RosterEntry], error) {
	entries, err := s.entries.Where(ctx,
		store.Criteria{"venue": venue},
		store.Options{OrderBy: "start_date"})
	if err != nil {
		return nil, fmt.Errorf("querying venue roster: %w", err)
	}
	byGroup := entries.
		SortByString(func(e *domain.RosterEntry) string { return e.Player().FullName() }, false).
		GroupBy(func(e *domain.RosterEntry) string { return e.AgeGroup })
	return byGroup, nil
}

// SeasonReport groups a season's entries by venue.
func (s *RosterService) SeasonReport(ctx context.Context, season string) (*collection.Grouped[*domain.RosterEntry], error) {
	entries, err := s.entries.Where(ctx,
		store.Criteria{"season": season},
		store.Options{OrderBy: "venue"})
	if err != nil {
		return nil, fmt.Errorf("querying season roster: %w", err)
	}
	return entries.GroupBy(func(e *domain.RosterEntry) string { return e.Venue }), nil
}

// WeekReport returns the entries whose event starts in the week
// containing day, grouped by start date.
func (s *RosterService) WeekReport(ctx context.Context, day time.Time) (*collection.Grouped[*domain.RosterEntry], error) {
	day = day.UTC().Truncate(24 * time.Hour)
	// ISO week: Monday through Sunday.
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDate(0, 0, -offset)
	sunday := monday.AddDate(0, 0, 6)

	entries, err := s.entries.DateRange(ctx, monday, sunday)
	if err != nil {
		return nil, fmt.Errorf("querying week roster: %w", err)
	}
	return entries.GroupBy(func(e *domain.RosterEntry) string {
		return domain.FormatDate(e.StartDate)
	}), nil
}

// SpecialNeedsReport lists the entries whose participant carries
// medical or dietary notes, grouped by venue.
func (s *RosterService) SpecialNeedsReport(ctx context.Context) (*collection.Grouped[*domain.RosterEntry], error) {
	entries, err := s.entries.SpecialNeeds(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying special needs roster: %w", err)
	}
	return entries.GroupBy(func(e *domain.RosterEntry) string { return e.Venue }), nil
}

// DuplicateReport finds player profiles sharing an identity
// (normalized name + date of birth) across customers.
func (s *RosterService) DuplicateReport(ctx context.Context) ([]detect.DuplicateGroup, error) {
	players, err := s.players.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading players: %w", err)
	}
	return detect.PlayerDuplicates(players), nil
}

// ConflictReport finds pairs of entries booking the same participant
// into overlapping date ranges.
func (s *RosterService) ConflictReport(ctx context.Context) ([]detect.Conflict, error) {
	entries, err := s.entries.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}
	return detect.EntryConflicts(entries), nil
}

// IneligibleReport lists entries whose participant falls outside the
// event's age group at its start date.
func (s *RosterService) IneligibleReport(ctx context.Context) (*collection.Collection[*domain.RosterEntry], error) {
	entries, err := s.entries.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}
	return detect.IneligibleEntries(entries), nil
}

// Stats summarizes the roster for dashboards.
type Stats struct {
	TotalEntries int            `json:"total_entries"`
	TotalPlayers int            `json:"total_players"`
	ByActivity   map[string]int `json:"by_activity"`
	ByVenue      map[string]int `json:"by_venue"`
	ByStatus     map[string]int `json:"by_status"`
	SpecialNeeds int            `json:"special_needs"`
	AverageAge   float64        `json:"average_age"`
}

// Stats computes roster-wide counters.
func (s *RosterService) Stats(ctx context.Context) (*Stats, error) {
	entries, err := s.entries.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading roster: %w", err)
	}
	playerCount, err := s.players.Count(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("counting players: %w", err)
	}

	byActivity, _ := entries.CountBy(func(e *domain.RosterEntry) string { return string(e.ActivityType) })
	byVenue, _ := entries.CountBy(func(e *domain.RosterEntry) string { return e.Venue })
	byStatus, _ := entries.CountBy(func(e *domain.RosterEntry) string { return string(e.OrderStatus) })

	stats := &Stats{
		TotalEntries: entries.Len(),
		TotalPlayers: playerCount,
		ByActivity:   byActivity,
		ByVenue:      byVenue,
		ByStatus:     byStatus,
		SpecialNeeds: entries.Filter(func(e *domain.RosterEntry) bool { return e.HasSpecialNeeds() }).Len(),
		AverageAge:   entries.AvgBy(func(e *domain.RosterEntry) float64 { return float64(e.AgeAtStart()) }),
	}
	return stats, nil
}

// Export renders the entries matching criteria as display-named rows
// for tabular consumers.
func (s *RosterService) Export(ctx context.Context, criteria store.Criteria) ([]map[string]string, error) {
	entries, err := s.entries.Where(ctx, criteria, store.Options{OrderBy: "venue"})
	if err != nil {
		return nil, fmt.Errorf("querying roster for export: %w", err)
	}
	rows := make([]map[string]string, 0, entries.Len())
	entries.Each(func(e *domain.RosterEntry) {
		rows = append(rows, e.ExportData())
	})
	s.logger.Info("roster exported", "rows", len(rows))
	return rows, nil
}
