// Package detect implements duplicate and conflict detection over roster
// collections. All functions are pure: they read the collections they
// are given and never mutate them.
package detect

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/roster-engine/internal/collection"
	"github.com/roster-engine/internal/domain"
)

// IdentityKey computes the candidate-grouping key for a player: a hash of
// the lowercased trimmed "first last" name plus the date of birth (or
// "unknown" when missing). Players sharing a key look like re-entries of
// the same person.
func IdentityKey(firstName, lastName string, dob time.Time) string {
	name := strings.ToLower(strings.TrimSpace(firstName + " " + lastName))
	birth := "unknown"
	if !dob.IsZero() {
		birth = domain.FormatDate(dob)
	}
	h := fnv.New64a()
	h.Write([]byte(name + "|" + birth))
	return fmt.Sprintf("%016x", h.Sum64())
}

// PlayerIdentityKey is IdentityKey applied to a player entity.
func PlayerIdentityKey(p *domain.Player) string {
	return IdentityKey(p.FirstName, p.LastName, p.DateOfBirth)
}

// DuplicateGroup is one set of players that appear to be the same person.
type DuplicateGroup struct {
	Key     string
	Players []*domain.Player
}

// PlayerDuplicates partitions the collection by identity key and reports
// every group holding more than one player. Grouping first keeps the scan
// near-linear even over the full player table.
func PlayerDuplicates(players *collection.Collection[*domain.Player]) []DuplicateGroup {
	grouped := players.GroupBy(PlayerIdentityKey)

	var out []DuplicateGroup
	grouped.Each(func(key string, group *collection.Collection[*domain.Player]) {
		if group.Len() > 1 {
			out = append(out, DuplicateGroup{Key: key, Players: group.Items()})
		}
	})
	return out
}

// ConflictsWith reports whether two entries double-book the same
// participant: same (customer, player index) and inclusive date overlap.
// The check is symmetric.
func ConflictsWith(a, b *domain.RosterEntry) bool {
	if a.CustomerID != b.CustomerID || a.PlayerIndex != b.PlayerIndex {
		return false
	}
	if a.StartDate.IsZero() || b.StartDate.IsZero() {
		return false
	}
	return !a.StartDate.After(b.EffectiveEnd()) && !a.EffectiveEnd().Before(b.StartDate)
}

// Conflict is one overlapping pair of entries for the same participant.
type Conflict struct {
	A *domain.RosterEntry
	B *domain.RosterEntry
}

// participantKey groups entries by the participant they book.
func participantKey(e *domain.RosterEntry) string {
	return fmt.Sprintf("%d:%d", e.CustomerID, e.PlayerIndex)
}

// EntryConflicts finds every pair of entries that double-book a
// participant on overlapping dates. Entries are grouped by participant
// first so interval checks only run within each group; the result is
// de-duplicated by natural key pair.
func EntryConflicts(entries *collection.Collection[*domain.RosterEntry]) []Conflict {
	grouped := entries.GroupBy(participantKey)

	var out []Conflict
	seen := make(map[string]struct{})
	grouped.Each(func(_ string, group *collection.Collection[*domain.RosterEntry]) {
		items := group.Items()
		for i := 0; i < len(items); i++ {
			for j := i + 1; j < len(items); j++ {
				a, b := items[i], items[j]
				if a.NaturalKey() == b.NaturalKey() {
					continue
				}
				if !ConflictsWith(a, b) {
					continue
				}
				pair := pairKey(a, b)
				if _, dup := seen[pair]; dup {
					continue
				}
				seen[pair] = struct{}{}
				out = append(out, Conflict{A: a, B: b})
			}
		}
	})
	return out
}

// ConflictingEntries returns the distinct entries involved in any
// conflict, de-duplicated by natural key.
func ConflictingEntries(entries *collection.Collection[*domain.RosterEntry]) *collection.Collection[*domain.RosterEntry] {
	out := collection.New[*domain.RosterEntry]()
	for _, c := range EntryConflicts(entries) {
		out.Add(c.A)
		out.Add(c.B)
	}
	return out.Unique(func(e *domain.RosterEntry) string { return e.NaturalKey() })
}

func pairKey(a, b *domain.RosterEntry) string {
	ka, kb := a.NaturalKey(), b.NaturalKey()
	if kb < ka {
		ka, kb = kb, ka
	}
	return ka + "|" + kb
}

// IneligibleEntries returns the entries whose participant falls outside
// the event's age group at the start date. Entries without an age group
// or start date are skipped; unparseable age groups fail closed and are
// reported.
func IneligibleEntries(entries *collection.Collection[*domain.RosterEntry]) *collection.Collection[*domain.RosterEntry] {
	return entries.Filter(func(e *domain.RosterEntry) bool {
		if e.AgeGroup == "" || e.StartDate.IsZero() || e.DateOfBirth.IsZero() {
			return false
		}
		return !domain.EligibleForAgeGroup(e.DateOfBirth, e.AgeGroup, e.StartDate)
	})
}
