package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roster-engine/internal/collection"
	"github.com/roster-engine/internal/domain"
)

func date(s string) time.Time {
	t, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func player(first, last, dob string) *domain.Player {
	p := &domain.Player{FirstName: first, LastName: last}
	if dob != "" {
		p.DateOfBirth = date(dob)
	}
	return p
}

func entry(orderID, itemID int64, customerID int64, playerIndex int, start, end string) *domain.RosterEntry {
	e := &domain.RosterEntry{
		OrderID:     orderID,
		OrderItemID: itemID,
		CustomerID:  customerID,
		PlayerIndex: playerIndex,
	}
	if start != "" {
		e.StartDate = date(start)
	}
	if end != "" {
		e.EndDate = date(end)
	}
	return e
}

func TestIdentityKeyNormalization(t *testing.T) {
	a := IdentityKey("Léa", "Müller", date("2015-06-01"))
	b := IdentityKey("  léa", "müller ", date("2015-06-01"))
	c := IdentityKey("Léa", "Müller", date("2014-06-01"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	unknown := IdentityKey("Léa", "Müller", time.Time{})
	assert.NotEqual(t, a, unknown)
}

func TestPlayerDuplicatesGrouping(t *testing.T) {
	players := collection.New(
		player("Léa", "Müller", "2015-06-01"),
		player("Max", "Frey", "2014-03-10"),
		player("léa", "müller", "2015-06-01"),
		player("Mia", "Rey", ""),
		player("Mia", "Rey", ""),
		player("Tom", "Solo", "2016-01-01"),
	)

	groups := PlayerDuplicates(players)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].Players, 2)
	assert.Equal(t, "Léa", groups[0].Players[0].FirstName)
	assert.Len(t, groups[1].Players, 2)
	assert.Equal(t, "Mia", groups[1].Players[0].FirstName)
}

func TestPlayerDuplicatesNone(t *testing.T) {
	players := collection.New(
		player("Léa", "Müller", "2015-06-01"),
		player("Léa", "Müller", "2014-06-01"),
	)
	assert.Empty(t, PlayerDuplicates(players))
}

func TestConflictsWithOverlap(t *testing.T) {
	a := entry(1, 1, 1, 0, "2024-07-01", "2024-07-05")
	b := entry(2, 2, 1, 0, "2024-07-04", "2024-07-10")
	c := entry(3, 3, 1, 0, "2024-07-06", "2024-07-10")

	assert.True(t, ConflictsWith(a, b))
	assert.False(t, ConflictsWith(a, c))

	// Adjacent ranges starting the day after do not overlap.
	d := entry(4, 4, 1, 0, "2024-07-01", "2024-07-03")
	e := entry(5, 5, 1, 0, "2024-07-04", "2024-07-10")
	assert.False(t, ConflictsWith(d, e))

	// Inclusive bounds: sharing a single day conflicts.
	f := entry(6, 6, 1, 0, "2024-07-05", "2024-07-08")
	assert.True(t, ConflictsWith(a, f))
}

func TestConflictsWithSymmetric(t *testing.T) {
	pairs := [][2]*domain.RosterEntry{
		{entry(1, 1, 1, 0, "2024-07-01", "2024-07-05"), entry(2, 2, 1, 0, "2024-07-04", "2024-07-10")},
		{entry(1, 1, 1, 0, "2024-07-01", "2024-07-03"), entry(2, 2, 1, 0, "2024-07-04", "2024-07-10")},
		{entry(1, 1, 1, 0, "2024-07-01", ""), entry(2, 2, 1, 0, "2024-07-01", "")},
		{entry(1, 1, 1, 0, "2024-07-01", ""), entry(2, 2, 2, 0, "2024-07-01", "")},
	}
	for _, p := range pairs {
		assert.Equal(t, ConflictsWith(p[0], p[1]), ConflictsWith(p[1], p[0]))
	}
}

func TestConflictsWithDifferentParticipant(t *testing.T) {
	a := entry(1, 1, 1, 0, "2024-07-01", "2024-07-05")
	b := entry(2, 2, 1, 1, "2024-07-01", "2024-07-05")
	c := entry(3, 3, 2, 0, "2024-07-01", "2024-07-05")

	assert.False(t, ConflictsWith(a, b))
	assert.False(t, ConflictsWith(a, c))
}

func TestConflictsWithMissingEndUsesStart(t *testing.T) {
	a := entry(1, 1, 1, 0, "2024-07-03", "")
	b := entry(2, 2, 1, 0, "2024-07-01", "2024-07-05")
	c := entry(3, 3, 1, 0, "2024-07-06", "2024-07-08")

	assert.True(t, ConflictsWith(a, b))
	assert.False(t, ConflictsWith(a, c))
}

func TestEntryConflictsGroupsFirst(t *testing.T) {
	entries := collection.New(
		entry(1, 1, 1, 0, "2024-07-01", "2024-07-05"),
		entry(2, 2, 1, 0, "2024-07-04", "2024-07-10"),
		entry(3, 3, 2, 0, "2024-07-01", "2024-07-05"), // other customer, no conflict
		entry(4, 4, 1, 1, "2024-07-01", "2024-07-05"), // sibling, no conflict
		entry(5, 5, 3, 0, "2024-08-01", "2024-08-02"),
		entry(6, 6, 3, 0, "2024-08-02", "2024-08-03"),
		entry(7, 7, 3, 0, "2024-08-03", "2024-08-04"),
	)

	conflicts := EntryConflicts(entries)
	require.Len(t, conflicts, 3)

	involved := ConflictingEntries(entries)
	assert.Equal(t, 5, involved.Len())
}

func TestEntryConflictsIgnoresSameNaturalKey(t *testing.T) {
	entries := collection.New(
		entry(1, 1, 1, 0, "2024-07-01", "2024-07-05"),
		entry(1, 1, 1, 0, "2024-07-01", "2024-07-05"),
	)
	assert.Empty(t, EntryConflicts(entries))
}

func TestIneligibleEntries(t *testing.T) {
	ok := entry(1, 1, 1, 0, "2024-06-01", "2024-06-05")
	ok.DateOfBirth = date("2015-06-01")
	ok.AgeGroup = "6-10y"

	tooYoung := entry(2, 2, 1, 1, "2024-06-01", "2024-06-05")
	tooYoung.DateOfBirth = date("2021-01-01")
	tooYoung.AgeGroup = "6-10y"

	unparseable := entry(3, 3, 1, 2, "2024-06-01", "2024-06-05")
	unparseable.DateOfBirth = date("2015-06-01")
	unparseable.AgeGroup = "whatever"

	noGroup := entry(4, 4, 1, 3, "2024-06-01", "2024-06-05")
	noGroup.DateOfBirth = date("2015-06-01")

	out := IneligibleEntries(collection.New(ok, tooYoung, unparseable, noGroup))
	assert.Equal(t, 2, out.Len())
}
