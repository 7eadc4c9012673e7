package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// AgeRange is the numeric eligibility window encoded by an age-group label,
// inclusive on both ends.
type AgeRange struct {
	Min int
	Max int
}

// Contains reports whether age falls inside the range.
func (r AgeRange) Contains(age int) bool {
	return age >= r.Min && age <= r.Max
}

// ageGroupPresets are the canonical camp and course labels that do not
// carry their range in the label text.
var ageGroupPresets = map[string]AgeRange{
	"Mini":        {3, 5},
	"Kids":        {6, 10},
	"Juniors":     {11, 14},
	"Teens":       {15, 18},
	"Mini Course": {3, 5},
	"Kids Course": {6, 10},
	"All Ages":    {0, 18},
}

// ageGroupPattern matches labels of the form "{min}-{max}y", with optional
// trailing text ("6-10y Football").
var ageGroupPattern = regexp.MustCompile(`^(\d{1,2})\s*-\s*(\d{1,2})\s*y(?:\b.*)?$`)

// ParseAgeRange resolves an age-group label into its numeric range, either
// through the preset table or the "{min}-{max}y" pattern. The boolean is
// false when the label cannot be resolved.
func ParseAgeRange(label string) (AgeRange, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return AgeRange{}, false
	}
	if r, ok := ageGroupPresets[label]; ok {
		return r, true
	}
	m := ageGroupPattern.FindStringSubmatch(label)
	if m == nil {
		return AgeRange{}, false
	}
	min, _ := strconv.Atoi(m[1])
	max, _ := strconv.Atoi(m[2])
	if min > max {
		return AgeRange{}, false
	}
	return AgeRange{Min: min, Max: max}, true
}

// EligibleForAgeGroup reports whether a player born on dob is eligible for
// the given age group at the reference date. Unparseable labels fail
// closed: the player is reported ineligible.
func EligibleForAgeGroup(dob time.Time, ageGroup string, ref time.Time) bool {
	if dob.IsZero() {
		return false
	}
	r, ok := ParseAgeRange(ageGroup)
	if !ok {
		return false
	}
	return r.Contains(YearsBetween(dob, ref))
}
