package domain

import "strings"

// Gender represents a participant's registered gender.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// genderSynonyms maps free-text registration inputs onto the enum.
var genderSynonyms = map[string]Gender{
	"male": GenderMale, "m": GenderMale, "boy": GenderMale, "b": GenderMale,
	"garcon": GenderMale, "junge": GenderMale,
	"female": GenderFemale, "f": GenderFemale, "girl": GenderFemale, "g": GenderFemale,
	"fille": GenderFemale, "maedchen": GenderFemale,
	"other": GenderOther, "o": GenderOther, "x": GenderOther, "divers": GenderOther,
}

// NormalizeGender maps free-text gender input onto the enum. Unknown or
// empty input falls back to "other".
func NormalizeGender(value string) Gender {
	if g, ok := genderSynonyms[strings.ToLower(strings.TrimSpace(value))]; ok {
		return g
	}
	return GenderOther
}

// ActivityType represents the kind of event a roster entry books.
type ActivityType string

const (
	ActivityCamp     ActivityType = "Camp"
	ActivityCourse   ActivityType = "Course"
	ActivityBirthday ActivityType = "Birthday Party"
)

// ValidActivityType reports whether t is a known activity type.
func ValidActivityType(t ActivityType) bool {
	switch t {
	case ActivityCamp, ActivityCourse, ActivityBirthday:
		return true
	}
	return false
}

// BookingType represents how days are booked within an event.
type BookingType string

const (
	BookingFullWeek   BookingType = "Full Week"
	BookingSingleDays BookingType = "Single Day(s)"
	BookingFullTerm   BookingType = "Full Term"
)

// ValidBookingType reports whether t is a known booking type.
func ValidBookingType(t BookingType) bool {
	switch t {
	case BookingFullWeek, BookingSingleDays, BookingFullTerm:
		return true
	}
	return false
}

// OrderStatus mirrors the order-source system's order lifecycle. The
// repository does not enforce transitions (the order source owns the
// status) but it normalizes synonyms on write.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusOnHold     OrderStatus = "on-hold"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
	StatusRefunded   OrderStatus = "refunded"
	StatusFailed     OrderStatus = "failed"
)

var statusSynonyms = map[string]OrderStatus{
	"pending":    StatusPending,
	"processing": StatusProcessing,
	"on-hold":    StatusOnHold,
	"hold":       StatusOnHold,
	"on hold":    StatusOnHold,
	"completed":  StatusCompleted,
	"complete":   StatusCompleted,
	"cancelled":  StatusCancelled,
	"canceled":   StatusCancelled,
	"refunded":   StatusRefunded,
	"failed":     StatusFailed,
}

// NormalizeOrderStatus maps an order-source status string (including the
// spellings older exports used) onto the enum. Empty input defaults to
// pending; an unrecognized value is kept as-is so validation reports it
// instead of quietly rewriting upstream data.
func NormalizeOrderStatus(value string) OrderStatus {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.TrimPrefix(value, "wc-")
	if value == "" {
		return StatusPending
	}
	if s, ok := statusSynonyms[value]; ok {
		return s
	}
	return OrderStatus(value)
}

// IsTerminal reports whether the status is a terminal order state.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRefunded, StatusFailed:
		return true
	}
	return false
}

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusOnHold,
		StatusCompleted, StatusCancelled, StatusRefunded, StatusFailed:
		return true
	}
	return false
}
