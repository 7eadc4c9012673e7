package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RosterEntry is one participant's registration to one event instance,
// denormalized from an order line item. The natural key is
// (OrderID, OrderItemID, PlayerIndex); ID is the synthetic store key
// assigned on insert.
//
// The entry owns a read-only snapshot of the player data taken at
// registration time. It never holds a live reference to the Player
// entity; Player() reconstructs a transient view for eligibility checks.
type RosterEntry struct {
	ID int64 `json:"id"`

	OrderID     int64 `json:"order_id"`
	OrderItemID int64 `json:"order_item_id"`
	ProductID   int64 `json:"product_id"`
	CustomerID  int64 `json:"customer_id"`
	PlayerIndex int   `json:"player_index"`

	// Player snapshot
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	DateOfBirth       time.Time `json:"date_of_birth"`
	Gender            Gender    `json:"gender"`
	MedicalConditions string    `json:"medical_conditions,omitempty"`
	DietaryNeeds      string    `json:"dietary_needs,omitempty"`

	// Event
	ActivityType ActivityType `json:"activity_type"`
	Venue        string       `json:"venue"`
	AgeGroup     string       `json:"age_group"`
	StartDate    time.Time    `json:"start_date"`
	EndDate      time.Time    `json:"end_date"`
	BookingType  BookingType  `json:"booking_type"`
	SelectedDays []string     `json:"selected_days,omitempty"`
	Season       string       `json:"season"`
	Region       string       `json:"region"`

	// Contacts
	ParentEmail      string `json:"parent_email"`
	ParentPhone      string `json:"parent_phone"`
	EmergencyContact string `json:"emergency_contact"`
	EmergencyPhone   string `json:"emergency_phone"`

	OrderStatus     OrderStatus `json:"order_status"`
	DiscountApplied bool        `json:"discount_applied"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	changes map[string]string
}

// Duration limits per activity type, in inclusive days.
const (
	maxCampDays   = 7
	maxCourseDays = 365
)

func setInt64(dst *int64, field, v string) error {
	if v == "" {
		*dst = 0
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = n
	return nil
}

func setDate(dst *time.Time, field, v string) error {
	if v == "" {
		*dst = time.Time{}
		return nil
	}
	t, err := ParseDate(v)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = t
	return nil
}

// entrySetters is the fillable field set for roster entries.
var entrySetters = map[string]func(*RosterEntry, string) error{
	"order_id":      func(e *RosterEntry, v string) error { return setInt64(&e.OrderID, "order_id", v) },
	"order_item_id": func(e *RosterEntry, v string) error { return setInt64(&e.OrderItemID, "order_item_id", v) },
	"product_id":    func(e *RosterEntry, v string) error { return setInt64(&e.ProductID, "product_id", v) },
	"customer_id":   func(e *RosterEntry, v string) error { return setInt64(&e.CustomerID, "customer_id", v) },
	"player_index": func(e *RosterEntry, v string) error {
		idx, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("player_index: %w", err)
		}
		e.PlayerIndex = idx
		return nil
	},
	"first_name": func(e *RosterEntry, v string) error {
		e.FirstName = trimCollapse(v)
		return nil
	},
	"last_name": func(e *RosterEntry, v string) error {
		e.LastName = trimCollapse(v)
		return nil
	},
	"date_of_birth": func(e *RosterEntry, v string) error { return setDate(&e.DateOfBirth, "date_of_birth", v) },
	"gender": func(e *RosterEntry, v string) error {
		e.Gender = NormalizeGender(v)
		return nil
	},
	"medical_conditions": func(e *RosterEntry, v string) error {
		e.MedicalConditions = trimCollapse(v)
		return nil
	},
	"dietary_needs": func(e *RosterEntry, v string) error {
		e.DietaryNeeds = trimCollapse(v)
		return nil
	},
	"activity_type": func(e *RosterEntry, v string) error {
		e.ActivityType = ActivityType(trimCollapse(v))
		return nil
	},
	"venue": func(e *RosterEntry, v string) error {
		e.Venue = trimCollapse(v)
		return nil
	},
	"age_group": func(e *RosterEntry, v string) error {
		e.AgeGroup = trimCollapse(v)
		return nil
	},
	"start_date": func(e *RosterEntry, v string) error { return setDate(&e.StartDate, "start_date", v) },
	"end_date":   func(e *RosterEntry, v string) error { return setDate(&e.EndDate, "end_date", v) },
	"booking_type": func(e *RosterEntry, v string) error {
		e.BookingType = BookingType(trimCollapse(v))
		return nil
	},
	"selected_days": func(e *RosterEntry, v string) error {
		e.SelectedDays = ParseSelectedDays(v)
		return nil
	},
	"season": func(e *RosterEntry, v string) error {
		e.Season = trimCollapse(v)
		return nil
	},
	"region": func(e *RosterEntry, v string) error {
		e.Region = trimCollapse(v)
		return nil
	},
	"parent_email": func(e *RosterEntry, v string) error {
		e.ParentEmail = strings.ToLower(trimCollapse(v))
		return nil
	},
	"parent_phone": func(e *RosterEntry, v string) error {
		e.ParentPhone = trimCollapse(v)
		return nil
	},
	"emergency_contact": func(e *RosterEntry, v string) error {
		e.EmergencyContact = trimCollapse(v)
		return nil
	},
	"emergency_phone": func(e *RosterEntry, v string) error {
		e.EmergencyPhone = trimCollapse(v)
		return nil
	},
	"order_status": func(e *RosterEntry, v string) error {
		e.OrderStatus = NormalizeOrderStatus(v)
		return nil
	},
	"discount_applied": func(e *RosterEntry, v string) error {
		if v == "" {
			e.DiscountApplied = false
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("discount_applied: %w", err)
		}
		e.DiscountApplied = b
		return nil
	},
}

// ParseSelectedDays splits a comma-separated day list, trimming blanks.
func ParseSelectedDays(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	days := make([]string, 0, len(parts))
	for _, p := range parts {
		if d := strings.TrimSpace(p); d != "" {
			days = append(days, d)
		}
	}
	return days
}

// NewRosterEntry constructs a roster entry from a flat attribute map.
// Keys outside the fillable set are rejected.
func NewRosterEntry(attrs map[string]string) (*RosterEntry, error) {
	e := &RosterEntry{}
	for field, value := range attrs {
		setter, ok := entrySetters[field]
		if !ok {
			return nil, fmt.Errorf("roster entry field %q: %w", field, ErrUnknownField)
		}
		if err := setter(e, value); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Set updates one attribute through its normalizer and records it as dirty.
func (e *RosterEntry) Set(field, value string) error {
	setter, ok := entrySetters[field]
	if !ok {
		return fmt.Errorf("roster entry field %q: %w", field, ErrUnknownField)
	}
	if err := setter(e, value); err != nil {
		return err
	}
	if e.changes == nil {
		e.changes = make(map[string]string)
	}
	e.changes[field] = value
	return nil
}

// Apply sets several attributes, keeping the dirty set in sync.
func (e *RosterEntry) Apply(attrs map[string]string) error {
	for field, value := range attrs {
		if err := e.Set(field, value); err != nil {
			return err
		}
	}
	return nil
}

// Changes returns the attributes modified since the last sync, in their
// normalized wire form.
func (e *RosterEntry) Changes() map[string]string {
	if len(e.changes) == 0 {
		return nil
	}
	out := make(map[string]string, len(e.changes))
	full := e.ToMap()
	for field := range e.changes {
		out[field] = full[field]
	}
	return out
}

// MarkSynced clears the dirty set after a successful store write.
func (e *RosterEntry) MarkSynced() {
	e.changes = nil
}

// NaturalKey renders the business uniqueness tuple as a single string,
// used for duplicate prevention and cache keys.
func (e *RosterEntry) NaturalKey() string {
	return fmt.Sprintf("%d:%d:%d", e.OrderID, e.OrderItemID, e.PlayerIndex)
}

// Player reconstructs a transient player view from the snapshot fields.
// The view is detached: mutating it never touches the entry.
func (e *RosterEntry) Player() *Player {
	return &Player{
		CustomerID:        e.CustomerID,
		PlayerIndex:       e.PlayerIndex,
		FirstName:         e.FirstName,
		LastName:          e.LastName,
		DateOfBirth:       e.DateOfBirth,
		Gender:            e.Gender,
		MedicalConditions: e.MedicalConditions,
		DietaryNeeds:      e.DietaryNeeds,
		EmergencyContact:  e.EmergencyContact,
		EmergencyPhone:    e.EmergencyPhone,
	}
}

// EffectiveEnd returns the entry's end date, falling back to the start
// date for single-day events without one.
func (e *RosterEntry) EffectiveEnd() time.Time {
	if e.EndDate.IsZero() {
		return e.StartDate
	}
	return e.EndDate
}

// DurationDays returns the inclusive day count of the event, or 0 when
// no start date is set.
func (e *RosterEntry) DurationDays() int {
	if e.StartDate.IsZero() {
		return 0
	}
	return int(e.EffectiveEnd().Sub(e.StartDate).Hours()/24) + 1
}

// AgeAtStart returns the participant's age in whole years at the event
// start date.
func (e *RosterEntry) AgeAtStart() int {
	if e.DateOfBirth.IsZero() || e.StartDate.IsZero() {
		return 0
	}
	return YearsBetween(e.DateOfBirth, e.StartDate)
}

// Validate runs the declarative field rules and returns a ValidationError
// listing every violation, or nil when the entry is valid.
func (e *RosterEntry) Validate() error {
	v := NewValidationError()

	if e.OrderID <= 0 {
		v.Add("order_id", "is required")
	}
	if e.OrderItemID <= 0 {
		v.Add("order_item_id", "is required")
	}
	if e.PlayerIndex < 0 {
		v.Add("player_index", "must not be negative")
	}

	if !ValidActivityType(e.ActivityType) {
		v.Add("activity_type", "must be Camp, Course or Birthday Party")
	}
	if e.BookingType != "" && !ValidBookingType(e.BookingType) {
		v.Add("booking_type", "must be Full Week, Single Day(s) or Full Term")
	}
	if !ValidOrderStatus(e.OrderStatus) {
		v.Add("order_status", "is not a known order status")
	}

	if !e.StartDate.IsZero() && !e.EndDate.IsZero() && e.EndDate.Before(e.StartDate) {
		v.Add("end_date", "must not be before start_date")
	} else if !e.StartDate.IsZero() {
		days := e.DurationDays()
		if e.ActivityType == ActivityCamp && days > maxCampDays {
			v.Add("end_date", fmt.Sprintf("camp duration must not exceed %d days", maxCampDays))
		}
		if e.ActivityType == ActivityCourse && days > maxCourseDays {
			v.Add("end_date", fmt.Sprintf("course duration must not exceed %d days", maxCourseDays))
		}
	}

	if e.BookingType == BookingSingleDays {
		if len(e.SelectedDays) == 0 {
			v.Add("selected_days", "is required for single-day bookings")
		}
		for _, day := range e.SelectedDays {
			if !IsWeekday(day) {
				v.Add("selected_days", fmt.Sprintf("%q is not a weekday name", day))
			}
		}
	}
	if e.ActivityType == ActivityCourse && e.BookingType == BookingFullWeek {
		v.Add("booking_type", "courses cannot be booked as Full Week")
	}
	if e.ActivityType == ActivityCamp && e.BookingType == BookingFullTerm {
		v.Add("booking_type", "camps cannot be booked as Full Term")
	}

	if e.AgeGroup != "" && !e.DateOfBirth.IsZero() && !e.StartDate.IsZero() {
		if r, ok := ParseAgeRange(e.AgeGroup); ok && !r.Contains(e.AgeAtStart()) {
			v.Add("age_group", fmt.Sprintf("participant age %d is outside %d-%d", e.AgeAtStart(), r.Min, r.Max))
		}
	}

	return v.ErrOrNil()
}

// IsValid is the boolean form of Validate.
func (e *RosterEntry) IsValid() bool {
	return e.Validate() == nil
}

// ToMap renders the entry as a flat attribute map in canonical wire form.
// Feeding the result back into NewRosterEntry reproduces an equivalent
// entry (the synthetic ID and timestamps are store-owned and excluded).
func (e *RosterEntry) ToMap() map[string]string {
	return map[string]string{
		"order_id":           strconv.FormatInt(e.OrderID, 10),
		"order_item_id":      strconv.FormatInt(e.OrderItemID, 10),
		"product_id":         strconv.FormatInt(e.ProductID, 10),
		"customer_id":        strconv.FormatInt(e.CustomerID, 10),
		"player_index":       strconv.Itoa(e.PlayerIndex),
		"first_name":         e.FirstName,
		"last_name":          e.LastName,
		"date_of_birth":      FormatDate(e.DateOfBirth),
		"gender":             string(e.Gender),
		"medical_conditions": e.MedicalConditions,
		"dietary_needs":      e.DietaryNeeds,
		"activity_type":      string(e.ActivityType),
		"venue":              e.Venue,
		"age_group":          e.AgeGroup,
		"start_date":         FormatDate(e.StartDate),
		"end_date":           FormatDate(e.EndDate),
		"booking_type":       string(e.BookingType),
		"selected_days":      strings.Join(e.SelectedDays, ","),
		"season":             e.Season,
		"region":             e.Region,
		"parent_email":       e.ParentEmail,
		"parent_phone":       e.ParentPhone,
		"emergency_contact":  e.EmergencyContact,
		"emergency_phone":    e.EmergencyPhone,
		"order_status":       string(e.OrderStatus),
		"discount_applied":   strconv.FormatBool(e.DiscountApplied),
	}
}

// ExportData returns the named-field projection handed to tabular
// consumers (CSV and spreadsheet writers live outside the core).
func (e *RosterEntry) ExportData() map[string]string {
	return map[string]string{
		"Order":          strconv.FormatInt(e.OrderID, 10),
		"Participant":    e.FirstName + " " + e.LastName,
		"Date of Birth":  FormatDate(e.DateOfBirth),
		"Gender":         string(e.Gender),
		"Activity":       string(e.ActivityType),
		"Venue":          e.Venue,
		"Age Group":      e.AgeGroup,
		"Start":          FormatDate(e.StartDate),
		"End":            FormatDate(e.EndDate),
		"Booking":        string(e.BookingType),
		"Days":           strings.Join(e.SelectedDays, ", "),
		"Season":         e.Season,
		"Region":         e.Region,
		"Status":         string(e.OrderStatus),
		"Medical":        e.MedicalConditions,
		"Dietary":        e.DietaryNeeds,
		"Parent Email":   e.ParentEmail,
		"Parent Phone":   e.ParentPhone,
		"Emergency":      e.EmergencyContact,
		"Emergency Tel.": e.EmergencyPhone,
	}
}

// HasSpecialNeeds reports whether the snapshot carries medical conditions
// or dietary needs.
func (e *RosterEntry) HasSpecialNeeds() bool {
	return e.MedicalConditions != "" || e.DietaryNeeds != ""
}
