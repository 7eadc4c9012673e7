package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Player represents one enrolled household member. Identity is the
// composite (CustomerID, PlayerIndex); the index is assigned by the
// repository and kept contiguous per customer.
type Player struct {
	ID          int64 `json:"id"`
	CustomerID  int64 `json:"customer_id"`
	PlayerIndex int   `json:"player_index"`

	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	DateOfBirth       time.Time `json:"date_of_birth"`
	Gender            Gender    `json:"gender"`
	MedicalConditions string    `json:"medical_conditions,omitempty"`
	DietaryNeeds      string    `json:"dietary_needs,omitempty"`
	EmergencyContact  string    `json:"emergency_contact"`
	EmergencyPhone    string    `json:"emergency_phone"`
	NationalID        string    `json:"national_id,omitempty"`
	EventCount        int       `json:"event_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	changes map[string]string
}

// namePattern accepts letters (including diacritics), hyphens and
// apostrophes; length is checked separately.
var namePattern = regexp.MustCompile(`^[\p{L}][\p{L}'’\-]*$`)

// playerSetters is the fillable field set: every key a flat attribute map
// may carry, with its normalize-and-assign function. Keys outside this
// table are rejected by NewPlayer and Set.
var playerSetters = map[string]func(*Player, string) error{
	"customer_id": func(p *Player, v string) error {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("customer_id: %w", err)
		}
		p.CustomerID = id
		return nil
	},
	"player_index": func(p *Player, v string) error {
		idx, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("player_index: %w", err)
		}
		p.PlayerIndex = idx
		return nil
	},
	"first_name": func(p *Player, v string) error {
		p.FirstName = trimCollapse(v)
		return nil
	},
	"last_name": func(p *Player, v string) error {
		p.LastName = trimCollapse(v)
		return nil
	},
	"date_of_birth": func(p *Player, v string) error {
		if v == "" {
			p.DateOfBirth = time.Time{}
			return nil
		}
		dob, err := ParseDate(v)
		if err != nil {
			return fmt.Errorf("date_of_birth: %w", err)
		}
		p.DateOfBirth = dob
		return nil
	},
	"gender": func(p *Player, v string) error {
		p.Gender = NormalizeGender(v)
		return nil
	},
	"medical_conditions": func(p *Player, v string) error {
		p.MedicalConditions = trimCollapse(v)
		return nil
	},
	"dietary_needs": func(p *Player, v string) error {
		p.DietaryNeeds = trimCollapse(v)
		return nil
	},
	"emergency_contact": func(p *Player, v string) error {
		p.EmergencyContact = trimCollapse(v)
		return nil
	},
	"emergency_phone": func(p *Player, v string) error {
		p.EmergencyPhone = trimCollapse(v)
		return nil
	},
	"national_id": func(p *Player, v string) error {
		if digits, ok := NationalIDDigits(v); ok {
			p.NationalID = FormatNationalID(digits)
			return nil
		}
		p.NationalID = trimCollapse(v)
		return nil
	},
	"event_count": func(p *Player, v string) error {
		if v == "" {
			p.EventCount = 0
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("event_count: %w", err)
		}
		p.EventCount = n
		return nil
	},
}

// NewPlayer constructs a player from a flat attribute map. Keys outside
// the fillable set are rejected.
func NewPlayer(attrs map[string]string) (*Player, error) {
	p := &Player{}
	for field, value := range attrs {
		setter, ok := playerSetters[field]
		if !ok {
			return nil, fmt.Errorf("player field %q: %w", field, ErrUnknownField)
		}
		if err := setter(p, value); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Set updates one attribute through its normalizer and records it as
// dirty, so a later partial update writes only changed columns.
func (p *Player) Set(field, value string) error {
	setter, ok := playerSetters[field]
	if !ok {
		return fmt.Errorf("player field %q: %w", field, ErrUnknownField)
	}
	if err := setter(p, value); err != nil {
		return err
	}
	if p.changes == nil {
		p.changes = make(map[string]string)
	}
	p.changes[field] = value
	return nil
}

// Apply sets several attributes, keeping the dirty set in sync.
func (p *Player) Apply(attrs map[string]string) error {
	for field, value := range attrs {
		if err := p.Set(field, value); err != nil {
			return err
		}
	}
	return nil
}

// Changes returns the attributes modified since the last sync, in their
// normalized wire form.
func (p *Player) Changes() map[string]string {
	if len(p.changes) == 0 {
		return nil
	}
	out := make(map[string]string, len(p.changes))
	full := p.ToMap()
	for field := range p.changes {
		out[field] = full[field]
	}
	return out
}

// MarkSynced clears the dirty set after a successful store write.
func (p *Player) MarkSynced() {
	p.changes = nil
}

// Age returns the player's age in whole years at the reference date.
func (p *Player) Age(ref time.Time) int {
	if p.DateOfBirth.IsZero() {
		return 0
	}
	return YearsBetween(p.DateOfBirth, ref)
}

// AgeToday returns the player's current age in whole years.
func (p *Player) AgeToday() int {
	return p.Age(time.Now())
}

// FullName returns "First Last".
func (p *Player) FullName() string {
	return p.FirstName + " " + p.LastName
}

// EligibleFor reports whether the player may register for the age group
// at the reference date.
func (p *Player) EligibleFor(ageGroup string, ref time.Time) bool {
	return EligibleForAgeGroup(p.DateOfBirth, ageGroup, ref)
}

// Validate runs the declarative field rules and returns a ValidationError
// listing every violation, or nil when the player is valid.
func (p *Player) Validate() error {
	v := NewValidationError()

	validateName(v, "first_name", p.FirstName)
	validateName(v, "last_name", p.LastName)

	if p.DateOfBirth.IsZero() {
		v.Add("date_of_birth", "is required")
	} else {
		now := time.Now()
		if p.DateOfBirth.After(now) {
			v.Add("date_of_birth", "must not be in the future")
		} else if age := YearsBetween(p.DateOfBirth, now); age > 18 {
			v.Add("date_of_birth", "participant must be 18 or younger")
		}
	}

	switch p.Gender {
	case GenderMale, GenderFemale, GenderOther:
	default:
		v.Add("gender", "must be male, female or other")
	}

	if p.NationalID != "" && !ValidNationalID(p.NationalID) {
		v.Add("national_id", "must be a valid NNN.NNNN.NNNN.NN number")
	}

	if p.EventCount < 0 {
		v.Add("event_count", "must not be negative")
	}

	return v.ErrOrNil()
}

// IsValid is the boolean form of Validate.
func (p *Player) IsValid() bool {
	return p.Validate() == nil
}

func validateName(v *ValidationError, field, value string) {
	if len([]rune(value)) < 2 {
		v.Add(field, "must be at least 2 characters")
		return
	}
	if !namePattern.MatchString(value) {
		v.Add(field, "may only contain letters, hyphens and apostrophes")
	}
}

// ToMap renders the player as a flat attribute map in canonical wire form.
// Feeding the result back into NewPlayer reproduces an equivalent player.
func (p *Player) ToMap() map[string]string {
	return map[string]string{
		"customer_id":        strconv.FormatInt(p.CustomerID, 10),
		"player_index":       strconv.Itoa(p.PlayerIndex),
		"first_name":         p.FirstName,
		"last_name":          p.LastName,
		"date_of_birth":      FormatDate(p.DateOfBirth),
		"gender":             string(p.Gender),
		"medical_conditions": p.MedicalConditions,
		"dietary_needs":      p.DietaryNeeds,
		"emergency_contact":  p.EmergencyContact,
		"emergency_phone":    p.EmergencyPhone,
		"national_id":        p.NationalID,
		"event_count":        strconv.Itoa(p.EventCount),
	}
}

// HasSpecialNeeds reports whether the player carries medical conditions
// or dietary needs that staff must see on printed rosters.
func (p *Player) HasSpecialNeeds() bool {
	return p.MedicalConditions != "" || p.DietaryNeeds != ""
}
