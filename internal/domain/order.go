package domain

import "strconv"

// OrderRecord is the inbound shape of a purchased roster slot as it
// arrives from the order feed or a bulk rebuild source. One record maps
// to exactly one roster entry.
type OrderRecord struct {
	OrderID     int64 `json:"order_id"`
	OrderItemID int64 `json:"order_item_id"`
	ProductID   int64 `json:"product_id"`
	CustomerID  int64 `json:"customer_id"`
	PlayerIndex int   `json:"player_index"`

	ActivityType string   `json:"activity_type"`
	Venue        string   `json:"venue"`
	AgeGroup     string   `json:"age_group"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	BookingType  string   `json:"booking_type"`
	SelectedDays []string `json:"selected_days,omitempty"`
	Season       string   `json:"season"`
	Region       string   `json:"region"`

	ParentEmail      string `json:"parent_email"`
	ParentPhone      string `json:"parent_phone"`
	EmergencyContact string `json:"emergency_contact"`
	EmergencyPhone   string `json:"emergency_phone"`

	OrderStatus     string `json:"order_status"`
	DiscountApplied bool   `json:"discount_applied"`

	// Player holds the participant snapshot keyed by entry attribute
	// names (first_name, last_name, date_of_birth, gender, ...).
	Player map[string]string `json:"player"`
}

// Key returns the record's natural key in the same form as
// RosterEntry.NaturalKey.
func (r OrderRecord) Key() string {
	return strconv.FormatInt(r.OrderID, 10) + ":" +
		strconv.FormatInt(r.OrderItemID, 10) + ":" +
		strconv.Itoa(r.PlayerIndex)
}

// EntryAttrs flattens the record into the attribute map accepted by
// NewRosterEntry. Empty values are omitted so entity defaults apply.
func (r OrderRecord) EntryAttrs() map[string]string {
	attrs := map[string]string{
		"order_id":      strconv.FormatInt(r.OrderID, 10),
		"order_item_id": strconv.FormatInt(r.OrderItemID, 10),
		"product_id":    strconv.FormatInt(r.ProductID, 10),
		"customer_id":   strconv.FormatInt(r.CustomerID, 10),
		"player_index":  strconv.Itoa(r.PlayerIndex),
	}
	put := func(key, val string) {
		if val != "" {
			attrs[key] = val
		}
	}
	put("activity_type", r.ActivityType)
	put("venue", r.Venue)
	put("age_group", r.AgeGroup)
	put("start_date", r.StartDate)
	put("end_date", r.EndDate)
	put("booking_type", r.BookingType)
	if len(r.SelectedDays) > 0 {
		days := r.SelectedDays[0]
		for _, d := range r.SelectedDays[1:] {
			days += "," + d
		}
		attrs["selected_days"] = days
	}
	put("season", r.Season)
	put("region", r.Region)
	put("parent_email", r.ParentEmail)
	put("parent_phone", r.ParentPhone)
	put("emergency_contact", r.EmergencyContact)
	put("emergency_phone", r.EmergencyPhone)
	put("order_status", r.OrderStatus)
	if r.DiscountApplied {
		attrs["discount_applied"] = "true"
	}
	for k, v := range r.Player {
		put(k, v)
	}
	return attrs
}
