package models

import "time"

// Override is a manual correction for a listing. Nil fields are not set.
type Override struct {
	Key       string    `json:"key" db:"key"`
	Area      *int      `json:"area" db:"area"`
	Price     *int      `json:"price" db:"price"`
	Reason    string    `json:"reason" db:"override_reason"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Apply returns l with the override's area and price in place of the
// scraped values. A nil override returns l unchanged.
func (o *Override) Apply(l Listing) Listing {
	if o == nil {
		return l
	}
	changed := false
	if o.Area != nil {
		l.Area = IntPtr(*o.Area)
		changed = true
	}
	if o.Price != nil {
		l.Price = IntPtr(*o.Price)
		changed = true
	}
	if changed {
		l.RecomputePricePerSqm()
	}
	return l
}
