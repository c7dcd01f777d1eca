package models

import "time"

type TravelMode string

const (
	ModeTransit TravelMode = "transit"
	ModeDriving TravelMode = "driving"
)

// Leg says which way a commute attribute is measured. Morning legs go from
// the listing to the anchor, afternoon legs from the anchor back.
type Leg string

const (
	LegMorning   Leg = "morning"
	LegAfternoon Leg = "afternoon"
)

// CommuteAttribute is one derived travel-time column.
type CommuteAttribute struct {
	Column string     // spreadsheet header
	Field  string     // commute table column
	Mode   TravelMode // provider mode
	Leg    Leg
	Anchor string // destination anchor code
}

// CommuteAttributes is the fixed processing order for enrichment.
var CommuteAttributes = []CommuteAttribute{
	{Column: "PENDL MORN BRJ", Field: "pendl_morn_brj", Mode: ModeTransit, Leg: LegMorning, Anchor: "BRJ"},
	{Column: "BIL MORN BRJ", Field: "bil_morn_brj", Mode: ModeDriving, Leg: LegMorning, Anchor: "BRJ"},
	{Column: "PENDL DAG BRJ", Field: "pendl_dag_brj", Mode: ModeTransit, Leg: LegAfternoon, Anchor: "BRJ"},
	{Column: "BIL DAG BRJ", Field: "bil_dag_brj", Mode: ModeDriving, Leg: LegAfternoon, Anchor: "BRJ"},
	{Column: "PENDL MORN MVV", Field: "pendl_morn_mvv", Mode: ModeTransit, Leg: LegMorning, Anchor: "MVV"},
	{Column: "BIL MORN MVV", Field: "bil_morn_mvv", Mode: ModeDriving, Leg: LegMorning, Anchor: "MVV"},
	{Column: "PENDL DAG MVV", Field: "pendl_dag_mvv", Mode: ModeTransit, Leg: LegAfternoon, Anchor: "MVV"},
	{Column: "BIL DAG MVV", Field: "bil_dag_mvv", Mode: ModeDriving, Leg: LegAfternoon, Anchor: "MVV"},
}

// Commute holds the derived commute values for one key. A nil minute value
// means not yet computed.
type Commute struct {
	Key            string          `json:"key" db:"key"`
	Minutes        map[string]*int `json:"minutes"`
	AddressCleaned string          `json:"adresse_cleaned" db:"adresse_cleaned"`
	MapsURL        string          `json:"google_maps_url" db:"google_maps_url"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

func NewCommute(key string) *Commute {
	return &Commute{Key: key, Minutes: make(map[string]*int, len(CommuteAttributes))}
}

func (c *Commute) Value(field string) *int {
	if c == nil || c.Minutes == nil {
		return nil
	}
	return c.Minutes[field]
}

// Missing lists the attributes without a value, in processing order.
func (c *Commute) Missing() []CommuteAttribute {
	var out []CommuteAttribute
	for _, attr := range CommuteAttributes {
		if c.Value(attr.Field) == nil {
			out = append(out, attr)
		}
	}
	return out
}

// CommuteCandidate is a listing eligible for enrichment.
type CommuteCandidate struct {
	Key        string
	Address    string
	PostalCode string
	Commute    *Commute
}
