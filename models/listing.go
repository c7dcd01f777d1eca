package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type Kind string

const (
	KindEiendom Kind = "eiendom"
	KindRental  Kind = "rental"
	KindJobs    Kind = "jobs"
)

var AllKinds = []Kind{KindEiendom, KindRental, KindJobs}

func ParseKind(s string) (Kind, error) {
	for _, k := range AllKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown listing type %q (want eiendom, rental or jobs)", s)
}

// Extra keys used by the kind-specific parsers.
const (
	ExtraDeposit  = "Depositum"
	ExtraTitle    = "Stillingstittel"
	ExtraCompany  = "Selskap"
	ExtraAdTitle  = "Tittel"
	ExtraDeadline = "FRIST"
)

// Listing is one ad as stored in the record store.
type Listing struct {
	Kind        Kind              `json:"kind" db:"kind"`
	Key         string            `json:"key" db:"key"`
	Status      string            `json:"status" db:"status"`
	Address     string            `json:"address" db:"address"`
	PostalCode  string            `json:"postal_code" db:"postal_code"`
	Price       *int              `json:"price" db:"price"`
	URL         string            `json:"url" db:"url"`
	Area        *int              `json:"area" db:"area"`
	PricePerSqm *int              `json:"price_per_sqm" db:"price_per_sqm"`
	Extra       map[string]string `json:"extra,omitempty" db:"extra"`
	IsActive    bool              `json:"is_active" db:"is_active"`
	Exported    bool              `json:"exported" db:"exported"`
	ScrapedAt   time.Time         `json:"scraped_at" db:"scraped_at"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

func (l *Listing) ExtraJSON() ([]byte, error) {
	if len(l.Extra) == 0 {
		return nil, nil
	}
	return json.Marshal(l.Extra)
}

// RecomputePricePerSqm derives PricePerSqm from Price and Area.
func (l *Listing) RecomputePricePerSqm() {
	l.PricePerSqm = nil
	if l.Price == nil || l.Area == nil || *l.Area <= 0 {
		return
	}
	v := (*l.Price*2 + *l.Area) / (*l.Area * 2)
	l.PricePerSqm = &v
}

// RawListing is what a crawl produces for a single ad before normalization.
type RawListing struct {
	Key    string            `json:"key"`
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}

// Snapshot is the full output of one crawl cycle. Keys holds every key seen
// on the result pages, including ads whose detail page failed to parse.
type Snapshot struct {
	Kind     Kind
	Records  []RawListing
	Keys     []string
	Complete bool
	Failed   int // ad pages that could not be fetched or parsed
}

type UpsertOutcome int

const (
	UpsertInserted UpsertOutcome = iota
	UpsertUpdated
)

func (o UpsertOutcome) String() string {
	if o == UpsertInserted {
		return "inserted"
	}
	return "updated"
}

type Stats struct {
	Total       int `json:"total"`
	Active      int `json:"active"`
	Inactive    int `json:"inactive"`
	NotExported int `json:"not_exported"`
}

// ExportFilter decides which stored listings are eligible for export and
// enrichment. MaxPrice nil disables the price filter.
type ExportFilter struct {
	MaxPrice        *int
	IncludeUnlisted bool
}

// ExportRow is a listing joined with its derived commute data.
type ExportRow struct {
	Listing
	Commute *Commute
}

func IntPtr(v int) *int {
	return &v
}

// StatusRemoved is stored when an ad page no longer exists.
const StatusRemoved = "Slettet"

// StatusChange is a status difference found by a refresh pass.
type StatusChange struct {
	Kind Kind
	Key  string
	Old  string
	New  string
}
