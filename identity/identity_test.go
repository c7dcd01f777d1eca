package identity

import "testing"

func TestKeyFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.finn.no/realestate/homes/ad.html?finnkode=345678901", "345678901"},
		{"https://www.finn.no/realestate/lettings/ad.html?finnkode=12&ref=fp", "12"},
		{"https://www.finn.no/job/ad/412345678", "412345678"},
		{"https://www.finn.no/job/ad/412345678/", "412345678"},
		{"", ""},
		{"https://www.finn.no", ""},
	}

	for _, tt := range tests {
		if got := KeyFromURL(tt.url); got != tt.want {
			t.Errorf("KeyFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestCleanAddress(t *testing.T) {
	tests := []struct {
		address, postal string
		want            string
	}{
		{"Storgata  1", "0155", "Storgata 1, 0155"},
		{"Storgata 1,", "", "Storgata 1"},
		{"Storgata 1, 0155", "0155", "Storgata 1, 0155"},
		{"Storgata 1", "Oslo", "Storgata 1"},
		{"Storgata\u00a01", "0155", "Storgata 1, 0155"},
		{"", "0155", ""},
	}

	for _, tt := range tests {
		if got := CleanAddress(tt.address, tt.postal); got != tt.want {
			t.Errorf("CleanAddress(%q, %q) = %q, want %q", tt.address, tt.postal, got, tt.want)
		}
	}
}

func TestMapsURL(t *testing.T) {
	got := MapsURL("Storgata 1, 0155")
	want := "https://www.google.com/maps/search/?api=1&query=Storgata+1%2C+0155"
	if got != want {
		t.Fatalf("MapsURL = %q, want %q", got, want)
	}
	if MapsURL("") != "" {
		t.Fatalf("expected empty URL for empty address")
	}
}

func TestTitleCase(t *testing.T) {
	tests := map[string]string{
		"STORGATA 1":          "Storgata 1",
		"øvre   slottsgate":   "Øvre Slottsgate",
		"karl johans gate 5b": "Karl Johans Gate 5B",
		"sandvika-veien 3":    "Sandvika-Veien 3",
	}
	for in, want := range tests {
		if got := TitleCase(in); got != want {
			t.Errorf("TitleCase(%q) = %q, want %q", in, got, want)
		}
	}
}
