package registry

import (
	"errors"
	"testing"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Filter
	}{
		{"country only", "US", Filter{"US", "*", "*"}},
		{"country and state", "US-NJ", Filter{"US", "NJ", "*"}},
		{"full", "US-TX-Austin", Filter{"US", "TX", "Austin"}},
		{"all wildcards", "*-*-*", Filter{"*", "*", "*"}},
		{"city only", "*-*-Dallas", Filter{"*", "*", "Dallas"}},
		{"extra segments ignored", "US-TX-Austin-Downtown", Filter{"US", "TX", "Austin"}},
		{"spaces kept", "United States-New Jersey", Filter{"United States", "New Jersey", "*"}},
		{"empty segments are literals", "US--Austin", Filter{"US", "", "Austin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilter(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expect %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestParseFilterEmpty(t *testing.T) {
	_, err := ParseFilter("")
	if !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expect ErrInvalidFilter, got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expect invalid filter to read as not found, got %v", err)
	}
}

func TestFilterMatches(t *testing.T) {
	austin := Client{ID: "a", Country: "US", State: "TX", City: "Austin"}

	tests := []struct {
		filter Filter
		want   bool
	}{
		{Filter{"*", "*", "*"}, true},
		{Filter{"US", "*", "*"}, true},
		{Filter{"US", "TX", "Austin"}, true},
		{Filter{"*", "TX", "*"}, true},
		{Filter{"US", "Lima", "Austin"}, false},
		{Filter{"Peru", "*", "*"}, false},
	}

	for _, tt := range tests {
		if got := tt.filter.Matches(austin); got != tt.want {
			t.Errorf("%s.Matches(austin) = %v, want %v", tt.filter, got, tt.want)
		}
	}
}

func TestFilterString(t *testing.T) {
	f, err := ParseFilter("US")
	if err != nil {
		t.Fatal(err)
	}
	if f.String() != "US-*-*" {
		t.Fatalf("expect US-*-*, got %s", f.String())
	}
}
