package reconcile

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	loc := time.UTC
	want := time.Date(2025, 1, 10, 0, 0, 0, 0, loc)

	tests := []struct {
		input string
		want  *time.Time
	}{
		{"2025-01-10", &want},
		{"10/01/2025", &want},
		{"10-01-2025", &want},
		{"10 Jan 2025", &want},
		{"Jan 10, 2025", &want},
		{"  2025-01-10  ", &want},
		{"", nil},
		{"soon", nil},
		{"32/13/2025", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseDate(tt.input, loc)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ParseDate(%q) = %v; want %v", tt.input, got, tt.want)
			}
			if got != nil && !got.Equal(*tt.want) {
				t.Errorf("ParseDate(%q) = %v; want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDateWithTime(t *testing.T) {
	loc := time.UTC
	got := ParseDate("2025-01-10 15:04", loc)
	if got == nil || got.Hour() != 15 || got.Minute() != 4 {
		t.Errorf("ParseDate with time = %v; want 15:04", got)
	}
}

func TestSameInstantAcrossFormats(t *testing.T) {
	// The same instant parsed from different serializations and zones
	// must compare equal; date-change detection is value-based.
	melbourne, err := time.LoadLocation("Australia/Melbourne")
	if err != nil {
		t.Fatal(err)
	}
	a := ParseDate("2025-01-10", melbourne)
	b := ParseDate("10/01/2025", melbourne)
	inUTC := a.UTC()

	if !sameInstant(a, b) {
		t.Error("identical dates in different formats compare unequal")
	}
	if !sameInstant(a, &inUTC) {
		t.Error("same instant in different zones compares unequal")
	}
	if !sameInstant(nil, nil) {
		t.Error("two nil dates compare unequal")
	}
	if sameInstant(a, nil) || sameInstant(nil, b) {
		t.Error("nil compares equal to a set date")
	}

	c := ParseDate("2025-01-11", melbourne)
	if sameInstant(a, c) {
		t.Error("different dates compare equal")
	}
}
