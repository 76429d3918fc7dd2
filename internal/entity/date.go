package entity

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Layouts tried, in order, when the extraction service returns something other than ISO dates.
// Day and month may be one or two digits. Day-first layouts win over month-first ones.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-1-2",
	"2006/1/2",
	"2/1/2006",
	"1/2/2006",
	"2-1-2006",
	"1-2-2006",
	"2.1.2006",
	"2/1/06",
	"1/2/06",
	"2-1-06",
	"2.1.06",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2-Jan-2006",
	"2-Jan-06",
}

// Date is a calendar date that tolerates the loose formats a model may emit.
// A value that could not be parsed keeps its Raw text and reports !IsValid.
type Date struct {
	Value civil.Date
	Raw   string
}

// NewDate builds a valid Date.
func NewDate(year int, month time.Month, day int) Date {
	d := civil.Date{Year: year, Month: month, Day: day}
	return Date{Value: d, Raw: d.String()}
}

// ParseDate parses s using the accepted layouts.
func ParseDate(s string) (Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, false
	}
	if d, err := civil.ParseDate(s); err == nil {
		return Date{Value: d, Raw: s}, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Value: civil.DateOf(t), Raw: s}, true
		}
	}
	return Date{Raw: s}, false
}

func (d Date) IsValid() bool {
	return d.Value.IsValid()
}

func (d Date) IsZero() bool {
	return d.Value.IsZero() && d.Raw == ""
}

func (d Date) String() string {
	if d.IsValid() {
		return d.Value.String()
	}
	return d.Raw
}

// Time returns midnight UTC on d.
func (d Date) Time() time.Time {
	return d.Value.In(time.UTC)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, _ := ParseDate(s)
	*d = parsed
	return nil
}
