package daterange

import (
	"errors"
	"math"
	"time"
)

const dateLayout = "2006-01-02"

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
)

// DateRange represents a half-open interval [checkIn, checkOut) of calendar days.
// Both bounds are kept at UTC midnight.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Parse builds a range from YYYY-MM-DD strings.
func Parse(checkIn, checkOut string) (DateRange, error) {
	in, err := time.Parse(dateLayout, checkIn)
	if err != nil {
		return DateRange{}, ErrInvalidRange
	}
	out, err := time.Parse(dateLayout, checkOut)
	if err != nil {
		return DateRange{}, ErrInvalidRange
	}
	return New(in, out)
}

// Day truncates t to the calendar day it falls on in UTC.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

// Nights is the number of started days between check-in and check-out.
func (dr DateRange) Nights() int {
	return int(math.Ceil(dr.CheckOut.Sub(dr.CheckIn).Hours() / 24))
}

// Overlaps reports whether the two half-open ranges share at least one night.
// Touching endpoints do not overlap.
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && dr.CheckOut.After(other.CheckIn)
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = Day(t)
	return (t.Equal(dr.CheckIn) || t.After(dr.CheckIn)) && t.Before(dr.CheckOut)
}

func (dr DateRange) Adjacent(other DateRange) bool {
	return dr.CheckOut.Equal(other.CheckIn) || dr.CheckIn.Equal(other.CheckOut)
}

// StartsAfter reports whether the stay begins strictly after the calendar day of now.
func (dr DateRange) StartsAfter(now time.Time) bool {
	return Day(now).Before(dr.CheckIn)
}

// EndedBy reports whether the checkout day has been reached at now.
func (dr DateRange) EndedBy(now time.Time) bool {
	return !Day(now).Before(dr.CheckOut)
}

func (dr DateRange) String() string {
	return dr.CheckIn.Format(dateLayout) + "/" + dr.CheckOut.Format(dateLayout)
}

// FormatDate renders a calendar day as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
