// Package types provides common type definitions for the portfolio sync job.
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category selects the price source and the currency of a holding
type Category string

const (
	// CategoryDomestic represents a KRX listed instrument priced in KRW
	CategoryDomestic Category = "domestic"
	// CategoryOverseas represents a foreign instrument priced in USD
	CategoryOverseas Category = "overseas"
)

// ParseCategory maps a Notion select name to a Category.
// Unrecognized names return false.
func ParseCategory(name string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "국내", "domestic":
		return CategoryDomestic, true
	case "해외", "overseas":
		return CategoryOverseas, true
	default:
		return "", false
	}
}

// Currency returns the ISO code prices of this category are quoted in
func (c Category) Currency() string {
	if c == CategoryOverseas {
		return "USD"
	}
	return "KRW"
}

// FrequencyKind is the recurrence of an auto-buy rule
type FrequencyKind string

const (
	// FrequencyNone disables the rule
	FrequencyNone FrequencyKind = "none"
	// FrequencyDaily fires every day
	FrequencyDaily FrequencyKind = "daily"
	// FrequencyWeekly fires on one weekday
	FrequencyWeekly FrequencyKind = "weekly"
)

// BuyFrequency is a parsed auto-buy recurrence
type BuyFrequency struct {
	Kind    FrequencyKind
	Weekday time.Weekday // only meaningful for FrequencyWeekly
}

// Matches reports whether the rule fires on day d
func (f BuyFrequency) Matches(d Date) bool {
	switch f.Kind {
	case FrequencyDaily:
		return true
	case FrequencyWeekly:
		return d.Weekday() == f.Weekday
	default:
		return false
	}
}

func (f BuyFrequency) String() string {
	if f.Kind == FrequencyWeekly {
		return fmt.Sprintf("weekly:%s", strings.ToLower(f.Weekday.String()))
	}
	if f.Kind == "" {
		return string(FrequencyNone)
	}
	return string(f.Kind)
}

// ParseBuyFrequency maps a Notion select name to a BuyFrequency.
//
// Accepted forms are "매일"/"daily", "매주 화요일"/"weekly:tuesday" and a bare
// "매주"/"weekly", which uses defaultWeekday. Anything else is FrequencyNone.
func ParseBuyFrequency(name string, defaultWeekday time.Weekday) BuyFrequency {
	s := strings.ToLower(strings.TrimSpace(name))
	switch s {
	case "":
		return BuyFrequency{Kind: FrequencyNone}
	case "매일", "daily":
		return BuyFrequency{Kind: FrequencyDaily}
	case "매주", "weekly":
		return BuyFrequency{Kind: FrequencyWeekly, Weekday: defaultWeekday}
	}

	var rest string
	switch {
	case strings.HasPrefix(s, "매주"):
		rest = strings.TrimPrefix(s, "매주")
	case strings.HasPrefix(s, "weekly:"):
		rest = strings.TrimPrefix(s, "weekly:")
	default:
		return BuyFrequency{Kind: FrequencyNone}
	}
	wd, err := ParseWeekday(rest)
	if err != nil {
		return BuyFrequency{Kind: FrequencyNone}
	}
	return BuyFrequency{Kind: FrequencyWeekly, Weekday: wd}
}

var weekdayNames = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday, "월": time.Monday, "월요일": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "화": time.Tuesday, "화요일": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "수": time.Wednesday, "수요일": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "목": time.Thursday, "목요일": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "금": time.Friday, "금요일": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "토": time.Saturday, "토요일": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday, "일": time.Sunday, "일요일": time.Sunday,
}

// ParseWeekday parses a weekday given as a Monday-based index (0=Monday … 6=Sunday),
// an English name or abbreviation, or a Korean name.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if idx, err := strconv.Atoi(s); err == nil {
		if idx < 0 || idx > 6 {
			return 0, fmt.Errorf("weekday index %d out of range 0-6", idx)
		}
		return time.Weekday((idx + 1) % 7), nil
	}
	if wd, ok := weekdayNames[s]; ok {
		return wd, nil
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// DateFormat is the ISO-8601 day format used by Notion date properties
const DateFormat = "2006-01-02"

// Date is a calendar day with no time of day or zone
type Date struct {
	y int
	m time.Month
	d int
}

// NewDate returns a normalized Date
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{t.Year(), t.Month(), t.Day()}
}

// DateOf returns the calendar day of t in loc
func DateOf(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	return NewDate(t.Date())
}

// ParseDate parses the day part of a Notion date, which may carry a time ("2025-07-01T09:00:00.000+09:00")
func ParseDate(s string) (Date, error) {
	if len(s) > len(DateFormat) {
		s = s[:len(DateFormat)]
	}
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return NewDate(t.Date()), nil
}

func (d Date) time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// IsZero returns true if the date is the zero value
func (d Date) IsZero() bool { return d.y == 0 && d.m == 0 && d.d == 0 }

// Weekday returns the day of the week
func (d Date) Weekday() time.Weekday { return d.time().Weekday() }

// Add returns the date i days later
func (d Date) Add(i int) Date { return NewDate(d.y, d.m, d.d+i) }

// Before reports whether d is before x
func (d Date) Before(x Date) bool { return d.time().Before(x.time()) }

// String formats the date as YYYY-MM-DD
func (d Date) String() string { return d.time().Format(DateFormat) }

// MarshalJSON writes the date as a JSON string
func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

// UnmarshalJSON reads a date from a JSON string
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Price is a quote that may be unavailable. The zero value is unavailable.
type Price struct {
	Value     decimal.Decimal
	Available bool
}

// NewPrice returns an available price; non-positive values are reported as unavailable
func NewPrice(v decimal.Decimal) Price {
	if !v.IsPositive() {
		return Price{}
	}
	return Price{Value: v, Available: true}
}

// Unavailable is the price of a quote that could not be resolved this run
var Unavailable = Price{}

func (p Price) String() string {
	if !p.Available {
		return "unavailable"
	}
	return p.Value.String()
}

// Holding is one tracked instrument row of the holding database
type Holding struct {
	PageID          string
	Name            string
	Code            string
	Category        Category
	AutoBuyEnabled  bool
	Frequency       BuyFrequency
	LastBuyDate     *Date
	FixedAmount     decimal.Decimal
	FixedQuantity   decimal.Decimal
	CurrentQuantity decimal.Decimal
}

// DefaultHoldingName labels rows without a title
const DefaultHoldingName = "이름 없음"

// Processable reports whether the holding has what a price lookup needs
func (h Holding) Processable() bool {
	return h.Code != "" && h.Category != ""
}

// BoughtOn reports whether the last purchase happened on d
func (h Holding) BoughtOn(d Date) bool {
	return h.LastBuyDate != nil && *h.LastBuyDate == d
}

// HoldingUpdate is a partial patch of a holding row.
// Quantity and LastBuyDate are written only when set.
type HoldingUpdate struct {
	Price        decimal.Decimal
	ExchangeRate decimal.Decimal
	Quantity     *decimal.Decimal
	LastBuyDate  *Date
}
