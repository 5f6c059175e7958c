package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ViewMode selects the bucket granularity.
type ViewMode string

const (
	Daily   ViewMode = "daily"
	Monthly ViewMode = "monthly"
)

var ErrInvalidViewMode = errors.New("invalid view mode")

// ParseViewMode accepts "daily" or "monthly", case-insensitively.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(strings.ToLower(strings.TrimSpace(s))) {
	case Daily:
		return Daily, nil
	case Monthly:
		return Monthly, nil
	default:
		return "", fmt.Errorf("%w: %q (must be daily or monthly)", ErrInvalidViewMode, s)
	}
}

// Valid reports whether m is a known view mode.
func (m ViewMode) Valid() bool {
	return m == Daily || m == Monthly
}

// String implements fmt.Stringer
func (m ViewMode) String() string {
	return string(m)
}

// Bucket is one period of aggregated cashflow. CashOut is never positive.
type Bucket struct {
	Key            string          `json:"key"`
	Label          string          `json:"label"`
	Date           time.Time       `json:"date"`
	CashIn         decimal.Decimal `json:"cash_in"`
	CashOut        decimal.Decimal `json:"cash_out"`
	NetFlow        decimal.Decimal `json:"net_flow"`
	CumulativeFlow decimal.Decimal `json:"cumulative_flow"`
}

// Stats counts what an aggregation pass saw. Dropped events are those whose
// date did not parse; they are not errors.
type Stats struct {
	Records int
	Events  int
	Dropped int
}

type aggregateOptions struct {
	loc   *time.Location
	stats *Stats
}

// Option configures Aggregate.
type Option func(*aggregateOptions)

// WithLocation sets the calendar used to parse dates and derive month keys.
// The default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(o *aggregateOptions) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithStats collects pass statistics into s.
func WithStats(s *Stats) Option {
	return func(o *aggregateOptions) {
		o.stats = s
	}
}

// Aggregate buckets the cash events of records by day or month and returns
// the buckets in chronological order with a running cumulative flow.
//
// Daily keys are the event date string verbatim; monthly keys are YYYY-MM in
// the aggregation location. Buckets are ordered by the parsed date of the
// event that created them, ties keeping first-seen order. Any mode other
// than Monthly buckets by day.
func Aggregate(records []Record, mode ViewMode, opts ...Option) Series {
	o := aggregateOptions{loc: time.Local}
	for _, opt := range opts {
		opt(&o)
	}

	var stats Stats
	buckets := make([]Bucket, 0)
	index := make(map[string]int)

	for _, rec := range records {
		stats.Records++
		for _, ev := range ExtractEvents(rec) {
			stats.Events++

			t, ok := ParseEventDate(ev.Date, o.loc)
			if !ok {
				stats.Dropped++
				continue
			}

			key := bucketKey(ev.Date, t, mode)
			i, found := index[key]
			if !found {
				buckets = append(buckets, Bucket{Key: key, Date: t})
				i = len(buckets) - 1
				index[key] = i
			}

			b := &buckets[i]
			if ev.Amount.IsPositive() {
				b.CashIn = b.CashIn.Add(ev.Amount)
			} else {
				b.CashOut = b.CashOut.Add(ev.Amount)
			}
			b.NetFlow = b.NetFlow.Add(ev.Amount)
		}
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Date.Before(buckets[j].Date)
	})

	running := decimal.Zero
	for i := range buckets {
		buckets[i].Label = bucketLabel(buckets[i], mode)
		running = running.Add(buckets[i].NetFlow)
		buckets[i].CumulativeFlow = running
	}

	if o.stats != nil {
		*o.stats = stats
	}
	return Series(buckets)
}

func bucketKey(raw string, t time.Time, mode ViewMode) string {
	if mode == Monthly {
		return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
	}
	return raw
}

func bucketLabel(b Bucket, mode ViewMode) string {
	if mode == Monthly {
		return b.Date.Format("Jan 2006")
	}
	return b.Key
}
