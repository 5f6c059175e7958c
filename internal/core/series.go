package core

import (
	"github.com/shopspring/decimal"
)

// Series is an ordered sequence of buckets as produced by Aggregate.
type Series []Bucket

// Totals sums a series.
type Totals struct {
	CashIn  decimal.Decimal `json:"cash_in"`
	CashOut decimal.Decimal `json:"cash_out"`
	NetFlow decimal.Decimal `json:"net_flow"`
}

// Labels returns the bucket labels in order.
func (s Series) Labels() []string {
	out := make([]string, len(s))
	for i, b := range s {
		out[i] = b.Label
	}
	return out
}

// CashIn returns the cash-in values as floats for rendering.
func (s Series) CashIn() []float64 {
	return s.project(func(b Bucket) decimal.Decimal { return b.CashIn })
}

// CashOut returns the cash-out values as floats for rendering.
func (s Series) CashOut() []float64 {
	return s.project(func(b Bucket) decimal.Decimal { return b.CashOut })
}

// NetFlow returns the net flow values as floats for rendering.
func (s Series) NetFlow() []float64 {
	return s.project(func(b Bucket) decimal.Decimal { return b.NetFlow })
}

// CumulativeFlow returns the running totals as floats for rendering.
func (s Series) CumulativeFlow() []float64 {
	return s.project(func(b Bucket) decimal.Decimal { return b.CumulativeFlow })
}

// Totals sums cash in, cash out and net flow over the whole series.
func (s Series) Totals() Totals {
	var t Totals
	for _, b := range s {
		t.CashIn = t.CashIn.Add(b.CashIn)
		t.CashOut = t.CashOut.Add(b.CashOut)
		t.NetFlow = t.NetFlow.Add(b.NetFlow)
	}
	return t
}

func (s Series) project(field func(Bucket) decimal.Decimal) []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = field(b).InexactFloat64()
	}
	return out
}
