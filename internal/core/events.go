package core

import (
	"github.com/shopspring/decimal"
)

// EventKind identifies which record field pair produced a cash event.
type EventKind string

const (
	EventPurchase EventKind = "purchase"
	EventRehab    EventKind = "rehab"
	EventSale     EventKind = "sale"
)

// CashEvent is a signed amount tied to the date string it came from.
type CashEvent struct {
	Kind   EventKind
	Date   string
	Amount decimal.Decimal
}

// ExtractEvents returns up to three cash events for a record, in the order
// purchase, rehab, sale. The sign is forced by the kind: purchase and rehab
// are outflows, sale is an inflow. A missing date or a zero amount suppresses
// the event.
func ExtractEvents(r Record) []CashEvent {
	events := make([]CashEvent, 0, 3)

	if ev, ok := newEvent(EventPurchase, r.PurchaseDate, r.PurchasePrice); ok {
		events = append(events, ev)
	}
	if ev, ok := newEvent(EventRehab, r.ListingDate, r.RehabExpense); ok {
		events = append(events, ev)
	}
	if ev, ok := newEvent(EventSale, r.SaleDate, r.SalePrice); ok {
		events = append(events, ev)
	}

	return events
}

func newEvent(kind EventKind, date DateField, amount Amount) (CashEvent, bool) {
	if date == "" || amount.IsZero() {
		return CashEvent{}, false
	}

	magnitude := amount.Abs()
	if kind != EventSale {
		magnitude = magnitude.Neg()
	}

	return CashEvent{Kind: kind, Date: string(date), Amount: magnitude}, true
}
