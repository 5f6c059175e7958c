// Package core turns real-estate transaction records into time-bucketed
// cashflow series.
//
// This file contains the record model and the lenient JSON decoding of its
// date and amount fields. A single malformed field never fails a whole
// payload: it decodes as absent and suppresses the matching cash event.
package core

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Field names of the records payload.
const (
	FieldPurchaseDate  = "Closed_Purchase_Date__c"
	FieldPurchasePrice = "Closed_Purchase_Price__c"
	FieldListingDate   = "Listing_Date__c"
	FieldRehabExpense  = "Rehab_Expense_Total__c"
	FieldSaleDate      = "Closed_Sale_Date__c"
	FieldSalePrice     = "Closed_Sale_Price__c"
)

// Record is a transaction record as served by /api/records. Only the fields
// that produce cash events are decoded; everything else is opaque.
type Record struct {
	PurchaseDate  DateField `json:"Closed_Purchase_Date__c"`
	PurchasePrice Amount    `json:"Closed_Purchase_Price__c"`
	ListingDate   DateField `json:"Listing_Date__c"`
	RehabExpense  Amount    `json:"Rehab_Expense_Total__c"`
	SaleDate      DateField `json:"Closed_Sale_Date__c"`
	SalePrice     Amount    `json:"Closed_Sale_Price__c"`
}

// DateField holds a date string exactly as it appeared in the payload.
// Anything that is not a JSON string decodes as the empty string.
type DateField string

// UnmarshalJSON implements json.Unmarshaler.
func (d *DateField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*d = ""
		return nil
	}
	*d = DateField(s)
	return nil
}

// String returns the raw date string.
func (d DateField) String() string {
	return string(d)
}

// Amount is a monetary value decoded from a JSON number or numeric string.
// null, booleans, objects and non-numeric strings decode as zero.
type Amount struct {
	decimal.Decimal
}

// NewAmount returns an Amount for a float value.
func NewAmount(v float64) Amount {
	return Amount{Decimal: decimal.NewFromFloat(v)}
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	a.Decimal = decimal.Zero

	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		s = normalizeNumeric(s)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	a.Decimal = d
	return nil
}

// MarshalJSON writes the amount as a bare JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// normalizeNumeric strips currency symbols, thousands separators and
// surrounding whitespace from spreadsheet-style amounts ("$100,000.00").
func normalizeNumeric(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}
