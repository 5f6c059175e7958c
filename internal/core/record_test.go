package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountUnmarshal(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`100000`, "100000"},
		{`-2500.5`, "-2500.5"},
		{`1e3`, "1000"},
		{`"60000"`, "60000"},
		{`"$100,000.00"`, "100000"},
		{`" 42 "`, "42"},
		{`null`, "0"},
		{`""`, "0"},
		{`"abc"`, "0"},
		{`true`, "0"},
		{`{"v":1}`, "0"},
		{`[1,2]`, "0"},
	}
	for _, tc := range cases {
		var a Amount
		require.NoError(t, json.Unmarshal([]byte(tc.in), &a), "input %s", tc.in)
		assert.Equal(t, tc.want, a.String(), "input %s", tc.in)
	}
}

func TestRecordUnmarshal_LenientFields(t *testing.T) {
	payload := `[{
		"Id": "a0X1",
		"Closed_Purchase_Date__c": 20240105,
		"Closed_Purchase_Price__c": "oops",
		"Listing_Date__c": null,
		"Rehab_Expense_Total__c": 1200,
		"Closed_Sale_Date__c": "2024-06-30",
		"Closed_Sale_Price__c": "-185000"
	}]`

	records := decodeRecords(t, payload)

	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, DateField(""), r.PurchaseDate)
	assert.True(t, r.PurchasePrice.IsZero())
	assert.Equal(t, DateField(""), r.ListingDate)
	assert.Equal(t, "2024-06-30", r.SaleDate.String())

	events := ExtractEvents(r)
	require.Len(t, events, 1)
	assert.Equal(t, EventSale, events[0].Kind)
	assertDecimal(t, 185000, events[0].Amount)
}

func TestExtractEvents_SignIsForcedByKind(t *testing.T) {
	for _, v := range []float64{-1000, 1000, -0.01, 0.01} {
		r := Record{
			PurchaseDate: "2024-01-01", PurchasePrice: NewAmount(v),
			ListingDate: "2024-01-02", RehabExpense: NewAmount(v),
			SaleDate: "2024-01-03", SalePrice: NewAmount(v),
		}
		events := ExtractEvents(r)
		require.Len(t, events, 3)
		for _, ev := range events {
			switch ev.Kind {
			case EventSale:
				assert.True(t, ev.Amount.IsPositive(), "sale from %v gave %s", v, ev.Amount)
			default:
				assert.True(t, ev.Amount.IsNegative(), "%s from %v gave %s", ev.Kind, v, ev.Amount)
			}
		}
	}
}

func TestExtractEvents_ZeroAmountSuppressesEvent(t *testing.T) {
	r := Record{
		PurchaseDate: "2024-01-01", PurchasePrice: NewAmount(0),
		ListingDate: "2024-01-02",
		SaleDate:    "2024-01-03", SalePrice: NewAmount(10),
	}
	events := ExtractEvents(r)
	require.Len(t, events, 1)
	assert.Equal(t, EventSale, events[0].Kind)
}

func TestAmountMarshal(t *testing.T) {
	out, err := json.Marshal(struct {
		A Amount `json:"a"`
	}{A: NewAmount(1250.5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1250.5}`, string(out))
}

func TestParseEventDate(t *testing.T) {
	loc := time.FixedZone("TEST", -5*60*60)
	cases := []struct {
		in      string
		ok      bool
		wantDay string
	}{
		{"2024-01-15", true, "2024-01-15"},
		{"2024-01-15T08:00:00", true, "2024-01-15"},
		{"2024-01-15T03:00:00Z", true, "2024-01-14"},
		{"2024-01-15T03:00:00.123+00:00", true, "2024-01-14"},
		{"2024-01-15 12:00:00", true, "2024-01-15"},
		{"01/15/2024", true, "2024-01-15"},
		{"2024-01", true, "2024-01-01"},
		{" 2024-01-15 ", true, "2024-01-15"},
		{"not-a-date", false, ""},
		{"2024-02-30", false, ""},
		{"", false, ""},
	}
	for _, tc := range cases {
		got, ok := ParseEventDate(tc.in, loc)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		if tc.ok {
			assert.Equal(t, tc.wantDay, got.Format("2006-01-02"), "input %q", tc.in)
			assert.Equal(t, loc, got.Location(), "input %q", tc.in)
		}
	}
}
