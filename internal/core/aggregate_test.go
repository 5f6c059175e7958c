package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertDecimal(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(decimal.NewFromInt(want)), "want %d, got %s", want, got.String())
}

func decodeRecords(t *testing.T, payload string) []Record {
	t.Helper()
	var records []Record
	require.NoError(t, json.Unmarshal([]byte(payload), &records))
	return records
}

const scenarioPayload = `[
	{"Closed_Sale_Date__c": "2024-01-15", "Closed_Sale_Price__c": 100000},
	{"Closed_Purchase_Date__c": "2024-01-05", "Closed_Purchase_Price__c": 60000}
]`

func TestAggregate_MonthlyScenario(t *testing.T) {
	records := decodeRecords(t, scenarioPayload)

	series := Aggregate(records, Monthly, WithLocation(time.UTC))

	require.Len(t, series, 1)
	b := series[0]
	assert.Equal(t, "2024-01", b.Key)
	assert.Equal(t, "Jan 2024", b.Label)
	assertDecimal(t, 100000, b.CashIn)
	assertDecimal(t, -60000, b.CashOut)
	assertDecimal(t, 40000, b.NetFlow)
	assertDecimal(t, 40000, b.CumulativeFlow)
}

func TestAggregate_DailyScenario(t *testing.T) {
	records := decodeRecords(t, scenarioPayload)

	series := Aggregate(records, Daily, WithLocation(time.UTC))

	require.Len(t, series, 2)
	assert.Equal(t, []string{"2024-01-05", "2024-01-15"}, series.Labels())

	assert.Equal(t, "2024-01-05", series[0].Key)
	assertDecimal(t, -60000, series[0].CashOut)
	assertDecimal(t, 0, series[0].CashIn)

	assert.Equal(t, "2024-01-15", series[1].Key)
	assertDecimal(t, 100000, series[1].CashIn)
	assertDecimal(t, 0, series[1].CashOut)

	assertDecimal(t, -60000, series[0].CumulativeFlow)
	assertDecimal(t, 40000, series[1].CumulativeFlow)
}

func TestAggregate_MonthlyMergesSameMonth(t *testing.T) {
	records := []Record{
		{PurchaseDate: "2024-03-02", PurchasePrice: NewAmount(250000), ListingDate: "2024-03-20", RehabExpense: NewAmount(15000)},
		{SaleDate: "2024-03-28", SalePrice: NewAmount(320000)},
	}

	series := Aggregate(records, Monthly, WithLocation(time.UTC))

	require.Len(t, series, 1)
	assertDecimal(t, 320000, series[0].CashIn)
	assertDecimal(t, -265000, series[0].CashOut)
	assertDecimal(t, 55000, series[0].NetFlow)
}

func TestAggregate_CumulativeIsRunningSum(t *testing.T) {
	records := []Record{
		{PurchaseDate: "2023-11-10", PurchasePrice: NewAmount(100), SaleDate: "2024-02-01", SalePrice: NewAmount(400)},
		{ListingDate: "2023-12-24", RehabExpense: NewAmount(50)},
		{PurchaseDate: "2024-01-03", PurchasePrice: NewAmount(75), SaleDate: "2023-10-01", SalePrice: NewAmount(30)},
	}

	for _, mode := range []ViewMode{Daily, Monthly} {
		t.Run(string(mode), func(t *testing.T) {
			series := Aggregate(records, mode, WithLocation(time.UTC))
			require.NotEmpty(t, series)

			sum := decimal.Zero
			for i, b := range series {
				sum = sum.Add(b.NetFlow)
				assert.True(t, b.CumulativeFlow.Equal(sum), "bucket %d: cumulative %s != running %s", i, b.CumulativeFlow, sum)
				if i > 0 {
					assert.False(t, b.Date.Before(series[i-1].Date), "bucket %d out of order", i)
				}
			}
		})
	}
}

func TestAggregate_UnparsableDateIsDropped(t *testing.T) {
	records := []Record{
		{SaleDate: "not-a-date", SalePrice: NewAmount(999)},
		{PurchaseDate: "2024-05-01", PurchasePrice: NewAmount(10)},
		{ListingDate: "2024-13-45", RehabExpense: NewAmount(5)},
	}

	var stats Stats
	series := Aggregate(records, Daily, WithLocation(time.UTC), WithStats(&stats))

	require.Len(t, series, 1)
	assert.Equal(t, "2024-05-01", series[0].Key)
	assertDecimal(t, 0, series[0].CashIn)
	assert.Equal(t, Stats{Records: 3, Events: 3, Dropped: 2}, stats)
	for _, b := range series {
		assert.NotEqual(t, "not-a-date", b.Key)
	}
}

func TestAggregate_EmptyInput(t *testing.T) {
	assert.Empty(t, Aggregate(nil, Monthly))
	assert.Empty(t, Aggregate([]Record{}, Daily))

	series := Aggregate(nil, Daily)
	require.NotNil(t, series)
	out, err := json.Marshal(series)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(out))
}

func TestAggregate_RecordWithoutDatesContributesNothing(t *testing.T) {
	records := []Record{
		{PurchasePrice: NewAmount(100), RehabExpense: NewAmount(10), SalePrice: NewAmount(200)},
	}
	assert.Empty(t, Aggregate(records, Daily))
	assert.Empty(t, ExtractEvents(records[0]))
}

func TestAggregate_DailyKeyIsVerbatim(t *testing.T) {
	records := []Record{
		{SaleDate: "2024-02-01T10:30:00Z", SalePrice: NewAmount(1)},
		{SaleDate: "2024-02-01", SalePrice: NewAmount(2)},
	}

	series := Aggregate(records, Daily, WithLocation(time.UTC))

	require.Len(t, series, 2)
	// Same calendar day, different raw strings: two buckets, ordered by parsed date.
	assert.Equal(t, "2024-02-01", series[0].Key)
	assert.Equal(t, "2024-02-01T10:30:00Z", series[1].Key)
}

func TestAggregate_TiesKeepFirstSeenOrder(t *testing.T) {
	records := []Record{
		{SaleDate: "2024-02-01T00:00:00Z", SalePrice: NewAmount(1)},
		{SaleDate: "2024-02-01", SalePrice: NewAmount(2)},
	}

	series := Aggregate(records, Daily, WithLocation(time.UTC))

	require.Len(t, series, 2)
	assert.Equal(t, "2024-02-01T00:00:00Z", series[0].Key)
	assert.Equal(t, "2024-02-01", series[1].Key)
}

func TestAggregate_MonthlyUsesAggregationLocation(t *testing.T) {
	// 23:30 UTC on Jan 31 is already February in Tokyo.
	records := []Record{{SaleDate: "2024-01-31T23:30:00Z", SalePrice: NewAmount(10)}}

	utc := Aggregate(records, Monthly, WithLocation(time.UTC))
	require.Len(t, utc, 1)
	assert.Equal(t, "2024-01", utc[0].Key)
	assert.Equal(t, "Jan 2024", utc[0].Label)

	tokyo := time.FixedZone("JST", 9*60*60)
	jst := Aggregate(records, Monthly, WithLocation(tokyo))
	require.Len(t, jst, 1)
	assert.Equal(t, "2024-02", jst[0].Key)
	assert.Equal(t, "Feb 2024", jst[0].Label)
}

func TestAggregate_DateOnlyStaysOnItsDay(t *testing.T) {
	records := []Record{{PurchaseDate: "2024-01-31", PurchasePrice: NewAmount(10)}}

	for _, loc := range []*time.Location{time.UTC, time.FixedZone("WEST", -8*60*60), time.FixedZone("EAST", 13*60*60)} {
		series := Aggregate(records, Monthly, WithLocation(loc))
		require.Len(t, series, 1)
		assert.Equal(t, "2024-01", series[0].Key, "location %s", loc)
	}
}

func TestAggregate_DailySortsByParsedDateNotKey(t *testing.T) {
	records := []Record{
		{SaleDate: "12/01/2024", SalePrice: NewAmount(1)},
		{SaleDate: "2024-03-15", SalePrice: NewAmount(1)},
		{SaleDate: "01/20/2025", SalePrice: NewAmount(1)},
	}

	series := Aggregate(records, Daily, WithLocation(time.UTC))

	assert.Equal(t, []string{"2024-03-15", "12/01/2024", "01/20/2025"}, series.Labels())
}

func TestSeries_Projections(t *testing.T) {
	records := decodeRecords(t, scenarioPayload)
	series := Aggregate(records, Daily, WithLocation(time.UTC))

	assert.Equal(t, []float64{0, 100000}, series.CashIn())
	assert.Equal(t, []float64{-60000, 0}, series.CashOut())
	assert.Equal(t, []float64{-60000, 100000}, series.NetFlow())
	assert.Equal(t, []float64{-60000, 40000}, series.CumulativeFlow())

	totals := series.Totals()
	assertDecimal(t, 100000, totals.CashIn)
	assertDecimal(t, -60000, totals.CashOut)
	assertDecimal(t, 40000, totals.NetFlow)
}

func TestParseViewMode(t *testing.T) {
	cases := []struct {
		in      string
		want    ViewMode
		wantErr bool
	}{
		{"daily", Daily, false},
		{"Monthly", Monthly, false},
		{" MONTHLY ", Monthly, false},
		{"weekly", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := ParseViewMode(tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrInvalidViewMode, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got)
		assert.True(t, got.Valid())
	}
}
