package chart

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow/internal/core"
)

func sampleSeries(n int) core.Series {
	records := make([]core.Record, 0, n)
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		records = append(records, core.Record{
			PurchaseDate:  core.DateField(day),
			PurchasePrice: core.NewAmount(float64(1000 * (i + 1))),
			SaleDate:      core.DateField(day),
			SalePrice:     core.NewAmount(float64(1500 * (i + 1))),
		})
	}
	return core.Aggregate(records, core.Daily, core.WithLocation(time.UTC))
}

func decodePNG(t *testing.T, b []byte) (int, int) {
	t.Helper()
	cfg, err := png.DecodeConfig(bytes.NewReader(b))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestRender_PNG(t *testing.T) {
	out, err := Render(sampleSeries(5), Options{Title: "Cashflow"})
	require.NoError(t, err)

	w, h := decodePNG(t, out)
	assert.Equal(t, DefaultWidth, w)
	assert.Equal(t, DefaultHeight, h)
}

func TestRender_SVG(t *testing.T) {
	out, err := Render(sampleSeries(3), Options{Format: SVG, Width: 640, Height: 320})
	require.NoError(t, err)

	svg := string(out)
	assert.True(t, strings.Contains(svg, "<svg"), "expected svg document")
	assert.Contains(t, svg, "Cash In")
	assert.Contains(t, svg, "Cumulative Flow")
}

func TestRender_EmptySeries(t *testing.T) {
	for _, series := range []core.Series{nil, {}} {
		out, err := Render(series, Options{})
		require.NoError(t, err)
		decodePNG(t, out)
	}
}

func TestRender_AllSeriesHidden(t *testing.T) {
	hidden := map[int]bool{SeriesCashIn: true, SeriesCashOut: true, SeriesNetFlow: true, SeriesCumulative: true}

	out, err := Render(sampleSeries(4), Options{Format: SVG, Hidden: hidden})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "Net Flow")
}

func TestRender_HiddenSeriesOmitted(t *testing.T) {
	out, err := Render(sampleSeries(4), Options{Format: SVG, Hidden: map[int]bool{SeriesNetFlow: true}})
	require.NoError(t, err)

	svg := string(out)
	assert.Contains(t, svg, "Cash In")
	assert.Contains(t, svg, "Cash Out")
	assert.NotContains(t, svg, "Net Flow")
}

func TestRender_SingleBucket(t *testing.T) {
	out, err := Render(sampleSeries(1), Options{})
	require.NoError(t, err)
	decodePNG(t, out)
}

func TestRender_FlatZeroSeries(t *testing.T) {
	series := core.Series{{Key: "2024-01", Label: "Jan 2024"}}
	_, err := Render(series, Options{})
	require.NoError(t, err)
}

func TestRender_ClampsSize(t *testing.T) {
	out, err := Render(sampleSeries(2), Options{Width: 10, Height: 100000})
	require.NoError(t, err)

	w, h := decodePNG(t, out)
	assert.Equal(t, minSize, w)
	assert.Equal(t, maxSize, h)
}

func TestTicks_ThinnedForLongSeries(t *testing.T) {
	series := sampleSeries(60)
	got := ticks(series)

	assert.LessOrEqual(t, len(got), maxLabels+2)
	assert.Equal(t, series[0].Label, got[1].Label)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Value, got[i-1].Value)
	}

	assert.Len(t, ticks(sampleSeries(5)), 7)
}

func TestTicks_SpanPaddedRange(t *testing.T) {
	for _, n := range []int{0, 1, 2, 30} {
		got := ticks(sampleSeries(n))
		require.GreaterOrEqual(t, len(got), 2, "buckets=%d", n)

		want := float64(n) - 0.5
		if n == 0 {
			want = 0.5
		}
		assert.Equal(t, -0.5, got[0].Value, "buckets=%d", n)
		assert.Equal(t, "", got[0].Label)
		assert.Equal(t, want, got[len(got)-1].Value, "buckets=%d", n)
		assert.Equal(t, "", got[len(got)-1].Label)
	}
}

func TestRender_SingleMonthlyBucket(t *testing.T) {
	records := []core.Record{
		{
			PurchaseDate:  core.DateField("2024-01-05"),
			PurchasePrice: core.NewAmount(100000),
			ListingDate:   core.DateField("2024-01-20"),
			RehabExpense:  core.NewAmount(20000),
			SaleDate:      core.DateField("2024-01-28"),
			SalePrice:     core.NewAmount(150000),
		},
	}
	series := core.Aggregate(records, core.Monthly, core.WithLocation(time.UTC))
	require.Len(t, series, 1)

	for _, format := range []Format{PNG, SVG} {
		out, err := Render(series, Options{Format: format, Title: "Cashflow (monthly)"})
		require.NoError(t, err, "format %s", format)
		assert.NotEmpty(t, out)
	}
}

func TestParseHidden(t *testing.T) {
	hidden, err := ParseHidden("0, 2,,3")
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{0: true, 2: true, 3: true}, hidden)

	hidden, err = ParseHidden("")
	require.NoError(t, err)
	assert.Empty(t, hidden)

	for _, bad := range []string{"4", "-1", "x"} {
		_, err := ParseHidden(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestOptions_HiddenKey(t *testing.T) {
	assert.Equal(t, "", Options{}.HiddenKey())
	assert.Equal(t, "0,3", Options{Hidden: map[int]bool{3: true, 0: true, 1: false}}.HiddenKey())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, PNG, f)

	f, err = ParseFormat("SVG")
	require.NoError(t, err)
	assert.Equal(t, SVG, f)
	assert.Equal(t, "image/svg+xml", f.ContentType())
	assert.Equal(t, "image/png", PNG.ContentType())

	_, err = ParseFormat("gif")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFormatMoney(t *testing.T) {
	cases := map[float64]string{
		0:        "$0",
		950:      "$950",
		40000:    "$40k",
		-60000:   "-$60k",
		2500000:  "$2.5M",
		-1200000: "-$1.2M",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatMoney(in), "input %v", in)
	}
	assert.Equal(t, "", formatMoney("nope"))
}

func TestPadRange(t *testing.T) {
	lo, hi := padRange(0, 0)
	assert.Less(t, lo, hi)

	lo, hi = padRange(50, 50)
	assert.Less(t, lo, 50.0)
	assert.Greater(t, hi, 50.0)

	lo, hi = padRange(-100, 100)
	assert.InDelta(t, -120, lo, 1e-9)
	assert.InDelta(t, 120, hi, 1e-9)
}

func TestSeriesNames(t *testing.T) {
	assert.Equal(t, []string{"Cash In", "Cash Out", "Net Flow", "Cumulative Flow"}, SeriesNames())
}
