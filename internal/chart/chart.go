// Package chart renders cashflow series to PNG or SVG images.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"cashflow/internal/core"
)

// Series indices accepted by Options.Hidden.
const (
	SeriesCashIn = iota
	SeriesCashOut
	SeriesNetFlow
	SeriesCumulative

	seriesCount
)

const (
	DefaultWidth  = 900
	DefaultHeight = 400

	minSize = 200
	maxSize = 4000

	// Above this many buckets only every n-th label is drawn.
	maxLabels = 24
)

var ErrUnknownFormat = errors.New("unknown image format")

type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case PNG, "":
		return PNG, nil
	case SVG:
		return SVG, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

func (f Format) ContentType() string {
	if f == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

type Options struct {
	Format Format
	Width  int
	Height int
	Title  string
	Hidden map[int]bool
}

// HiddenKey is a stable string form of the hidden set, e.g. "0,2".
func (o Options) HiddenKey() string {
	var parts []string
	for i := 0; i < seriesCount; i++ {
		if o.Hidden[i] {
			parts = append(parts, strconv.Itoa(i))
		}
	}
	return strings.Join(parts, ",")
}

// ParseHidden parses a comma separated list of series indices.
func ParseHidden(s string) (map[int]bool, error) {
	hidden := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 0 || idx >= seriesCount {
			return nil, fmt.Errorf("invalid series index %q: must be 0-%d", part, seriesCount-1)
		}
		hidden[idx] = true
	}
	return hidden, nil
}

type seriesDef struct {
	name  string
	style chart.Style
	value func(core.Series) []float64
}

var definitions = [seriesCount]seriesDef{
	SeriesCashIn: {
		name:  "Cash In",
		style: chart.Style{StrokeColor: drawing.ColorFromHex("16a34a"), StrokeWidth: 2, DotColor: drawing.ColorFromHex("16a34a"), DotWidth: 3},
		value: core.Series.CashIn,
	},
	SeriesCashOut: {
		name:  "Cash Out",
		style: chart.Style{StrokeColor: drawing.ColorFromHex("dc2626"), StrokeWidth: 2, DotColor: drawing.ColorFromHex("dc2626"), DotWidth: 3},
		value: core.Series.CashOut,
	},
	SeriesNetFlow: {
		name:  "Net Flow",
		style: chart.Style{StrokeColor: drawing.ColorFromHex("2563eb"), StrokeWidth: 2.5, DotColor: drawing.ColorFromHex("2563eb"), DotWidth: 3},
		value: core.Series.NetFlow,
	},
	SeriesCumulative: {
		name:  "Cumulative Flow",
		style: chart.Style{StrokeColor: drawing.ColorFromHex("9333ea"), StrokeWidth: 2, StrokeDashArray: []float64{5.0, 3.0}},
		value: core.Series.CumulativeFlow,
	},
}

// SeriesNames returns the legend names in index order.
func SeriesNames() []string {
	names := make([]string, seriesCount)
	for i, d := range definitions {
		names[i] = d.name
	}
	return names
}

// Render draws a fresh chart for series. An empty series or a fully hidden
// set still produces a valid image with axes only.
func Render(series core.Series, opts Options) ([]byte, error) {
	opts = withDefaults(opts)

	xs := make([]float64, len(series))
	for i := range series {
		xs[i] = float64(i)
	}

	var (
		visible []chart.Series
		lo, hi  = 0.0, 0.0
	)
	for i, def := range definitions {
		if opts.Hidden[i] || len(series) == 0 {
			continue
		}
		ys := def.value(series)
		for _, y := range ys {
			lo = math.Min(lo, y)
			hi = math.Max(hi, y)
		}
		visible = append(visible, chart.ContinuousSeries{
			Name:    def.name,
			Style:   def.style,
			XValues: xs,
			YValues: ys,
		})
	}

	n := len(series)
	if n == 0 {
		n = 1
	}
	ylo, yhi := padRange(lo, hi)
	xticks := ticks(series)

	graph := chart.Chart{
		Title:  opts.Title,
		Width:  opts.Width,
		Height: opts.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			Range: &chart.ContinuousRange{Min: -0.5, Max: float64(n) - 0.5},
			Ticks: xticks,
		},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: ylo, Max: yhi},
			ValueFormatter: formatMoney,
		},
		Series: visible,
	}

	if len(visible) > 0 {
		graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	} else {
		// go-chart refuses to render without a series.
		graph.Series = []chart.Series{chart.ContinuousSeries{
			Style:   chart.Style{StrokeColor: drawing.Color{R: 255, G: 255, B: 255, A: 0}, StrokeWidth: 1},
			XValues: []float64{-0.5, float64(n) - 0.5},
			YValues: []float64{0, 0},
		}}
	}

	var buf bytes.Buffer
	provider := chart.PNG
	if opts.Format == SVG {
		provider = chart.SVG
	}
	if err := graph.Render(provider, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

func withDefaults(opts Options) Options {
	if opts.Format == "" {
		opts.Format = PNG
	}
	if opts.Width == 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height == 0 {
		opts.Height = DefaultHeight
	}
	opts.Width = clamp(opts.Width, minSize, maxSize)
	opts.Height = clamp(opts.Height, minSize, maxSize)
	return opts
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// padRange widens [lo, hi] by 10% and guarantees a non-zero span.
func padRange(lo, hi float64) (float64, float64) {
	if lo == hi {
		if lo == 0 {
			return -1, 1
		}
		d := math.Abs(lo) * 0.1
		return lo - d, hi + d
	}
	pad := (hi - lo) * 0.1
	return lo - pad, hi + pad
}

// ticks labels bucket positions. go-chart derives the x range from custom
// ticks, so blank ticks at both padded ends keep the range at least one
// bucket wide.
func ticks(series core.Series) []chart.Tick {
	labels := series.Labels()
	n := len(labels)
	if n == 0 {
		n = 1
	}

	step := 1
	if len(labels) > maxLabels {
		step = int(math.Ceil(float64(len(labels)) / float64(maxLabels/2)))
	}
	out := make([]chart.Tick, 0, len(labels)/step+3)
	out = append(out, chart.Tick{Value: -0.5})
	for i := 0; i < len(labels); i += step {
		out = append(out, chart.Tick{Value: float64(i), Label: labels[i]})
	}
	return append(out, chart.Tick{Value: float64(n) - 0.5})
}

func formatMoney(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return ""
	}
	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}
	switch {
	case f >= 1_000_000:
		return fmt.Sprintf("%s$%.1fM", sign, f/1_000_000)
	case f >= 1_000:
		return fmt.Sprintf("%s$%.0fk", sign, f/1_000)
	default:
		return fmt.Sprintf("%s$%.0f", sign, f)
	}
}
