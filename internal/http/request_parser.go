package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cashflow/internal/chart"
	"cashflow/internal/core"
)

const maxFormBytes = 4 << 10

// ChartParams holds the parsed query of a chart request.
type ChartParams struct {
	Mode    core.ViewMode
	Options chart.Options
}

// ParseViewModeParam reads ?mode=. An absent or blank value yields def.
func ParseViewModeParam(query url.Values, def core.ViewMode) (core.ViewMode, error) {
	v := strings.TrimSpace(query.Get("mode"))
	if v == "" {
		return def, nil
	}
	return core.ParseViewMode(v)
}

// ParseChartParams reads mode, hide, width and height from a chart query.
func ParseChartParams(query url.Values, format chart.Format, def core.ViewMode) (ChartParams, error) {
	mode, err := ParseViewModeParam(query, def)
	if err != nil {
		return ChartParams{}, err
	}

	hidden, err := chart.ParseHidden(query.Get("hide"))
	if err != nil {
		return ChartParams{}, err
	}

	width, err := parseDimension(query, "width")
	if err != nil {
		return ChartParams{}, err
	}
	height, err := parseDimension(query, "height")
	if err != nil {
		return ChartParams{}, err
	}

	return ChartParams{
		Mode: mode,
		Options: chart.Options{
			Format: format,
			Width:  width,
			Height: height,
			Title:  chartTitle(mode),
			Hidden: hidden,
		},
	}, nil
}

// parseDimension returns 0 for an absent value; the renderer applies its
// default and clamps the rest.
func parseDimension(query url.Values, key string) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, v)
	}
	return n, nil
}

func chartTitle(mode core.ViewMode) string {
	if mode == core.Daily {
		return "Cashflow (daily)"
	}
	return "Cashflow (monthly)"
}

// ParseModeBody reads the requested view mode from a JSON body
// ({"mode": "daily"}) or a form/query value.
func ParseModeBody(r *http.Request) (core.ViewMode, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxFormBytes)

	var raw string
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body struct {
			Mode string `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("invalid JSON body: %w", err)
		}
		raw = body.Mode
	} else {
		if err := r.ParseForm(); err != nil {
			return "", fmt.Errorf("invalid form body: %w", err)
		}
		raw = r.Form.Get("mode")
	}

	return core.ParseViewMode(raw)
}
