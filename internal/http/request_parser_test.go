package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"cashflow/internal/chart"
	"cashflow/internal/core"
)

func TestParseViewModeParam(t *testing.T) {
	tests := []struct {
		query   string
		def     core.ViewMode
		want    core.ViewMode
		wantErr bool
	}{
		{"", core.Monthly, core.Monthly, false},
		{"mode=", core.Daily, core.Daily, false},
		{"mode=daily", core.Monthly, core.Daily, false},
		{"mode=MONTHLY", core.Daily, core.Monthly, false},
		{"mode=weekly", core.Monthly, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got, err := ParseViewModeParam(q, tt.def)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseViewModeParam() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseViewModeParam() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseChartParams(t *testing.T) {
	q, _ := url.ParseQuery("mode=daily&hide=1,3&width=640&height=320")
	p, err := ParseChartParams(q, chart.SVG, core.Monthly)
	if err != nil {
		t.Fatalf("ParseChartParams() error = %v", err)
	}
	if p.Mode != core.Daily {
		t.Errorf("Mode = %s, want daily", p.Mode)
	}
	if p.Options.Format != chart.SVG || p.Options.Width != 640 || p.Options.Height != 320 {
		t.Errorf("unexpected options %+v", p.Options)
	}
	if p.Options.HiddenKey() != "1,3" {
		t.Errorf("HiddenKey() = %q, want 1,3", p.Options.HiddenKey())
	}
	if p.Options.Title != "Cashflow (daily)" {
		t.Errorf("Title = %q", p.Options.Title)
	}

	p, err = ParseChartParams(url.Values{}, chart.PNG, core.Monthly)
	if err != nil {
		t.Fatalf("ParseChartParams() error = %v", err)
	}
	if p.Mode != core.Monthly || p.Options.Width != 0 || len(p.Options.Hidden) != 0 {
		t.Errorf("unexpected defaults %+v", p)
	}

	for _, raw := range []string{"hide=4", "hide=x", "width=-5", "height=big", "mode=yearly"} {
		q, _ := url.ParseQuery(raw)
		if _, err := ParseChartParams(q, chart.PNG, core.Monthly); err == nil {
			t.Errorf("ParseChartParams(%q) expected error", raw)
		}
	}
}

func TestParseModeBody(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        core.ViewMode
		wantErr     bool
	}{
		{"json", "application/json", `{"mode":"daily"}`, core.Daily, false},
		{"json with charset", "application/json; charset=utf-8", `{"mode":"monthly"}`, core.Monthly, false},
		{"form", "application/x-www-form-urlencoded", "mode=daily", core.Daily, false},
		{"bad json", "application/json", `{"mode":`, "", true},
		{"empty json", "application/json", ``, "", true},
		{"unknown mode", "application/x-www-form-urlencoded", "mode=weekly", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/view-mode", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			got, err := ParseModeBody(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseModeBody() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseModeBody() = %q, want %q", got, tt.want)
			}
		})
	}
}
