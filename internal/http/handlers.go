package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cashflow/internal/chart"
	"cashflow/internal/core"
	"cashflow/internal/dashboard"
	applog "cashflow/internal/log"
)

type seriesName struct {
	Index int
	Name  string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			applog.FieldComponent, applog.ComponentTemplate,
			"error_type", applog.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	var names []seriesName
	for i, name := range chart.SeriesNames() {
		names = append(names, seriesName{Index: i, Name: name})
	}

	data := struct {
		ViewMode string
		Modes    []core.ViewMode
		Series   []seriesName
		Status   dashboard.Status
	}{
		ViewMode: s.session.ViewMode().String(),
		Modes:    []core.ViewMode{core.Monthly, core.Daily},
		Series:   names,
		Status:   s.session.Status(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Index template execution failed",
			applog.FieldError, err, "template", "index.html")
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

// handleRecords reads the source on every request and returns its payload
// verbatim.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	payload, err := s.source.ReadRecords(r.Context())
	if err != nil {
		applog.FromContext(r.Context()).LogError(r.Context(), "Records read failed", err, applog.OpRead, nil)
		InternalServerError(err.Error()).Write(w)
		return
	}
	NewJSONResponse().Raw(payload.Raw).Write(w)
}

// handleSnapshot returns the payload of the snapshot currently being charted
// without touching the source.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.session.Snapshot()
	if err != nil {
		ErrorResponse(http.StatusServiceUnavailable, err.Error()).Write(w)
		return
	}
	NewJSONResponse().
		Header(HeaderGeneration, strconv.FormatUint(snap.Generation, 10)).
		Raw(snap.Raw).
		Write(w)
}

type reloadResponse struct {
	Loaded     bool       `json:"loaded"`
	Records    int        `json:"records"`
	Generation uint64     `json:"generation"`
	LoadedAt   *time.Time `json:"loaded_at,omitempty"`
	Stale      bool       `json:"stale,omitempty"`
	Error      string     `json:"error,omitempty"`
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), reloadTimeout)
	defer cancel()

	snap, err := s.session.Reload(ctx)
	switch {
	case errors.Is(err, dashboard.ErrStaleResponse):
		s.staleReloads.Add(1)
		st := s.session.Status()
		NewJSONResponse().Status(http.StatusConflict).JSON(reloadResponse{
			Loaded:     false,
			Records:    st.Records,
			Generation: st.Generation,
			Stale:      true,
			Error:      "a newer reload superseded this one",
		}).Write(w)
		return
	case err != nil:
		s.reloadFailures.Add(1)
		st := s.session.Status()
		NewJSONResponse().Status(http.StatusBadGateway).JSON(reloadResponse{
			Loaded:     false,
			Records:    st.Records,
			Generation: st.Generation,
			Error:      err.Error(),
		}).Write(w)
		return
	}

	s.reloads.Add(1)
	// Entries are keyed by generation; older ones can no longer be hit.
	s.seriesCache.Purge()
	s.imageCache.Purge()

	loadedAt := snap.LoadedAt
	NewJSONResponse().JSON(reloadResponse{
		Loaded:     true,
		Records:    len(snap.Records),
		Generation: snap.Generation,
		LoadedAt:   &loadedAt,
	}).Write(w)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(s.session.Status()).Write(w)
}

type cashflowResponse struct {
	Mode           string      `json:"mode"`
	Generation     uint64      `json:"generation"`
	Labels         []string    `json:"labels"`
	CashIn         []float64   `json:"cash_in"`
	CashOut        []float64   `json:"cash_out"`
	NetFlow        []float64   `json:"net_flow"`
	CumulativeFlow []float64   `json:"cumulative_flow"`
	Totals         core.Totals `json:"totals"`
	SeriesNames    []string    `json:"series_names"`
}

func (s *Server) handleCashflow(w http.ResponseWriter, r *http.Request) {
	mode, err := ParseViewModeParam(r.URL.Query(), s.session.ViewMode())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	series, snap, err := s.series(r.Context(), mode)
	if err != nil {
		BadGatewayError(err.Error()).Write(w)
		return
	}

	NewJSONResponse().JSON(cashflowResponse{
		Mode:           mode.String(),
		Generation:     snap.Generation,
		Labels:         series.Labels(),
		CashIn:         series.CashIn(),
		CashOut:        series.CashOut(),
		NetFlow:        series.NetFlow(),
		CumulativeFlow: series.CumulativeFlow(),
		Totals:         series.Totals(),
		SeriesNames:    chart.SeriesNames(),
	}).Write(w)
}

func (s *Server) handleSetViewMode(w http.ResponseWriter, r *http.Request) {
	mode, err := ParseModeBody(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.session.SetViewMode(mode); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	NewJSONResponse().JSON(map[string]string{"view_mode": mode.String()}).Write(w)
}

func (s *Server) handleChart(format chart.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := ParseChartParams(r.URL.Query(), format, s.session.ViewMode())
		if err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}

		series, snap, err := s.series(r.Context(), params.Mode)
		if err != nil {
			BadGatewayError(err.Error()).Write(w)
			return
		}

		opts := params.Options
		key := fmt.Sprintf("%d|%s|%s|%s|%dx%d", snap.Generation, params.Mode, opts.HiddenKey(), format, opts.Width, opts.Height)
		img, err := s.imageCache.GetOrLoad(key, func() ([]byte, error) {
			return chart.Render(series, opts)
		})
		if err != nil {
			applog.FromContext(r.Context()).LogError(r.Context(), "Chart render failed", err, applog.OpRender,
				applog.NewFields().WithSnapshot(snap.Generation, len(snap.Records)))
			InternalServerError("chart render failed").Write(w)
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(img)
	}
}

// series loads records if nothing is loaded yet and returns the aggregated
// series for mode, cached per generation. A reload already in flight is
// joined.
func (s *Server) series(ctx context.Context, mode core.ViewMode) (core.Series, dashboard.Snapshot, error) {
	snap, err := s.session.EnsureLoaded(ctx)
	if err != nil {
		return nil, dashboard.Snapshot{}, err
	}

	key := fmt.Sprintf("%d|%s", snap.Generation, mode)
	series, err := s.seriesCache.GetOrLoad(key, func() (core.Series, error) {
		return s.session.Aggregate(snap, mode), nil
	})
	return series, snap, err
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	TooManyRequestsError("rate limit exceeded, try again later").Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports not ready until templates are parsed and a records
// source is configured. A failed reload does not make the service unready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.source == nil {
		checks["records_source"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["records_source"] = "ok"
	}

	checks["session"] = s.session.Status()
	checks["cache"] = map[string]any{
		"series_entries": s.seriesCache.Size(),
		"image_entries":  s.imageCache.Size(),
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
	}

	NewJSONResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	seriesStats := s.seriesCache.Stats()
	imageStats := s.imageCache.Stats()
	st := s.session.Status()

	w.WriteHeader(http.StatusOK)

	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
		fmt.Fprintf(w, "%s %v\n\n", name, value)
	}

	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "Responses with a 5xx status", "counter", traceMetrics.ServerErrors)
	metric("records_reloads_total", "Successful record reloads", "counter", s.reloads.Load())
	metric("records_reload_failures_total", "Failed record reloads", "counter", s.reloadFailures.Load())
	metric("records_reload_stale_total", "Reloads discarded because a newer one started", "counter", s.staleReloads.Load())
	metric("records_generation", "Generation of the current snapshot", "gauge", st.Generation)
	metric("records_loaded", "Records in the current snapshot", "gauge", st.Records)

	fmt.Fprintf(w, "# HELP cache_hits_total Total cache hits\n# TYPE cache_hits_total counter\n")
	fmt.Fprintf(w, "cache_hits_total{type=\"series\"} %d\n", seriesStats.Hits)
	fmt.Fprintf(w, "cache_hits_total{type=\"image\"} %d\n\n", imageStats.Hits)
	fmt.Fprintf(w, "# HELP cache_misses_total Total cache misses\n# TYPE cache_misses_total counter\n")
	fmt.Fprintf(w, "cache_misses_total{type=\"series\"} %d\n", seriesStats.Misses)
	fmt.Fprintf(w, "cache_misses_total{type=\"image\"} %d\n\n", imageStats.Misses)
	fmt.Fprintf(w, "# HELP cache_entries Current cache entries\n# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries{type=\"series\"} %d\n", seriesStats.Size)
	fmt.Fprintf(w, "cache_entries{type=\"image\"} %d\n\n", imageStats.Size)

	metric("rate_limit_rejected_total", "Requests rejected by the rate limiter", "counter", rateLimitMetrics.Rejected)
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "Suspicious requests blocked", "counter", s.securityDetector.SuspiciousRequests())
	metric("uptime_seconds", "Application uptime in seconds", "gauge", fmt.Sprintf("%.0f", time.Since(s.started).Seconds()))
}
