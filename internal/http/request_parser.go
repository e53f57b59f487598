// Package http provides HTTP server and handler implementations.
//
// This file turns dashboard query strings into pipeline queries and holds the
// small request guards shared by handlers.

package http

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"hoursboard/internal/core"
	"hoursboard/internal/services"
)

// Query parameter names understood by the dashboard endpoints.
const (
	ParamStart = "start"
	ParamEnd   = "end"
	ParamMode  = "mode"
	ParamX     = "x"
	ParamColor = "color"

	// noneSuffix marks a categorical column whose selection was cleared.
	noneSuffix = "__none"
	// offeredSuffix carries the options a column showed when it was submitted.
	offeredSuffix = "__offered"

	dateLayout = "2006-01-02"
)

var fingerprintPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ParamError reports a query parameter that could not be parsed.
type ParamError struct {
	Param string
	Value string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Param, e.Value)
}

// ParseDashboardQuery reads the filter widgets and chart controls.
//
// A categorical column absent from the query keeps every value. Sending
// "<col>__none=1" with no values selects nothing. "<col>__offered" lists the
// options the form showed; options missing from it are selected on arrival.
func ParseDashboardQuery(q url.Values) (services.Query, error) {
	var out services.Query

	start, err := parseDateParam(q, ParamStart)
	if err != nil {
		return out, err
	}
	end, err := parseDateParam(q, ParamEnd)
	if err != nil {
		return out, err
	}
	out.Filter.Start = start
	out.Filter.End = end

	for _, col := range core.CategoricalColumns {
		values := cleanValues(q[col])
		switch {
		case len(values) > 0:
			out.Filter.Select(col, values...)
		case q.Get(col+noneSuffix) == "1":
			out.Filter.SelectNone(col)
		}
		if offered, ok := q[col+offeredSuffix]; ok {
			out.Filter.Offer(col, cleanValues(offered)...)
		}
	}

	mode, err := core.ParseChartMode(q.Get(ParamMode))
	if err != nil {
		return out, err
	}
	out.Aggregate = core.AggregateRequest{
		Mode:  mode,
		X:     sanitizeInput(q.Get(ParamX)),
		Color: sanitizeInput(q.Get(ParamColor)),
	}
	return out, nil
}

// EncodeDashboardQuery is the inverse of ParseDashboardQuery, used to build
// chart and export links that reproduce the current view.
func EncodeDashboardQuery(q services.Query) url.Values {
	v := url.Values{}
	if q.Filter.Start.Valid() {
		v.Set(ParamStart, q.Filter.Start.String())
	}
	if q.Filter.End.Valid() {
		v.Set(ParamEnd, q.Filter.End.String())
	}
	for _, col := range core.CategoricalColumns {
		values, ok := q.Filter.Selected[col]
		if !ok {
			continue
		}
		if len(values) == 0 {
			v.Set(col+noneSuffix, "1")
			continue
		}
		v[col] = append([]string(nil), values...)
	}
	if q.Aggregate.Mode != "" {
		v.Set(ParamMode, string(q.Aggregate.Mode))
	}
	if q.Aggregate.X != "" {
		v.Set(ParamX, q.Aggregate.X)
	}
	if q.Aggregate.Color != "" {
		v.Set(ParamColor, q.Aggregate.Color)
	}
	return v
}

// ResolvedQuery replaces the submitted selections with the ones the filter
// actually applied, so links built from it reproduce the view without the
// offered lists.
func ResolvedQuery(q services.Query, res core.FilterResult) services.Query {
	out := q
	out.Filter.Selected = nil
	out.Filter.Offered = nil
	for _, col := range core.CategoricalColumns {
		if _, restricted := q.Filter.Selected[col]; restricted {
			out.Filter.Select(col, res.Effective[col]...)
		}
	}
	return out
}

func parseDateParam(q url.Values, name string) (core.Date, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return core.Date{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return core.Date{}, &ParamError{Param: name, Value: raw}
	}
	return core.DateOf(t), nil
}

func cleanValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = sanitizeInput(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// parseDimension reads a positive pixel size, clamped to [lo, hi].
func parseDimension(q url.Values, name string, def, lo, hi int) int {
	v, err := strconv.Atoi(strings.TrimSpace(q.Get(name)))
	if err != nil || v <= 0 {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// validFingerprint reports whether s looks like a hex SHA-256 digest.
func validFingerprint(s string) bool {
	return fingerprintPattern.MatchString(s)
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// RequireGET is a convenience function for read-only handlers.
func RequireGET(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodGet, http.MethodHead)
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}
