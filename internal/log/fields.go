package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldSessionID     = "session_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldReferer       = "referer"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldFingerprint   = "fingerprint"
	FieldFilename      = "filename"
	FieldSizeBytes     = "size_bytes"
	FieldRows          = "rows"
	FieldFilteredRows  = "filtered_rows"
	FieldTotalHours    = "total_hours"
	FieldChartKind     = "chart_kind"
	FieldXColumn       = "x_column"
	FieldColorColumn   = "color_column"
	FieldCacheHit      = "cache_hit"
	FieldInvalidDates  = "invalid_dates"
	FieldInvalidMinute = "invalid_minutes"
	FieldSheetsRange   = "sheets_range"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLoader    = "loader"
	ComponentDashboard = "dashboard"
	ComponentUpload    = "upload"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentSession   = "session"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentTemplate  = "template"
	ComponentCLI       = "cli"
)

// Operations defines standard operation names
const (
	OpLoad      = "load"
	OpFilter    = "filter"
	OpAggregate = "aggregate"
	OpRender    = "render"
	OpPersist   = "persist"
	OpPublish   = "publish"
	OpImport    = "import"
	OpAppend    = "append"
	OpParse     = "parse"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithUpload adds the identity of a loaded spreadsheet.
func (f LogFields) WithUpload(fingerprint, filename string, rows int, totalHours float64) LogFields {
	f[FieldFingerprint] = fingerprint
	f[FieldFilename] = filename
	f[FieldRows] = rows
	f[FieldTotalHours] = totalHours
	return f
}

// WithChart adds the chart selection.
func (f LogFields) WithChart(kind, x, color string) LogFields {
	f[FieldChartKind] = kind
	f[FieldXColumn] = x
	if color != "" {
		f[FieldColorColumn] = color
	}
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	if referer != "" {
		f[FieldReferer] = referer
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
