package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldRunID       = "run_id"
	FieldTrigger     = "trigger"
	FieldRow         = "row"
	FieldItemName    = "item_name"
	FieldCategory    = "category"
	FieldSubcategory = "subcategory"
	FieldStatus      = "status"
	FieldRemoteID    = "remote_id"
	FieldSyncKey     = "sync_key"
	FieldAttempt     = "attempt"
	FieldUpdated     = "updated"
	FieldCreated     = "created"
	FieldErrors      = "errors"
	FieldSkipped     = "skipped"
	FieldRecords     = "records"
	FieldPage        = "page"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
	ComponentScanner    = "scanner"
	ComponentIndex      = "remote_index"
	ComponentReconciler = "reconciler"
	ComponentSync       = "sync"
	ComponentExport     = "export"
	ComponentNotion     = "notion"
	ComponentNotify     = "notify"
	ComponentCache      = "cache"
	ComponentBackend    = "backend"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpQuery    = "query"
	OpList     = "list"
	OpSync     = "sync"
	OpExport   = "export"
	OpValidate = "validate"
	OpParse    = "parse"
	OpNotify   = "notify"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeRejected      = "rejected_error"
	ErrorTypeTimeout       = "timeout_error"
	ErrorTypeInternal      = "internal_error"
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

// WithRecord adds the identifying fields of a budget line
func (f LogFields) WithRecord(row int, itemName, category string) LogFields {
	if row > 0 {
		f[FieldRow] = row
	}
	f[FieldItemName] = itemName
	if category != "" {
		f[FieldCategory] = category
	}
	return f
}

// WithRun adds run identity fields
func (f LogFields) WithRun(runID, trigger string) LogFields {
	f[FieldRunID] = runID
	if trigger != "" {
		f[FieldTrigger] = trigger
	}
	return f
}

// WithStats adds reconciliation counters
func (f LogFields) WithStats(updated, created, errors int) LogFields {
	f[FieldUpdated] = updated
	f[FieldCreated] = created
	f[FieldErrors] = errors
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
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
