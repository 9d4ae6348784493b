package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, carried on the context logger through a whole run.
const (
	FieldRequestID = "request_id"
	FieldRunID     = "run_id"
	FieldSource    = "source"
	FieldComponent = "component"
	FieldPhase     = "phase"
)

// Entry-level fields used for aggregation.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldStatus     = "status"
	FieldRow        = "row"
	FieldReason     = "reason"
	FieldSize       = "size"
)
