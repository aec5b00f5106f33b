package ctxkeys

// Key is the type of every context key shared across packages.
type Key string

const (
	TraceIDKey   Key = "trace_id"
	RequestIDKey Key = "request_id"
	SessionKey   Key = "session"
)
