package logging

import "log/slog"

// Common field names for consistent logging across the service.
const (
	FieldService    = "service"
	FieldDeliveryID = "delivery_id"
	FieldEventKind  = "event_kind"
	FieldAction     = "action"
	FieldIP         = "ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldRepo       = "repo"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// DeliveryID returns a slog attribute for a webhook delivery id.
func DeliveryID(id string) slog.Attr {
	return slog.String(FieldDeliveryID, id)
}

// EventKind returns a slog attribute for a webhook event kind.
func EventKind(kind string) slog.Attr {
	return slog.String(FieldEventKind, kind)
}

// Action returns a slog attribute for a webhook action.
func Action(action string) slog.Attr {
	return slog.String(FieldAction, action)
}

// IP returns a slog attribute for the client IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// Repo returns a slog attribute for an owner/repo pair.
func Repo(fullName string) slog.Attr {
	return slog.String(FieldRepo, fullName)
}
