package output

// T renders user-facing messages: localized error texts surfaced verbatim by
// the HTTP and CLI adapters, and the Discord announcements.
type T interface {
	// T renders the message identified by key for the given locale, falling
	// back to the default locale. data fills template placeholders (may be nil).
	T(locale, key string, data map[string]any) string
}
