package i18n

import (
	"strings"

	"lerngruppe/internal/domain"
	"lerngruppe/internal/ports/output"
)

// ErrorMessage resolves err to a localized user-facing message through its
// domain error code. Errors without one render as error.internal.
func ErrorMessage(t output.T, locale string, err error) string {
	if err == nil {
		return ""
	}
	code := domain.Code(err)
	if code == "" {
		code = "internal"
	}
	return t.T(locale, "error."+code, map[string]any{"Detail": detail(err)})
}

// detail is the innermost text of a wrapped error chain.
func detail(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}
