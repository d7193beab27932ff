package discord

import (
	"time"

	"lerngruppe/pkg/tz"
)

// FormatJoinedAt renders a sign-up time in Berlin local time, as German
// readers expect it.
func FormatJoinedAt(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(tz.Berlin).Format("02.01.2006, 15:04")
}
