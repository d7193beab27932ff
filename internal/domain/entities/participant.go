package entities

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"lerngruppe/internal/domain"
)

// Participant represents one registration entry.
type Participant struct {
	ID          string
	DeleteToken string
	Name        string
	// Fields holds the other form fields, opaque to the registry.
	Fields    map[string]string
	Timestamp time.Time
}

// Reserved JSON keys of the flat participant shape.
const (
	KeyID          = "id"
	KeyDeleteToken = "deleteToken"
	KeyName        = "name"
	KeyTimestamp   = "timestamp"
)

// IsReservedKey reports whether key is one of the fixed participant keys.
func IsReservedKey(key string) bool {
	switch key {
	case KeyID, KeyDeleteToken, KeyName, KeyTimestamp:
		return true
	}
	return false
}

// NewDeleteToken returns a fresh random deletion token.
func NewDeleteToken() string {
	return uuid.NewString()
}

// Validate checks the fields required before a participant is written.
func (p Participant) Validate() error {
	if strings.TrimSpace(p.DeleteToken) == "" {
		return fmt.Errorf("%w: deleteToken manquant", domain.ErrInvalidRecord)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name manquant", domain.ErrInvalidRecord)
	}
	if p.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp manquant", domain.ErrInvalidRecord)
	}
	return nil
}

// MarshalJSON encodes the participant as a flat object; the timestamp is
// written in its canonical RFC 3339 UTC form. An empty delete token is
// omitted.
func (p Participant) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Fields)+4)
	for k, v := range p.Fields {
		if !IsReservedKey(k) {
			out[k] = v
		}
	}
	if p.ID != "" {
		out[KeyID] = p.ID
	}
	if p.DeleteToken != "" {
		out[KeyDeleteToken] = p.DeleteToken
	}
	out[KeyName] = p.Name
	if !p.Timestamp.IsZero() {
		out[KeyTimestamp] = FormatTimestamp(p.Timestamp)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the flat object shape. Non-string extra fields are
// kept as their raw JSON text.
func (p *Participant) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*p = Participant{}
	for k, msg := range raw {
		var s string
		isString := json.Unmarshal(msg, &s) == nil
		switch k {
		case KeyID:
			p.ID = s
		case KeyDeleteToken:
			p.DeleteToken = s
		case KeyName:
			p.Name = s
		case KeyTimestamp:
			if !isString || s == "" {
				continue
			}
			ts, err := ParseTimestamp(s)
			if err != nil {
				return fmt.Errorf("participant timestamp: %w", err)
			}
			p.Timestamp = ts
		default:
			if !isString {
				s = string(msg)
			}
			if p.Fields == nil {
				p.Fields = make(map[string]string)
			}
			p.Fields[k] = s
		}
	}
	return nil
}

// Public returns a copy without the delete token, for display.
func (p Participant) Public() Participant {
	p.DeleteToken = ""
	if p.Fields != nil {
		fields := make(map[string]string, len(p.Fields))
		for k, v := range p.Fields {
			fields[k] = v
		}
		p.Fields = fields
	}
	return p
}

// FormatTimestamp renders t in the canonical serializable form.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses the canonical form; fractional seconds are optional.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
