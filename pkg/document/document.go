// Package document defines the generic document shape exchanged with
// document stores, including the store-native timestamp value.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Fields is the payload of a document.
type Fields map[string]any

// Document is one row of a collection: the store's own row key plus fields.
type Document struct {
	Key    string
	Fields Fields
}

// Clone returns a shallow copy of f. Field values are expected to be
// immutable (strings, numbers, Timestamp).
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns the field as a string, or "" when absent or not a string.
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// Timestamp is the store-native temporal value: UTC seconds and nanoseconds
// since the Unix epoch.
type Timestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanos"`
}

// TimestampFromTime converts t to a Timestamp.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// Time returns the timestamp as a UTC time.Time.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

const timestampTag = "$timestamp"

// Encode serializes fields to JSON. Timestamp values are tagged so Decode
// can restore them.
func Encode(f Fields) ([]byte, error) {
	out := make(map[string]any, len(f))
	for k, v := range f {
		switch tv := v.(type) {
		case Timestamp:
			out[k] = map[string]Timestamp{timestampTag: tv}
		case *Timestamp:
			if tv != nil {
				out[k] = map[string]Timestamp{timestampTag: *tv}
			}
		default:
			out[k] = v
		}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return b, nil
}

// Decode parses JSON produced by Encode.
func Decode(b []byte) (Fields, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	out := make(Fields, len(raw))
	for k, msg := range raw {
		if ts, ok := decodeTimestamp(msg); ok {
			out[k] = ts
			continue
		}
		var v any
		dec := json.NewDecoder(bytes.NewReader(msg))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode field %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func decodeTimestamp(msg json.RawMessage) (Timestamp, bool) {
	if len(msg) == 0 || msg[0] != '{' {
		return Timestamp{}, false
	}
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(msg, &tagged); err != nil || len(tagged) != 1 {
		return Timestamp{}, false
	}
	inner, ok := tagged[timestampTag]
	if !ok {
		return Timestamp{}, false
	}
	var ts Timestamp
	if err := json.Unmarshal(inner, &ts); err != nil {
		return Timestamp{}, false
	}
	return ts, true
}
