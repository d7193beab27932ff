package registry

import (
	"fmt"
	"time"

	"lerngruppe/internal/domain/entities"
	"lerngruppe/pkg/document"
)

func participantToFields(p entities.Participant) document.Fields {
	f := make(document.Fields, len(p.Fields)+4)
	for k, v := range p.Fields {
		if !entities.IsReservedKey(k) {
			f[k] = v
		}
	}
	if p.ID != "" {
		f[entities.KeyID] = p.ID
	}
	f[entities.KeyDeleteToken] = p.DeleteToken
	f[entities.KeyName] = p.Name
	f[entities.KeyTimestamp] = document.TimestampFromTime(p.Timestamp)
	return f
}

// logicalID is the payload id when present, else the row key.
func logicalID(doc document.Document) string {
	if id := doc.Fields.String(entities.KeyID); id != "" {
		return id
	}
	return doc.Key
}

func documentToParticipant(doc document.Document) entities.Participant {
	p := entities.Participant{
		ID:          logicalID(doc),
		DeleteToken: doc.Fields.String(entities.KeyDeleteToken),
		Name:        doc.Fields.String(entities.KeyName),
		Timestamp:   fieldToTime(doc.Fields[entities.KeyTimestamp]),
	}
	for k, v := range doc.Fields {
		if entities.IsReservedKey(k) || v == nil {
			continue
		}
		if p.Fields == nil {
			p.Fields = make(map[string]string)
		}
		if s, ok := v.(string); ok {
			p.Fields[k] = s
		} else {
			p.Fields[k] = fmt.Sprint(v)
		}
	}
	return p
}

// fieldToTime accepts the native timestamp and, for documents written by
// older clients, a plain canonical string.
func fieldToTime(v any) time.Time {
	switch tv := v.(type) {
	case document.Timestamp:
		return tv.Time()
	case *document.Timestamp:
		if tv != nil {
			return tv.Time()
		}
	case time.Time:
		return tv.UTC()
	case string:
		if t, err := entities.ParseTimestamp(tv); err == nil {
			return t
		}
	}
	return time.Time{}
}

func documentsToParticipants(docs []document.Document) []entities.Participant {
	out := make([]entities.Participant, len(docs))
	for i := range docs {
		out[i] = documentToParticipant(docs[i])
	}
	return out
}
