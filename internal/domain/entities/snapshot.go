package entities

// Snapshot is a full copy of the live participant set at one point in time,
// or the error that ended the feed.
type Snapshot struct {
	Participants []Participant
	Err          error
}

// CloneParticipants deep-copies ps so each observer owns its snapshot.
func CloneParticipants(ps []Participant) []Participant {
	if ps == nil {
		return nil
	}
	out := make([]Participant, len(ps))
	for i, p := range ps {
		out[i] = p
		if p.Fields != nil {
			out[i].Fields = make(map[string]string, len(p.Fields))
			for k, v := range p.Fields {
				out[i].Fields[k] = v
			}
		}
	}
	return out
}
