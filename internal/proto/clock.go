package proto

import (
	"encoding/json"
	"sort"

	"github.com/causalchat/server/internal/vectorclock"
)

// ClockEntry is one [id, count] pair in the wire encoding of a vector clock:
// an ordered sequence of [id, count] pairs rather than an object, so the
// wire form is deterministic and diffable. The ordering by id is a display
// convention only; readiness comparison never depends on it.
type ClockEntry struct {
	ID    string
	Count uint64
}

// MarshalJSON encodes an entry as the two-element array the wire format
// specifies rather than an object, matching vector_clock:[[id,count],...].
func (e ClockEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.ID, e.Count})
}

// UnmarshalJSON decodes a two-element [id, count] array.
func (e *ClockEntry) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if err := json.Unmarshal(pair[0], &e.ID); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &e.Count)
}

// EncodeClock converts a snapshot into its wire representation, sorted by
// id for stable, human-diffable output.
func EncodeClock(snap vectorclock.Snapshot) []ClockEntry {
	out := make([]ClockEntry, 0, len(snap))
	for id, count := range snap {
		out = append(out, ClockEntry{ID: id, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DecodeClock converts a wire clock back into a snapshot. Order carries no
// semantic meaning on decode.
func DecodeClock(entries []ClockEntry) vectorclock.Snapshot {
	snap := make(vectorclock.Snapshot, len(entries))
	for _, e := range entries {
		snap[e.ID] = e.Count
	}
	return snap
}
