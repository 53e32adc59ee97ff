package trip

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// TimelineEntry is one timeline activity: an authoritative time window keyed
// by human-readable activity name within a day.
type TimelineEntry struct {
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	DurationMinutes float64 `json:"duration_minutes,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type timelineEntryJSON TimelineEntry

func (e TimelineEntry) MarshalJSON() ([]byte, error) {
	return MarshalWithExtra(timelineEntryJSON(e), e.Extra)
}

func (e *TimelineEntry) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*timelineEntryJSON)(e)); err != nil {
		return err
	}
	extra, err := CollectExtra(data, reflect.TypeOf(timelineEntryJSON{}))
	if err != nil {
		return err
	}
	e.Extra = extra
	return nil
}

// Timeline is an insertion-ordered map of activity name to entry. JSON
// object key order is significant here: the synchronizer breaks matching
// ties by timeline insertion order, so a plain Go map would not do.
type Timeline struct {
	keys    []string
	entries map[string]TimelineEntry
}

// NewTimeline builds a timeline from alternating insertion order.
func NewTimeline() *Timeline {
	return &Timeline{entries: map[string]TimelineEntry{}}
}

// Len returns the number of entries.
func (t *Timeline) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Keys returns activity names in insertion order. The caller must not
// modify the returned slice.
func (t *Timeline) Keys() []string {
	if t == nil {
		return nil
	}
	return t.keys
}

// Get looks up an entry by exact activity name.
func (t *Timeline) Get(name string) (TimelineEntry, bool) {
	if t == nil || t.entries == nil {
		return TimelineEntry{}, false
	}
	e, ok := t.entries[name]
	return e, ok
}

// Set inserts or replaces an entry, preserving the position of existing keys.
func (t *Timeline) Set(name string, e TimelineEntry) {
	if t.entries == nil {
		t.entries = map[string]TimelineEntry{}
	}
	if _, ok := t.entries[name]; !ok {
		t.keys = append(t.keys, name)
	}
	t.entries[name] = e
}

// Clone returns a deep copy.
func (t *Timeline) Clone() *Timeline {
	if t == nil {
		return nil
	}
	c := NewTimeline()
	for _, k := range t.keys {
		e := t.entries[k]
		if e.Extra != nil {
			extra := make(map[string]json.RawMessage, len(e.Extra))
			for ek, ev := range e.Extra {
				extra[ek] = append(json.RawMessage(nil), ev...)
			}
			e.Extra = extra
		}
		c.Set(k, e)
	}
	return c
}

func (t *Timeline) MarshalJSON() ([]byte, error) {
	if t == nil || len(t.keys) == 0 {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range t.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		eb, err := json.Marshal(t.entries[k])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (t *Timeline) UnmarshalJSON(data []byte) error {
	t.keys = nil
	t.entries = map[string]TimelineEntry{}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("timeline: expected object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("timeline: expected string key, got %v", keyTok)
		}
		var entry TimelineEntry
		if err := dec.Decode(&entry); err != nil {
			return fmt.Errorf("timeline entry %q: %w", key, err)
		}
		t.Set(key, entry)
	}
	return nil
}
