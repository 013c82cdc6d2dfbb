package listing

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ResultSet maps IDs to records and remembers discovery order. It only
// grows: an ID, once added, keeps its first record and position.
// The zero value is ready to use.
type ResultSet struct {
	ids     []ID
	records map[ID]Record
}

// NewResultSet returns an empty set.
func NewResultSet() *ResultSet {
	return &ResultSet{records: make(map[ID]Record)}
}

// Add inserts rec under id unless id is already present. It reports whether
// the set grew.
func (rs *ResultSet) Add(id ID, rec Record) bool {
	if rs.records == nil {
		rs.records = make(map[ID]Record)
	}
	if _, ok := rs.records[id]; ok {
		return false
	}
	rs.records[id] = rec
	rs.ids = append(rs.ids, id)
	return true
}

// Has reports whether id was already collected.
func (rs *ResultSet) Has(id ID) bool {
	_, ok := rs.records[id]
	return ok
}

// Get returns the record stored under id.
func (rs *ResultSet) Get(id ID) (Record, bool) {
	rec, ok := rs.records[id]
	return rec, ok
}

// Len is the number of distinct ids.
func (rs *ResultSet) Len() int {
	return len(rs.ids)
}

// IDs returns a copy of the keys in discovery order.
func (rs *ResultSet) IDs() []ID {
	out := make([]ID, len(rs.ids))
	copy(out, rs.ids)
	return out
}

// Each calls fn for every entry in discovery order.
func (rs *ResultSet) Each(fn func(id ID, rec Record)) {
	for _, id := range rs.ids {
		fn(id, rs.records[id])
	}
}

// MarshalJSON writes an object whose keys follow discovery order. HTML
// characters are left unescaped so values round-trip verbatim.
func (rs *ResultSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, id := range rs.ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := enc.Encode(id); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := enc.Encode(rs.records[id]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping the key order of the document.
func (rs *ResultSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	rs.ids = nil
	rs.records = make(map[ID]Record)
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("result set: expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("result set: expected key, got %v", tok)
		}
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("result set: record %q: %w", id, err)
		}
		rs.Add(id, rec)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
