package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Tables maps table names to rows and remembers insertion order, which is
// also the order of keys in the serialized JSON object.
type Tables struct {
	names []string
	rows  map[string][]Row
}

func NewTables() *Tables {
	return &Tables{rows: map[string][]Row{}}
}

// Set stores rows for a table. A nil slice is stored as empty.
func (t *Tables) Set(name string, rows []Row) {
	if t.rows == nil {
		t.rows = map[string][]Row{}
	}
	if _, ok := t.rows[name]; !ok {
		t.names = append(t.names, name)
	}
	if rows == nil {
		rows = []Row{}
	}
	t.rows[name] = rows
}

func (t *Tables) Get(name string) ([]Row, bool) {
	rows, ok := t.rows[name]
	return rows, ok
}

func (t *Tables) Names() []string {
	return append([]string(nil), t.names...)
}

func (t *Tables) Len() int { return len(t.names) }

// RowCount is the total number of rows across all tables.
func (t *Tables) RowCount() int {
	n := 0
	for _, rows := range t.rows {
		n += len(rows)
	}
	return n
}

func (t *Tables) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range t.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		rows, err := json.Marshal(t.rows[name])
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		buf.Write(rows)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (t *Tables) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: tables must be an object", ErrInvalidManifest)
	}

	out := NewTables()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: unexpected table key %v", ErrInvalidManifest, tok)
		}
		var rows []Row
		if err := dec.Decode(&rows); err != nil {
			return fmt.Errorf("%w: table %s: %v", ErrInvalidManifest, name, err)
		}
		out.Set(name, rows)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*t = *out
	return nil
}
