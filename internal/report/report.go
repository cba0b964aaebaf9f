// Package report collects per-item failures of best-effort backup and restore runs.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	KindTable = "table"
	KindFile  = "file"
)

// ItemError is a recoverable failure of a single table or file.
type ItemError struct {
	Kind string
	Name string
	Op   string
	Err  error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Kind, e.Name, e.Op, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

func (e ItemError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Name  string `json:"name"`
		Op    string `json:"op"`
		Error string `json:"error"`
	}{e.Kind, e.Name, e.Op, msg})
}

// Failures is an ordered list of recoverable failures.
type Failures []ItemError

func (f *Failures) Add(kind, name, op string, err error) {
	*f = append(*f, ItemError{Kind: kind, Name: name, Op: op, Err: err})
}

func (f Failures) Count(kind string) int {
	n := 0
	for _, e := range f {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (f Failures) String() string {
	if len(f) == 0 {
		return "no errors"
	}
	parts := make([]string, len(f))
	for i, e := range f {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}
