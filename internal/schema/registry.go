// Package schema declares which shop tables and buckets take part in a backup
// and how each table is treated on restore.
//
// The registry is maintained by hand. A table added to the live database is not
// backed up until it is listed here, so a wipe-and-replace restore can never hit
// a table nobody classified.
package schema

// Class decides how restore treats an existing table.
type Class int

const (
	// Transactional tables are only merged into; existing rows are never deleted.
	Transactional Class = iota
	// Configuration tables are wiped and replaced by the archived rows.
	Configuration
)

func (c Class) String() string {
	if c == Configuration {
		return "configuration"
	}
	return "transactional"
}

// BackupType selects how much a snapshot contains.
type BackupType string

const (
	DataOnly BackupType = "data_only"
	Full     BackupType = "full"
)

// Valid reports whether t is a known backup type.
func (t BackupType) Valid() bool {
	return t == DataOnly || t == Full
}

// DefaultKey is the primary key assumed for tables the registry does not know.
var DefaultKey = []string{"id"}

type TableSpec struct {
	Name  string
	Class Class
	Key   []string
}

type Registry struct {
	tables  []TableSpec
	index   map[string]int
	buckets []string
}

// New builds a registry. Table order is preserved and drives backup order.
func New(tables []TableSpec, buckets []string) *Registry {
	r := &Registry{
		tables:  append([]TableSpec(nil), tables...),
		index:   make(map[string]int, len(tables)),
		buckets: append([]string(nil), buckets...),
	}
	for i, t := range r.tables {
		if len(t.Key) == 0 {
			r.tables[i].Key = DefaultKey
		}
		r.index[t.Name] = i
	}
	return r
}

// TablesFor returns the ordered table names backed up for t. A data_only
// backup covers configuration tables only.
func (r *Registry) TablesFor(t BackupType) []string {
	names := make([]string, 0, len(r.tables))
	for _, spec := range r.tables {
		if t == DataOnly && spec.Class != Configuration {
			continue
		}
		names = append(names, spec.Name)
	}
	return names
}

// Classify returns the class of a table; unknown tables are transactional.
func (r *Registry) Classify(name string) Class {
	if i, ok := r.index[name]; ok {
		return r.tables[i].Class
	}
	return Transactional
}

// Known reports whether the table is declared in the registry.
func (r *Registry) Known(name string) bool {
	_, ok := r.index[name]
	return ok
}

// KeyFor returns the primary key columns used for upserts.
func (r *Registry) KeyFor(name string) []string {
	if i, ok := r.index[name]; ok {
		return append([]string(nil), r.tables[i].Key...)
	}
	return append([]string(nil), DefaultKey...)
}

func (r *Registry) Buckets() []string {
	return append([]string(nil), r.buckets...)
}
