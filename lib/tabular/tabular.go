// Package tabular holds the row model shared by the fetch, join and
// sink layers. Upstream schemas are endpoint-dependent and not known
// statically, so a row is just a field → value map.
package tabular

import (
	"fmt"
	"sort"
)

type Record map[string]any

type Collection []Record

func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Columns returns the sorted union of field names across all records.
func (c Collection) Columns() []string {
	seen := map[string]struct{}{}
	for _, rec := range c {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Join declares how fields from a lookup collection are merged into a
// driving collection.
type Join struct {
	LeftKey  string
	RightKey string
	// Select limits which lookup fields are copied. Empty means all
	// fields except the join key.
	Select []string
	// Rename maps lookup field names to output names, declared per
	// join so column collisions are explicit.
	Rename map[string]string
}

// joinKey stringifies values so that an int id on one side still
// matches a float64 id decoded from JSON on the other.
func joinKey(v any) string {
	return fmt.Sprint(v)
}

// LeftJoin copies the declared fields of lookup into every matching
// driving record. Every driving row appears exactly once in the output
// whether or not it matched. Fields already present on the driving row
// are never overwritten; use Rename to resolve collisions. If lookup
// holds duplicate keys the first occurrence wins, callers should
// DedupByKey first.
func LeftJoin(driving, lookup Collection, j Join) Collection {
	index := make(map[string]Record, len(lookup))
	for _, rec := range lookup {
		v, ok := rec[j.RightKey]
		if !ok {
			continue
		}
		k := joinKey(v)
		if _, dup := index[k]; !dup {
			index[k] = rec
		}
	}

	out := make(Collection, len(driving))
	for i, rec := range driving {
		row := rec.Clone()
		out[i] = row

		v, ok := rec[j.LeftKey]
		if !ok {
			continue
		}
		match, ok := index[joinKey(v)]
		if !ok {
			continue
		}

		fields := j.Select
		if len(fields) == 0 {
			fields = make([]string, 0, len(match))
			for k := range match {
				if k != j.RightKey {
					fields = append(fields, k)
				}
			}
		}
		for _, f := range fields {
			mv, ok := match[f]
			if !ok {
				continue
			}
			name := f
			if renamed, ok := j.Rename[f]; ok {
				name = renamed
			}
			if _, taken := row[name]; taken {
				continue
			}
			row[name] = mv
		}
	}
	return out
}

// DedupByKey keeps the first record per key value. Records without the
// key are kept as-is.
func DedupByKey(c Collection, key string) Collection {
	seen := map[string]struct{}{}
	out := make(Collection, 0, len(c))
	for _, rec := range c {
		v, ok := rec[key]
		if !ok {
			out = append(out, rec)
			continue
		}
		k := joinKey(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// RenameColumns returns a copy of the collection with fields renamed
// per the mapping. Fields absent from a record are skipped.
func RenameColumns(c Collection, mapping map[string]string) Collection {
	out := make(Collection, len(c))
	for i, rec := range c {
		row := rec.Clone()
		for old, name := range mapping {
			if v, ok := row[old]; ok {
				delete(row, old)
				row[name] = v
			}
		}
		out[i] = row
	}
	return out
}

// Project keeps only the given fields on every record.
func Project(c Collection, fields []string) Collection {
	out := make(Collection, len(c))
	for i, rec := range c {
		row := make(Record, len(fields))
		for _, f := range fields {
			if v, ok := rec[f]; ok {
				row[f] = v
			}
		}
		out[i] = row
	}
	return out
}
