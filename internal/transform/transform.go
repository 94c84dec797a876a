// Package transform holds the row-level cleanup stages a pipeline can
// apply between fetch and write. Stages are pure and idempotent:
// running one twice yields the same collection as running it once.
package transform

import (
	"encoding/json"
	"fmt"
	"time"

	"frestoload/lib/tabular"
)

type Stage interface {
	Apply(tabular.Collection) tabular.Collection
}

type StageFunc func(tabular.Collection) tabular.Collection

func (f StageFunc) Apply(c tabular.Collection) tabular.Collection { return f(c) }

// Chain applies stages in declaration order.
func Chain(stages ...Stage) Stage {
	return StageFunc(func(c tabular.Collection) tabular.Collection {
		for _, s := range stages {
			c = s.Apply(c)
		}
		return c
	})
}

// Project keeps only the declared allow-list of fields.
func Project(fields ...string) Stage {
	return StageFunc(func(c tabular.Collection) tabular.Collection {
		return tabular.Project(c, fields)
	})
}

// Rename renames columns per the mapping.
func Rename(mapping map[string]string) Stage {
	return StageFunc(func(c tabular.Collection) tabular.Collection {
		return tabular.RenameColumns(c, mapping)
	})
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// CoerceDate normalizes a string timestamp field to a bare calendar
// date (YYYY-MM-DD). Values that parse with none of the layouts are
// left untouched.
func CoerceDate(field string, layouts ...string) Stage {
	if len(layouts) == 0 {
		layouts = dateLayouts
	}
	return StageFunc(func(c tabular.Collection) tabular.Collection {
		out := make(tabular.Collection, len(c))
		for i, rec := range c {
			row := rec.Clone()
			out[i] = row

			s, ok := row[field].(string)
			if !ok {
				continue
			}
			for _, layout := range layouts {
				ts, err := time.Parse(layout, s)
				if err == nil {
					row[field] = ts.Format("2006-01-02")
					break
				}
			}
		}
		return out
	})
}

// DedupRows drops records equal on every field, keeping the first.
func DedupRows() Stage {
	return StageFunc(func(c tabular.Collection) tabular.Collection {
		seen := map[string]struct{}{}
		out := make(tabular.Collection, 0, len(c))
		for _, rec := range c {
			fp := fingerprint(rec)
			if _, dup := seen[fp]; dup {
				continue
			}
			seen[fp] = struct{}{}
			out = append(out, rec)
		}
		return out
	})
}

// json.Marshal sorts map keys, giving a stable full-row fingerprint
func fingerprint(rec tabular.Record) string {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Sprint(rec)
	}
	return string(b)
}
