package transform

import (
	"strings"

	"frestoload/lib/tabular"
	"frestoload/lib/textutil"
)

// Rule matches a normalized title by prefix or substring. Exactly one
// of Prefix/Contains should be set.
type Rule struct {
	Prefix   string
	Contains string
	Category string
}

func (r Rule) matches(normalized string) bool {
	if r.Prefix != "" {
		return strings.HasPrefix(normalized, r.Prefix)
	}
	if r.Contains != "" {
		return strings.Contains(normalized, r.Contains)
	}
	return false
}

// Classifier assigns a category label to each record based on a text
// field. Rules apply in declaration order, first match wins; rule
// order carries meaning and must not be reordered. Unmatched rows get
// Default.
type Classifier struct {
	Source  string
	Target  string
	Rules   []Rule
	Default string
}

func (cl Classifier) Apply(c tabular.Collection) tabular.Collection {
	out := make(tabular.Collection, len(c))
	for i, rec := range c {
		row := rec.Clone()
		out[i] = row

		title, ok := row[cl.Source].(string)
		if !ok {
			row[cl.Target] = cl.Default
			continue
		}
		row[cl.Target] = cl.classify(title)
	}
	return out
}

func (cl Classifier) classify(title string) string {
	normalized := textutil.NormalizeName(title)
	for _, rule := range cl.Rules {
		if rule.matches(normalized) {
			return rule.Category
		}
	}
	return cl.Default
}

// NormalizeTitle rewrites a title field to its display form and then
// applies an exact-match override table. Override values must be
// stable display titles themselves or the stage stops being
// idempotent.
type NormalizeTitle struct {
	Field     string
	Overrides map[string]string
}

func (n NormalizeTitle) Apply(c tabular.Collection) tabular.Collection {
	out := make(tabular.Collection, len(c))
	for i, rec := range c {
		row := rec.Clone()
		out[i] = row

		title, ok := row[n.Field].(string)
		if !ok {
			continue
		}
		display := textutil.DisplayTitle(title)
		if override, ok := n.Overrides[display]; ok {
			display = override
		}
		row[n.Field] = display
	}
	return out
}
