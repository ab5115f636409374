package store

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

// Field names a top-level JSON property of a stored document.
type Field string

type Op string

const (
	Eq     Op = "=="
	Neq    Op = "!="
	Lt     Op = "<"
	Lte    Op = "<="
	Gt     Op = ">"
	Gte    Op = ">="
	Exists Op = "exists"
)

func (o Op) Valid() bool {
	switch o {
	case Eq, Neq, Lt, Lte, Gt, Gte, Exists:
		return true
	}
	return false
}

type Filter struct {
	Field Field
	Op    Op
	Value any
}

type Query struct {
	Collection string
	Filters    []Filter
	Max        int
}

func From(collection string) Query {
	return Query{Collection: collection}
}

func (q Query) Where(f Field, op Op, value any) Query {
	q.Filters = append(slices.Clip(q.Filters), Filter{Field: f, Op: op, Value: value})
	return q
}

// Limit caps the result size; zero means no cap.
func (q Query) Limit(n int) Query {
	q.Max = n
	return q
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (q Query) Validate() error {
	if q.Collection == "" {
		return fmt.Errorf("query: collection required")
	}
	for _, f := range q.Filters {
		if !fieldPattern.MatchString(string(f.Field)) {
			return fmt.Errorf("query: invalid field %q", f.Field)
		}
		if !f.Op.Valid() {
			return fmt.Errorf("query: invalid operator %q", f.Op)
		}
		if f.Op == Exists {
			if _, ok := f.Value.(bool); !ok {
				return fmt.Errorf("query: exists on %s needs a bool", f.Field)
			}
		}
	}
	return nil
}

// Matches evaluates the filters against an encoded document.
func (q Query) Matches(body []byte) (bool, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return false, fmt.Errorf("decode document: %w", err)
	}
	for _, f := range q.Filters {
		if !f.matches(doc) {
			return false, nil
		}
	}
	return true, nil
}

func (f Filter) matches(doc map[string]any) bool {
	got, present := doc[string(f.Field)]
	if got == nil {
		present = false
	}
	if f.Op == Exists {
		want, _ := f.Value.(bool)
		return present == want
	}
	if !present {
		return false
	}
	cmp, ok := compare(got, Normalize(f.Value))
	if !ok {
		return f.Op == Neq
	}
	switch f.Op {
	case Eq:
		return cmp == 0
	case Neq:
		return cmp != 0
	case Lt:
		return cmp < 0
	case Lte:
		return cmp <= 0
	case Gt:
		return cmp > 0
	case Gte:
		return cmp >= 0
	}
	return false
}

// Normalize maps a Go value onto its JSON form so named types and
// timestamps compare like the stored document does.
func Normalize(v any) any {
	switch t := v.(type) {
	case nil, string, float64, bool:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(time.RFC3339Nano)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

// IsTime reports whether a filter value is a timestamp.
func IsTime(v any) bool {
	switch t := v.(type) {
	case time.Time:
		return true
	case *time.Time:
		return t != nil
	}
	return false
}

func compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		if ta, err := time.Parse(time.RFC3339Nano, av); err == nil {
			if tb, err := time.Parse(time.RFC3339Nano, bv); err == nil {
				return ta.Compare(tb), true
			}
		}
		return strings.Compare(av, bv), true
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}
