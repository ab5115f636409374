package store

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Patch is a partial update of top-level fields. Parts apply in order:
// Set, Unset, AddToSet, RemoveFromSet, Increment.
type Patch struct {
	Set           map[string]any
	Unset         []string
	AddToSet      map[string][]string
	RemoveFromSet map[string][]string
	Increment     map[string]int64
}

// Apply returns body with p applied.
func (p Patch) Apply(body []byte) ([]byte, error) {
	doc := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
	}
	for k, v := range p.Set {
		doc[k] = Normalize(v)
	}
	for _, k := range p.Unset {
		delete(doc, k)
	}
	for k, values := range p.AddToSet {
		current := stringSet(doc[k])
		for _, v := range values {
			if !slices.Contains(current, v) {
				current = append(current, v)
			}
		}
		doc[k] = toAnySlice(current)
	}
	for k, values := range p.RemoveFromSet {
		current := stringSet(doc[k])
		current = slices.DeleteFunc(current, func(s string) bool { return slices.Contains(values, s) })
		doc[k] = toAnySlice(current)
	}
	for k, delta := range p.Increment {
		n, _ := doc[k].(float64)
		doc[k] = n + float64(delta)
	}
	return json.Marshal(doc)
}

func stringSet(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
